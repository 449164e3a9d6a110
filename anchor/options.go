package anchor

import (
	"errors"

	"go.uber.org/zap"

	"github.com/KILTprotocol/dip-sdk/config"
)

type option struct {
	revision config.Revision
	logger   *zap.Logger
}

func applyOpts(opts ...OptionFunc) (*option, error) {
	options := &option{
		revision: config.DefaultRevision,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	return options, nil
}

type OptionFunc func(*option) error

// WithRevision pins the protocol revision that decides which provider block
// the relay's recorded head must match.
func WithRevision(r config.Revision) OptionFunc {
	return func(o *option) error {
		o.revision = r
		return nil
	}
}

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(o *option) error {
		if logger == nil {
			return errors.New("`logger` is required")
		}
		o.logger = logger
		return nil
	}
}
