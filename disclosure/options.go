package disclosure

import (
	"errors"

	"go.uber.org/zap"
)

type option struct {
	logger *zap.Logger
}

func applyOpts(opts ...OptionFunc) (*option, error) {
	options := &option{
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	return options, nil
}

type OptionFunc func(*option) error

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(o *option) error {
		if logger == nil {
			return errors.New("`logger` is required")
		}
		o.logger = logger
		return nil
	}
}
