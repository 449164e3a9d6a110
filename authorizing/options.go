package authorizing

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/KILTprotocol/dip-sdk/config"
	"github.com/KILTprotocol/dip-sdk/typereg"
)

type option struct {
	registry     *typereg.Registry
	types        config.TypeNames
	expiryOffset uint64
	logger       *zap.Logger
}

func applyOpts(opts ...OptionFunc) (*option, error) {
	options := &option{
		registry:     typereg.Default(),
		types:        config.DefaultTypeNames(),
		expiryOffset: config.DefaultExpiryOffset,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	return options, nil
}

type OptionFunc func(*option) error

// WithRegistry sets the registry the payload type names are looked up in.
func WithRegistry(r *typereg.Registry) OptionFunc {
	return func(o *option) error {
		if r == nil {
			return errors.New("`registry` is required")
		}
		o.registry = r
		return nil
	}
}

// WithTypeNames sets the consumer's type names. Requests may still override
// single fields.
func WithTypeNames(types config.TypeNames) OptionFunc {
	return func(o *option) error {
		o.types = config.ResolveTypeNames(o.types, types)
		return nil
	}
}

func WithExpiryOffset(offset uint64) OptionFunc {
	return func(o *option) error {
		if offset == 0 || offset > config.MaxExpiryOffset {
			return fmt.Errorf("invalid `offset`; expected: 1..%d, given: %d", config.MaxExpiryOffset, offset)
		}
		o.expiryOffset = offset
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
