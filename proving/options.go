package proving

import (
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/KILTprotocol/dip-sdk/authorizing"
	"github.com/KILTprotocol/dip-sdk/chain"
	"github.com/KILTprotocol/dip-sdk/config"
	"github.com/KILTprotocol/dip-sdk/envelope"
)

type option struct {
	signer         chain.Signer
	authorizerOpts []authorizing.OptionFunc

	extensions        []envelope.Extension
	commitmentVersion uint16
	logger            *zap.Logger
	tracerProvider    trace.TracerProvider
}

func applyOpts(opts ...OptionFunc) (*option, error) {
	options := &option{
		commitmentVersion: config.DefaultCommitmentVersion,
		logger:            zap.NewNop(),
		tracerProvider:    otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	return options, nil
}

type OptionFunc func(*option) error

// WithSigner adds a time-bound signature by signer over the call as the first
// extension of every envelope.
func WithSigner(signer chain.Signer) OptionFunc {
	return func(o *option) error {
		if signer == nil {
			return errors.New("`signer` is required")
		}
		o.signer = signer
		return nil
	}
}

// WithAuthorizerOptions configures the authorizer behind WithSigner.
func WithAuthorizerOptions(opts ...authorizing.OptionFunc) OptionFunc {
	return func(o *option) error {
		o.authorizerOpts = append(o.authorizerOpts, opts...)
		return nil
	}
}

// WithExtensions appends extensions. Their elements are added to the
// envelope in the order given.
func WithExtensions(extensions ...envelope.Extension) OptionFunc {
	return func(o *option) error {
		for _, ext := range extensions {
			if ext == nil {
				return errors.New("`extension` must not be nil")
			}
		}
		o.extensions = append(o.extensions, extensions...)
		return nil
	}
}

// WithCommitmentVersion sets the commitment version used when a request
// does not name one.
func WithCommitmentVersion(version uint16) OptionFunc {
	return func(o *option) error {
		o.commitmentVersion = version
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

func WithTracerProvider(tp trace.TracerProvider) OptionFunc {
	return func(o *option) error {
		if tp == nil {
			return errors.New("`tracer provider` is required")
		}
		o.tracerProvider = tp
		return nil
	}
}
