// Package proving composes the proofs that let a subject of the provider
// chain act on a consumer chain into one dispatchable operation.
package proving

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KILTprotocol/dip-sdk/anchor"
	"github.com/KILTprotocol/dip-sdk/authorizing"
	"github.com/KILTprotocol/dip-sdk/chain"
	"github.com/KILTprotocol/dip-sdk/config"
	"github.com/KILTprotocol/dip-sdk/disclosure"
	"github.com/KILTprotocol/dip-sdk/envelope"
	"github.com/KILTprotocol/dip-sdk/metrics"
	"github.com/KILTprotocol/dip-sdk/shared"
)

const tracerName = "github.com/KILTprotocol/dip-sdk/proving"

// Leg names reported by LegError for the identity proof steps. Extension
// failures carry the extension name.
const (
	LegAnchor     = "anchor"
	LegCommitment = "commitment"
	LegDisclosure = "disclosure"
	LegEnvelope   = "envelope"
	LegDispatch   = "dispatch"
)

// LegError names the leg that failed a composition.
type LegError struct {
	Leg string
	Err error
}

func (err *LegError) Error() string {
	return fmt.Sprintf("%s: %v", err.Leg, err.Err)
}

func (err *LegError) Unwrap() error {
	return err.Err
}

type Request struct {
	Subject   shared.Subject
	Call      shared.Call
	Submitter []byte

	// ProviderBlock pins the anchored provider block. By default it is the
	// newest provable one.
	ProviderBlock     *uint64
	CommitmentVersion *uint16

	KeyRefs        []string
	RevealWeb3Name bool
	Accounts       []shared.LinkedAccount
}

type Result struct {
	// ID correlates the log lines and spans of the composition.
	ID uuid.UUID

	Anchor          *anchor.ProviderAnchor
	Envelope        envelope.Envelope
	EncodedEnvelope []byte
	Operation       *shared.SubmittableOperation
}

// Assembler runs the proof composition. It keeps no state between calls and
// is safe for concurrent use.
type Assembler struct {
	topology    Topology
	disclosures *disclosure.Builder
	consumer    chain.Consumer

	extensions        []envelope.Extension
	commitmentVersion uint16

	logger *zap.Logger
	tracer trace.Tracer
}

func NewAssembler(topology Topology, provider chain.Provider, consumer chain.Consumer, opts ...OptionFunc) (*Assembler, error) {
	options, err := applyOpts(opts...)
	if err != nil {
		return nil, err
	}
	disclosures, err := disclosure.NewBuilder(provider, disclosure.WithLogger(options.logger.Named("disclosure")))
	if err != nil {
		return nil, err
	}
	extensions := options.extensions
	if options.signer != nil {
		authOpts := append([]authorizing.OptionFunc{authorizing.WithLogger(options.logger.Named("authorizing"))}, options.authorizerOpts...)
		authorizer, err := authorizing.NewAuthorizer(consumer, authOpts...)
		if err != nil {
			return nil, err
		}
		auth := &authorizing.Extension{Authorizer: authorizer, Signer: options.signer}
		extensions = append([]envelope.Extension{auth}, extensions...)
	}
	return &Assembler{
		topology:          topology,
		disclosures:       disclosures,
		consumer:          consumer,
		extensions:        extensions,
		commitmentVersion: options.commitmentVersion,
		logger:            options.logger,
		tracer:            options.tracerProvider.Tracer(tracerName),
	}, nil
}

// NewFromConfig builds the topology selected by cfg and an assembler using it.
// The configured commitment version is the default of every request, and the
// configured expiry offset and type names drive the authorizer of WithSigner.
func NewFromConfig(cfg *config.Config, relay chain.Relay, provider chain.Provider, consumer chain.Consumer, opts ...OptionFunc) (*Assembler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options, err := applyOpts(opts...)
	if err != nil {
		return nil, err
	}
	topology, err := TopologyFor(cfg, relay, provider, options.logger)
	if err != nil {
		return nil, err
	}
	opts = append([]OptionFunc{
		WithCommitmentVersion(cfg.CommitmentVersion),
		WithAuthorizerOptions(
			authorizing.WithExpiryOffset(cfg.ExpiryOffset),
			authorizing.WithTypeNames(cfg.Types),
		),
	}, opts...)
	return NewAssembler(topology, provider, consumer, opts...)
}

// Generate resolves every proof for req concurrently and wraps req.Call into
// an operation dispatched as the subject. The first failing leg aborts the
// others and is returned as *LegError.
func (a *Assembler) Generate(ctx context.Context, req *Request) (*Result, error) {
	id := uuid.New()
	topology := string(a.topology.Name())
	logger := a.logger.With(
		zap.Stringer("composition", id),
		zap.Stringer("subject", req.Subject),
		zap.String("topology", topology),
	)

	ctx, span := a.tracer.Start(ctx, "compose", trace.WithAttributes(
		attribute.String("dip.composition", id.String()),
		attribute.String("dip.topology", topology),
	))
	defer span.End()

	res, err := a.generate(ctx, logger, req)
	metrics.RecordComposition(topology, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Debug("composition failed", zap.Error(err))
		return nil, err
	}
	res.ID = id

	logger.Info("composed proof",
		zap.Uint64("provider_block", res.Anchor.ProviderBlockHeight),
		zap.Uint64("relay_block", res.Anchor.RelayBlockHeight),
		zap.Stringer("envelope", res.Envelope.Version()),
		zap.Int("envelope_size", len(res.EncodedEnvelope)),
	)
	return res, nil
}

func (a *Assembler) generate(ctx context.Context, logger *zap.Logger, req *Request) (*Result, error) {
	version := config.ResolveCommitmentVersion(req.CommitmentVersion, a.commitmentVersion)
	parts := &Parts{}
	elements := make([]envelope.Element, len(a.extensions))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return a.identityLeg(egCtx, req, version, parts)
	})
	input := envelope.ExtensionInput{Subject: req.Subject, Call: req.Call, Submitter: req.Submitter}
	for i, ext := range a.extensions {
		i, ext := i, ext
		eg.Go(func() error {
			return a.leg(egCtx, ext.Name(), func(ctx context.Context) error {
				el, err := ext.Generate(ctx, input)
				elements[i] = el
				return err
			})
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for i, ext := range a.extensions {
		b, err := ext.Encode(elements[i])
		if err != nil {
			return nil, &LegError{Leg: ext.Name(), Err: fmt.Errorf("encode element: %w", err)}
		}
		parts.Extensions = append(parts.Extensions, b)
	}

	env, err := a.topology.BuildEnvelope(parts)
	if err != nil {
		return nil, &LegError{Leg: LegEnvelope, Err: err}
	}
	encoded, err := envelope.Encode(env)
	if err != nil {
		return nil, &LegError{Leg: LegEnvelope, Err: err}
	}
	logger.Debug("encoded envelope", zap.Stringer("envelope", shared.HexBytes(encoded)))

	op, err := a.consumer.BuildDispatchAs(ctx, req.Subject, encoded, req.Call)
	if err != nil {
		return nil, &LegError{Leg: LegDispatch, Err: err}
	}
	if op == nil {
		return nil, &LegError{Leg: LegDispatch, Err: errors.New("consumer returned no operation")}
	}
	op.Submitter = req.Submitter

	return &Result{
		Anchor:          parts.Anchor,
		Envelope:        env,
		EncodedEnvelope: encoded,
		Operation:       op,
	}, nil
}

// identityLeg resolves anchor, commitment and disclosure in order; each
// step needs the previous one.
func (a *Assembler) identityLeg(ctx context.Context, req *Request, version uint16, parts *Parts) error {
	err := a.leg(ctx, LegAnchor, func(ctx context.Context) (err error) {
		parts.Anchor, err = a.topology.ResolveAnchor(ctx, req.ProviderBlock)
		return err
	})
	if err != nil {
		return err
	}
	err = a.leg(ctx, LegCommitment, func(ctx context.Context) (err error) {
		parts.Commitment, err = a.topology.ResolveCommitment(ctx, req.Subject, parts.Anchor, version)
		return err
	})
	if err != nil {
		return err
	}
	return a.leg(ctx, LegDisclosure, func(ctx context.Context) (err error) {
		parts.Disclosure, err = a.disclosures.Build(ctx, disclosure.Request{
			Subject:        req.Subject,
			Version:        version,
			KeyRefs:        req.KeyRefs,
			RevealWeb3Name: req.RevealWeb3Name,
			Accounts:       req.Accounts,
		})
		if err == nil && parts.Disclosure.Root != parts.Commitment.Commitment {
			err = fmt.Errorf("disclosure root %v does not match commitment %v", parts.Disclosure.Root, parts.Commitment.Commitment)
		}
		return err
	})
}

// leg runs fn in its own span and records its outcome.
func (a *Assembler) leg(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := a.tracer.Start(ctx, name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.ObserveLeg(name, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &LegError{Leg: name, Err: err}
	}
	return nil
}
