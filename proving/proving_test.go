package proving

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/KILTprotocol/dip-sdk/authorizing"
	"github.com/KILTprotocol/dip-sdk/chain"
	"github.com/KILTprotocol/dip-sdk/config"
	"github.com/KILTprotocol/dip-sdk/envelope"
	"github.com/KILTprotocol/dip-sdk/internal/chaintest"
	"github.com/KILTprotocol/dip-sdk/shared"
	"github.com/KILTprotocol/dip-sdk/signing"
	"github.com/KILTprotocol/dip-sdk/typereg"
)

var (
	subject   = shared.Subject{0xa1, 0x1c, 0xe0}
	submitter = append(make([]byte, 31), 0x5)
)

type fixture struct {
	net    *chaintest.Network
	did    *chaintest.DID
	signer *signing.Ed25519Signer
}

// newFixture registers a subject with one authentication key and the
// web3name "alice", and finalizes a few blocks on top.
func newFixture(t *testing.T) *fixture {
	return newLaggingFixture(t, 0)
}

// newLaggingFixture is newFixture on a network whose relay blocks record the
// provider head lag blocks behind the tip.
func newLaggingFixture(t *testing.T, lag uint64) *fixture {
	t.Helper()
	signer, err := signing.GenerateEd25519Signer(shared.Authentication)
	require.NoError(t, err)

	n := chaintest.NewNetwork(chaintest.DefaultParaID)
	n.HeadLag = lag
	n.AdvanceN(2)
	did := chaintest.NewDID(subject, signer.PublicKey())
	did.Web3Name = &shared.Web3NameLeaf{Name: "alice", ClaimedAt: 2}
	n.RegisterDID(did, 0)
	n.AdvanceN(2)
	n.Sibling.Produce(nil)
	n.FinalizeAll()
	return &fixture{net: n, did: did, signer: signer}
}

func (f *fixture) keyRef() string {
	return subject.DidURI() + "#" + f.did.Keys[0].KeyID.String()
}

func (f *fixture) assembler(t *testing.T, topology config.Topology, consumer chain.Consumer, opts ...OptionFunc) *Assembler {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Topology = topology
	return f.assemblerFromConfig(t, cfg, consumer, opts...)
}

func (f *fixture) assemblerFromConfig(t *testing.T, cfg *config.Config, consumer chain.Consumer, opts ...OptionFunc) *Assembler {
	t.Helper()
	opts = append([]OptionFunc{WithLogger(zaptest.NewLogger(t)), WithSigner(f.signer)}, opts...)
	a, err := NewFromConfig(cfg, f.net.Relay, f.net.Provider, consumer, opts...)
	require.NoError(t, err)
	return a
}

func TestGenerate_SiblingEndToEnd(t *testing.T) {
	r := require.New(t)
	f := newFixture(t)
	a := f.assembler(t, config.TopologySibling, f.net.Sibling)
	call := chaintest.PostCall("Hello, world!")

	res, err := a.Generate(context.Background(), &Request{
		Subject:        subject,
		Call:           call,
		Submitter:      submitter,
		KeyRefs:        []string{f.keyRef()},
		RevealWeb3Name: true,
	})
	r.NoError(err)
	r.Equal(submitter, res.Operation.Submitter)

	decoded, err := f.net.Sibling.Dispatch.Decode(res.Operation)
	r.NoError(err)
	r.Equal(call, decoded.Call)
	r.Equal(subject, decoded.Subject)
	r.Equal(res.EncodedEnvelope, decoded.Envelope)
	r.Equal(byte(envelope.V0), decoded.Envelope[0])

	env, ok := res.Envelope.(*envelope.SiblingV0)
	r.True(ok)
	r.Equal(res.Anchor.RelayBlockHeight, env.ProviderHead.RelayBlockNumber)
	r.Equal(f.did.Root(), env.Disclosure.Root)
	r.Len(env.Disclosure.Revealed, 2)
	r.Equal(f.did.Keys[0], env.Disclosure.Revealed[0])
	r.Equal(f.did.Web3Name, env.Disclosure.Revealed[1])
	r.Len(env.Extensions, 1)

	// The extension element is a signature over the payload the consumer
	// will rebuild: no identity details yet, default expiry, live genesis.
	ext := env.Extensions[0]
	r.Len(ext, 1+64+8)
	best, err := f.net.Sibling.BestHeight(context.Background())
	r.NoError(err)
	genesis, err := f.net.Sibling.GenesisHash(context.Background())
	r.NoError(err)
	payload, err := authorizing.EncodePayload(typereg.Default(), config.DefaultTypeNames(), &authorizing.Payload{
		Call:        call,
		Submitter:   submitter,
		ExpiryBlock: best + config.DefaultExpiryOffset,
		Genesis:     genesis,
	})
	r.NoError(err)
	r.True(signing.Verify(f.signer.PublicKey(), payload, shared.Signature{KeyType: shared.Ed25519, Bytes: ext[1:65]}))
}

func TestGenerate_ParentEmbedsRelayHeader(t *testing.T) {
	r := require.New(t)
	f := newFixture(t)
	a := f.assembler(t, config.TopologyParent, f.net.Parent)

	res, err := a.Generate(context.Background(), &Request{
		Subject:   subject,
		Call:      chaintest.PostCall("Hello, world!"),
		Submitter: submitter,
		KeyRefs:   []string{f.keyRef()},
	})
	r.NoError(err)

	env, ok := res.Envelope.(*envelope.ParentV0)
	r.True(ok)
	hash, err := env.RelayHeader.Hash()
	r.NoError(err)
	r.Equal(res.Anchor.RelayBlockHash, hash)
	r.Equal(res.Anchor.Proof, env.ProviderHead.Proof)
	r.Equal(res.Anchor.RelayBlockHeight, env.ProviderHead.RelayBlockNumber)

	decoded, err := f.net.Parent.Dispatch.Decode(res.Operation)
	r.NoError(err)
	r.Equal(subject, decoded.Subject)
}

func TestGenerate_ParentHeadRevision(t *testing.T) {
	r := require.New(t)
	f := newLaggingFixture(t, 1)
	cfg := config.DefaultConfig()
	cfg.Revision = config.RevisionParentHead
	a := f.assemblerFromConfig(t, cfg, f.net.Sibling)

	res, err := a.Generate(context.Background(), &Request{
		Subject:   subject,
		Call:      chaintest.PostCall("Hello, world!"),
		Submitter: submitter,
		KeyRefs:   []string{f.keyRef()},
	})
	r.NoError(err)
	r.Equal(res.Anchor.ProviderBlockHeight-1, res.Anchor.RecordedHeight)

	// The commitment is read at the recorded block, whose root the
	// disclosure proof was built against.
	env := res.Envelope.(*envelope.SiblingV0)
	root := f.net.Provider.StateRoot(res.Anchor.RecordedHeight)
	r.Equal(root[:], env.Commitment[0])
	r.Equal(f.did.Root(), env.Disclosure.Root)

	// Under the default revision the same network has no provable block.
	_, err = f.assembler(t, config.TopologySibling, f.net.Sibling).Generate(context.Background(), &Request{
		Subject: subject, Call: chaintest.PostCall("x"), Submitter: submitter,
	})
	r.ErrorIs(err, shared.ErrAnchorNotProvable)
}

func TestNewFromConfig_AuthorizerSettings(t *testing.T) {
	r := require.New(t)
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "dip.yaml")
	r.NoError(os.WriteFile(path, []byte("expiry-offset: 10\ntypes:\n  block-number: u32\n"), 0o600))
	cfg, err := config.Load(path)
	r.NoError(err)

	res, err := f.assemblerFromConfig(t, cfg, f.net.Sibling).Generate(context.Background(), &Request{
		Subject: subject, Call: chaintest.PostCall("x"), Submitter: submitter,
	})
	r.NoError(err)

	best, err := f.net.Sibling.BestHeight(context.Background())
	r.NoError(err)
	ext := res.Envelope.(*envelope.SiblingV0).Extensions[0]
	r.Len(ext, 1+64+4)
	r.EqualValues(best+10, binary.LittleEndian.Uint32(ext[65:]))
}

// emptyConsumer builds no operation and reports no error.
type emptyConsumer struct {
	chain.Consumer
}

func (emptyConsumer) BuildDispatchAs(context.Context, shared.Subject, []byte, shared.Call) (*shared.SubmittableOperation, error) {
	return nil, nil
}

func TestGenerate_ConsumerBuildsNoOperation(t *testing.T) {
	f := newFixture(t)
	a := f.assembler(t, config.TopologySibling, emptyConsumer{f.net.Sibling})

	res, err := a.Generate(context.Background(), &Request{Subject: subject, Call: chaintest.PostCall("x"), Submitter: submitter})
	require.Nil(t, res)
	var leg *LegError
	require.True(t, errors.As(err, &leg))
	require.Equal(t, LegDispatch, leg.Leg)
}

func TestGenerate_PinnedProviderBlock(t *testing.T) {
	r := require.New(t)
	f := newFixture(t)
	a := f.assembler(t, config.TopologySibling, f.net.Sibling)

	finalized, err := f.net.Provider.FinalizedHeight(context.Background())
	r.NoError(err)
	pinned := finalized - 1
	res, err := a.Generate(context.Background(), &Request{
		Subject:       subject,
		Call:          chaintest.PostCall("x"),
		Submitter:     submitter,
		ProviderBlock: &pinned,
	})
	r.NoError(err)
	r.Equal(pinned, res.Anchor.ProviderBlockHeight)

	// The finalized tip has no finalized successor yet.
	_, err = a.Generate(context.Background(), &Request{
		Subject:       subject,
		Call:          chaintest.PostCall("x"),
		Submitter:     submitter,
		ProviderBlock: &finalized,
	})
	r.ErrorIs(err, shared.ErrAnchorNotProvable)
	var leg *LegError
	r.True(errors.As(err, &leg))
	r.Equal(LegAnchor, leg.Leg)
}

func TestGenerate_FailingLegs(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(f *fixture, req *Request)
		leg    string
		cause  error
	}{
		{
			name:   "unknown commitment version",
			mutate: func(_ *fixture, req *Request) { v := uint16(1); req.CommitmentVersion = &v },
			leg:    LegCommitment,
			cause:  shared.ErrCommitmentNotFound,
		},
		{
			name:   "unknown key",
			mutate: func(_ *fixture, req *Request) { req.KeyRefs = []string{shared.Hash{1}.String()} },
			leg:    LegDisclosure,
			cause:  shared.DisclosureError{Kind: shared.KeyNotFound},
		},
		{
			name:   "deleted identity",
			mutate: func(f *fixture, _ *Request) { f.net.Provider.DeleteDID(subject) },
			leg:    LegDisclosure,
			cause:  shared.DisclosureError{Kind: shared.DidDeleted},
		},
		{
			name:   "consumer state unavailable",
			mutate: func(f *fixture, _ *Request) { f.net.Sibling.DetailsErr = errors.New("rpc down") },
			leg:    "time-bound-signature",
			cause:  shared.ErrConsumerStateRead,
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			a := f.assembler(t, config.TopologySibling, f.net.Sibling)
			req := &Request{Subject: subject, Call: chaintest.PostCall("x"), Submitter: submitter}
			tc.mutate(f, req)

			res, err := a.Generate(context.Background(), req)
			require.Nil(t, res)
			require.ErrorIs(t, err, tc.cause)

			var leg *LegError
			require.True(t, errors.As(err, &leg))
			require.Equal(t, tc.leg, leg.Leg)
		})
	}
}

// blockingExtension only returns once its context is canceled.
type blockingExtension struct {
	started chan struct{}
}

func (x *blockingExtension) Name() string { return "blocking" }

func (x *blockingExtension) Generate(ctx context.Context, _ envelope.ExtensionInput) (envelope.Element, error) {
	close(x.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func (x *blockingExtension) Encode(envelope.Element) ([]byte, error) {
	return nil, errors.New("never encoded")
}

func TestGenerate_FailureCancelsOtherLegs(t *testing.T) {
	f := newFixture(t)
	ext := &blockingExtension{started: make(chan struct{})}
	a := f.assembler(t, config.TopologySibling, f.net.Sibling, WithExtensions(ext))

	tooNew := uint64(1000)
	_, err := a.Generate(context.Background(), &Request{
		Subject:       subject,
		Call:          chaintest.PostCall("x"),
		Submitter:     submitter,
		ProviderBlock: &tooNew,
	})
	require.ErrorIs(t, err, shared.ErrAnchorNotProvable)
	require.NotErrorIs(t, err, context.Canceled)
	<-ext.started
}

func TestGenerate_CanceledByCaller(t *testing.T) {
	f := newFixture(t)
	a := f.assembler(t, config.TopologySibling, f.net.Sibling)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Generate(ctx, &Request{Subject: subject, Call: chaintest.PostCall("x"), Submitter: submitter})
	require.ErrorIs(t, err, context.Canceled)
}

func TestGenerate_ConcurrentCompositions(t *testing.T) {
	f := newFixture(t)
	a := f.assembler(t, config.TopologySibling, f.net.Sibling)

	var eg errgroup.Group
	for i := 0; i < 8; i++ {
		eg.Go(func() error {
			_, err := a.Generate(context.Background(), &Request{
				Subject:   subject,
				Call:      chaintest.PostCall("Hello, world!"),
				Submitter: submitter,
				KeyRefs:   []string{f.keyRef()},
			})
			return err
		})
	}
	require.NoError(t, eg.Wait())
}

func TestGenerate_ExtensionOrder(t *testing.T) {
	r := require.New(t)
	f := newFixture(t)
	a := f.assembler(t, config.TopologySibling, f.net.Sibling,
		WithExtensions(staticExtension{"first", []byte{0xf1}}, staticExtension{"second", []byte{0xf2}}),
	)

	res, err := a.Generate(context.Background(), &Request{Subject: subject, Call: chaintest.PostCall("x"), Submitter: submitter})
	r.NoError(err)
	env := res.Envelope.(*envelope.SiblingV0)
	r.Len(env.Extensions, 3)
	r.Equal([]byte{0xf1}, env.Extensions[1])
	r.Equal([]byte{0xf2}, env.Extensions[2])
	r.Equal([]byte{0xf1, 0xf2}, res.EncodedEnvelope[len(res.EncodedEnvelope)-2:])
}

type staticExtension struct {
	name string
	b    []byte
}

func (x staticExtension) Name() string { return x.name }

func (x staticExtension) Generate(context.Context, envelope.ExtensionInput) (envelope.Element, error) {
	return x.b, nil
}

func (x staticExtension) Encode(el envelope.Element) ([]byte, error) {
	return el.([]byte), nil
}

type recordingTracer struct {
	embedded.Tracer

	mu    sync.Mutex
	spans []string
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	t.mu.Lock()
	t.spans = append(t.spans, name)
	t.mu.Unlock()
	return noop.NewTracerProvider().Tracer("").Start(ctx, name, opts...)
}

type recordingProvider struct {
	embedded.TracerProvider
	tracer *recordingTracer
}

func (p *recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return p.tracer
}

func TestGenerate_SpansPerLeg(t *testing.T) {
	f := newFixture(t)
	tp := &recordingProvider{tracer: &recordingTracer{}}
	a := f.assembler(t, config.TopologySibling, f.net.Sibling, WithTracerProvider(tp))

	_, err := a.Generate(context.Background(), &Request{Subject: subject, Call: chaintest.PostCall("x"), Submitter: submitter})
	require.NoError(t, err)
	require.ElementsMatch(t,
		[]string{"compose", LegAnchor, LegCommitment, LegDisclosure, "time-bound-signature"},
		tp.tracer.spans,
	)
}

func TestTopologyFor(t *testing.T) {
	n := chaintest.NewNetwork(chaintest.DefaultParaID)
	for _, topology := range []config.Topology{config.TopologySibling, config.TopologyParent} {
		cfg := config.DefaultConfig()
		cfg.Topology = topology
		tp, err := TopologyFor(cfg, n.Relay, n.Provider, nil)
		require.NoError(t, err)
		require.Equal(t, topology, tp.Name())
	}

	cfg := config.DefaultConfig()
	cfg.Topology = "cousin"
	_, err := TopologyFor(cfg, n.Relay, n.Provider, nil)
	require.Error(t, err)

	_, err = NewFromConfig(cfg, n.Relay, n.Provider, n.Sibling)
	require.Error(t, err)
}
