package commitment

import (
	"context"
	"errors"
	"testing"

	"github.com/spacemeshos/ed25519"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/KILTprotocol/dip-sdk/anchor"
	"github.com/KILTprotocol/dip-sdk/config"
	"github.com/KILTprotocol/dip-sdk/internal/chaintest"
	"github.com/KILTprotocol/dip-sdk/shared"
	"github.com/KILTprotocol/dip-sdk/storagekey"
)

var subject = shared.Subject{0xaa, 0xbb}

// setup registers a DID at version 0 and returns the network and the
// provider height the commitment first appears at.
func setup(t *testing.T) (*chaintest.Network, *chaintest.DID, uint64) {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	n := chaintest.NewNetwork(chaintest.DefaultParaID)
	n.AdvanceN(2)
	did := chaintest.NewDID(subject, pub)
	registered := n.RegisterDID(did, 0)
	n.AdvanceN(3)
	n.FinalizeAll()
	return n, did, registered
}

func anchorAt(t *testing.T, n *chaintest.Network, height uint64) *anchor.ProviderAnchor {
	t.Helper()
	hash, err := n.Provider.BlockHash(context.Background(), height)
	require.NoError(t, err)
	return &anchor.ProviderAnchor{ProviderBlockHeight: height, ProviderBlockHash: hash}
}

func TestResolve_VersionPresentAndAbsent(t *testing.T) {
	r := require.New(t)
	n, did, registered := setup(t)
	ctx := context.Background()

	resolver, err := NewResolver(n.Provider, WithLogger(zaptest.NewLogger(t)))
	r.NoError(err)

	a := anchorAt(t, n, registered+1)
	proof, err := resolver.Resolve(ctx, subject, a, 0)
	r.NoError(err)
	r.Equal(did.Root(), proof.Commitment)
	r.Equal(registered+1, proof.BlockHeight)
	r.Equal(a.ProviderBlockHash, proof.BlockHash)
	r.Len(proof.Proof, 2)
	r.Equal(storagekey.IdentityCommitment(subject, 0), proof.Proof[1][:len(proof.Proof[1])-shared.HashSize])

	_, err = resolver.Resolve(ctx, subject, a, 1)
	r.ErrorIs(err, shared.ErrCommitmentNotFound)
	var notFound shared.CommitmentNotFoundError
	r.True(errors.As(err, &notFound))
	r.EqualValues(1, notFound.Version)
	r.Equal(registered+1, notFound.Block)
	r.Equal(subject, notFound.Subject)
}

func TestResolve_UnknownSubject(t *testing.T) {
	n, _, registered := setup(t)
	resolver, err := NewResolver(n.Provider)
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), shared.Subject{1}, anchorAt(t, n, registered), 0)
	require.ErrorIs(t, err, shared.ErrCommitmentNotFound)
}

// One fixture per revision pinning the exact provider block that is read.
func TestResolve_RevisionBlockPolicy(t *testing.T) {
	for _, tc := range []struct {
		revision  config.Revision
		readBlock func(anchored uint64) uint64
		// whether anchoring at the registration block sees the commitment
		seesRegistration bool
	}{
		{config.RevisionAnchorHead, func(a uint64) uint64 { return a }, true},
		{config.RevisionParentHead, func(a uint64) uint64 { return a - 1 }, false},
	} {
		tc := tc
		t.Run(tc.revision.String(), func(t *testing.T) {
			r := require.New(t)
			n, _, registered := setup(t)
			ctx := context.Background()

			resolver, err := NewResolver(n.Provider, WithRevision(tc.revision))
			r.NoError(err)

			anchored := registered + 2
			proof, err := resolver.Resolve(ctx, subject, anchorAt(t, n, anchored), 0)
			r.NoError(err)
			r.Equal(tc.readBlock(anchored), proof.BlockHeight)
			hash, err := n.Provider.BlockHash(ctx, proof.BlockHeight)
			r.NoError(err)
			r.Equal(hash, proof.BlockHash)
			root := n.Provider.StateRoot(proof.BlockHeight)
			r.Equal(root[:], proof.Proof[0])

			_, err = resolver.Resolve(ctx, subject, anchorAt(t, n, registered), 0)
			if tc.seesRegistration {
				r.NoError(err)
			} else {
				r.ErrorIs(err, shared.ErrCommitmentNotFound)
			}
		})
	}
}
