package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrors_MatchSentinels(t *testing.T) {
	cause := errors.New("cause")
	for _, tc := range []struct {
		err      error
		sentinel error
	}{
		{AnchorNotProvableError{ProviderBlock: 4}, ErrAnchorNotProvable},
		{CommitmentNotFoundError{Version: 1}, ErrCommitmentNotFound},
		{DisclosureError{Kind: KeyNotFound}, ErrDisclosure},
		{SigningError{Relationship: "authentication", Err: cause}, ErrSigningFailure},
		{ConsumerStateReadError{Query: "genesis hash", Err: cause}, ErrConsumerStateRead},
	} {
		wrapped := fmt.Errorf("leg: %w", tc.err)
		require.ErrorIs(t, wrapped, tc.sentinel, "%v", tc.err)
		require.Contains(t, tc.err.Error(), tc.sentinel.Error())
	}
}

func TestErrors_UnwrapCause(t *testing.T) {
	cause := errors.New("cause")
	require.ErrorIs(t, SigningError{Err: cause}, cause)
	require.ErrorIs(t, ConsumerStateReadError{Err: cause}, cause)
}

func TestDisclosureError_MatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", DisclosureError{Kind: Internal, Code: 12})
	require.ErrorIs(t, err, DisclosureError{Kind: Internal})
	require.NotErrorIs(t, err, DisclosureError{Kind: DidNotFound})
	require.Contains(t, err.Error(), "code 12")

	var typed DisclosureError
	require.True(t, errors.As(err, &typed))
	require.EqualValues(t, 12, typed.Code)
	require.Equal(t, "Web3NameNotFound", Web3NameNotFound.String())
}
