package config

import (
	"context"

	"github.com/KILTprotocol/dip-sdk/shared"
)

// ResolveAnchorHeight returns the provider block to anchor at. Without an
// explicit height it is the newest block whose successor is finalized; ok is
// false if no such block exists yet.
func ResolveAnchorHeight(explicit *uint64, finalized uint64) (height uint64, ok bool) {
	if explicit != nil {
		return *explicit, true
	}
	if finalized == 0 {
		return 0, false
	}
	return finalized - 1, true
}

// ResolveExpiryBlock returns the explicit expiry block, or the current
// consumer height plus offset.
func ResolveExpiryBlock(explicit *uint64, current, offset uint64) uint64 {
	if explicit != nil {
		return *explicit
	}
	return current + offset
}

// ResolveGenesisHash returns the explicit genesis hash or reads the live one.
// fetch is only called when no explicit value is given.
func ResolveGenesisHash(ctx context.Context, explicit *shared.Hash, fetch func(context.Context) (shared.Hash, error)) (shared.Hash, error) {
	if explicit != nil {
		return *explicit, nil
	}
	return fetch(ctx)
}

// ResolveTypeNames overrides base field by field with the non-empty names of
// overrides.
func ResolveTypeNames(base, overrides TypeNames) TypeNames {
	if overrides.AccountID != "" {
		base.AccountID = overrides.AccountID
	}
	if overrides.BlockNumber != "" {
		base.BlockNumber = overrides.BlockNumber
	}
	if overrides.IdentityDetails != "" {
		base.IdentityDetails = overrides.IdentityDetails
	}
	return base
}

// ResolveCommitmentVersion returns the explicit version or the configured one.
func ResolveCommitmentVersion(explicit *uint16, configured uint16) uint16 {
	if explicit != nil {
		return *explicit
	}
	return configured
}
