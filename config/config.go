package config

import (
	"fmt"
)

// Topology selects how the consumer chain relates to the provider chain.
type Topology string

const (
	// TopologySibling: provider and consumer are parachains of the same relay.
	TopologySibling Topology = "sibling"
	// TopologyParent: the consumer is the relay chain itself.
	TopologyParent Topology = "parent"
)

const (
	DefaultTopology          = TopologySibling
	DefaultRevision          = RevisionAnchorHead
	DefaultCommitmentVersion = 0
	DefaultExpiryOffset      = 50

	DefaultAccountIDType       = "AccountId32"
	DefaultBlockNumberType     = "u64"
	DefaultIdentityDetailsType = "Option<u128>"

	DefaultDipConsumerPallet = 109
	DefaultDispatchAsMethod  = 0

	// MaxExpiryOffset bounds how far in the future a signature may stay valid.
	MaxExpiryOffset = 1 << 20
)

// TypeNames are the consumer-chain type names used to encode the fields of the
// signature payload. Different consumers use different representations.
type TypeNames struct {
	AccountID       string `mapstructure:"account-id"`
	BlockNumber     string `mapstructure:"block-number"`
	IdentityDetails string `mapstructure:"identity-details"`
}

type ConsumerConfig struct {
	// Pallet and call index of the consumer's dispatch-as entrypoint.
	DipConsumerPallet uint8 `mapstructure:"dip-consumer-pallet"`
	DispatchAsMethod  uint8 `mapstructure:"dispatch-as-method"`
}

type Config struct {
	Topology          Topology `mapstructure:"topology"`
	Revision          Revision `mapstructure:"revision"`
	CommitmentVersion uint16   `mapstructure:"commitment-version"`

	// Number of consumer blocks a signature stays valid when no explicit
	// expiry block is given.
	ExpiryOffset uint64 `mapstructure:"expiry-offset"`

	Types    TypeNames      `mapstructure:"types"`
	Consumer ConsumerConfig `mapstructure:"consumer"`
}

func DefaultConfig() *Config {
	return &Config{
		Topology:          DefaultTopology,
		Revision:          DefaultRevision,
		CommitmentVersion: DefaultCommitmentVersion,
		ExpiryOffset:      DefaultExpiryOffset,
		Types:             DefaultTypeNames(),
		Consumer: ConsumerConfig{
			DipConsumerPallet: DefaultDipConsumerPallet,
			DispatchAsMethod:  DefaultDispatchAsMethod,
		},
	}
}

func DefaultTypeNames() TypeNames {
	return TypeNames{
		AccountID:       DefaultAccountIDType,
		BlockNumber:     DefaultBlockNumberType,
		IdentityDetails: DefaultIdentityDetailsType,
	}
}

func (cfg *Config) Validate() error {
	switch cfg.Topology {
	case TopologySibling, TopologyParent:
	default:
		return fmt.Errorf("invalid `Topology`; expected: %q or %q, given: %q", TopologySibling, TopologyParent, cfg.Topology)
	}

	if _, err := cfg.Revision.CommitmentBlockOffset(); err != nil {
		return fmt.Errorf("invalid `Revision`: %w", err)
	}

	if cfg.ExpiryOffset == 0 {
		return fmt.Errorf("invalid `ExpiryOffset`; expected: > 0, given: %d", cfg.ExpiryOffset)
	}

	if cfg.ExpiryOffset > MaxExpiryOffset {
		return fmt.Errorf("invalid `ExpiryOffset`; expected: <= %d, given: %d", MaxExpiryOffset, cfg.ExpiryOffset)
	}

	if cfg.Types.AccountID == "" || cfg.Types.BlockNumber == "" || cfg.Types.IdentityDetails == "" {
		return fmt.Errorf("invalid `Types`; expected: all type names set, given: %+v", cfg.Types)
	}

	return nil
}
