// Package typereg maps consumer-chain type names to the encoders of the
// signature payload fields. Consumers disagree on how accounts, block numbers
// and identity details are represented, so callers pick encoders by name.
package typereg

import (
	"errors"
	"fmt"
	"math"

	"github.com/spacemeshos/go-scale"

	"github.com/KILTprotocol/dip-sdk/shared"
)

var ErrUnknownType = errors.New("unknown type name")

type (
	AccountEncoder     func(e *scale.Encoder, account []byte) (int, error)
	BlockNumberEncoder func(e *scale.Encoder, n uint64) (int, error)
	// DetailsEncoder encodes the subject's nonce; nil means no record exists.
	DetailsEncoder func(e *scale.Encoder, nonce *uint64) (int, error)
)

// Registry holds encoders by type name. It is not safe to register types
// concurrently with lookups.
type Registry struct {
	accounts     map[string]AccountEncoder
	blockNumbers map[string]BlockNumberEncoder
	details      map[string]DetailsEncoder
}

func New() *Registry {
	return &Registry{
		accounts:     make(map[string]AccountEncoder),
		blockNumbers: make(map[string]BlockNumberEncoder),
		details:      make(map[string]DetailsEncoder),
	}
}

// Default returns a registry with the types used by known consumer runtimes.
func Default() *Registry {
	r := New()

	r.RegisterAccount("AccountId32", fixedAccount(32))
	r.RegisterAccount("AccountId", fixedAccount(32))
	r.RegisterAccount("AccountId20", fixedAccount(20))

	r.RegisterBlockNumber("u32", encodeU32)
	r.RegisterBlockNumber("BlockNumber", encodeU32)
	r.RegisterBlockNumber("u64", scale.EncodeUint64)
	r.RegisterBlockNumber("u128", shared.EncodeUint128)
	r.RegisterBlockNumber("Compact<u32>", func(e *scale.Encoder, n uint64) (int, error) {
		if n > math.MaxUint32 {
			return 0, fmt.Errorf("block number %d overflows u32", n)
		}
		return scale.EncodeCompact32(e, uint32(n))
	})
	r.RegisterBlockNumber("Compact<u64>", scale.EncodeCompact64)

	r.RegisterDetails("Option<u128>", option(shared.EncodeUint128))
	r.RegisterDetails("Option<u64>", option(scale.EncodeUint64))
	r.RegisterDetails("Option<u32>", option(encodeU32))
	r.RegisterDetails("u128", orZero(shared.EncodeUint128))
	r.RegisterDetails("u64", orZero(scale.EncodeUint64))
	return r
}

func (r *Registry) RegisterAccount(name string, enc AccountEncoder) {
	r.accounts[name] = enc
}

func (r *Registry) RegisterBlockNumber(name string, enc BlockNumberEncoder) {
	r.blockNumbers[name] = enc
}

func (r *Registry) RegisterDetails(name string, enc DetailsEncoder) {
	r.details[name] = enc
}

func (r *Registry) Account(name string) (AccountEncoder, error) {
	if enc, ok := r.accounts[name]; ok {
		return enc, nil
	}
	return nil, fmt.Errorf("%w: account type %q", ErrUnknownType, name)
}

func (r *Registry) BlockNumber(name string) (BlockNumberEncoder, error) {
	if enc, ok := r.blockNumbers[name]; ok {
		return enc, nil
	}
	return nil, fmt.Errorf("%w: block number type %q", ErrUnknownType, name)
}

func (r *Registry) Details(name string) (DetailsEncoder, error) {
	if enc, ok := r.details[name]; ok {
		return enc, nil
	}
	return nil, fmt.Errorf("%w: identity details type %q", ErrUnknownType, name)
}

func fixedAccount(size int) AccountEncoder {
	return func(e *scale.Encoder, account []byte) (int, error) {
		if len(account) != size {
			return 0, fmt.Errorf("invalid account length; expected: %d, given: %d", size, len(account))
		}
		return scale.EncodeByteArray(e, account)
	}
}

func encodeU32(e *scale.Encoder, n uint64) (int, error) {
	if n > math.MaxUint32 {
		return 0, fmt.Errorf("value %d overflows u32", n)
	}
	return scale.EncodeUint32(e, uint32(n))
}

func option(inner BlockNumberEncoder) DetailsEncoder {
	return func(e *scale.Encoder, nonce *uint64) (int, error) {
		if nonce == nil {
			return scale.EncodeByte(e, 0)
		}
		total, err := scale.EncodeByte(e, 1)
		if err != nil {
			return total, err
		}
		n, err := inner(e, *nonce)
		return total + n, err
	}
}

func orZero(inner BlockNumberEncoder) DetailsEncoder {
	return func(e *scale.Encoder, nonce *uint64) (int, error) {
		if nonce == nil {
			return inner(e, 0)
		}
		return inner(e, *nonce)
	}
}
