package shared

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spacemeshos/go-scale"
	"golang.org/x/crypto/blake2b"
)

const HashSize = 32

// Hash is a 256 bit block hash, storage root or leaf digest.
type Hash [HashSize]byte

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h *Hash) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, h[:])
}

func (h *Hash) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, h[:])
}

// HashFromHex parses a 0x-prefixed or bare hex string of exactly 32 bytes.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return h, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(b) != HashSize {
		return h, fmt.Errorf("invalid hash length; expected: %d, given: %d", HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Blake2_256 is the hasher used for block hashes and storage values.
func Blake2_256(data []byte) Hash {
	return blake2b.Sum256(data)
}

// StorageProof is the set of trie nodes returned by a state read-proof call.
type StorageProof [][]byte

func (p StorageProof) EncodeScale(e *scale.Encoder) (int, error) {
	return EncodeByteSlices(e, p)
}

// Header is a block header in its chain-native field order.
type Header struct {
	ParentHash     Hash
	Number         uint32
	StateRoot      Hash
	ExtrinsicsRoot Hash
	// Digest holds the already encoded digest items.
	Digest [][]byte
}

func (h *Header) EncodeScale(e *scale.Encoder) (int, error) {
	total, err := scale.EncodeByteArray(e, h.ParentHash[:])
	if err != nil {
		return total, err
	}
	n, err := scale.EncodeCompact32(e, h.Number)
	total += n
	if err != nil {
		return total, err
	}
	n, err = scale.EncodeByteArray(e, h.StateRoot[:])
	total += n
	if err != nil {
		return total, err
	}
	n, err = scale.EncodeByteArray(e, h.ExtrinsicsRoot[:])
	total += n
	if err != nil {
		return total, err
	}
	n, err = scale.EncodeCompact32(e, uint32(len(h.Digest)))
	total += n
	if err != nil {
		return total, err
	}
	for _, item := range h.Digest {
		n, err = scale.EncodeByteArray(e, item)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Hash returns the blake2b-256 digest of the encoded header.
func (h *Header) Hash() (Hash, error) {
	b, err := Encode(h)
	if err != nil {
		return Hash{}, err
	}
	return Blake2_256(b), nil
}

// Call is an encoded runtime call: pallet index, call index and the already
// encoded arguments.
type Call struct {
	Pallet uint8
	Method uint8
	Args   []byte
}

func (c *Call) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, c.Bytes())
}

func (c Call) Bytes() []byte {
	b := make([]byte, 0, len(c.Args)+2)
	b = append(b, c.Pallet, c.Method)
	return append(b, c.Args...)
}

func (c Call) String() string {
	return fmt.Sprintf("call(%d.%d, %d bytes)", c.Pallet, c.Method, len(c.Args))
}

// KeyType identifies the signature scheme of a verification key.
type KeyType uint8

const (
	Ed25519 KeyType = iota
	Sr25519
	Ecdsa
)

var keyTypes = []string{"Ed25519", "Sr25519", "Ecdsa"}

func (k KeyType) String() string {
	if int(k) < len(keyTypes) {
		return keyTypes[k]
	}
	return fmt.Sprintf("KeyType(%d)", uint8(k))
}

// SignatureSize returns the expected signature length for the scheme.
func (k KeyType) SignatureSize() int {
	switch k {
	case Ed25519, Sr25519:
		return 64
	case Ecdsa:
		return 65
	}
	return 0
}

type Signature struct {
	KeyType KeyType
	Bytes   []byte
}

// EncodeScale writes the signature as an enum variant of fixed-size arrays.
func (s *Signature) EncodeScale(e *scale.Encoder) (int, error) {
	if size := s.KeyType.SignatureSize(); size == 0 || len(s.Bytes) != size {
		return 0, fmt.Errorf("invalid `%v` signature length; expected: %d, given: %d",
			s.KeyType, s.KeyType.SignatureSize(), len(s.Bytes))
	}
	total, err := scale.EncodeByte(e, byte(s.KeyType))
	if err != nil {
		return total, err
	}
	n, err := scale.EncodeByteArray(e, s.Bytes)
	return total + n, err
}

// SubmittableOperation is the consumer call dispatching the target operation
// as the subject. It still has to be signed and submitted by the caller.
type SubmittableOperation struct {
	Call Call
	// Submitter is the account expected to sign and submit the operation.
	Submitter []byte
}
