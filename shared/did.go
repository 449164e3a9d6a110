package shared

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/spacemeshos/go-scale"
	"golang.org/x/crypto/blake2b"
)

const (
	DidPrefix = "did:kilt:"

	// KiltSS58Prefix is the address format of the provider chain.
	KiltSS58Prefix = 38

	ss58ChecksumSize = 2
)

var ss58Context = []byte("SS58PRE")

var ErrInvalidDidURI = errors.New("invalid DID URI")

// Subject is the chain-native identifier of a DID.
type Subject [32]byte

func (s Subject) String() string {
	return s.DidURI()
}

func (s *Subject) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, s[:])
}

func (s *Subject) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, s[:])
}

// DidURI renders the subject as a light DID URI without fragment.
func (s Subject) DidURI() string {
	return DidPrefix + EncodeSS58(KiltSS58Prefix, s[:])
}

// ParseDidURI accepts `did:kilt:<address>`, optionally followed by a `#fragment`
// or a `:details` suffix, and returns the subject it identifies.
func ParseDidURI(uri string) (Subject, error) {
	var s Subject
	rest, ok := strings.CutPrefix(uri, DidPrefix)
	if !ok {
		return s, fmt.Errorf("%w: expected prefix %q in %q", ErrInvalidDidURI, DidPrefix, uri)
	}
	if i := strings.IndexAny(rest, "#:"); i >= 0 {
		rest = rest[:i]
	}
	prefix, pub, err := DecodeSS58(rest)
	if err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidDidURI, err)
	}
	if prefix != KiltSS58Prefix {
		return s, fmt.Errorf("%w: unexpected address prefix %d", ErrInvalidDidURI, prefix)
	}
	if len(pub) != len(s) {
		return s, fmt.Errorf("%w: invalid account length; expected: %d, given: %d", ErrInvalidDidURI, len(s), len(pub))
	}
	copy(s[:], pub)
	return s, nil
}

// EncodeSS58 encodes an account id with the given network prefix.
func EncodeSS58(prefix uint16, pub []byte) string {
	payload := append(ss58PrefixBytes(prefix), pub...)
	sum := ss58Checksum(payload)
	return base58.Encode(append(payload, sum[:ss58ChecksumSize]...))
}

// DecodeSS58 returns the network prefix and account bytes of an SS58 address.
func DecodeSS58(addr string) (uint16, []byte, error) {
	raw := base58.Decode(addr)
	if len(raw) < 1+ss58ChecksumSize {
		return 0, nil, fmt.Errorf("address %q too short", addr)
	}

	var prefix uint16
	prefixLen := 1
	switch {
	case raw[0] < 64:
		prefix = uint16(raw[0])
	case raw[0] < 128:
		if len(raw) < 2+ss58ChecksumSize {
			return 0, nil, fmt.Errorf("address %q too short", addr)
		}
		lower := (raw[0] << 2) | (raw[1] >> 6)
		upper := raw[1] & 0b0011_1111
		prefix = uint16(lower) | uint16(upper)<<8
		prefixLen = 2
	default:
		return 0, nil, fmt.Errorf("reserved address prefix byte %d", raw[0])
	}

	body := raw[:len(raw)-ss58ChecksumSize]
	sum := ss58Checksum(body)
	if !bytes.Equal(sum[:ss58ChecksumSize], raw[len(raw)-ss58ChecksumSize:]) {
		return 0, nil, fmt.Errorf("checksum mismatch for address %q", addr)
	}
	return prefix, body[prefixLen:], nil
}

func ss58PrefixBytes(prefix uint16) []byte {
	if prefix < 64 {
		return []byte{byte(prefix)}
	}
	return []byte{
		byte((prefix&0b0000_0000_1111_1100)>>2) | 0b0100_0000,
		byte(prefix>>8) | byte((prefix&0b0000_0000_0000_0011)<<6),
	}
}

func ss58Checksum(payload []byte) [blake2b.Size]byte {
	return blake2b.Sum512(append(append([]byte{}, ss58Context...), payload...))
}

// VerificationMethodID strips the DID and fragment marker from a verification
// method reference, returning the bare key id the provider chain understands.
func VerificationMethodID(ref string) (Hash, error) {
	if i := strings.LastIndexByte(ref, '#'); i >= 0 {
		ref = ref[i+1:]
	}
	id, err := HashFromHex(ref)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid verification method %q: %w", ref, err)
	}
	return id, nil
}

// HexBytes prints as 0x-prefixed hex in log fields.
type HexBytes []byte

func (h HexBytes) String() string {
	return "0x" + hex.EncodeToString(h)
}
