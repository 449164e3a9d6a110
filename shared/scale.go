package shared

import (
	"bytes"
	"encoding/binary"

	"github.com/spacemeshos/go-scale"
)

// Encode returns the SCALE encoding of v.
func Encode(v scale.Encodable) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := v.EncodeScale(scale.NewEncoder(&buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeUint128 writes v as a little-endian u128 whose upper half is zero.
func EncodeUint128(e *scale.Encoder, v uint64) (int, error) {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[:8], v)
	return scale.EncodeByteArray(e, b[:])
}

// EncodeByteSlices writes a Vec<Vec<u8>>.
func EncodeByteSlices(e *scale.Encoder, values [][]byte) (int, error) {
	total, err := scale.EncodeCompact32(e, uint32(len(values)))
	if err != nil {
		return total, err
	}
	for _, v := range values {
		n, err := scale.EncodeByteSlice(e, v)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
