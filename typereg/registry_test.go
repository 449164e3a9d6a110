package typereg

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spacemeshos/go-scale"
	"github.com/stretchr/testify/require"
)

func encodeWith(t *testing.T, f func(*scale.Encoder) (int, error)) []byte {
	t.Helper()
	var buf bytes.Buffer
	n, err := f(scale.NewEncoder(&buf))
	require.NoError(t, err)
	require.Equal(t, buf.Len(), n)
	return buf.Bytes()
}

func TestBlockNumberEncodings(t *testing.T) {
	r := require.New(t)
	reg := Default()

	u32, err := reg.BlockNumber("u32")
	r.NoError(err)
	r.Equal([]byte{0x2c, 0x01, 0, 0}, encodeWith(t, func(e *scale.Encoder) (int, error) { return u32(e, 300) }))

	u64, err := reg.BlockNumber("u64")
	r.NoError(err)
	r.Equal([]byte{0x2c, 0x01, 0, 0, 0, 0, 0, 0}, encodeWith(t, func(e *scale.Encoder) (int, error) { return u64(e, 300) }))

	u128, err := reg.BlockNumber("u128")
	r.NoError(err)
	r.Len(encodeWith(t, func(e *scale.Encoder) (int, error) { return u128(e, 300) }), 16)

	_, err = u32(scale.NewEncoder(&bytes.Buffer{}), 1<<33)
	r.Error(err)
}

func TestDetailsEncodings(t *testing.T) {
	r := require.New(t)
	reg := Default()

	opt, err := reg.Details("Option<u128>")
	r.NoError(err)
	r.Equal([]byte{0}, encodeWith(t, func(e *scale.Encoder) (int, error) { return opt(e, nil) }))

	nonce := uint64(5)
	some := encodeWith(t, func(e *scale.Encoder) (int, error) { return opt(e, &nonce) })
	r.Len(some, 17)
	r.Equal(byte(1), some[0])
	r.Equal(byte(5), some[1])

	opt64, err := reg.Details("Option<u64>")
	r.NoError(err)
	r.Equal([]byte{1, 5, 0, 0, 0, 0, 0, 0, 0}, encodeWith(t, func(e *scale.Encoder) (int, error) { return opt64(e, &nonce) }))

	plain, err := reg.Details("u64")
	r.NoError(err)
	r.Equal(make([]byte, 8), encodeWith(t, func(e *scale.Encoder) (int, error) { return plain(e, nil) }))
}

func TestAccountEncodings(t *testing.T) {
	r := require.New(t)
	reg := Default()

	acc32, err := reg.Account("AccountId32")
	r.NoError(err)
	account := bytes.Repeat([]byte{9}, 32)
	r.Equal(account, encodeWith(t, func(e *scale.Encoder) (int, error) { return acc32(e, account) }))

	_, err = acc32(scale.NewEncoder(&bytes.Buffer{}), account[:20])
	r.Error(err)

	acc20, err := reg.Account("AccountId20")
	r.NoError(err)
	r.Equal(account[:20], encodeWith(t, func(e *scale.Encoder) (int, error) { return acc20(e, account[:20]) }))
}

func TestUnknownTypes(t *testing.T) {
	r := require.New(t)
	reg := Default()

	_, err := reg.Account("MultiAddress")
	r.True(errors.Is(err, ErrUnknownType))
	_, err = reg.BlockNumber("u16")
	r.True(errors.Is(err, ErrUnknownType))
	_, err = reg.Details("Option<u8>")
	r.True(errors.Is(err, ErrUnknownType))
}

func TestRegisterOverrides(t *testing.T) {
	reg := Default()
	called := false
	reg.RegisterBlockNumber("u64", func(e *scale.Encoder, n uint64) (int, error) {
		called = true
		return 0, nil
	})
	enc, err := reg.BlockNumber("u64")
	require.NoError(t, err)
	_, _ = enc(nil, 1)
	require.True(t, called)
}
