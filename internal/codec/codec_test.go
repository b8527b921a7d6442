package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlock/vecstore/internal/codec"
)

func Test_Header_RoundTrips_Through_Encode_Decode(t *testing.T) {
	t.Parallel()

	h := codec.Header{Version: codec.Version, Dimension: 128}

	buf := codec.EncodeHeader(h)
	require.Len(t, buf, codec.HeaderSize)

	got, err := codec.DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func Test_EncodeHeader_Writes_Magic_And_Zeroed_Reserved_Bytes(t *testing.T) {
	t.Parallel()

	buf := codec.EncodeHeader(codec.Header{Version: 1, Dimension: 4})

	assert.Equal(t, codec.Magic, string(buf[0:8]))
	for i := 16; i < codec.HeaderSize; i++ {
		assert.Equalf(t, byte(0), buf[i], "reserved byte %d must be zero", i)
	}
}

func Test_DecodeHeader_Returns_ErrCorrupt(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		buf  []byte
	}{
		{
			name: "TooShort",
			buf:  make([]byte, 10),
		},
		{
			name: "BadMagic",
			buf:  codec.EncodeHeader(codec.Header{Version: 1, Dimension: 4})[:], // mutated below
		},
		{
			name: "BadVersion",
			buf:  codec.EncodeHeader(codec.Header{Version: 99, Dimension: 4}),
		},
	}

	// corrupt the magic for the BadMagic case
	testCases[1].buf = append([]byte(nil), testCases[1].buf...)
	testCases[1].buf[0] = 'X'

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := codec.DecodeHeader(tc.buf)
			require.ErrorIs(t, err, codec.ErrCorrupt)
		})
	}
}

func Test_Record_RoundTrips_Through_Encode_Decode(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		record codec.Record
	}{
		{
			name:   "NormalRecord",
			record: codec.Record{ID: 7, Key: []byte("alpha"), Value: []byte(`{"t":1}`)},
		},
		{
			name:   "TombstoneRecord",
			record: codec.Record{ID: 3, Key: []byte("beta"), Value: nil, Tombstone: true},
		},
		{
			name:   "EmptyValue",
			record: codec.Record{ID: 0, Key: []byte("gamma"), Value: []byte{}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			encoded := codec.Encode(tc.record)

			decoded, n, err := codec.Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, len(encoded), n)
			assert.Equal(t, tc.record.ID, decoded.ID)
			assert.Equal(t, tc.record.Tombstone, decoded.Tombstone)
			assert.Equal(t, string(tc.record.Key), string(decoded.Key))
			assert.Equal(t, string(tc.record.Value), string(decoded.Value))
		})
	}
}

func Test_Decode_Returns_ErrTorn_On_Short_Buffer(t *testing.T) {
	t.Parallel()

	encoded := codec.Encode(codec.Record{ID: 1, Key: []byte("k"), Value: []byte("value")})

	for cut := 0; cut < len(encoded); cut++ {
		_, _, err := codec.Decode(encoded[:cut])
		require.ErrorIsf(t, err, codec.ErrTorn, "cut=%d", cut)
	}
}

func Test_Decode_Returns_ErrTorn_On_CRC_Mismatch(t *testing.T) {
	t.Parallel()

	encoded := codec.Encode(codec.Record{ID: 1, Key: []byte("k"), Value: []byte("value")})
	encoded[0] ^= 0xFF

	_, _, err := codec.Decode(encoded)
	require.ErrorIs(t, err, codec.ErrTorn)
}
