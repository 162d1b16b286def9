package blockcodec

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload() []byte {
	// repetitive neighbor ids compress well
	var buf bytes.Buffer
	for i := range 50000 {
		_ = binary.Write(&buf, binary.LittleEndian, int32(i%37-1))
	}
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	data := payload()
	for _, c := range []Compression{None, LZ4, ZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			var buf bytes.Buffer
			w := NewWriter(&buf, c, 16*1024)
			n, err := w.Write(data)
			require.NoError(t, err)
			require.Equal(t, len(data), n)
			require.NoError(t, w.Flush())
			assert.Equal(t, int64(buf.Len()), w.BytesWritten())
			if c != None {
				assert.Less(t, buf.Len(), len(data))
			}

			got, err := io.ReadAll(NewReader(&buf, c))
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}

func TestIncompressibleStoredRaw(t *testing.T) {
	data := []byte{0x01, 0x7f, 0x33}
	var buf bytes.Buffer
	w := NewWriter(&buf, ZSTD, 0)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	raw := buf.Bytes()
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(raw[4:]))

	got, err := io.ReadAll(NewReader(bytes.NewReader(raw), ZSTD))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestTruncated(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, LZ4, 0)
	_, err := w.Write(payload())
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	_, err = io.ReadAll(NewReader(bytes.NewReader(buf.Bytes()[:buf.Len()-10]), LZ4))
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = io.ReadAll(NewReader(bytes.NewReader(buf.Bytes()[:5]), LZ4))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{None, LZ4, ZSTD} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCompression("gzip")
	assert.Error(t, err)
}
