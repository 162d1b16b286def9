// Package blockcodec frames a byte stream into independently compressed
// blocks.
//
// Block format: [UncompressedSize uint32][CompressedSize uint32][Data...].
// A CompressedSize of 0 means the block is stored raw.
package blockcodec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression defines the compression algorithm used.
type Compression uint8

const (
	// None stores blocks raw.
	None Compression = 0
	// LZ4 indicates LZ4 block compression (fast).
	LZ4 Compression = 1
	// ZSTD indicates ZSTD block compression (better ratio).
	ZSTD Compression = 2
)

// DefaultBlockSize is used when a non-positive block size is given.
const DefaultBlockSize = 256 * 1024

const headerSize = 8

// maxBlockSize bounds decoded block sizes read from untrusted input.
const maxBlockSize = 64 << 20

// ErrCorrupt is returned for malformed block streams.
var ErrCorrupt = errors.New("blockcodec: corrupt block")

// String returns the name of the compression.
func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression maps a name to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("blockcodec: unknown compression %q", s)
	}
}

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// compressBlock returns data framed with a header, compressed when that
// saves at least 10%.
func compressBlock(data []byte, c Compression) ([]byte, error) {
	var compressed []byte
	switch c {
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n]
	case ZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		putZstdEncoder(enc)
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		result := make([]byte, headerSize+len(data))
		binary.LittleEndian.PutUint32(result[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(result[4:], 0)
		copy(result[headerSize:], data)
		return result, nil
	}

	result := make([]byte, headerSize+len(compressed))
	binary.LittleEndian.PutUint32(result[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(result[4:], uint32(len(compressed)))
	copy(result[headerSize:], compressed)
	return result, nil
}

func decompressBlock(payload []byte, size uint32, c Compression) ([]byte, error) {
	result := make([]byte, size)
	switch c {
	case LZ4:
		n, err := lz4.UncompressBlock(payload, result)
		if err != nil {
			return nil, err
		}
		if uint32(n) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return result, nil
	case ZSTD:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)
		decoded, err := dec.DecodeAll(payload, result[:0])
		if err != nil {
			return nil, err
		}
		if uint32(len(decoded)) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: compressed block in %s stream", ErrCorrupt, c)
	}
}

// Writer writes compressed blocks to an underlying writer.
type Writer struct {
	w           io.Writer
	compression Compression
	blockSize   int
	buffer      *bytes.Buffer
	written     int64
}

// NewWriter creates a new compressed block writer.
func NewWriter(w io.Writer, c Compression, blockSize int) *Writer {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Writer{
		w:           w,
		compression: c,
		blockSize:   blockSize,
		buffer:      bytes.NewBuffer(make([]byte, 0, blockSize)),
	}
}

// Write buffers p, flushing full blocks.
func (c *Writer) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		space := c.blockSize - c.buffer.Len()
		if space <= 0 {
			if err := c.flushBlock(); err != nil {
				return total, err
			}
			space = c.blockSize
		}

		n, _ := c.buffer.Write(p[:min(len(p), space)])
		total += n
		p = p[n:]
	}
	return total, nil
}

func (c *Writer) flushBlock() error {
	if c.buffer.Len() == 0 {
		return nil
	}

	block, err := compressBlock(c.buffer.Bytes(), c.compression)
	if err != nil {
		return err
	}

	n, err := c.w.Write(block)
	c.written += int64(n)
	if err != nil {
		return err
	}
	c.buffer.Reset()
	return nil
}

// Flush writes any remaining buffered data.
func (c *Writer) Flush() error {
	return c.flushBlock()
}

// BytesWritten returns the total framed bytes written.
func (c *Writer) BytesWritten() int64 {
	return c.written
}

// Reader streams decompressed bytes from a block stream.
type Reader struct {
	r           *bufio.Reader
	compression Compression
	block       []byte
	off         int
}

// NewReader creates a reader for a stream written with compression c.
func NewReader(r io.Reader, c Compression) *Reader {
	return &Reader{r: bufio.NewReader(r), compression: c}
}

// Read implements io.Reader.
func (c *Reader) Read(p []byte) (int, error) {
	for c.off >= len(c.block) {
		if err := c.next(); err != nil {
			return 0, err
		}
	}
	n := copy(p, c.block[c.off:])
	c.off += n
	return n, nil
}

func (c *Reader) next() error {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(c.r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: truncated header", ErrCorrupt)
		}
		return err
	}
	size := binary.LittleEndian.Uint32(hdr[0:])
	compressedSize := binary.LittleEndian.Uint32(hdr[4:])
	if size > maxBlockSize || compressedSize > maxBlockSize {
		return fmt.Errorf("%w: block of %d/%d bytes", ErrCorrupt, size, compressedSize)
	}

	stored := size
	if compressedSize != 0 {
		stored = compressedSize
	}
	payload := make([]byte, stored)
	if _, err := io.ReadFull(c.r, payload); err != nil {
		return fmt.Errorf("%w: truncated block: %v", ErrCorrupt, err)
	}

	if compressedSize == 0 {
		c.block = payload
	} else {
		block, err := decompressBlock(payload, size, c.compression)
		if err != nil {
			return err
		}
		c.block = block
	}
	c.off = 0
	return nil
}
