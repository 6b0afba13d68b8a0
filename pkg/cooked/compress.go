package cooked

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Compressor implements EncodingCompressed. Implementations must be safe for concurrent use.
type Compressor interface {
	Name() string
	Compress(src []byte) ([]byte, error)
	// Decompress returns exactly size bytes or an error.
	Decompress(src []byte, size int) ([]byte, error)
}

// CompressorByName returns the compressor registered under name ("zstd" or "zlib").
func CompressorByName(name string) (Compressor, error) {
	switch name {
	case "", "zstd":
		return Zstd(), nil
	case "zlib":
		return Zlib(), nil
	}
	return nil, fmt.Errorf("%w: compressor %q", ErrUnsupportedEncoding, name)
}

type zstdCompressor struct {
	once sync.Once
	enc  *zstd.Encoder
	dec  *zstd.Decoder
	err  error
}

var sharedZstd = &zstdCompressor{}

// Zstd returns the shared zstd compressor.
func Zstd() Compressor {
	return sharedZstd
}

func (z *zstdCompressor) init() error {
	z.once.Do(func() {
		z.enc, z.err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if z.err != nil {
			return
		}
		z.dec, z.err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxPayload))
	})
	return z.err
}

func (z *zstdCompressor) Name() string { return "zstd" }

func (z *zstdCompressor) Compress(src []byte) ([]byte, error) {
	if err := z.init(); err != nil {
		return nil, err
	}
	return z.enc.EncodeAll(src, make([]byte, 0, len(src)/2)), nil
}

func (z *zstdCompressor) Decompress(src []byte, size int) ([]byte, error) {
	if err := z.init(); err != nil {
		return nil, err
	}
	out, err := z.dec.DecodeAll(src, make([]byte, 0, prealloc(size)))
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	if len(out) != size {
		return nil, fmt.Errorf("%w: zstd produced %d bytes, want %d", ErrLengthMismatch, len(out), size)
	}
	return out, nil
}

type zlibCompressor struct{}

// Zlib returns a zlib compressor.
func Zlib() Compressor {
	return zlibCompressor{}
}

func (zlibCompressor) Name() string { return "zlib" }

func (zlibCompressor) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (zlibCompressor) Decompress(src []byte, size int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	defer r.Close()

	// Read one byte past size so oversized streams are detected.
	out, err := io.ReadAll(io.LimitReader(r, int64(size)+1))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	if len(out) != size {
		return nil, fmt.Errorf("%w: zlib produced %d bytes, want %d", ErrLengthMismatch, len(out), size)
	}
	return out, nil
}
