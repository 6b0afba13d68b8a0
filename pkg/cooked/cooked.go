// Package cooked serializes meshes to a versioned, self-describing binary form and reads
// them back without re-running the import pipeline.
//
// A file is the magic "XRMC" and a u16 version, followed by sections in this order:
// mesh metadata, topology, vertex streams, skinning, blendshapes. Every buffer is written
// as a stream descriptor whose encoding (raw, snorm16, compressed, GPU payload) is chosen
// per stream when the write plan is built.
package cooked

import (
	"errors"

	"go.uber.org/zap"
)

// Magic identifies a cooked mesh.
const Magic = "XRMC"

// Version is the current format version.
const Version uint16 = 1

// DefaultCompressionThreshold is the raw stream size from which compression is chosen.
const DefaultCompressionThreshold = 4096

// Codec errors.
var (
	ErrInvalidMagic        = errors.New("cooked: invalid magic, expected 'XRMC'")
	ErrUnsupportedVersion  = errors.New("cooked: unsupported version")
	ErrTruncated           = errors.New("cooked: truncated data")
	ErrCorrupt             = errors.New("cooked: corrupt data")
	ErrUnsupportedEncoding = errors.New("cooked: unsupported encoding")
	ErrLengthMismatch      = errors.New("cooked: decoded length mismatch")
	ErrMissingStream       = errors.New("cooked: stream has no backing data")
	ErrShapeMismatch       = errors.New("cooked: stream shape does not fit encoding")
	ErrSizeMismatch        = errors.New("cooked: written size differs from plan")
)

// Options configures encoding choices and decoding.
type Options struct {
	// CompressionThreshold is the minimum raw size, in bytes, for compression. <= 0 disables it.
	CompressionThreshold int
	// Compressor handles EncodingCompressed streams. Nil uses zstd.
	Compressor Compressor
	// UnitVectors quantizes normal and tangent streams to snorm16.
	UnitVectors bool
	// Resolver is consulted after per-mesh overrides and before the heuristics.
	Resolver Resolver
	// BlockEncoder produces GPU block-compressed payloads. Without one, a stream forced to
	// EncodingGPUCompressed fails with ErrUnsupportedEncoding.
	BlockEncoder BlockEncoder
	// Workers bounds parallel payload encoding; <= 0 uses GOMAXPROCS.
	Workers int
	Logger  *zap.Logger
}

// DefaultOptions returns zstd compression above DefaultCompressionThreshold with snorm16
// normals and tangents.
func DefaultOptions() Options {
	return Options{
		CompressionThreshold: DefaultCompressionThreshold,
		UnitVectors:          true,
	}
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o Options) compressor() Compressor {
	if o.Compressor == nil {
		return Zstd()
	}
	return o.Compressor
}
