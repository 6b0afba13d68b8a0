package cooked

import (
	"bytes"
	"fmt"
	stdmath "math"

	"github.com/Faultbox/meshforge/pkg/mesh"
)

// StreamInfo describes a buffer stream to encoding resolvers.
type StreamInfo struct {
	Key        string
	Component  mesh.ComponentType
	Components int
	Count      int
	Stride     int
	// Size is the decoded size in bytes.
	Size          int
	HasGPUPayload bool
}

// Resolver picks an encoding for a stream. Returning false defers to the heuristics.
type Resolver func(StreamInfo) (mesh.Encoding, bool)

// BlockEncoder produces GPU block-compressed payloads.
type BlockEncoder interface {
	EncodeBlocks(info StreamInfo, data []byte) ([]byte, error)
}

// zstd frame magic, little endian 0xFD2FB528.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

const (
	flagNormalize uint8 = 1 << iota
	flagIntegral
	flagPadded
)

// stream is one planned buffer stream. buf is nil for an absent optional stream.
type stream struct {
	key     string
	buf     *mesh.Buffer
	meta    bool
	enc     mesh.Encoding
	decoded uint64
	payload []byte
}

func (s *stream) info() StreamInfo {
	return StreamInfo{
		Key:           s.key,
		Component:     s.buf.Component,
		Components:    s.buf.Components,
		Count:         s.buf.Count,
		Stride:        s.buf.Stride,
		Size:          s.buf.Size(),
		HasGPUPayload: s.buf.GPUPayload != nil,
	}
}

// resolve applies override, resolver, then heuristics.
func (s *stream) resolve(m *mesh.Mesh, opts Options) mesh.Encoding {
	info := s.info()
	if info.HasGPUPayload {
		return mesh.EncodingGPUCompressed
	}
	if e, ok := m.Encoding(s.key); ok {
		return e
	}
	if opts.Resolver != nil {
		if e, ok := opts.Resolver(info); ok {
			return e
		}
	}
	if opts.UnitVectors && isUnitVectorStream(info) {
		return mesh.EncodingSnorm16
	}
	if opts.CompressionThreshold > 0 && info.Size >= opts.CompressionThreshold {
		return mesh.EncodingCompressed
	}
	return mesh.EncodingRaw
}

func isUnitVectorStream(info StreamInfo) bool {
	return (info.Key == "Normal" || info.Key == "Tangent") &&
		info.Component == mesh.ComponentFloat32 && info.Components == 3 && info.Stride == 12
}

// encode fills enc, decoded and payload.
func (s *stream) encode(m *mesh.Mesh, opts Options) error {
	if s.buf == nil {
		s.enc = mesh.EncodingRaw
		return nil
	}
	s.enc = s.resolve(m, opts)
	s.decoded = uint64(s.buf.Size())

	data := s.buf.Data
	if s.enc != mesh.EncodingGPUCompressed && len(data) != s.buf.Size() {
		return fmt.Errorf("%w: %s has %d bytes, want %d", ErrMissingStream, s.key, len(data), s.buf.Size())
	}

	var err error
	switch s.enc {
	case mesh.EncodingRaw:
		if s.decoded > stdmath.MaxUint32 {
			return fmt.Errorf("%w: raw stream %s exceeds 4 GiB", ErrUnsupportedEncoding, s.key)
		}
		s.payload = data
	case mesh.EncodingSnorm16:
		if s.buf.Component != mesh.ComponentFloat32 || s.buf.Padded() {
			return fmt.Errorf("%w: snorm16 needs packed float32, %s is %s x%d stride %d",
				ErrShapeMismatch, s.key, s.buf.Component, s.buf.Components, s.buf.Stride)
		}
		s.payload = EncodeSnorm16(data)
	case mesh.EncodingCompressed:
		s.payload, err = opts.compressor().Compress(data)
		if err != nil {
			return fmt.Errorf("compress %s: %w", s.key, err)
		}
	case mesh.EncodingGPUCompressed:
		switch {
		case s.buf.GPUPayload != nil:
			s.payload = s.buf.GPUPayload
		case opts.BlockEncoder == nil:
			return fmt.Errorf("%w: GPU block compression for %s needs a block encoder", ErrUnsupportedEncoding, s.key)
		case data == nil:
			return fmt.Errorf("%w: %s", ErrMissingStream, s.key)
		default:
			s.payload, err = opts.BlockEncoder.EncodeBlocks(s.info(), data)
			if err != nil {
				return fmt.Errorf("block encode %s: %w", s.key, err)
			}
		}
	default:
		return fmt.Errorf("%w: %s for %s", ErrUnsupportedEncoding, s.enc, s.key)
	}
	return nil
}

// writeDescriptor writes: meta flag [+ meta], encoding, decoded length, then raw bytes or
// {encoded length, extended flag, [u64 decoded length], bytes}.
func (s *stream) writeDescriptor(w *writer) {
	w.boolean(s.meta && s.buf != nil)
	if s.meta && s.buf != nil {
		b := s.buf
		var flags uint8
		if b.Normalize {
			flags |= flagNormalize
		}
		if b.Integral {
			flags |= flagIntegral
		}
		if b.Padded() {
			flags |= flagPadded
		}
		w.str(b.Name)
		w.u8(uint8(b.Target))
		w.u8(uint8(b.Component))
		w.u32(uint32(b.Components))
		w.u32(uint32(b.Count))
		w.u32(uint32(b.Stride))
		w.u8(flags)
	}

	w.u8(uint8(s.enc))
	extended := s.decoded > stdmath.MaxUint32
	if extended {
		w.u32(stdmath.MaxUint32)
	} else {
		w.u32(uint32(s.decoded))
	}
	if s.enc == mesh.EncodingRaw {
		w.bytes(s.payload)
		return
	}
	w.u32(uint32(len(s.payload)))
	w.boolean(extended)
	if extended {
		w.u64(s.decoded)
	}
	w.bytes(s.payload)
}

// pendingStream is a descriptor read from disk but not yet decoded.
type pendingStream struct {
	key     string
	buf     *mesh.Buffer
	enc     mesh.Encoding
	decoded uint64
	payload []byte
}

func readDescriptor(r *reader, key string) *pendingStream {
	p := &pendingStream{key: key}
	if r.boolean() {
		name := r.str()
		target := mesh.BufferTarget(r.u8())
		comp := mesh.ComponentType(r.u8())
		components := r.u32()
		count := r.u32()
		stride := r.u32()
		flags := r.u8()
		if r.err != nil {
			return p
		}
		if components > maxCount || count > maxCount || stride > maxCount ||
			uint64(count)*uint64(stride) > maxPayload ||
			(count > 0 && uint64(comp.Size())*uint64(components) > uint64(stride)) {
			r.fail(fmt.Errorf("%w: stream %s shape %dx%d stride %d", ErrCorrupt, key, count, components, stride))
			return p
		}
		p.buf = &mesh.Buffer{
			Name:       name,
			Target:     target,
			Component:  comp,
			Components: int(components),
			Count:      int(count),
			Stride:     int(stride),
			Normalize:  flags&flagNormalize != 0,
			Integral:   flags&flagIntegral != 0,
		}
	}

	p.enc = mesh.Encoding(r.u8())
	p.decoded = uint64(r.u32())
	if p.enc == mesh.EncodingRaw {
		p.payload = r.bytes(p.decoded)
		return p
	}
	encoded := r.u32()
	if r.boolean() {
		p.decoded = r.u64()
	}
	if p.decoded > maxPayload {
		r.fail(fmt.Errorf("%w: stream %s decodes to %d bytes", ErrCorrupt, key, p.decoded))
		return p
	}
	p.payload = r.bytes(uint64(encoded))
	return p
}

// decode expands the payload into buf, which must already carry its shape.
func (p *pendingStream) decode(opts Options) error {
	if p.buf == nil {
		return nil
	}
	if want := uint64(p.buf.Size()); p.decoded != want {
		return fmt.Errorf("%w: %s records %d bytes, shape needs %d", ErrLengthMismatch, p.key, p.decoded, want)
	}

	var err error
	switch p.enc {
	case mesh.EncodingRaw:
		p.buf.Data = p.payload
	case mesh.EncodingSnorm16:
		if p.buf.Component != mesh.ComponentFloat32 || p.buf.Padded() {
			return fmt.Errorf("%w: snorm16 stream %s is %s", ErrShapeMismatch, p.key, p.buf.Component)
		}
		p.buf.Data = DecodeSnorm16(p.payload)
	case mesh.EncodingCompressed:
		c := opts.compressor()
		if bytes.HasPrefix(p.payload, zstdMagic) {
			c = Zstd()
		} else if len(p.payload) >= 2 && p.payload[0]&0x0f == 8 && (uint16(p.payload[0])<<8|uint16(p.payload[1]))%31 == 0 {
			c = Zlib()
		}
		p.buf.Data, err = c.Decompress(p.payload, int(p.decoded))
		if err != nil {
			return fmt.Errorf("decompress %s: %w", p.key, err)
		}
	case mesh.EncodingGPUCompressed:
		p.buf.GPUPayload = p.payload
		return nil
	default:
		return fmt.Errorf("%w: encoding %d for %s", ErrUnsupportedEncoding, uint8(p.enc), p.key)
	}

	if uint64(len(p.buf.Data)) != p.decoded {
		return fmt.Errorf("%w: %s decoded to %d bytes, header says %d", ErrLengthMismatch, p.key, len(p.buf.Data), p.decoded)
	}
	return nil
}
