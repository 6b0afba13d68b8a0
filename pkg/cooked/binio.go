package cooked

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/chewxy/math32"
	"github.com/google/uuid"

	"github.com/Faultbox/meshforge/pkg/math"
)

// Limits applied while reading, so corrupt lengths fail instead of allocating.
const (
	maxStringLen = 1 << 16
	maxCount     = 1 << 28
	maxPayload   = 1 << 32
	maxChannels  = 1 << 8
	// maxPrealloc caps up-front allocation from a length the stream has not backed yet.
	maxPrealloc = 1 << 20
)

func prealloc(n int) int {
	return min(n, maxPrealloc)
}

// writer is a little-endian writer with a sticky error and a byte count.
type writer struct {
	w       io.Writer
	n       int64
	err     error
	scratch [8]byte
}

func (w *writer) bytes(p []byte) {
	if w.err != nil {
		return
	}
	n, err := w.w.Write(p)
	w.n += int64(n)
	w.err = err
}

func (w *writer) u8(v uint8) {
	w.scratch[0] = v
	w.bytes(w.scratch[:1])
}

func (w *writer) boolean(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *writer) u16(v uint16) {
	binary.LittleEndian.PutUint16(w.scratch[:], v)
	w.bytes(w.scratch[:2])
}

func (w *writer) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.scratch[:], v)
	w.bytes(w.scratch[:4])
}

func (w *writer) i32(v int32) { w.u32(uint32(v)) }

func (w *writer) u64(v uint64) {
	binary.LittleEndian.PutUint64(w.scratch[:], v)
	w.bytes(w.scratch[:8])
}

func (w *writer) f32(v float32) { w.u32(math32.Float32bits(v)) }

func (w *writer) vec3(v math.Vec3) {
	w.f32(v.X)
	w.f32(v.Y)
	w.f32(v.Z)
}

func (w *writer) mat4(m math.Mat4) {
	for _, f := range m {
		w.f32(f)
	}
}

func (w *writer) str(s string) {
	w.u32(uint32(len(s)))
	w.bytes([]byte(s))
}

func (w *writer) id(id uuid.UUID) { w.bytes(id[:]) }

// reader is the counterpart of writer. The first failure sticks; short reads become ErrTruncated.
type reader struct {
	r       io.Reader
	err     error
	scratch [8]byte
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) fill(p []byte) bool {
	if r.err != nil {
		return false
	}
	if _, err := io.ReadFull(r.r, p); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrTruncated
		}
		r.fail(err)
		return false
	}
	return true
}

func (r *reader) bytes(n uint64) []byte {
	if n > maxPayload {
		r.fail(fmt.Errorf("%w: payload of %d bytes", ErrCorrupt, n))
		return nil
	}
	if n <= maxPrealloc {
		p := make([]byte, n)
		if !r.fill(p) {
			return nil
		}
		return p
	}
	if r.err != nil {
		return nil
	}
	p, err := io.ReadAll(io.LimitReader(r.r, int64(n)))
	if err != nil {
		r.fail(err)
		return nil
	}
	if uint64(len(p)) != n {
		r.fail(ErrTruncated)
		return nil
	}
	return p
}

func (r *reader) u8() uint8 {
	if !r.fill(r.scratch[:1]) {
		return 0
	}
	return r.scratch[0]
}

func (r *reader) boolean() bool {
	switch v := r.u8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		r.fail(fmt.Errorf("%w: bool byte %d", ErrCorrupt, v))
		return false
	}
}

func (r *reader) u16() uint16 {
	if !r.fill(r.scratch[:2]) {
		return 0
	}
	return binary.LittleEndian.Uint16(r.scratch[:2])
}

func (r *reader) u32() uint32 {
	if !r.fill(r.scratch[:4]) {
		return 0
	}
	return binary.LittleEndian.Uint32(r.scratch[:4])
}

func (r *reader) i32() int32 { return int32(r.u32()) }

func (r *reader) u64() uint64 {
	if !r.fill(r.scratch[:8]) {
		return 0
	}
	return binary.LittleEndian.Uint64(r.scratch[:8])
}

func (r *reader) f32() float32 { return math32.Float32frombits(r.u32()) }

func (r *reader) vec3() math.Vec3 {
	return math.Vec3{X: r.f32(), Y: r.f32(), Z: r.f32()}
}

func (r *reader) mat4() math.Mat4 {
	var m math.Mat4
	for i := range m {
		m[i] = r.f32()
	}
	return m
}

func (r *reader) str() string {
	n := r.u32()
	if n > maxStringLen {
		r.fail(fmt.Errorf("%w: string of %d bytes", ErrCorrupt, n))
		return ""
	}
	return string(r.bytes(uint64(n)))
}

func (r *reader) id() uuid.UUID {
	var id uuid.UUID
	r.fill(id[:])
	return id
}

// count reads an i32 element count. Values <= 0 mean absent and return 0.
func (r *reader) count(what string) int {
	n := r.i32()
	if n <= 0 {
		return 0
	}
	if n > maxCount {
		r.fail(fmt.Errorf("%w: %s count %d", ErrCorrupt, what, n))
		return 0
	}
	return int(n)
}
