package cooked

import (
	"encoding/binary"

	"github.com/chewxy/math32"
)

const snormScale = 32767

// EncodeSnorm16 quantizes little-endian float32 values to little-endian int16 using
// round(clamp(x, -1, 1) * 32767).
func EncodeSnorm16(floats []byte) []byte {
	n := len(floats) / 4
	out := make([]byte, 2*n)
	for i := 0; i < n; i++ {
		f := math32.Float32frombits(binary.LittleEndian.Uint32(floats[4*i:]))
		if math32.IsNaN(f) {
			f = 0
		}
		f = math32.Max(-1, math32.Min(1, f))
		q := int16(roundHalfAway(f * snormScale))
		binary.LittleEndian.PutUint16(out[2*i:], uint16(q))
	}
	return out
}

// DecodeSnorm16 expands int16 values back to float32, clamped to [-1, 1].
func DecodeSnorm16(snorm []byte) []byte {
	n := len(snorm) / 2
	out := make([]byte, 4*n)
	for i := 0; i < n; i++ {
		q := int16(binary.LittleEndian.Uint16(snorm[2*i:]))
		f := math32.Max(-1, float32(q)/snormScale)
		binary.LittleEndian.PutUint32(out[4*i:], math32.Float32bits(f))
	}
	return out
}

func roundHalfAway(x float32) float32 {
	if x < 0 {
		return -math32.Floor(-x + 0.5)
	}
	return math32.Floor(x + 0.5)
}
