package math

import "github.com/chewxy/math32"

// Segment is a finite line segment from Start to End.
type Segment struct {
	Start Vec3
	End   Vec3
}

// Direction returns End - Start (not normalized).
func (s Segment) Direction() Vec3 {
	return s.End.Sub(s.Start)
}

// Length returns the segment length.
func (s Segment) Length() float32 {
	return s.Direction().Length()
}

// PointAt returns Start + t*(End-Start).
func (s Segment) PointAt(t float32) Vec3 {
	return s.Start.Add(s.Direction().Scale(t))
}

// IntersectAABB tests the segment against a box using the slab method.
// Returns the parametric entry point in [0,1] and whether the segment touches the box.
// If the segment starts inside the box the entry point is 0.
func (s Segment) IntersectAABB(box AABB) (t float32, hit bool) {
	if box.IsEmpty() {
		return 0, false
	}
	dir := s.Direction()
	tmin := float32(0)
	tmax := float32(1)

	for axis := 0; axis < 3; axis++ {
		o := s.Start.Axis(axis)
		d := dir.Axis(axis)
		lo := box.Min.Axis(axis)
		hi := box.Max.Axis(axis)

		if d == 0 {
			// Parallel to this slab
			if o < lo || o > hi {
				return 0, false
			}
			continue
		}

		t1 := (lo - o) / d
		t2 := (hi - o) / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tmin {
			tmin = t1
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmax < tmin {
			return 0, false
		}
	}
	return tmin, true
}

// IntersectTriangle runs the Möller–Trumbore test against triangle (v0, v1, v2).
// Both faces count as hits. Returns the parametric distance in [0,1] along the segment.
func (s Segment) IntersectTriangle(v0, v1, v2 Vec3) (t float32, hit bool) {
	const epsilon = 1e-7

	dir := s.Direction()
	e1 := v1.Sub(v0)
	e2 := v2.Sub(v0)
	p := dir.Cross(e2)
	det := e1.Dot(p)
	if math32.Abs(det) < epsilon {
		return 0, false
	}
	invDet := 1 / det

	tv := s.Start.Sub(v0)
	u := tv.Dot(p) * invDet
	if u < 0 || u > 1 {
		return 0, false
	}

	q := tv.Cross(e1)
	v := dir.Dot(q) * invDet
	if v < 0 || u+v > 1 {
		return 0, false
	}

	t = e2.Dot(q) * invDet
	if t < 0 || t > 1 {
		return 0, false
	}
	return t, true
}
