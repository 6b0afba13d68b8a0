package mesh

import "errors"

// Sentinel errors. Callers match them with errors.Is; returned errors wrap them with context.
var (
	ErrNilMesh         = errors.New("mesh: nil mesh")
	ErrNilInput        = errors.New("mesh: nil input")
	ErrIndexOutOfRange = errors.New("mesh: index out of range")
	ErrLayoutMismatch  = errors.New("mesh: buffer layout mismatch")
	ErrMissingBuffer   = errors.New("mesh: missing buffer")
	ErrMissingNode     = errors.New("mesh: bone has no scene node")
	ErrNoTriangles     = errors.New("mesh: no triangles")
)
