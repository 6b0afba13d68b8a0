// Package mesh turns raw vertex and primitive data into deduplicated, attribute-packed
// GPU buffers with optional skinning and blendshape data, and answers segment queries
// through a lazily built BVH.
package mesh

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/meshforge/pkg/diag"
	"github.com/Faultbox/meshforge/pkg/math"
)

// Schedule selects how per-vertex work is executed.
type Schedule uint8

const (
	ScheduleSequential Schedule = iota
	ScheduleParallel
)

// String returns the schedule name.
func (s Schedule) String() string {
	if s == ScheduleParallel {
		return "parallel"
	}
	return "sequential"
}

// Options configures mesh construction.
type Options struct {
	// Interleaved packs all attributes into one buffer instead of one buffer per attribute.
	Interleaved bool
	Schedule    Schedule
	// Workers bounds parallel fan-out; <= 0 uses GOMAXPROCS.
	Workers int
	// Deduplicate merges bit-identical vertices before population.
	Deduplicate bool
	// Transform is applied to positions, and through its normal matrix to normals and tangents.
	Transform *math.Mat4
	// RetainSource keeps the unique vertex records so the mesh can be re-laid out later.
	RetainSource bool

	Skinning        SkinningOptions
	Blendshapes     BlendshapeOptions
	BlendshapeNames []string

	Logger      *zap.Logger
	Diagnostics *diag.Sink
}

// DefaultOptions returns planar, parallel, deduplicating options with 4 bone influences.
func DefaultOptions() Options {
	return Options{
		Schedule:    ScheduleParallel,
		Deduplicate: true,
		Skinning: SkinningOptions{
			Mode:          SkinningFixed,
			MaxInfluences: DefaultMaxInfluences,
			Normalize:     true,
		},
	}
}

func (o Options) workers() int {
	if o.Schedule == ScheduleSequential {
		return 1
	}
	return o.Workers
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Topology holds candidate primitives. A mesh keeps only the most numerous kind.
type Topology struct {
	Triangles [][3]int32
	Lines     [][2]int32
	Points    []int32
}

// Mesh is a built, GPU-ready mesh.
//
// A Mesh is owned by one goroutine for mutation (InitMeshBuffers, Populate, RebuildBounds,
// SetEncoding). Read accessors, SpatialIndex, IntersectSegment and IndexBuffer are safe
// for concurrent use.
type Mesh struct {
	opts Options
	log  *zap.Logger

	primType  PrimitiveType
	triangles [][3]int32
	lines     [][2]int32
	points    []int32

	vertexCount int
	layout      Layout
	buffers     *Buffers

	boundsMu sync.Mutex
	bounds   math.AABB

	skinning    *Skinning
	blendshapes *Blendshapes
	source      []Vertex
	importErr   error

	encMu     sync.RWMutex
	encodings map[string]Encoding

	spatial spatialIndex
	indices indexCache
}

// New creates an empty mesh for vertexCount vertices with the given primitives.
// Buffers must be initialized with InitMeshBuffers before population.
func New(vertexCount int, topo Topology, opts Options) (*Mesh, error) {
	if vertexCount < 0 {
		return nil, fmt.Errorf("%w: negative vertex count %d", ErrIndexOutOfRange, vertexCount)
	}
	m := &Mesh{
		opts:        opts,
		log:         opts.logger(),
		vertexCount: vertexCount,
		buffers:     NewBuffers(),
		bounds:      math.EmptyAABB(),
		encodings:   make(map[string]Encoding),
	}
	if err := m.setTopology(topo); err != nil {
		return nil, err
	}
	return m, nil
}

// Build runs the full pipeline: dedup, layout, population, skinning and blendshapes.
// Topology indices refer to the input vertices and are remapped onto unique slots.
func Build(vertices []Vertex, topo Topology, opts Options) (*Mesh, error) {
	return build(vertices, topo, nil, opts)
}

func build(vertices []Vertex, topo Topology, bones []BoneInput, opts Options) (*Mesh, error) {
	log := opts.logger()
	start := time.Now()

	table := Remap(vertices, opts.Deduplicate)
	remapped, err := remapTopology(topo, table.Remap)
	if err != nil {
		return nil, err
	}

	m, err := New(table.UniqueCount(), remapped, opts)
	if err != nil {
		return nil, err
	}

	set := DetectAttributes(vertices)
	if err := m.initBuffers(set, opts.Interleaved); err != nil {
		return nil, err
	}
	if err := Populate(m, vertices, table.Impl, opts.Transform, opts.Schedule); err != nil {
		return nil, err
	}

	if bones == nil {
		bones = bonesFromVertices(vertices)
	}
	if len(bones) > 0 {
		skinOpts := opts.Skinning
		if skinOpts.Workers == 0 {
			skinOpts.Workers = opts.workers()
		}
		s, err := AggregateSkinning(bones, table.Remap, table.UniqueCount(), skinOpts)
		if err != nil {
			return nil, fmt.Errorf("aggregate skinning: %w", err)
		}
		m.skinning = s
	}

	unique := table.Unique(vertices)
	if hasMorphs(vertices) || len(opts.BlendshapeNames) > 0 {
		bsOpts := opts.Blendshapes
		if bsOpts.Workers == 0 {
			bsOpts.Workers = opts.workers()
		}
		if bsOpts.Transform == nil {
			bsOpts.Transform = opts.Transform
		}
		bs, err := EncodeBlendshapes(opts.BlendshapeNames, unique, bsOpts)
		if err != nil {
			return nil, fmt.Errorf("encode blendshapes: %w", err)
		}
		m.blendshapes = bs
	}

	if opts.RetainSource {
		m.source = make([]Vertex, len(unique))
		for i := range unique {
			m.source[i] = unique[i].Clone()
		}
	}

	log.Debug("mesh built",
		zap.Int("input_vertices", len(vertices)),
		zap.Int("unique_vertices", m.vertexCount),
		zap.Stringer("type", m.primType),
		zap.Bool("interleaved", opts.Interleaved),
		zap.Stringer("schedule", opts.Schedule),
		zap.Duration("elapsed", time.Since(start)))
	return m, nil
}

func remapTopology(topo Topology, remap []int32) (Topology, error) {
	n := int32(len(remap))
	lookup := func(i int32) (int32, error) {
		if i < 0 || i >= n {
			return 0, fmt.Errorf("%w: vertex index %d (have %d vertices)", ErrIndexOutOfRange, i, n)
		}
		return remap[i], nil
	}

	var out Topology
	var err error
	if len(topo.Triangles) > 0 {
		out.Triangles = make([][3]int32, len(topo.Triangles))
		for i, tri := range topo.Triangles {
			for c := 0; c < 3; c++ {
				if out.Triangles[i][c], err = lookup(tri[c]); err != nil {
					return Topology{}, err
				}
			}
		}
	}
	if len(topo.Lines) > 0 {
		out.Lines = make([][2]int32, len(topo.Lines))
		for i, l := range topo.Lines {
			for c := 0; c < 2; c++ {
				if out.Lines[i][c], err = lookup(l[c]); err != nil {
					return Topology{}, err
				}
			}
		}
	}
	if len(topo.Points) > 0 {
		out.Points = make([]int32, len(topo.Points))
		for i, p := range topo.Points {
			if out.Points[i], err = lookup(p); err != nil {
				return Topology{}, err
			}
		}
	}
	return out, nil
}

func hasMorphs(vertices []Vertex) bool {
	for i := range vertices {
		if len(vertices[i].Morphs) > 0 {
			return true
		}
	}
	return false
}

// VertexCount returns the number of unique vertices.
func (m *Mesh) VertexCount() int { return m.vertexCount }

// Layout returns the vertex buffer layout.
func (m *Mesh) Layout() Layout { return m.layout }

// Buffers returns the named buffer collection.
func (m *Mesh) Buffers() *Buffers { return m.buffers }

// Skinning returns the skinning data, or nil.
func (m *Mesh) Skinning() *Skinning { return m.skinning }

// Blendshapes returns the blendshape data, or nil.
func (m *Mesh) Blendshapes() *Blendshapes { return m.blendshapes }

// Source returns the retained unique vertex records, or nil when not retained.
func (m *Mesh) Source() []Vertex { return m.source }

// Options returns the options the mesh was built with.
func (m *Mesh) Options() Options { return m.opts }

// Bounds returns the axis-aligned bounds of all positions.
func (m *Mesh) Bounds() math.AABB {
	m.boundsMu.Lock()
	defer m.boundsMu.Unlock()
	return m.bounds
}

func (m *Mesh) expandBounds(b math.AABB) {
	m.boundsMu.Lock()
	m.bounds = m.bounds.Union(b)
	m.boundsMu.Unlock()
}

func (m *Mesh) resetBounds() {
	m.boundsMu.Lock()
	m.bounds = math.EmptyAABB()
	m.boundsMu.Unlock()
}

// Relayout rebuilds the vertex buffers from retained source records with a new interleaving
// mode. It fails with ErrMissingBuffer when the mesh was built without RetainSource.
func (m *Mesh) Relayout(interleaved bool) error {
	if m.source == nil {
		return fmt.Errorf("%w: no retained source vertices", ErrMissingBuffer)
	}
	m.opts.Interleaved = interleaved
	if err := m.initBuffers(DetectAttributes(m.source), interleaved); err != nil {
		return err
	}
	return Populate(m, m.source, nil, m.opts.Transform, m.opts.Schedule)
}

// ImportWarnings returns recoverable problems collected while importing, or nil.
func (m *Mesh) ImportWarnings() error { return m.importErr }
