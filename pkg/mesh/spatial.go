package mesh

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/meshforge/pkg/bvh"
	"github.com/Faultbox/meshforge/pkg/diag"
	"github.com/Faultbox/meshforge/pkg/math"
)

type spatialSnapshot struct {
	tree    *bvh.Tree
	version uint64
}

type spatialIndex struct {
	current  atomic.Pointer[spatialSnapshot]
	version  atomic.Uint64
	building atomic.Bool
	builds   atomic.Int64
	hook     atomic.Pointer[func()]

	mu   sync.Mutex
	done chan struct{}
}

// SetBuildHook installs fn to run at the start of every spatial index build.
// Pass nil to remove it.
func (m *Mesh) SetBuildHook(fn func()) {
	if fn == nil {
		m.spatial.hook.Store(nil)
		return
	}
	m.spatial.hook.Store(&fn)
}

// SpatialBuildCount returns how many spatial index builds have started.
func (m *Mesh) SpatialBuildCount() int64 {
	return m.spatial.builds.Load()
}

// SpatialIndex returns the cached BVH. When none is current it starts one background build
// and returns nil; concurrent callers never start a second build while one is in flight.
func (m *Mesh) SpatialIndex() *bvh.Tree {
	tree, _ := m.ensureSpatial()
	return tree
}

// ensureSpatial returns the current tree, or the done channel of the build that will
// produce it, starting that build if none is in flight. building and done change together
// under mu, so every caller that loses the race waits on the build that won it.
func (m *Mesh) ensureSpatial() (*bvh.Tree, <-chan struct{}) {
	if t := m.currentTree(); t != nil {
		return t, nil
	}

	m.spatial.mu.Lock()
	defer m.spatial.mu.Unlock()
	if !m.spatial.building.CompareAndSwap(false, true) {
		return nil, m.spatial.done
	}
	// A build may have finished between the first check and the lock.
	if t := m.currentTree(); t != nil {
		m.spatial.building.Store(false)
		return t, nil
	}

	done := make(chan struct{})
	m.spatial.done = done
	version := m.spatial.version.Load()
	go func() {
		defer close(done)
		_, err := m.buildSpatial(version)
		m.spatial.building.Store(false)
		if err != nil {
			m.log.Error("spatial index build failed", zap.Error(err))
			m.opts.Diagnostics.Report(diag.LevelError, "mesh.spatial.build", err.Error())
		}
	}()
	return nil, done
}

// WaitSpatialIndex blocks until any in-flight background build finishes and returns the
// current tree, which is nil if that build failed or the topology changed meanwhile.
func (m *Mesh) WaitSpatialIndex() *bvh.Tree {
	m.spatial.mu.Lock()
	done := m.spatial.done
	m.spatial.mu.Unlock()
	if done != nil {
		<-done
	}
	return m.currentTree()
}

// BuildSpatialIndex builds the BVH synchronously and installs it, superseding any
// background build in flight.
func (m *Mesh) BuildSpatialIndex() (*bvh.Tree, error) {
	if m == nil {
		return nil, ErrNilMesh
	}
	return m.buildSpatial(m.spatial.version.Load())
}

func (m *Mesh) currentTree() *bvh.Tree {
	snap := m.spatial.current.Load()
	if snap == nil || snap.version != m.spatial.version.Load() {
		return nil
	}
	return snap.tree
}

// buildSpatial builds a tree for the given topology version. A panic inside the build is
// converted to an error. The tree is only installed if the version is still current.
func (m *Mesh) buildSpatial(version uint64) (tree *bvh.Tree, err error) {
	m.spatial.builds.Add(1)
	if fn := m.spatial.hook.Load(); fn != nil {
		(*fn)()
	}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			tree, err = nil, fmt.Errorf("spatial index build panicked: %v", r)
		}
	}()

	tris, err := m.bvhTriangles()
	if err != nil {
		return nil, err
	}
	tree, err = bvh.Build(tris)
	if err != nil {
		return nil, err
	}

	snap := &spatialSnapshot{tree: tree, version: version}
	if m.spatial.version.Load() == version {
		m.spatial.current.Store(snap)
	}
	m.log.Debug("spatial index built",
		zap.Int("triangles", len(tris)),
		zap.Int("nodes", tree.NodeCount()),
		zap.Duration("elapsed", time.Since(start)))
	return tree, nil
}

func (m *Mesh) bvhTriangles() ([]bvh.Triangle, error) {
	if m.primType != PrimitiveTriangles {
		return nil, fmt.Errorf("%w: mesh type is %s", ErrNoTriangles, m.primType)
	}
	view, err := m.attributeView(Attribute{Kind: AttrPosition})
	if err != nil {
		return nil, err
	}
	tris := make([]bvh.Triangle, len(m.triangles))
	for i, t := range m.triangles {
		tris[i] = bvh.Triangle{
			A:     view.Vec3(int(t[0])),
			B:     view.Vec3(int(t[1])),
			C:     view.Vec3(int(t[2])),
			Index: int32(i),
		}
	}
	return tris, nil
}

// IntersectSegment returns the closest triangle hit along seg in mesh-local space.
// It joins the lazy build if one has to run. Only when that build failed or was
// invalidated does it build inline. Meshes without triangles never report a hit.
func (m *Mesh) IntersectSegment(seg math.Segment) (bvh.Hit, bool) {
	if m.primType != PrimitiveTriangles {
		return bvh.Hit{}, false
	}
	tree, done := m.ensureSpatial()
	if tree == nil {
		<-done
		tree = m.currentTree()
	}
	if tree == nil {
		var err error
		if tree, err = m.BuildSpatialIndex(); err != nil {
			if !errors.Is(err, ErrNoTriangles) {
				m.log.Warn("segment query without spatial index", zap.Error(err))
			}
			return bvh.Hit{}, false
		}
	}
	return tree.IntersectSegment(seg)
}

// ClearAccelerationCaches drops the spatial index and cached index buffers.
// Call it after changing positions or topology out of band.
func (m *Mesh) ClearAccelerationCaches() {
	m.spatial.version.Add(1)
	m.spatial.current.Store(nil)
	m.indices.clear()
}
