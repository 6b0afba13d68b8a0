package mesh

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/meshforge/pkg/diag"
	"github.com/Faultbox/meshforge/pkg/math"
)

func TestSpatialIndexSingleBuild(t *testing.T) {
	m, err := NewPlane(10, 10, 16, DefaultOptions())
	require.NoError(t, err)

	var builds atomic.Int32
	release := make(chan struct{})
	m.SetBuildHook(func() {
		builds.Add(1)
		<-release
	})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.SpatialIndex()
		}()
	}
	wg.Wait()
	close(release)

	tree := m.WaitSpatialIndex()
	require.NotNil(t, tree)
	assert.Equal(t, int32(1), builds.Load())
	assert.Same(t, tree, m.SpatialIndex())
	assert.Equal(t, int64(1), m.SpatialBuildCount())
}

func TestIntersectSegmentSharesLazyBuild(t *testing.T) {
	for round := 0; round < 50; round++ {
		m, err := NewPlane(10, 10, 4, DefaultOptions())
		require.NoError(t, err)

		var builds atomic.Int32
		release := make(chan struct{})
		m.SetBuildHook(func() {
			builds.Add(1)
			<-release
		})

		var started, wg sync.WaitGroup
		hits := make([]bool, 32)
		for i := range hits {
			started.Add(1)
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				started.Done()
				_, hits[i] = m.IntersectSegment(math.Segment{
					Start: math.Vec3{X: 0.3, Y: 5, Z: 0.2},
					End:   math.Vec3{X: 0.3, Y: -5, Z: 0.2},
				})
			}(i)
		}
		started.Wait()
		close(release)
		wg.Wait()

		require.Equal(t, int32(1), builds.Load(), "round %d", round)
		assert.Equal(t, int64(1), m.SpatialBuildCount())
		for i, hit := range hits {
			assert.True(t, hit, "query %d", i)
		}
	}
}

func TestSpatialIndexInvalidation(t *testing.T) {
	m, err := NewBox(math.Vec3{X: 2, Y: 2, Z: 2}, DefaultOptions())
	require.NoError(t, err)

	first, err := m.BuildSpatialIndex()
	require.NoError(t, err)
	assert.Same(t, first, m.SpatialIndex())

	require.NoError(t, m.RebuildBounds())
	assert.Nil(t, m.currentTree())

	second, err := m.BuildSpatialIndex()
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, int64(2), m.SpatialBuildCount())
}

func TestSpatialIndexFailureClearsFlag(t *testing.T) {
	sink := diag.NewSink(nil)
	opts := DefaultOptions()
	opts.Diagnostics = sink
	nan := math32.NaN()
	m, err := NewFromTriangles(
		[]math.Vec3{{X: nan}, {X: 1}, {Y: 1}},
		[][3]int32{{0, 1, 2}},
		opts,
	)
	require.NoError(t, err)

	assert.Nil(t, m.SpatialIndex())
	assert.Nil(t, m.WaitSpatialIndex())
	assert.False(t, m.spatial.building.Load())

	// A later access retries instead of stalling.
	assert.Nil(t, m.SpatialIndex())
	assert.Nil(t, m.WaitSpatialIndex())
	assert.Equal(t, int64(2), m.SpatialBuildCount())

	e, ok := sink.Lookup("mesh.spatial.build")
	require.True(t, ok)
	assert.Equal(t, 2, e.Count)
	assert.Equal(t, diag.LevelError, e.Level)
}

func TestIntersectSegment(t *testing.T) {
	m, err := NewBox(math.Vec3{X: 2, Y: 2, Z: 2}, DefaultOptions())
	require.NoError(t, err)

	hit, ok := m.IntersectSegment(math.Segment{
		Start: math.Vec3{X: 0.2, Y: 5, Z: 0.3},
		End:   math.Vec3{X: 0.2, Y: -5, Z: 0.3},
	})
	require.True(t, ok)
	assert.InDelta(t, 1, hit.Point.Y, 1e-5)
	assert.InDelta(t, 4, hit.Distance, 1e-4)

	_, ok = m.IntersectSegment(math.Segment{
		Start: math.Vec3{X: 5, Y: 5, Z: 5},
		End:   math.Vec3{X: 6, Y: 6, Z: 6},
	})
	assert.False(t, ok)
}

func TestIntersectSegmentNonTriangleMesh(t *testing.T) {
	m, err := NewFromPoints([]math.Vec3{{X: 1}, {Y: 1}}, DefaultOptions())
	require.NoError(t, err)
	_, ok := m.IntersectSegment(math.Segment{End: math.Vec3{X: 2}})
	assert.False(t, ok)

	_, err = m.BuildSpatialIndex()
	assert.ErrorIs(t, err, ErrNoTriangles)
}
