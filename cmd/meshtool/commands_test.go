package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/meshforge/internal/config"
	"github.com/Faultbox/meshforge/pkg/cooked"
	"github.com/Faultbox/meshforge/pkg/math"
	"github.com/Faultbox/meshforge/pkg/mesh"
)

// boxFile cooks a unit box into a temp dir and returns a tool and the file path.
func boxFile(t *testing.T) (*tool, string) {
	t.Helper()
	tl, err := newTool(config.Default())
	require.NoError(t, err)

	m, err := mesh.NewBox(math.Vec3{X: 1, Y: 1, Z: 1}, tl.meshOpts)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "box.xrm")
	require.NoError(t, cooked.WriteFile(path, m, tl.cookOpts))
	return tl, path
}

func TestInfoFlagsPrecedeFile(t *testing.T) {
	tl, path := boxFile(t)

	require.NoError(t, tl.cmdInfo([]string{"-dump", path}))

	err := tl.cmdInfo([]string{"-dump"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "info [-dump] <file.xrm>")
}

func TestBVHFlagsPrecedeFile(t *testing.T) {
	tl, path := boxFile(t)
	out := filepath.Join(filepath.Dir(path), "bvh.xrm")

	require.NoError(t, tl.cmdBVH([]string{"-depth", "2", "-o", out, path}))
	_, err := os.Stat(out)
	require.NoError(t, err)

	lines, err := tl.load(out)
	require.NoError(t, err)
	assert.Equal(t, mesh.PrimitiveLines, lines.Type())

	// With the file first, flag parsing stops there and -o is never seen.
	err = tl.cmdBVH([]string{path, "-o", out})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bvh [-depth N] -o <out.xrm> <file.xrm>")
}
