package cooked

import (
	"bufio"
	"fmt"
	"os"

	"github.com/Faultbox/meshforge/pkg/mesh"
)

// WriteFile writes m to path in cooked form.
func WriteFile(path string, m *mesh.Mesh, opts Options) error {
	p, err := NewPlan(m, opts)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating cooked file: %w", err)
	}
	bw := bufio.NewWriter(f)
	if _, err := p.WriteTo(bw); err != nil {
		f.Close()
		return fmt.Errorf("writing cooked file: %w", err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing cooked file: %w", err)
	}
	return f.Close()
}

// ReadFile reads a cooked mesh from path.
func ReadFile(path string, opts Options, meshOpts mesh.Options) (*mesh.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening cooked file: %w", err)
	}
	defer f.Close()
	return Read(bufio.NewReader(f), opts, meshOpts)
}
