// meshtool builds, inspects and converts cooked meshes.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/meshforge/internal/config"
	"github.com/Faultbox/meshforge/internal/logger"
	"github.com/Faultbox/meshforge/pkg/cooked"
	"github.com/Faultbox/meshforge/pkg/diag"
	"github.com/Faultbox/meshforge/pkg/mesh"
)

// tool carries the loaded configuration into every command.
type tool struct {
	cfg      *config.Config
	meshOpts mesh.Options
	cookOpts cooked.Options
	diag     *diag.Sink
}

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	args := config.Args()
	if len(args) < 1 {
		printUsage()
		exit(1)
	}

	t, err := newTool(cfg)
	if err != nil {
		fatal("%v", err)
	}
	logger.Sugar.Debugf("Config: %+v", cfg)

	command, rest := args[0], args[1:]
	switch command {
	case "gen":
		err = t.cmdGen(rest)
	case "info":
		err = t.cmdInfo(rest)
	case "raycast", "ray":
		err = t.cmdRaycast(rest)
	case "export":
		err = t.cmdExport(rest)
	case "bvh":
		err = t.cmdBVH(rest)
	case "config":
		err = t.cmdConfig(rest)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		exit(1)
	}
	if err != nil {
		logger.Error("command failed", zap.String("command", command), zap.Error(err))
		fatal("%v", err)
	}
	t.reportDiagnostics()
}

func newTool(cfg *config.Config) (*tool, error) {
	meshOpts, err := cfg.MeshOptions()
	if err != nil {
		return nil, err
	}
	cookOpts, err := cfg.CookOptions()
	if err != nil {
		return nil, err
	}
	sink := diag.NewSink(logger.Named("diag"))
	meshOpts.Logger = logger.Named("mesh")
	meshOpts.Diagnostics = sink
	cookOpts.Logger = logger.Named("cooked")
	return &tool{cfg: cfg, meshOpts: meshOpts, cookOpts: cookOpts, diag: sink}, nil
}

func printUsage() {
	fmt.Println(`meshtool - mesh pipeline utility

Usage:
  meshtool [global flags] <command> [options]

Commands:
  gen <box|plane|sphere> -o <out.xrm>     Generate a procedural mesh
  info [-dump] <file.xrm>                 Show mesh information
  raycast <file.xrm> ox oy oz ex ey ez    Intersect a segment with the mesh
  export <file.xrm> <out.glb>             Convert to binary glTF
  bvh [-depth N] -o <out.xrm> <file.xrm>  Write the spatial index as a line mesh
  config [-save path]                     Print the effective configuration

Command flags go before the file argument.

Global flags:
  -config path  -debug  -interleaved  -sequential  -workers N
  -no-dedup  -skinning fixed|indirect  -compressor zstd|zlib  -threshold N

Examples:
  meshtool gen sphere -rings 16 -sectors 32 -o ball.xrm
  meshtool info -dump ball.xrm
  meshtool raycast ball.xrm 0 0 -5 0 0 5
  meshtool -compressor zlib export ball.xrm ball.glb`)
}

func (t *tool) load(path string) (*mesh.Mesh, error) {
	m, err := cooked.ReadFile(path, t.cookOpts, t.meshOpts)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	logger.Debug("mesh loaded",
		zap.String("path", path),
		zap.Int("vertices", m.VertexCount()),
		zap.Stringer("type", m.Type()))
	return m, nil
}

func (t *tool) save(path string, m *mesh.Mesh) error {
	plan, err := cooked.NewPlan(m, t.cookOpts)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := plan.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("mesh written",
		zap.String("path", path),
		zap.Int("vertices", m.VertexCount()),
		zap.Int64("bytes", plan.Size()))
	return nil
}

func (t *tool) cmdConfig(args []string) error {
	fs := newFlagSet("config")
	savePath := fs.String("save", "", "Write the effective configuration to this path")
	fs.Parse(args)

	if *savePath != "" {
		return t.cfg.SaveTo(*savePath)
	}
	out, err := t.cfg.Marshal()
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}

// reportDiagnostics prints aggregated warnings collected while the command ran.
func (t *tool) reportDiagnostics() {
	entries := t.diag.Snapshot()
	if len(entries) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, "\nDiagnostics:")
	for _, e := range entries {
		fmt.Fprintf(os.Stderr, "  [%s] %s x%d: %s\n", e.Level, e.ID, e.Count, e.Message)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	exit(1)
}

func exit(code int) {
	logger.Sync()
	os.Exit(code)
}
