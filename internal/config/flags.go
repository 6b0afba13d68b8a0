package config

import "flag"

var (
	flagConfig      = flag.String("config", "", "Path to config file")
	flagDebug       = flag.Bool("debug", false, "Enable debug logging")
	flagInterleaved = flag.Bool("interleaved", false, "Pack vertex attributes into one interleaved buffer")
	flagSequential  = flag.Bool("sequential", false, "Run the pipeline on one goroutine")
	flagWorkers     = flag.Int("workers", 0, "Worker count for parallel stages")
	flagNoDedup     = flag.Bool("no-dedup", false, "Keep duplicate vertices")
	flagSkinning    = flag.String("skinning", "", "Skinning mode: fixed or indirect")
	flagCompressor  = flag.String("compressor", "", "Stream compressor: zstd or zlib")
	flagThreshold   = flag.Int("threshold", -1, "Compression threshold in bytes, 0 disables")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// Args returns the non-flag arguments.
func Args() []string {
	return flag.Args()
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagInterleaved {
		cfg.Pipeline.Interleaved = true
	}
	if *flagSequential {
		cfg.Pipeline.Parallel = false
	}
	if *flagWorkers > 0 {
		cfg.Pipeline.Workers = *flagWorkers
	}
	if *flagNoDedup {
		cfg.Pipeline.Deduplicate = false
	}
	if *flagSkinning != "" {
		cfg.Pipeline.SkinningMode = *flagSkinning
	}
	if *flagCompressor != "" {
		cfg.Cook.Compressor = *flagCompressor
	}
	if *flagThreshold >= 0 {
		cfg.Cook.CompressionThreshold = *flagThreshold
	}
}
