package config

import "flag"

var (
	flagConfig       = flag.String("config", "", "Path to config file")
	flagDebug        = flag.Bool("debug", false, "Enable debug logging")
	flagMaxVertices  = flag.Int("max-vertices", 0, "Max vertices per meshlet")
	flagMaxTriangles = flag.Int("max-triangles", 0, "Max triangles per meshlet")
	flagConeWeight   = flag.Float64("cone-weight", -1, "Cone weight in [0,1]")
	flagOut          = flag.String("out", "", "Output directory")
	flagNoRemap      = flag.Bool("no-remap", false, "Skip vertex deduplication")
	flagRaw          = flag.Bool("raw", false, "Write uncompressed .mshl files")
	flagOBJ          = flag.Bool("obj", false, "Also export clusters as OBJ")
	flagWorkers      = flag.Int("workers", 0, "Meshes processed concurrently")
	flagMetricsAddr  = flag.String("metrics-addr", "", "Serve prometheus metrics on this address")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the arguments left after flag parsing.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagMaxVertices > 0 {
		cfg.Cluster.MaxVertices = *flagMaxVertices
	}
	if *flagMaxTriangles > 0 {
		cfg.Cluster.MaxTriangles = *flagMaxTriangles
	}
	if *flagConeWeight >= 0 {
		cfg.Cluster.ConeWeight = float32(*flagConeWeight)
	}
	if *flagOut != "" {
		cfg.Output.Dir = *flagOut
	}
	if *flagNoRemap {
		cfg.Remap.Enabled = false
	}
	if *flagRaw {
		cfg.Output.Compress = false
	}
	if *flagOBJ {
		cfg.Output.OBJ = true
	}
	if *flagWorkers > 0 {
		cfg.Batch.Workers = *flagWorkers
	}
	if *flagMetricsAddr != "" {
		cfg.Metrics.Addr = *flagMetricsAddr
	}
}
