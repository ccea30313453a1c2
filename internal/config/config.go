// Package config handles meshlet tool configuration loading and management.
package config

import (
	"fmt"

	"github.com/Faultbox/midgard-meshlet/pkg/meshlet"
)

// Config holds all tool settings.
type Config struct {
	Cluster ClusterConfig `yaml:"cluster" envconfig:"CLUSTER"`
	Remap   RemapConfig   `yaml:"remap" envconfig:"REMAP"`
	Output  OutputConfig  `yaml:"output" envconfig:"OUTPUT"`
	Batch   BatchConfig   `yaml:"batch" envconfig:"BATCH"`
	Metrics MetricsConfig `yaml:"metrics" envconfig:"METRICS"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
}

// ClusterConfig holds meshlet size limits and growth tuning.
type ClusterConfig struct {
	MaxVertices  int     `yaml:"max_vertices" envconfig:"MAX_VERTICES"`
	MaxTriangles int     `yaml:"max_triangles" envconfig:"MAX_TRIANGLES"`
	ConeWeight   float32 `yaml:"cone_weight" envconfig:"CONE_WEIGHT"`
	LeafSize     int     `yaml:"leaf_size" envconfig:"LEAF_SIZE"`
}

// RemapConfig controls vertex deduplication before clustering.
type RemapConfig struct {
	Enabled bool `yaml:"enabled" envconfig:"ENABLED"`
	Strict  bool `yaml:"strict" envconfig:"STRICT"` // Compare bytes, not just hashes
}

// OutputConfig holds output locations and encoding.
type OutputConfig struct {
	Dir       string `yaml:"dir" envconfig:"DIR"` // Empty writes next to the input
	Compress  bool   `yaml:"compress" envconfig:"COMPRESS"`
	ZstdLevel int    `yaml:"zstd_level" envconfig:"ZSTD_LEVEL"`
	OBJ       bool   `yaml:"obj" envconfig:"OBJ"` // Also write clusters as OBJ groups
	Verify    bool   `yaml:"verify" envconfig:"VERIFY"`
}

// BatchConfig holds settings for processing several meshes.
type BatchConfig struct {
	Workers int `yaml:"workers" envconfig:"WORKERS"`
}

// MetricsConfig holds the prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr" envconfig:"ADDR"` // Empty disables the endpoint
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" envconfig:"LEVEL"`
	LogFile string `yaml:"log_file" envconfig:"LOG_FILE"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Cluster: ClusterConfig{
			MaxVertices:  meshlet.DefaultMaxVertices,
			MaxTriangles: meshlet.DefaultMaxTriangles,
			ConeWeight:   0,
			LeafSize:     meshlet.DefaultLeafSize,
		},
		Remap: RemapConfig{
			Enabled: true,
			Strict:  false,
		},
		Output: OutputConfig{
			Compress:  true,
			ZstdLevel: 3,
			Verify:    true,
		},
		Batch: BatchConfig{
			Workers: 4,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// ClusterOptions converts the cluster section into build options.
func (c *Config) ClusterOptions() meshlet.Options {
	return meshlet.Options{
		MaxVertices:  c.Cluster.MaxVertices,
		MaxTriangles: c.Cluster.MaxTriangles,
		ConeWeight:   c.Cluster.ConeWeight,
		LeafSize:     c.Cluster.LeafSize,
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if err := c.ClusterOptions().Validate(); err != nil {
		return err
	}
	if c.Output.ZstdLevel < 1 || c.Output.ZstdLevel > 22 {
		return fmt.Errorf("output.zstd_level must be in [1, 22], got %d", c.Output.ZstdLevel)
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be at least 1, got %d", c.Batch.Workers)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}
	return nil
}
