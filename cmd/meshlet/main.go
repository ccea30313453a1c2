// meshlet is a CLI for baking triangle meshes into GPU meshlet files.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/midgard-meshlet/internal/bake"
	"github.com/Faultbox/midgard-meshlet/internal/config"
	"github.com/Faultbox/midgard-meshlet/internal/logger"
	"github.com/Faultbox/midgard-meshlet/internal/metrics"
	"github.com/Faultbox/midgard-meshlet/pkg/formats"
)

func main() {
	config.ParseFlags()
	args := config.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	command := args[0]
	args = args[1:]

	var cmdErr error
	switch command {
	case "build", "b":
		cmdErr = cmdBuild(cfg, args)
	case "info":
		cmdErr = cmdInfo(args)
	case "verify":
		cmdErr = cmdVerify(cfg, args)
	case "config":
		cmdErr = cmdConfig(cfg, args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if cmdErr != nil {
		logger.Error("command failed", zap.String("command", command), zap.Error(cmdErr))
		logger.Sync()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`meshlet - mesh to meshlet baker

Usage:
  meshlet [flags] <command> [arguments]

Commands:
  build <file.obj|dir>...            Bake meshes into .mshl files
  info <file.mshl>                   Show meshlet file information
  verify <file.mshl> <source.obj>    Check a meshlet file against its source mesh
  config [save [path]]               Print or save the effective config

Flags:
  -config <path>        Config file (default ./meshlet.yaml)
  -max-vertices <n>     Max vertices per meshlet
  -max-triangles <n>    Max triangles per meshlet
  -cone-weight <w>      0 = fill-driven, 1 = cone-quality growth
  -out <dir>            Output directory (default next to input)
  -no-remap             Skip vertex deduplication
  -raw                  Write uncompressed .mshl files
  -obj                  Also export clusters as OBJ groups
  -workers <n>          Meshes processed concurrently
  -metrics-addr <addr>  Serve prometheus metrics while building
  -debug                Enable debug logging

Environment:
  MESHLET_CLUSTER_MAX_TRIANGLES=96 and friends override the config file.

Examples:
  meshlet build models/
  meshlet -max-triangles 64 -obj build tree.obj
  meshlet info tree.mshl
  meshlet verify tree.mshl tree.obj`)
}

func cmdBuild(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: meshlet build <file.obj|dir>...")
	}

	inputs, err := collectInputs(args)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no .obj files found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logger.Warn("metrics endpoint stopped", zap.Error(err))
			}
		}()
		logger.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr))
	}

	logger.Info("baking meshes",
		zap.Int("files", len(inputs)),
		zap.Int("workers", cfg.Batch.Workers),
		zap.Int("max_vertices", cfg.Cluster.MaxVertices),
		zap.Int("max_triangles", cfg.Cluster.MaxTriangles))

	reports, err := bake.New(cfg).Run(ctx, inputs)

	failed := 0
	for _, r := range reports {
		if r == nil {
			failed++
			continue
		}
		fmt.Printf("%-40s %8d tris %6d meshlets  %s\n", r.Output, r.Triangles, r.Clusters, r.Duration.Round(time.Millisecond))
	}
	fmt.Printf("\n%d baked, %d failed\n", len(reports)-failed, failed)

	return err
}

// collectInputs expands directories into the .obj files they contain.
func collectInputs(args []string) ([]string, error) {
	var inputs []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			inputs = append(inputs, arg)
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".obj") && !strings.HasSuffix(path, ".meshlets.obj") {
				inputs = append(inputs, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return inputs, nil
}

func cmdInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: meshlet info <file.mshl>")
	}

	m, err := formats.OpenMSHL(args[0])
	if err != nil {
		return err
	}
	r := m.Result

	var tris, verts, fullest int
	for _, c := range r.Clusters {
		tris += int(c.TriangleCount)
		verts += int(c.VertexCount)
		fullest = max(fullest, int(c.TriangleCount))
	}

	fmt.Printf("File:       %s\n", args[0])
	fmt.Printf("Version:    %s\n", m.Version)
	fmt.Printf("Build ID:   %s\n", m.BuildID)
	fmt.Printf("Compressed: %v\n", m.Compressed)
	fmt.Printf("Remapped:   %v\n", m.Remapped)
	fmt.Printf("Limits:     %d vertices, %d triangles, cone weight %.2f\n", m.MaxVertices, m.MaxTriangles, m.ConeWeight)
	fmt.Printf("Vertices:   %d\n", len(m.Positions)/3)
	fmt.Printf("Triangles:  %d\n", tris)
	fmt.Printf("Meshlets:   %d\n", len(r.Clusters))
	fmt.Printf("Mesh area:  %.3f\n", r.MeshArea)
	if n := len(r.Clusters); n > 0 {
		fmt.Println()
		fmt.Printf("Avg triangles per meshlet: %.1f (max %d)\n", float64(tris)/float64(n), fullest)
		fmt.Printf("Avg vertices per meshlet:  %.1f\n", float64(verts)/float64(n))
		fmt.Printf("Triangle fill:             %.1f%%\n", 100*float64(tris)/float64(n*int(m.MaxTriangles)))
	}
	return nil
}

func cmdVerify(cfg *config.Config, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: meshlet verify <file.mshl> <source.obj>")
	}

	m, err := bake.New(cfg).Check(args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("%s: OK (%d meshlets, %d triangles)\n", args[0], len(m.Result.Clusters), m.Result.TriangleCount())
	return nil
}

func cmdConfig(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	}

	if args[0] != "save" {
		return fmt.Errorf("usage: meshlet config [save [path]]")
	}
	if len(args) > 1 {
		return cfg.SaveTo(args[1])
	}
	if err := cfg.Save(); err != nil {
		return err
	}
	fmt.Printf("Saved to %s\n", filepath.Join(config.ConfigDir(), "meshlet.yaml"))
	return nil
}
