// Package bake runs the offline pipeline that turns mesh files into
// meshlet files: load, deduplicate, cluster, verify and write.
package bake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/midgard-meshlet/internal/config"
	"github.com/Faultbox/midgard-meshlet/internal/logger"
	"github.com/Faultbox/midgard-meshlet/internal/metrics"
	"github.com/Faultbox/midgard-meshlet/pkg/formats"
	"github.com/Faultbox/midgard-meshlet/pkg/meshlet"
)

// Pipeline stage names used in logs and metrics.
const (
	StageLoad   = "load"
	StageRemap  = "remap"
	StageBuild  = "build"
	StageVerify = "verify"
	StageWrite  = "write"
)

// Report summarizes one baked mesh.
type Report struct {
	Input     string
	Output    string
	OBJOutput string
	BuildID   uuid.UUID

	Vertices       int // Before deduplication
	UniqueVertices int
	Triangles      int
	Clusters       int
	Stats          meshlet.Stats
	Duration       time.Duration
}

// Baker processes meshes with one configuration.
type Baker struct {
	cfg *config.Config
	log *zap.Logger
}

// New creates a baker. The config must already be validated.
func New(cfg *config.Config) *Baker {
	return &Baker{
		cfg: cfg,
		log: logger.Named("bake"),
	}
}

// Prepared is a mesh ready for clustering.
type Prepared struct {
	Positions []float32
	Indices   []uint32
	Remapped  bool
	Merged    int // Vertices dropped by deduplication
}

// Prepare deduplicates the mesh when remapping is enabled.
func (b *Baker) Prepare(mesh *formats.Mesh) (*Prepared, error) {
	return b.prepare(mesh, b.cfg.Remap.Enabled)
}

func (b *Baker) prepare(mesh *formats.Mesh, remapEnabled bool) (*Prepared, error) {
	if !remapEnabled {
		return &Prepared{Positions: mesh.Positions, Indices: mesh.Indices}, nil
	}

	const stride = 3 * 4
	vertices := meshlet.Float32Bytes(mesh.Positions)
	remap, unique, err := meshlet.Remap(mesh.Indices, vertices, stride, meshlet.RemapOptions{Strict: b.cfg.Remap.Strict})
	if err != nil {
		return nil, err
	}

	return &Prepared{
		Positions: meshlet.BytesFloat32(meshlet.RemapVertices(vertices, stride, remap, unique)),
		Indices:   meshlet.RemapIndices(mesh.Indices, remap),
		Remapped:  true,
		Merged:    mesh.VertexCount() - unique,
	}, nil
}

// Bake runs the full pipeline for one input file.
func (b *Baker) Bake(ctx context.Context, input string) (report *Report, err error) {
	start := time.Now()
	log := b.log.With(zap.String("file", input))

	metrics.InFlight.Inc()
	defer func() {
		metrics.InFlight.Dec()
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.MeshesTotal.WithLabelValues(status).Inc()
	}()

	stage := time.Now()
	mesh, err := formats.ParseOBJFile(input)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageLoad, err)
	}
	metrics.ObserveStage(StageLoad, stage)
	log.Debug("mesh loaded",
		zap.Int("vertices", mesh.VertexCount()),
		zap.Int("triangles", mesh.TriangleCount()))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stage = time.Now()
	prepared, err := b.Prepare(mesh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageRemap, err)
	}
	metrics.ObserveStage(StageRemap, stage)
	metrics.VerticesMergedTotal.Add(float64(prepared.Merged))
	if prepared.Remapped {
		log.Debug("vertices remapped", zap.Int("merged", prepared.Merged))
	}

	opts := b.cfg.ClusterOptions()

	stage = time.Now()
	result, err := meshlet.Build(prepared.Positions, prepared.Indices, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageBuild, err)
	}
	metrics.ObserveStage(StageBuild, stage)
	metrics.ObserveBuild(result, opts)

	if b.cfg.Output.Verify {
		stage = time.Now()
		if err := meshlet.Verify(result, prepared.Indices, opts); err != nil {
			return nil, fmt.Errorf("%s: %w", StageVerify, err)
		}
		metrics.ObserveStage(StageVerify, stage)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stage = time.Now()
	m := formats.NewMSHL(result, prepared.Positions, opts)
	m.Compressed = b.cfg.Output.Compress
	m.Remapped = prepared.Remapped

	report = &Report{
		Input:          input,
		Output:         OutputPath(b.cfg.Output.Dir, input, ".mshl"),
		BuildID:        m.BuildID,
		Vertices:       mesh.VertexCount(),
		UniqueVertices: len(prepared.Positions) / 3,
		Triangles:      result.TriangleCount(),
		Clusters:       len(result.Clusters),
		Stats:          result.Stats,
	}

	if err := os.MkdirAll(filepath.Dir(report.Output), 0755); err != nil {
		return nil, fmt.Errorf("%s: %w", StageWrite, err)
	}
	if err := formats.WriteMSHLFile(report.Output, m, b.cfg.Output.ZstdLevel); err != nil {
		return nil, fmt.Errorf("%s: %w", StageWrite, err)
	}
	if b.cfg.Output.OBJ {
		report.OBJOutput = OutputPath(b.cfg.Output.Dir, input, ".meshlets.obj")
		if err := writeClustersOBJ(report.OBJOutput, prepared.Positions, result); err != nil {
			return nil, fmt.Errorf("%s: %w", StageWrite, err)
		}
	}
	metrics.ObserveStage(StageWrite, stage)

	report.Duration = time.Since(start)
	log.Info("mesh baked",
		zap.String("output", report.Output),
		zap.Int("triangles", report.Triangles),
		zap.Int("clusters", report.Clusters),
		zap.Int("spatial_fallbacks", report.Stats.SpatialFallbacks),
		zap.Duration("duration", report.Duration))

	return report, nil
}

// Run bakes every input with at most cfg.Batch.Workers meshes in flight.
// A failing mesh does not stop the others; all failures are returned joined.
// Reports are in input order, nil for failed inputs.
func (b *Baker) Run(ctx context.Context, inputs []string) ([]*Report, error) {
	reports := make([]*Report, len(inputs))
	errs := make([]error, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Batch.Workers)

	for i, input := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = fmt.Errorf("%s: %w", input, err)
				return nil
			}
			report, err := b.Bake(gctx, input)
			if err != nil {
				b.log.Error("bake failed", zap.String("file", input), zap.Error(err))
				errs[i] = fmt.Errorf("%s: %w", input, err)
				return nil
			}
			reports[i] = report
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return reports, err
	}
	return reports, errors.Join(errs...)
}

// OutputPath places input's base name with ext in dir, or next to input
// when dir is empty.
func OutputPath(dir, input, ext string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + ext
	if dir == "" {
		return filepath.Join(filepath.Dir(input), base)
	}
	return filepath.Join(dir, base)
}

func writeClustersOBJ(path string, positions []float32, r *meshlet.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := formats.WriteClustersOBJ(f, positions, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
