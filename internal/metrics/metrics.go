// Package metrics exposes prometheus collectors describing meshlet builds.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Faultbox/midgard-meshlet/pkg/meshlet"
)

var (
	// MeshesTotal counts processed meshes by outcome
	MeshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshlet_meshes_total",
			Help: "Total number of meshes processed",
		},
		[]string{"status"},
	)

	// TrianglesTotal counts input triangles that were clustered
	TrianglesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meshlet_triangles_total",
			Help: "Total triangles assigned to meshlets",
		},
	)

	// ClustersTotal counts emitted meshlets
	ClustersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meshlet_clusters_total",
			Help: "Total meshlets emitted",
		},
	)

	// PicksTotal counts triangle selections by growth strategy
	PicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshlet_picks_total",
			Help: "Triangle selections by strategy (local, fill, spatial)",
		},
		[]string{"strategy"},
	)

	// DegenerateTrianglesTotal counts zero-area input triangles
	DegenerateTrianglesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meshlet_degenerate_triangles_total",
			Help: "Zero-area triangles seen in input meshes",
		},
	)

	// VerticesMergedTotal counts vertices removed by deduplication
	VerticesMergedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meshlet_vertices_merged_total",
			Help: "Vertices merged away by remapping",
		},
	)

	// StageDurationSeconds measures each pipeline stage
	StageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meshlet_stage_duration_seconds",
			Help:    "Latency of pipeline stages",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"stage"},
	)

	// TriangleFillRatio tracks triangles per meshlet relative to the cap
	TriangleFillRatio = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meshlet_triangle_fill_ratio",
			Help:    "Meshlet triangle count divided by max triangles",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)

	// InFlight tracks meshes currently being processed
	InFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meshlet_meshes_in_flight",
			Help: "Meshes currently being processed",
		},
	)
)

// ObserveBuild records the counters for one successful build.
func ObserveBuild(r *meshlet.Result, opts meshlet.Options) {
	TrianglesTotal.Add(float64(r.TriangleCount()))
	ClustersTotal.Add(float64(len(r.Clusters)))
	PicksTotal.WithLabelValues("local").Add(float64(r.Stats.LocalPicks))
	PicksTotal.WithLabelValues("fill").Add(float64(r.Stats.FillRetries))
	PicksTotal.WithLabelValues("spatial").Add(float64(r.Stats.SpatialFallbacks))
	DegenerateTrianglesTotal.Add(float64(r.Stats.DegenerateTris))

	if opts.MaxTriangles > 0 {
		for _, c := range r.Clusters {
			TriangleFillRatio.Observe(float64(c.TriangleCount) / float64(opts.MaxTriangles))
		}
	}
}

// ObserveStage records how long a stage took since start.
func ObserveStage(stage string, start time.Time) {
	StageDurationSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
