package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/midgard-meshlet/pkg/meshlet"
)

func TestMetricsInitialization(t *testing.T) {
	assert.NotNil(t, MeshesTotal)
	assert.NotNil(t, TrianglesTotal)
	assert.NotNil(t, ClustersTotal)
	assert.NotNil(t, PicksTotal)
	assert.NotNil(t, DegenerateTrianglesTotal)
	assert.NotNil(t, VerticesMergedTotal)
	assert.NotNil(t, StageDurationSeconds)
	assert.NotNil(t, TriangleFillRatio)
	assert.NotNil(t, InFlight)
}

func TestObserveBuild(t *testing.T) {
	r := &meshlet.Result{
		Clusters: []meshlet.Cluster{
			{TriangleCount: 4},
			{TriangleCount: 2},
		},
		Triangles: make([]uint32, 6*3),
		Stats: meshlet.Stats{
			LocalPicks:       3,
			FillRetries:      1,
			SpatialFallbacks: 2,
			DegenerateTris:   1,
		},
	}
	opts := meshlet.DefaultOptions()
	opts.MaxTriangles = 4

	triangles := testutil.ToFloat64(TrianglesTotal)
	clusters := testutil.ToFloat64(ClustersTotal)
	local := testutil.ToFloat64(PicksTotal.WithLabelValues("local"))
	spatial := testutil.ToFloat64(PicksTotal.WithLabelValues("spatial"))
	degenerate := testutil.ToFloat64(DegenerateTrianglesTotal)

	ObserveBuild(r, opts)

	assert.Equal(t, triangles+6, testutil.ToFloat64(TrianglesTotal))
	assert.Equal(t, clusters+2, testutil.ToFloat64(ClustersTotal))
	assert.Equal(t, local+3, testutil.ToFloat64(PicksTotal.WithLabelValues("local")))
	assert.Equal(t, spatial+2, testutil.ToFloat64(PicksTotal.WithLabelValues("spatial")))
	assert.Equal(t, degenerate+1, testutil.ToFloat64(DegenerateTrianglesTotal))
	assert.GreaterOrEqual(t, testutil.CollectAndCount(TriangleFillRatio), 1)
}

func TestObserveStage(t *testing.T) {
	ObserveStage("build", time.Now().Add(-10*time.Millisecond))
	assert.GreaterOrEqual(t, testutil.CollectAndCount(StageDurationSeconds), 1)
}

func TestServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	MeshesTotal.WithLabelValues("ok").Inc()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr) }()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return false
		}
		body = string(data)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	assert.True(t, strings.Contains(body, "meshlet_meshes_total"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
