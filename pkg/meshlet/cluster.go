package meshlet

import stdmath "math"

// unusedSlot marks a vertex that is not part of the active cluster.
const unusedSlot = ^uint32(0)

// growthContext holds all mutable state of one Build call.
type growthContext struct {
	opts           Options
	indices        []uint32
	adjacency      *Adjacency
	cones          []Cone
	tree           *KDTree
	expectedRadius float32

	used    []uint32 // Local slot in the active cluster, or unusedSlot
	live    []uint32 // Unclaimed incident triangles per vertex
	claimed []bool

	active Cluster
	acc    coneAccumulator
	result *Result
}

func newGrowthContext(indices []uint32, vertexCount int, adj *Adjacency, cones []Cone, meshArea float32, tree *KDTree, opts Options) *growthContext {
	used := make([]uint32, vertexCount)
	for i := range used {
		used[i] = unusedSlot
	}
	live := make([]uint32, vertexCount)
	copy(live, adj.Counts)

	return &growthContext{
		opts:           opts,
		indices:        indices,
		adjacency:      adj,
		cones:          cones,
		tree:           tree,
		expectedRadius: expectedClusterRadius(meshArea, len(cones), opts.MaxTriangles),
		used:           used,
		live:           live,
		claimed:        make([]bool, len(cones)),
		result: &Result{
			Vertices:  make([]uint32, 0, len(indices)),
			Triangles: make([]uint32, 0, len(indices)),
			MeshArea:  meshArea,
		},
	}
}

// expectedClusterRadius assumes each cluster is roughly a square patch of
// maxTriangles average-sized triangles.
func expectedClusterRadius(meshArea float32, faceCount, maxTriangles int) float32 {
	if faceCount == 0 || meshArea == 0 {
		return 1
	}
	triangleAreaAvg := float64(meshArea) / float64(faceCount) * 0.5
	return float32(stdmath.Sqrt(triangleAreaAvg*float64(maxTriangles)) * 0.5)
}

func (g *growthContext) triangle(t uint32) (a, b, c uint32) {
	return g.indices[t*3], g.indices[t*3+1], g.indices[t*3+2]
}

func (g *growthContext) unusedCount(a, b, c uint32) int {
	n := 0
	if g.used[a] == unusedSlot {
		n++
	}
	if g.used[b] == unusedSlot {
		n++
	}
	if g.used[c] == unusedSlot {
		n++
	}
	return n
}

// appendTriangle adds a triangle to the active cluster, finalizing the
// cluster first when the triangle would not fit. It reports whether a
// cluster was finalized.
func (g *growthContext) appendTriangle(a, b, c uint32) bool {
	extra := g.unusedCount(a, b, c)

	finalized := false
	if int(g.active.VertexCount)+extra > g.opts.MaxVertices || int(g.active.TriangleCount) >= g.opts.MaxTriangles {
		g.finalize()
		finalized = true
	}

	la := g.slot(a)
	lb := g.slot(b)
	lc := g.slot(c)

	g.result.Triangles = append(g.result.Triangles, la, lb, lc)
	g.active.TriangleCount++

	return finalized
}

// slot returns the local index of v, assigning the next one if needed.
func (g *growthContext) slot(v uint32) uint32 {
	if g.used[v] == unusedSlot {
		g.used[v] = g.active.VertexCount
		g.result.Vertices = append(g.result.Vertices, v)
		g.active.VertexCount++
	}
	return g.used[v]
}

// finalize freezes the active cluster and its cone, releases its vertex
// slots, and starts an empty cluster right after it in the shared tables.
func (g *growthContext) finalize() {
	g.result.Clusters = append(g.result.Clusters, g.active)
	g.result.Cones = append(g.result.Cones, g.acc.cone(g.active.TriangleCount))

	for _, v := range g.result.Vertices[g.active.VertexOffset : g.active.VertexOffset+g.active.VertexCount] {
		g.used[v] = unusedSlot
	}

	g.active = Cluster{
		VertexOffset:   g.active.VertexOffset + g.active.VertexCount,
		TriangleOffset: g.active.TriangleOffset + g.active.TriangleCount*3,
	}
	g.acc.reset()
}
