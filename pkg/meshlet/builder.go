package meshlet

import (
	"fmt"
	stdmath "math"
)

// Build partitions the mesh into clusters of at most opts.MaxVertices
// vertices and opts.MaxTriangles triangles. positions holds three floats per
// vertex. The call is deterministic and single-threaded.
func Build(positions []float32, indices []uint32, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(positions)%3 != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of 3", ErrMalformedPositions, len(positions))
	}
	vertexCount := len(positions) / 3

	adj, err := BuildAdjacency(indices, vertexCount)
	if err != nil {
		return nil, err
	}

	cones, meshArea := ComputeTriangleCones(indices, positions)

	tree, err := BuildKDTree(cones, opts.LeafSize)
	if err != nil {
		return nil, err
	}

	g := newGrowthContext(indices, vertexCount, adj, cones, meshArea, tree, opts)
	for _, c := range cones {
		if c.Area == 0 {
			g.result.Stats.DegenerateTris++
		}
	}

	g.grow()
	return g.result, nil
}

// grow runs the greedy loop until every triangle is claimed.
func (g *growthContext) grow() {
	for {
		cone := g.acc.cone(g.active.TriangleCount)

		best, extra, found := g.bestNeighbor(&cone, g.opts.ConeWeight)

		// The fill-only retry is a preference, not a guarantee: appendTriangle
		// still finalizes when the pick does not fit.
		if found && (int(g.active.VertexCount)+extra > g.opts.MaxVertices || int(g.active.TriangleCount) >= g.opts.MaxTriangles) {
			g.result.Stats.FillRetries++
			best, _, found = g.bestNeighbor(nil, 0)
		}

		if found {
			g.result.Stats.LocalPicks++
		} else {
			best, found = g.tree.Nearest(cone.Centroid, g.claimed)
			if !found {
				break
			}
			g.result.Stats.SpatialFallbacks++
		}

		g.commit(best)
	}

	if g.active.TriangleCount > 0 {
		g.finalize()
	}
}

// commit claims triangle t for the active cluster.
func (g *growthContext) commit(t uint32) {
	a, b, c := g.triangle(t)

	g.appendTriangle(a, b, c)

	g.live[a]--
	g.live[b]--
	g.live[c]--

	g.adjacency.Remove(a, t)
	g.adjacency.Remove(b, t)
	g.adjacency.Remove(c, t)

	g.acc.add(g.cones[t])
	g.claimed[t] = true
}

// bestNeighbor scans the live triangles around the active cluster's
// vertices. With a nil cone, candidates are ranked by how close their
// vertices are to running out of triangles.
func (g *growthContext) bestNeighbor(cone *Cone, coneWeight float32) (best uint32, bestExtra int, found bool) {
	bestExtra = 5
	bestScore := float32(stdmath.Inf(1))

	vertices := g.result.Vertices[g.active.VertexOffset : g.active.VertexOffset+g.active.VertexCount]
	for _, v := range vertices {
		for _, t := range g.adjacency.Neighbors(v) {
			a, b, c := g.triangle(t)

			extra := g.unusedCount(a, b, c)
			if extra != 0 {
				// A vertex on its last triangle would be orphaned otherwise.
				if g.live[a] == 1 || g.live[b] == 1 || g.live[c] == 1 {
					extra = 0
				}
				extra++
			}

			if extra > bestExtra {
				continue
			}

			var score float32
			if cone != nil {
				tc := &g.cones[t]
				distanceSq := tc.Centroid.DistanceSq(cone.Centroid)
				spread := tc.Normal.Dot(cone.Normal)
				score = clusterScore(distanceSq, spread, coneWeight, g.expectedRadius)
			} else {
				score = float32(g.live[a]+g.live[b]+g.live[c]) - 3
			}

			// Either criterion wins on its own.
			if extra < bestExtra || score < bestScore {
				best = t
				bestExtra = extra
				bestScore = score
				found = true
			}
		}
	}

	return best, bestExtra, found
}

// clusterScore combines distance to the cluster centroid with normal
// deviation. Lower is better.
func clusterScore(distanceSq, spread, coneWeight, expectedRadius float32) float32 {
	cone := 1 - spread*coneWeight
	if cone < 1e-3 {
		cone = 1e-3
	}
	distance := float32(stdmath.Sqrt(float64(distanceSq)))
	return (1 + distance/expectedRadius*(1-coneWeight)) * cone
}
