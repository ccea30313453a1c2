package meshlet

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// VerifyError describes the first inconsistency found by Verify.
type VerifyError struct {
	Cluster int // -1 when the problem is not tied to one cluster
	Reason  string
}

func (e *VerifyError) Error() string {
	if e.Cluster < 0 {
		return "meshlet verify: " + e.Reason
	}
	return fmt.Sprintf("meshlet verify: cluster %d: %s", e.Cluster, e.Reason)
}

func verifyErr(cluster int, format string, args ...any) error {
	return &VerifyError{Cluster: cluster, Reason: fmt.Sprintf(format, args...)}
}

// Verify checks that r is a complete partition of the triangles in indices:
// every input triangle appears in exactly one cluster, clusters respect the
// capacity limits, and local indices stay inside their vertex window.
func Verify(r *Result, indices []uint32, opts Options) error {
	faceCount := len(indices) / 3

	// Identical triangles may occur more than once, so keep all ids per triple.
	byTriple := make(map[[3]uint32][]uint32, faceCount)
	for t := 0; t < faceCount; t++ {
		key := [3]uint32{indices[t*3], indices[t*3+1], indices[t*3+2]}
		byTriple[key] = append(byTriple[key], uint32(t))
	}

	if len(r.Cones) != len(r.Clusters) {
		return verifyErr(-1, "%d cones for %d clusters", len(r.Cones), len(r.Clusters))
	}

	covered := roaring.New()
	for i, c := range r.Clusters {
		if int(c.VertexCount) > opts.MaxVertices {
			return verifyErr(i, "%d vertices exceeds limit %d", c.VertexCount, opts.MaxVertices)
		}
		if int(c.TriangleCount) > opts.MaxTriangles {
			return verifyErr(i, "%d triangles exceeds limit %d", c.TriangleCount, opts.MaxTriangles)
		}
		if uint64(c.VertexOffset)+uint64(c.VertexCount) > uint64(len(r.Vertices)) ||
			uint64(c.TriangleOffset)+uint64(c.TriangleCount)*3 > uint64(len(r.Triangles)) {
			return verifyErr(i, "window outside shared tables")
		}

		vertices := r.ClusterVertices(i)
		local := roaring.New()
		for _, v := range vertices {
			if !local.CheckedAdd(v) {
				return verifyErr(i, "vertex %d stored twice", v)
			}
		}

		tris := r.ClusterTriangles(i)
		for k := 0; k < len(tris); k += 3 {
			var key [3]uint32
			for j := 0; j < 3; j++ {
				if tris[k+j] >= c.VertexCount {
					return verifyErr(i, "local index %d out of %d", tris[k+j], c.VertexCount)
				}
				key[j] = vertices[tris[k+j]]
			}

			ids := byTriple[key]
			if len(ids) == 0 {
				return verifyErr(i, "triangle %v not in input or emitted twice", key)
			}
			covered.Add(ids[0])
			byTriple[key] = ids[1:]
		}
	}

	if got := covered.GetCardinality(); got != uint64(faceCount) {
		return verifyErr(-1, "%d of %d triangles covered", got, faceCount)
	}
	return nil
}
