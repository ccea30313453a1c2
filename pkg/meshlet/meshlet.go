// Package meshlet partitions triangle meshes into bounded-size clusters
// (meshlets) for GPU cluster culling and indirect drawing.
package meshlet

import (
	"errors"
	"fmt"

	"github.com/Faultbox/midgard-meshlet/pkg/math"
)

// Meshlet errors.
var (
	ErrMalformedIndices   = errors.New("malformed index buffer")
	ErrMalformedPositions = errors.New("malformed position buffer")
	ErrInvalidOptions     = errors.New("invalid meshlet options")
	ErrTreeCapacity       = errors.New("kd-tree node arena exhausted")
	ErrInvalidStride      = errors.New("invalid vertex stride")
)

// Default clustering parameters.
const (
	DefaultMaxVertices  = 64
	DefaultMaxTriangles = 124
	DefaultLeafSize     = 8
)

// Options controls cluster growth.
type Options struct {
	MaxVertices  int     // Cap on distinct vertices per cluster (>= 3)
	MaxTriangles int     // Cap on triangles per cluster (>= 1)
	ConeWeight   float32 // 0 = fill-driven growth, 1 = cone-quality growth
	LeafSize     int     // Max triangles stored in a kd-tree leaf
}

// DefaultOptions returns the standard 64 vertex / 124 triangle layout.
func DefaultOptions() Options {
	return Options{
		MaxVertices:  DefaultMaxVertices,
		MaxTriangles: DefaultMaxTriangles,
		ConeWeight:   0,
		LeafSize:     DefaultLeafSize,
	}
}

// Validate checks that the options describe a buildable cluster layout.
func (o Options) Validate() error {
	if o.MaxVertices < 3 {
		return fmt.Errorf("%w: max vertices %d < 3", ErrInvalidOptions, o.MaxVertices)
	}
	if o.MaxTriangles < 1 {
		return fmt.Errorf("%w: max triangles %d < 1", ErrInvalidOptions, o.MaxTriangles)
	}
	if o.ConeWeight < 0 || o.ConeWeight > 1 {
		return fmt.Errorf("%w: cone weight %v outside [0,1]", ErrInvalidOptions, o.ConeWeight)
	}
	if o.LeafSize < 1 {
		return fmt.Errorf("%w: leaf size %d < 1", ErrInvalidOptions, o.LeafSize)
	}
	return nil
}

// Cone is the centroid / normal / area aggregate of a triangle or cluster.
type Cone struct {
	Centroid math.Vec3
	Normal   math.Vec3
	Area     float32
}

// Cluster is a window into the shared vertex and triangle tables of a Result.
// TriangleOffset indexes Result.Triangles directly (three entries per triangle).
type Cluster struct {
	VertexOffset   uint32
	TriangleOffset uint32
	VertexCount    uint32
	TriangleCount  uint32
}

// Stats records how each triangle was selected during growth.
type Stats struct {
	LocalPicks       int // Chosen from the active cluster's neighbourhood
	FillRetries      int // Local searches redone without cone scoring due to capacity
	SpatialFallbacks int // Chosen by the kd-tree nearest-unclaimed query
	DegenerateTris   int // Zero-area triangles seen by the cone pass
}

// Result is the output of Build.
type Result struct {
	Clusters  []Cluster
	Vertices  []uint32 // Global vertex id per local slot
	Triangles []uint32 // Three local indices per triangle
	Cones     []Cone   // One per cluster, in finalization order
	MeshArea  float32
	Stats     Stats
}

// TriangleCount returns the number of triangles across all clusters.
func (r *Result) TriangleCount() int {
	n := 0
	for _, c := range r.Clusters {
		n += int(c.TriangleCount)
	}
	return n
}

// ClusterVertices returns the global vertex ids referenced by cluster i.
func (r *Result) ClusterVertices(i int) []uint32 {
	c := r.Clusters[i]
	return r.Vertices[c.VertexOffset : c.VertexOffset+c.VertexCount]
}

// ClusterTriangles returns the local index triples of cluster i.
func (r *Result) ClusterTriangles(i int) []uint32 {
	c := r.Clusters[i]
	return r.Triangles[c.TriangleOffset : c.TriangleOffset+c.TriangleCount*3]
}
