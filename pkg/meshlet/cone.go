package meshlet

import "github.com/Faultbox/midgard-meshlet/pkg/math"

// ComputeTriangleCones returns the cone of every triangle together with the
// summed raw cross-product magnitude of the mesh. positions holds three floats
// per vertex; indices must already be validated against it.
//
// Area is the unnormalized cross-product magnitude (twice the geometric area).
// Degenerate triangles get a zero normal.
func ComputeTriangleCones(indices []uint32, positions []float32) ([]Cone, float32) {
	faceCount := len(indices) / 3
	cones := make([]Cone, faceCount)

	var meshArea float32
	for t := range cones {
		v0 := math.Vec3FromSlice(positions, int(indices[t*3+0])*3)
		v1 := math.Vec3FromSlice(positions, int(indices[t*3+1])*3)
		v2 := math.Vec3FromSlice(positions, int(indices[t*3+2])*3)

		n := v1.Sub(v0).Cross(v2.Sub(v0))
		area := n.Length()

		var invArea float32
		if area != 0 {
			invArea = 1 / area
		}
		meshArea += area

		cones[t] = Cone{
			Centroid: v0.Add(v1).Add(v2).Scale(1.0 / 3.0),
			Normal:   n.Scale(invArea),
			Area:     area,
		}
	}

	return cones, meshArea
}

// coneAccumulator sums triangle cones of the active cluster.
type coneAccumulator struct {
	centroid math.Vec3
	normal   math.Vec3
	area     float32
}

func (a *coneAccumulator) add(c Cone) {
	a.centroid = a.centroid.Add(c.Centroid)
	a.normal = a.normal.Add(c.Normal)
	a.area += c.Area
}

func (a *coneAccumulator) reset() {
	*a = coneAccumulator{}
}

// cone returns the mean centroid and normalized mean normal over
// triangleCount triangles. An empty cluster yields a zero cone.
func (a *coneAccumulator) cone(triangleCount uint32) Cone {
	var centerScale float32
	if triangleCount != 0 {
		centerScale = 1 / float32(triangleCount)
	}
	return Cone{
		Centroid: a.centroid.Scale(centerScale),
		Normal:   a.normal.Normalize(),
		Area:     a.area,
	}
}
