package meshlet

// Extract materializes cluster i as a packed position buffer and a local
// index buffer, ready for upload as a standalone mesh.
func (r *Result) Extract(i int, positions []float32) ([]float32, []uint32) {
	vertices := r.ClusterVertices(i)

	packed := make([]float32, 0, len(vertices)*3)
	for _, v := range vertices {
		packed = append(packed, positions[v*3], positions[v*3+1], positions[v*3+2])
	}

	local := make([]uint32, len(r.ClusterTriangles(i)))
	copy(local, r.ClusterTriangles(i))
	return packed, local
}
