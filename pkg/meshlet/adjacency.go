package meshlet

import "fmt"

// Adjacency maps every vertex to the triangles that reference it, in CSR
// layout. The live list of vertex v is Data[Offsets[v] : Offsets[v]+Counts[v]].
type Adjacency struct {
	Counts  []uint32
	Offsets []uint32
	Data    []uint32
}

// BuildAdjacency builds the vertex-to-triangle index for an indexed mesh.
func BuildAdjacency(indices []uint32, vertexCount int) (*Adjacency, error) {
	faceCount := len(indices) / 3

	adj := &Adjacency{
		Counts:  make([]uint32, vertexCount),
		Offsets: make([]uint32, vertexCount),
		Data:    make([]uint32, len(indices)),
	}

	for i, v := range indices {
		if int(v) >= vertexCount {
			return nil, fmt.Errorf("%w: index %d references vertex %d of %d", ErrMalformedIndices, i, v, vertexCount)
		}
		adj.Counts[v]++
	}

	var offset uint32
	for v := range adj.Offsets {
		adj.Offsets[v] = offset
		offset += adj.Counts[v]
	}

	// Scatter triangle ids using Offsets as a write cursor.
	var scattered int
	for t := 0; t < faceCount; t++ {
		for k := 0; k < 3; k++ {
			v := indices[t*3+k]
			adj.Data[adj.Offsets[v]] = uint32(t)
			adj.Offsets[v]++
			scattered++
		}
	}

	if scattered != len(indices) {
		return nil, fmt.Errorf("%w: scattered %d of %d indices", ErrMalformedIndices, scattered, len(indices))
	}

	// Rewind the cursor.
	for v := range adj.Offsets {
		adj.Offsets[v] -= adj.Counts[v]
	}

	return adj, nil
}

// Neighbors returns the live triangle list of v. The slice aliases Data.
func (a *Adjacency) Neighbors(v uint32) []uint32 {
	start := a.Offsets[v]
	return a.Data[start : start+a.Counts[v]]
}

// Remove drops one occurrence of triangle t from the live list of v by
// swapping it with the last live entry. It reports whether t was found.
func (a *Adjacency) Remove(v, t uint32) bool {
	list := a.Neighbors(v)
	for i, tri := range list {
		if tri == t {
			last := len(list) - 1
			list[i] = list[last]
			a.Counts[v]--
			return true
		}
	}
	return false
}
