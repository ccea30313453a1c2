package meshlet

import (
	stdmath "math"
	"math/rand"
)

// cubeMesh returns a unit cube: 8 vertices, 12 triangles.
func cubeMesh() ([]float32, []uint32) {
	positions := []float32{
		0, 0, 0,
		1, 0, 0,
		1, 1, 0,
		0, 1, 0,
		0, 0, 1,
		1, 0, 1,
		1, 1, 1,
		0, 1, 1,
	}
	indices := []uint32{
		0, 2, 1, 0, 3, 2, // -z
		4, 5, 6, 4, 6, 7, // +z
		0, 1, 5, 0, 5, 4, // -y
		3, 6, 2, 3, 7, 6, // +y
		0, 4, 7, 0, 7, 3, // -x
		1, 2, 6, 1, 6, 5, // +x
	}
	return positions, indices
}

// stripMesh returns n triangles sharing edges along a two-row strip.
func stripMesh(n int) ([]float32, []uint32) {
	positions := make([]float32, 0, (n+2)*3)
	for i := 0; i < n+2; i++ {
		positions = append(positions, float32(i/2), float32(i%2), 0)
	}
	indices := make([]uint32, 0, n*3)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			indices = append(indices, uint32(i), uint32(i+1), uint32(i+2))
		} else {
			indices = append(indices, uint32(i+1), uint32(i), uint32(i+2))
		}
	}
	return positions, indices
}

// gridMesh returns a w*h quad grid with a gentle height field.
func gridMesh(w, h int) ([]float32, []uint32) {
	positions := make([]float32, 0, (w+1)*(h+1)*3)
	for y := 0; y <= h; y++ {
		for x := 0; x <= w; x++ {
			z := float32(stdmath.Sin(float64(x)*0.7) * stdmath.Cos(float64(y)*0.5))
			positions = append(positions, float32(x), float32(y), z)
		}
	}
	indices := make([]uint32, 0, w*h*6)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i0 := uint32(y*(w+1) + x)
			i1 := i0 + 1
			i2 := i0 + uint32(w+1)
			i3 := i2 + 1
			indices = append(indices, i0, i1, i3, i0, i3, i2)
		}
	}
	return positions, indices
}

// randomSoup returns n unconnected triangles with random positions.
func randomSoup(rng *rand.Rand, n int) ([]float32, []uint32) {
	positions := make([]float32, n*9)
	for i := range positions {
		positions[i] = rng.Float32()*10 - 5
	}
	indices := make([]uint32, n*3)
	for i := range indices {
		indices[i] = uint32(i)
	}
	return positions, indices
}
