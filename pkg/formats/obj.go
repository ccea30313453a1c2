// Package formats provides readers and writers for mesh and meshlet files.
// Wavefront OBJ reader and cluster exporter.
package formats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/midgard-meshlet/pkg/meshlet"
)

// OBJ format errors.
var (
	ErrInvalidOBJ = errors.New("invalid OBJ data")
)

// Mesh is an indexed triangle mesh with three floats per position.
type Mesh struct {
	Positions []float32
	Indices   []uint32
}

// VertexCount returns the number of positions.
func (m *Mesh) VertexCount() int {
	return len(m.Positions) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// ParseOBJ reads vertex positions and faces from OBJ text. Polygons are
// fan-triangulated; texture and normal references are ignored.
func ParseOBJ(r io.Reader) (*Mesh, error) {
	mesh := &Mesh{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	var face []uint32
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: vertex needs 3 coordinates", ErrInvalidOBJ, line)
			}
			for _, f := range fields[1:4] {
				v, err := strconv.ParseFloat(f, 32)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidOBJ, line, err)
				}
				mesh.Positions = append(mesh.Positions, float32(v))
			}

		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: face needs 3 vertices", ErrInvalidOBJ, line)
			}
			face = face[:0]
			for _, f := range fields[1:] {
				idx, err := parseOBJIndex(f, mesh.VertexCount())
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidOBJ, line, err)
				}
				face = append(face, idx)
			}
			for i := 1; i+1 < len(face); i++ {
				mesh.Indices = append(mesh.Indices, face[0], face[i], face[i+1])
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading OBJ: %w", err)
	}

	return mesh, nil
}

// parseOBJIndex resolves the position part of a "v/vt/vn" reference.
// Negative indices count back from the most recent vertex.
func parseOBJIndex(ref string, vertexCount int) (uint32, error) {
	if slash := strings.IndexByte(ref, '/'); slash >= 0 {
		ref = ref[:slash]
	}
	n, err := strconv.Atoi(ref)
	if err != nil {
		return 0, fmt.Errorf("bad vertex reference %q", ref)
	}

	switch {
	case n > 0 && n <= vertexCount:
		return uint32(n - 1), nil
	case n < 0 && -n <= vertexCount:
		return uint32(vertexCount + n), nil
	default:
		return 0, fmt.Errorf("vertex reference %d out of range (%d vertices)", n, vertexCount)
	}
}

// ParseOBJFile parses an OBJ file from disk.
func ParseOBJFile(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening OBJ file: %w", err)
	}
	defer f.Close()
	return ParseOBJ(f)
}

// WriteClustersOBJ writes the mesh with one group per cluster so meshlets
// can be inspected in any OBJ viewer.
func WriteClustersOBJ(w io.Writer, positions []float32, r *meshlet.Result) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# %d meshlets\n", len(r.Clusters))
	for i := 0; i+2 < len(positions); i += 3 {
		fmt.Fprintf(bw, "v %g %g %g\n", positions[i], positions[i+1], positions[i+2])
	}

	for i := range r.Clusters {
		vertices := r.ClusterVertices(i)
		tris := r.ClusterTriangles(i)

		fmt.Fprintf(bw, "g meshlet_%d\n", i)
		for k := 0; k < len(tris); k += 3 {
			fmt.Fprintf(bw, "f %d %d %d\n",
				vertices[tris[k]]+1, vertices[tris[k+1]]+1, vertices[tris[k+2]]+1)
		}
	}

	return bw.Flush()
}
