// Package formats provides readers and writers for mesh and meshlet files.
// MSHL (meshlet) container holding a clustered mesh ready for GPU upload.
package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/Faultbox/midgard-meshlet/pkg/meshlet"
)

// MSHL format errors.
var (
	ErrInvalidMSHLMagic       = errors.New("invalid MSHL magic: expected 'MSHL'")
	ErrUnsupportedMSHLVersion = errors.New("unsupported MSHL version")
	ErrTruncatedMSHLData      = errors.New("truncated MSHL data")
)

const (
	mshlMagic      = "MSHL"
	mshlHeaderSize = 4 + 2 + 1 + 1 + 16

	mshlFlagZstd     = 1 << 0
	mshlFlagRemapped = 1 << 1

	clusterSize = 4 * 4
	coneSize    = 7 * 4
)

// Current MSHL version written by EncodeMSHL.
const (
	MSHLVersionMajor = 1
	MSHLVersionMinor = 0
)

// MSHLVersion represents the MSHL file version.
type MSHLVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v MSHLVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// MSHL is a clustered mesh plus the parameters it was built with.
type MSHL struct {
	Version    MSHLVersion
	BuildID    uuid.UUID
	Compressed bool
	Remapped   bool // Vertex ids refer to the deduplicated vertex buffer

	MaxVertices  uint32
	MaxTriangles uint32
	ConeWeight   float32

	Result    *meshlet.Result
	Positions []float32 // Three floats per vertex, indexed by Result.Vertices
}

// NewMSHL wraps a build result and its vertex positions with a fresh build id.
func NewMSHL(r *meshlet.Result, positions []float32, opts meshlet.Options) *MSHL {
	return &MSHL{
		Version:      MSHLVersion{Major: MSHLVersionMajor, Minor: MSHLVersionMinor},
		BuildID:      uuid.New(),
		MaxVertices:  uint32(opts.MaxVertices),
		MaxTriangles: uint32(opts.MaxTriangles),
		ConeWeight:   opts.ConeWeight,
		Result:       r,
		Positions:    positions,
	}
}

// mshlCounts precedes the tables in the payload.
type mshlCounts struct {
	MaxVertices   uint32
	MaxTriangles  uint32
	ConeWeight    float32
	MeshArea      float32
	Clusters      uint32
	VertexTable   uint32
	TriangleTable uint32
	Positions     uint32
}

// EncodeMSHL writes m to w. When m.Compressed is set the payload is zstd
// compressed at the given level (1-22, zstd scale).
func EncodeMSHL(w io.Writer, m *MSHL, level int) error {
	r := m.Result

	var payload bytes.Buffer
	counts := mshlCounts{
		MaxVertices:   m.MaxVertices,
		MaxTriangles:  m.MaxTriangles,
		ConeWeight:    m.ConeWeight,
		MeshArea:      r.MeshArea,
		Clusters:      uint32(len(r.Clusters)),
		VertexTable:   uint32(len(r.Vertices)),
		TriangleTable: uint32(len(r.Triangles)),
		Positions:     uint32(len(m.Positions)),
	}
	for _, v := range []any{counts, r.Clusters, r.Cones, r.Vertices, r.Triangles, m.Positions} {
		if err := binary.Write(&payload, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("encoding MSHL payload: %w", err)
		}
	}

	var flags uint8
	if m.Remapped {
		flags |= mshlFlagRemapped
	}
	body := payload.Bytes()
	if m.Compressed {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return fmt.Errorf("creating zstd encoder: %w", err)
		}
		body = enc.EncodeAll(body, nil)
		enc.Close()
		flags |= mshlFlagZstd
	}

	header := make([]byte, 0, mshlHeaderSize)
	header = append(header, mshlMagic...)
	header = append(header, m.Version.Major, m.Version.Minor, flags, 0)
	header = append(header, m.BuildID[:]...)

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// ParseMSHL parses an MSHL file from raw bytes.
func ParseMSHL(data []byte) (*MSHL, error) {
	if len(data) < mshlHeaderSize {
		return nil, ErrTruncatedMSHLData
	}
	if string(data[0:4]) != mshlMagic {
		return nil, ErrInvalidMSHLMagic
	}

	m := &MSHL{
		Version: MSHLVersion{Major: data[4], Minor: data[5]},
	}
	if m.Version.Major != MSHLVersionMajor {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMSHLVersion, m.Version)
	}
	m.Compressed = data[6]&mshlFlagZstd != 0
	m.Remapped = data[6]&mshlFlagRemapped != 0
	copy(m.BuildID[:], data[8:24])

	body := data[mshlHeaderSize:]
	if m.Compressed {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer dec.Close()
		body, err = dec.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("decompressing MSHL payload: %w", err)
		}
	}

	r := bytes.NewReader(body)

	var counts mshlCounts
	if err := binary.Read(r, binary.LittleEndian, &counts); err != nil {
		return nil, fmt.Errorf("%w: reading counts", ErrTruncatedMSHLData)
	}

	need := int64(counts.Clusters)*(clusterSize+coneSize) +
		int64(counts.VertexTable)*4 + int64(counts.TriangleTable)*4 + int64(counts.Positions)*4
	if need > int64(r.Len()) {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncatedMSHLData, need, r.Len())
	}

	m.MaxVertices = counts.MaxVertices
	m.MaxTriangles = counts.MaxTriangles
	m.ConeWeight = counts.ConeWeight

	res := &meshlet.Result{
		Clusters:  make([]meshlet.Cluster, counts.Clusters),
		Cones:     make([]meshlet.Cone, counts.Clusters),
		Vertices:  make([]uint32, counts.VertexTable),
		Triangles: make([]uint32, counts.TriangleTable),
		MeshArea:  counts.MeshArea,
	}
	m.Positions = make([]float32, counts.Positions)
	for _, v := range []any{res.Clusters, res.Cones, res.Vertices, res.Triangles, m.Positions} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("%w: reading tables", ErrTruncatedMSHLData)
		}
	}
	m.Result = res

	return m, nil
}

// Options returns the clustering limits recorded in the file.
func (m *MSHL) Options() meshlet.Options {
	opts := meshlet.DefaultOptions()
	opts.MaxVertices = int(m.MaxVertices)
	opts.MaxTriangles = int(m.MaxTriangles)
	opts.ConeWeight = m.ConeWeight
	return opts
}

// OpenMSHL maps an MSHL file read-only and parses it.
func OpenMSHL(path string) (*MSHL, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening MSHL file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, ErrTruncatedMSHLData
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mapping MSHL file: %w", err)
	}
	defer data.Unmap()

	return ParseMSHL(data)
}

// WriteMSHLFile encodes m to path.
func WriteMSHLFile(path string, m *MSHL, level int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeMSHL(f, m, level); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
