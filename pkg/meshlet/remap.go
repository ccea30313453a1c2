package meshlet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	stdmath "math"
)

// Unused marks vertices that no index references.
const Unused = ^uint32(0)

// RemapOptions controls vertex deduplication.
type RemapOptions struct {
	// Strict compares vertex bytes on hash match. Without it two vertices
	// whose hashes collide are merged even if their bytes differ.
	Strict bool
}

type remapEntry struct {
	canonical uint32
	vertex    uint32
}

// Remap builds a table mapping every vertex to a canonical id, merging
// vertices whose stride-sized byte spans hash equal. Canonical ids are
// assigned in first-reference order; unreferenced vertices map to Unused.
// It returns the table and the number of canonical vertices.
func Remap(indices []uint32, vertices []byte, stride int, opts RemapOptions) ([]uint32, int, error) {
	if stride <= 0 || len(vertices)%stride != 0 {
		return nil, 0, fmt.Errorf("%w: stride %d for %d bytes", ErrInvalidStride, stride, len(vertices))
	}
	vertexCount := len(vertices) / stride

	remap := make([]uint32, vertexCount)
	for i := range remap {
		remap[i] = Unused
	}

	seen := make(map[uint32][]remapEntry)
	var next uint32

	for i, v := range indices {
		if int(v) >= vertexCount {
			return nil, 0, fmt.Errorf("%w: index %d references vertex %d of %d", ErrMalformedIndices, i, v, vertexCount)
		}
		if remap[v] != Unused {
			continue
		}

		span := vertices[int(v)*stride : int(v+1)*stride]
		h := hashUpdate4(0, span)

		if canonical, ok := lookup(seen[h], span, vertices, stride, opts.Strict); ok {
			remap[v] = canonical
			continue
		}

		remap[v] = next
		seen[h] = append(seen[h], remapEntry{canonical: next, vertex: v})
		next++
	}

	return remap, int(next), nil
}

func lookup(entries []remapEntry, span, vertices []byte, stride int, strict bool) (uint32, bool) {
	if len(entries) == 0 {
		return 0, false
	}
	if !strict {
		return entries[0].canonical, true
	}
	for _, e := range entries {
		other := vertices[int(e.vertex)*stride : int(e.vertex+1)*stride]
		if bytes.Equal(span, other) {
			return e.canonical, true
		}
	}
	return 0, false
}

// hashUpdate4 is the MurmurHash2 mixing step over little-endian 4-byte words.
// Trailing bytes that do not fill a word are ignored.
func hashUpdate4(h uint32, key []byte) uint32 {
	const m = 0x5bd1e995
	const r = 24

	for len(key) >= 4 {
		k := binary.LittleEndian.Uint32(key)

		k *= m
		k ^= k >> r
		k *= m

		h *= m
		h ^= k

		key = key[4:]
	}
	return h
}

// RemapIndices rewrites an index buffer through a remap table.
func RemapIndices(indices, remap []uint32) []uint32 {
	out := make([]uint32, len(indices))
	for i, v := range indices {
		out[i] = remap[v]
	}
	return out
}

// RemapVertices compacts a vertex buffer into uniqueCount canonical vertices.
func RemapVertices(vertices []byte, stride int, remap []uint32, uniqueCount int) []byte {
	out := make([]byte, uniqueCount*stride)
	for v, canonical := range remap {
		if canonical == Unused {
			continue
		}
		copy(out[int(canonical)*stride:], vertices[v*stride:(v+1)*stride])
	}
	return out
}

// Float32Bytes encodes floats as little-endian bytes.
func Float32Bytes(values []float32) []byte {
	out := make([]byte, len(values)*4)
	for i, f := range values {
		binary.LittleEndian.PutUint32(out[i*4:], stdmath.Float32bits(f))
	}
	return out
}

// BytesFloat32 decodes little-endian bytes written by Float32Bytes.
func BytesFloat32(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = stdmath.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
