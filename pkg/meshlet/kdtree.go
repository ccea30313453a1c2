package meshlet

import (
	"fmt"
	stdmath "math"

	"github.com/Faultbox/midgard-meshlet/pkg/math"
)

type kdNodeKind uint8

const (
	kdBranch kdNodeKind = iota
	kdLeaf
)

// KDNode is either a branch splitting space on one axis or a leaf holding
// triangle ids. Nodes live in a flat arena: a branch's left child follows it
// directly and its right child follows the left subtree.
type KDNode struct {
	kind     kdNodeKind
	Axis     uint8    // Branch: split axis
	Split    float32  // Branch: split plane along Axis
	LeftSize uint32   // Branch: node count of the left subtree
	IDs      []uint32 // Leaf: member triangle ids
}

// IsLeaf reports whether n is a leaf.
func (n *KDNode) IsLeaf() bool {
	return n.kind == kdLeaf
}

// KDTree is a balanced binary partition of triangle centroids.
type KDTree struct {
	Nodes []KDNode
	ids   []uint32
	cones []Cone
}

type kdBuildTask struct {
	lo, hi int
	parent int // Index of the branch whose right child this is, or -1
}

// BuildKDTree partitions triangles by centroid. The build uses an explicit
// work stack and a node arena sized for the worst case.
func BuildKDTree(cones []Cone, leafSize int) (*KDTree, error) {
	if leafSize < 1 {
		return nil, fmt.Errorf("%w: leaf size %d", ErrInvalidOptions, leafSize)
	}

	ids := make([]uint32, len(cones))
	for i := range ids {
		ids[i] = uint32(i)
	}

	arena := 2*len(cones) + 1
	tree := &KDTree{
		Nodes: make([]KDNode, 0, arena),
		ids:   ids,
		cones: cones,
	}
	if len(cones) == 0 {
		return tree, nil
	}

	stack := []kdBuildTask{{lo: 0, hi: len(ids), parent: -1}}
	for len(stack) > 0 {
		task := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if len(tree.Nodes) == arena {
			return nil, fmt.Errorf("%w: %d nodes for %d triangles", ErrTreeCapacity, arena, len(cones))
		}

		node := len(tree.Nodes)
		if task.parent >= 0 {
			tree.Nodes[task.parent].LeftSize = uint32(node - task.parent - 1)
		}

		sub := ids[task.lo:task.hi]
		count := len(sub)
		if count <= leafSize {
			tree.Nodes = append(tree.Nodes, KDNode{kind: kdLeaf, IDs: sub})
			continue
		}

		axis, split := splitPlane(cones, sub)
		middle := partition(cones, sub, axis, split)

		half := float64(leafSize) / 2
		if float64(middle) <= half || float64(middle) >= float64(count)-half {
			tree.Nodes = append(tree.Nodes, KDNode{kind: kdLeaf, IDs: sub})
			continue
		}

		tree.Nodes = append(tree.Nodes, KDNode{kind: kdBranch, Axis: uint8(axis), Split: split})

		// Left is popped first so it lands directly after its parent.
		stack = append(stack,
			kdBuildTask{lo: task.lo + middle, hi: task.hi, parent: node},
			kdBuildTask{lo: task.lo, hi: task.lo + middle, parent: -1},
		)
	}

	return tree, nil
}

// splitPlane picks the axis of largest centroid variance and splits at the
// mean, using Welford's running update.
func splitPlane(cones []Cone, ids []uint32) (int, float32) {
	var mean, m2 [3]float64

	for i, id := range ids {
		inv := 1 / float64(i+1)
		c := cones[id].Centroid
		for axis := 0; axis < 3; axis++ {
			x := float64(c.Axis(axis))
			delta := x - mean[axis]
			mean[axis] += delta * inv
			m2[axis] += delta * (x - mean[axis])
		}
	}

	axis := 2
	if m2[0] >= m2[1] && m2[0] >= m2[2] {
		axis = 0
	} else if m2[1] >= m2[2] {
		axis = 1
	}
	return axis, float32(mean[axis])
}

// partition moves ids whose centroid lies below split to the front and
// returns how many there are.
func partition(cones []Cone, ids []uint32, axis int, split float32) int {
	m := 0
	for i := range ids {
		v := cones[ids[i]].Centroid.Axis(axis)
		ids[m], ids[i] = ids[i], ids[m]
		if v < split {
			m++
		}
	}
	return m
}

type kdVisit struct {
	node      int
	planeDist float32 // Negative for the near child, which is always visited
}

// Nearest returns the unclaimed triangle whose centroid is closest to p.
// ok is false when every triangle is claimed.
func (t *KDTree) Nearest(p math.Vec3, claimed []bool) (id uint32, ok bool) {
	if len(t.Nodes) == 0 {
		return 0, false
	}

	best := float32(stdmath.Inf(1))
	stack := []kdVisit{{node: 0, planeDist: -1}}

	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if v.planeDist >= 0 && v.planeDist >= best {
			continue
		}

		node := &t.Nodes[v.node]
		if node.IsLeaf() {
			for _, tri := range node.IDs {
				if claimed[tri] {
					continue
				}
				d := t.cones[tri].Centroid.Distance(p)
				if d < best {
					best = d
					id = tri
					ok = true
				}
			}
			continue
		}

		delta := p.Axis(int(node.Axis)) - node.Split
		left := v.node + 1
		right := v.node + 1 + int(node.LeftSize)
		near, far := left, right
		if delta > 0 {
			near, far = right, left
		}

		stack = append(stack,
			kdVisit{node: far, planeDist: abs32(delta)},
			kdVisit{node: near, planeDist: -1},
		)
	}

	return id, ok
}

// Depth returns the maximum root-to-leaf depth.
func (t *KDTree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	type entry struct{ node, depth int }
	deepest := 0
	stack := []entry{{0, 1}}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.depth > deepest {
			deepest = e.depth
		}
		n := &t.Nodes[e.node]
		if n.IsLeaf() {
			continue
		}
		stack = append(stack,
			entry{e.node + 1, e.depth + 1},
			entry{e.node + 1 + int(n.LeftSize), e.depth + 1},
		)
	}
	return deepest
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
