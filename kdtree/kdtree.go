// Package kdtree is a static 3D k-d tree answering radius queries over a
// point cloud.
package kdtree

import (
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultLeafSize bounds the number of points stored per leaf.
const DefaultLeafSize = 1000

// Node is one tree node. Inner nodes split their bounds in two along the
// widest axis; leaves reference a run of Tree.indices.
type Node struct {
	Min       mgl64.Vec3
	Max       mgl64.Vec3
	Left      int32
	Right     int32
	LeafFirst int32
	LeafCount int32
}

func (n *Node) leaf() bool { return n.LeafCount > 0 || n.Left < 0 }

// Tree indexes a fixed set of points. It is immutable after Build and safe
// for concurrent queries.
type Tree struct {
	points  []mgl64.Vec3
	indices []int32
	nodes   []Node
	leaf    int
}

// Build indexes positions, three floats per point. leafSize <= 0 selects
// DefaultLeafSize.
func Build(positions []float32, leafSize int) *Tree {
	points := make([]mgl64.Vec3, len(positions)/3)
	for i := range points {
		points[i] = mgl64.Vec3{
			float64(positions[3*i]),
			float64(positions[3*i+1]),
			float64(positions[3*i+2]),
		}
	}
	return BuildVec3(points, leafSize)
}

// BuildVec3 indexes points without copying them.
func BuildVec3(points []mgl64.Vec3, leafSize int) *Tree {
	if leafSize <= 0 {
		leafSize = DefaultLeafSize
	}
	t := &Tree{
		points:  points,
		indices: make([]int32, len(points)),
		leaf:    leafSize,
	}
	for i := range t.indices {
		t.indices[i] = int32(i)
	}
	if len(points) > 0 {
		t.recursiveBuild(0, len(points))
	}
	return t
}

// Len returns the number of indexed points.
func (t *Tree) Len() int { return len(t.points) }

// Nodes returns the node count.
func (t *Tree) Nodes() int { return len(t.nodes) }

func (t *Tree) recursiveBuild(first, last int) int32 {
	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, Node{Left: -1, Right: -1, LeafFirst: -1})

	// Compute bounds
	inf := math.Inf(1)
	minB := mgl64.Vec3{inf, inf, inf}
	maxB := mgl64.Vec3{-inf, -inf, -inf}
	for _, i := range t.indices[first:last] {
		p := t.points[i]
		for a := range 3 {
			minB[a] = min(minB[a], p[a])
			maxB[a] = max(maxB[a], p[a])
		}
	}
	t.nodes[idx].Min = minB
	t.nodes[idx].Max = maxB

	extent := maxB.Sub(minB)
	if last-first <= t.leaf || extent == (mgl64.Vec3{}) {
		t.nodes[idx].LeafFirst = int32(first)
		t.nodes[idx].LeafCount = int32(last - first)
		return idx
	}

	// Split at the median of the widest axis
	axis := 0
	if extent[1] > extent[axis] {
		axis = 1
	}
	if extent[2] > extent[axis] {
		axis = 2
	}
	run := t.indices[first:last]
	slices.SortFunc(run, func(a, b int32) int {
		pa, pb := t.points[a][axis], t.points[b][axis]
		switch {
		case pa < pb:
			return -1
		case pa > pb:
			return 1
		}
		return int(a - b)
	})

	mid := first + (last-first)/2
	left := t.recursiveBuild(first, mid)
	right := t.recursiveBuild(mid, last)
	t.nodes[idx].Left = left
	t.nodes[idx].Right = right
	return idx
}

// distance2 returns the squared distance from p to the box [lo, hi].
func distance2(p, lo, hi mgl64.Vec3) float64 {
	d := 0.0
	for a := range 3 {
		switch {
		case p[a] < lo[a]:
			d += (lo[a] - p[a]) * (lo[a] - p[a])
		case p[a] > hi[a]:
			d += (p[a] - hi[a]) * (p[a] - hi[a])
		}
	}
	return d
}

// RadiusQuery returns, in ascending order, the index of every point within
// distance r of center.
func (t *Tree) RadiusQuery(center mgl64.Vec3, r float64) []int {
	if len(t.nodes) == 0 || r < 0 {
		return nil
	}
	r2 := r * r
	var out []int
	stack := []int32{0}
	for len(stack) > 0 {
		n := &t.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if distance2(center, n.Min, n.Max) > r2 {
			continue
		}
		if !n.leaf() {
			stack = append(stack, n.Left, n.Right)
			continue
		}
		for _, i := range t.indices[n.LeafFirst : n.LeafFirst+n.LeafCount] {
			d := t.points[i].Sub(center)
			if d.Dot(d) <= r2 {
				out = append(out, int(i))
			}
		}
	}
	slices.Sort(out)
	return out
}
