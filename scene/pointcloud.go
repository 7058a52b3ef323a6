package scene

import (
	"fmt"
	"math"

	"mve-tagger/gpu"
)

const (
	DefaultCloudPointSize    = 2
	DefaultDisplayRatio      = 0.1
	DefaultSelectedPointSize = 5
)

// PointCloud is the variant carried by KindPointCloud nodes: a single
// 'points' command over the cloud vertices plus a parallel buffer of
// per-point selection flags.
type PointCloud struct {
	// DisplayRatio is the fraction of points drawn, from the front of the
	// vertex order. Callers shuffle the data so any prefix is a uniform
	// sample.
	DisplayRatio      float64
	SelectedPointSize float32

	node      *Node
	points    *DrawCommand
	selection *VertexBuffer
	flags     []uint8
	selected  int
}

// NewPointCloud returns a detached, empty point cloud node.
func NewPointCloud(name string, pointSize float32, displayRatio float64) *PointCloud {
	n := newNode(name, KindPointCloud, pointSize, 1)
	pc := &PointCloud{
		DisplayRatio:      displayRatio,
		SelectedPointSize: DefaultSelectedPointSize,
		node:              n,
		selection:         NewVertexBuffer(0),
	}
	pc.points = n.AddDrawArrays("points", NewVertexBuffer(0), 0, 0, gpu.Points, 0)
	pc.points.Extra = []*VertexBuffer{pc.selection}
	pc.points.Enabled = false
	n.cloud = pc
	return pc
}

func (pc *PointCloud) Node() *Node { return pc.node }

// Len returns the number of points.
func (pc *PointCloud) Len() int { return pc.points.Vertices.Vertices }

// Vertices returns the vertex buffer of the points command.
func (pc *PointCloud) Vertices() *VertexBuffer { return pc.points.Vertices }

// SetData replaces the cloud. positions holds 3 floats per point; colors
// holds channels bytes per point, with channels 0, 3 or 4. The selection
// is reset.
func (pc *PointCloud) SetData(count int, positions []float32, colors []uint8, channels int) error {
	if len(positions) != 3*count {
		return fmt.Errorf("point cloud %q: %d coordinates for %d points", pc.node.name, len(positions), count)
	}
	switch channels {
	case 0, 3, 4:
	default:
		return fmt.Errorf("point cloud %q: unsupported color channels %d", pc.node.name, channels)
	}
	if channels > 0 && len(colors) != channels*count {
		return fmt.Errorf("point cloud %q: %d color bytes for %d points", pc.node.name, len(colors), count)
	}

	vb := pc.points.Vertices
	vb.Reset(count)
	vb.AddFloat32("vertex3", positions, 3)
	switch channels {
	case 3:
		vb.AddUint8("color3", colors, 3)
	case 4:
		vb.AddUint8("color4", colors, 4)
	}
	vb.Uniforms["colors"] = Ints(int32(channels))
	pc.points.Count = count
	pc.points.Enabled = count > 0

	pc.flags = make([]uint8, count)
	pc.selected = 0
	pc.selection.Reset(count)
	pc.selection.AddUint8("selection", pc.flags, 1)
	pc.node.markMoved()
	return nil
}

// UpdateSelection sets (include) or clears the selection flag of every
// index and reports whether any flag changed. Out of range indices are
// ignored.
func (pc *PointCloud) UpdateSelection(indices []int, include bool) bool {
	var want uint8
	if include {
		want = 1
	}
	changed := false
	for _, i := range indices {
		if i < 0 || i >= len(pc.flags) || pc.flags[i] == want {
			continue
		}
		pc.flags[i] = want
		if include {
			pc.selected++
		} else {
			pc.selected--
		}
		changed = true
	}
	if changed {
		pc.selection.MarkDirty()
	}
	return changed
}

func (pc *PointCloud) ClearSelection() {
	clear(pc.flags)
	pc.selected = 0
	pc.selection.MarkDirty()
}

// Selected reports whether point i is selected.
func (pc *PointCloud) Selected(i int) bool {
	return i >= 0 && i < len(pc.flags) && pc.flags[i] != 0
}

// SelectedIndices returns the selected point indices in ascending order.
func (pc *PointCloud) SelectedIndices() []int {
	out := make([]int, 0, pc.selected)
	for i, f := range pc.flags {
		if f != 0 {
			out = append(out, i)
		}
	}
	return out
}

func (pc *PointCloud) SelectedCount() int { return pc.selected }

// VisibleCount returns how many points the next render draws.
func (pc *PointCloud) VisibleCount() int {
	n := pc.Len()
	return max(0, min(n, int(math.Ceil(float64(n)*pc.DisplayRatio))))
}

// effectivePointSize grows points as fewer of them are drawn.
func (pc *PointCloud) effectivePointSize() float32 {
	r := min(1, max(0.25, pc.DisplayRatio))
	return pc.node.PointSize + float32(math.Log(1/r))
}

func (pc *PointCloud) preRender() {
	pc.points.Count = pc.VisibleCount()
	pc.points.Uniforms["pointSize"] = Floats(pc.effectivePointSize(), 0)
	pc.points.Uniforms["selectedPointSize"] = Floats(pc.SelectedPointSize)
}
