package project

import (
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"

	"mve-tagger/core"
	"mve-tagger/kdtree"
	"mve-tagger/mve"
	"mve-tagger/ply"
	"mve-tagger/scene"
)

// Point sizes of the clouds depending on the camera focus.
const (
	focusPointSize   = 4
	defocusPointSize = 3
	freePointSize    = 2
)

// View is the per-view state of a project: the MVE calibration, the
// loaded cloud and the scene nodes drawing it.
type View struct {
	Name    string
	ID      int
	Active  bool
	Density float64
	Opacity float64

	Info *mve.View

	// Width and Height are the depth map size, 0 until created.
	Width, Height int

	Camera *scene.Camera
	Mesh   *scene.PointCloud
	BBox   *scene.Node

	cloud   *ply.Cloud
	index   *kdtree.Tree
	created bool
	built   bool
}

func newView(name string, id int) *View {
	return &View{Name: name, ID: id, Active: true, Density: 1, Opacity: 1}
}

// Valid reports whether the view can be looked through.
func (v *View) Valid() bool { return v.Active && v.Camera != nil }

func (v *View) Created() bool { return v.created }

// Built reports whether the spatial index exists.
func (v *View) Built() bool { return v.built }

// Points returns the number of loaded points.
func (v *View) Points() int {
	if v.cloud == nil {
		return 0
	}
	return v.cloud.Count
}

// wantsCloud reports whether create would draw a cloud for the view.
func (v *View) wantsCloud(r robustness) bool {
	return v.Info != nil && v.Info.Valid() && v.Active && v.Info.PLY() != "" && r.robust(v.Info)
}

// readCloud loads and shuffles the view's point cloud. It runs on a worker.
func (v *View) readCloud(seed uint64) (*ply.Cloud, error) {
	c, err := ply.Open(v.Info.PLY())
	if err != nil {
		return nil, err
	}
	c.Shuffle(rand.New(rand.NewPCG(seed, uint64(v.ID))))
	return c, nil
}

// create builds the view nodes from a loaded cloud. A nil cloud leaves the
// view inactive with a magenta location marker. It runs on the loop.
func (v *View) create(p *Project, cloud *ply.Cloud) {
	v.destroy(p.Scene)
	v.created = true
	if v.Info == nil || !v.Info.Valid() {
		return
	}
	v.Width, v.Height = v.Info.DepthWidth, v.Info.DepthHeight
	v.Active = v.Active && cloud != nil && p.robustness().robust(v.Info)

	if !v.Active {
		style := scene.CameraStyle()
		style.LineWidth = 0
		style.Color = core.ColorMagenta.WithAlpha(style.Color.A)
		v.Camera = p.Scene.ViewCamera(v.Name, v.Info, style)
	} else {
		v.Camera = p.Scene.ViewCamera(v.Name, v.Info, scene.CameraStyle())
		v.cloud = cloud

		lo, hi := cloud.Bounds()
		bmin := mgl64.Vec3{float64(lo[0]), float64(lo[1]), float64(lo[2])}
		bmax := mgl64.Vec3{float64(hi[0]), float64(hi[1]), float64(hi[2])}
		center := bmin.Add(bmax).Mul(0.5)
		v.BBox = p.Scene.AddBBox("bbox:"+v.Name, bmax.Sub(bmin), scene.BBoxStyle(), 0)
		v.BBox.Translate(center[0], center[1], center[2])
		v.BBox.Visible = p.ShowBBox

		v.Mesh = p.Scene.AddPointCloud("cloud:"+v.Name, freePointSize, p.DisplayRatio, 0)
		if err := v.Mesh.SetData(cloud.Count, cloud.Positions, cloud.RGB(), 3); err != nil {
			core.Logger().Error("cannot upload cloud", "view", v.Name, "err", err)
		}
	}
	v.Camera.Node().Visible = p.ShowLocation
}

// destroy drops the view nodes and its cloud. It runs on the loop.
func (v *View) destroy(s *scene.Scene) {
	v.created = false
	v.Width, v.Height = 0, 0
	if v.Camera != nil {
		s.RemoveNode(v.Camera.Name())
		v.Camera = nil
	}
	if v.Mesh != nil {
		s.RemoveNode(v.Mesh.Node().Name())
		v.Mesh = nil
	}
	if v.BBox != nil {
		s.RemoveNode(v.BBox.Name())
		v.BBox = nil
	}
	v.cloud = nil
	v.index = nil
	v.built = false
}

// buildIndex returns the spatial index of a cloud, nil for an empty one.
// It only reads the cloud and runs on a worker.
func buildIndex(c *ply.Cloud, leafSize int) *kdtree.Tree {
	if c == nil || c.Count == 0 {
		return nil
	}
	return kdtree.Build(c.Positions, leafSize)
}

// query resolves the strokes against idx. It runs on a worker.
func query(idx *kdtree.Tree, clicks []Selection) [][]int {
	out := make([][]int, len(clicks))
	for i, c := range clicks {
		out[i] = idx.RadiusQuery(c.Center(), c.Radius)
	}
	return out
}

// applyIndex installs the index and the resolved strokes. It runs on the
// loop.
func (v *View) applyIndex(idx *kdtree.Tree, clicks []Selection, hits [][]int) bool {
	v.index = idx
	v.built = true
	if v.Mesh == nil {
		return false
	}
	changed := false
	for i, c := range clicks {
		changed = v.Mesh.UpdateSelection(hits[i], c.Add) || changed
	}
	return changed
}

// Select applies the strokes to the cloud and reports whether the selection
// changed. Views without an index ignore them.
func (v *View) Select(clicks []Selection) bool {
	if !v.built || v.index == nil || v.Mesh == nil {
		return false
	}
	return v.applyIndex(v.index, clicks, query(v.index, clicks))
}

// ExportSelection returns the selected points with their color and
// confidence.
func (v *View) ExportSelection() []ply.Point {
	if !v.Active || v.Mesh == nil || v.cloud == nil || v.cloud.Count == 0 {
		return nil
	}
	return gather(v.cloud, v.Mesh.SelectedIndices())
}

// gather copies the indexed vertices. It only reads the cloud.
func gather(c *ply.Cloud, indices []int) []ply.Point {
	out := make([]ply.Point, len(indices))
	for i, k := range indices {
		x, y, z := c.Position(k)
		col := c.Colors[4*k : 4*k+4]
		out[i] = ply.Point{X: x, Y: y, Z: z, R: col[0], G: col[1], B: col[2], A: col[3]}
	}
	return out
}

// focus sets the cloud point sizes for the active camera.
func (v *View) focus(focused bool, displayRatio float64) {
	if v.Mesh == nil {
		return
	}
	v.Mesh.SelectedPointSize = scene.DefaultSelectedPointSize
	if focused {
		v.Mesh.Node().PointSize = focusPointSize
		v.Mesh.DisplayRatio = 1
	} else {
		v.Mesh.Node().PointSize = defocusPointSize
		v.Mesh.DisplayRatio = displayRatio
	}
}

// unfocus restores the free camera sizes.
func (v *View) unfocus(displayRatio float64) {
	if v.Mesh == nil {
		return
	}
	v.Mesh.Node().PointSize = freePointSize
	v.Mesh.SelectedPointSize = scene.DefaultSelectedPointSize
	v.Mesh.DisplayRatio = displayRatio
}

// robustness holds the view classification thresholds.
type robustness struct {
	minFocal, maxFocal, maxDist float64
}

func (r robustness) robust(v *mve.View) bool {
	return v.Robust(r.minFocal, r.maxFocal, r.maxDist)
}
