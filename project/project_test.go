package project

import (
	"bufio"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mve-tagger/config"
	"mve-tagger/core"
	"mve-tagger/gpu/gputest"
	"mve-tagger/ply"
)

type testView struct {
	focal  float64
	points int
	offset float32
}

func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if strings.HasSuffix(path, ".jpg") {
		require.NoError(t, jpeg.Encode(f, img, nil))
	} else {
		require.NoError(t, png.Encode(f, img))
	}
}

// newMVEScene lays out one calibrated view per entry, every camera at
// (0, 0, 2) looking down -z, each with a cloud of points along x.
func newMVEScene(t *testing.T, views ...testView) string {
	t.Helper()
	dir := t.TempDir()
	var bundle strings.Builder
	fmt.Fprintf(&bundle, "drews 1.0\n%d 0\n", len(views))
	for _, v := range views {
		fmt.Fprintf(&bundle, "%g 0 0\n1 0 0\n0 1 0\n0 0 1\n0 0 -2\n", v.focal)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "synth_0.out"), []byte(bundle.String()), 0o644))

	for i, v := range views {
		vd := filepath.Join(dir, "views", fmt.Sprintf("view_%04d.mve", i))
		require.NoError(t, os.MkdirAll(vd, 0o755))
		meta := fmt.Sprintf(`[camera]
focal_length = %g
pixel_aspect = 1
principal_point = 0.5 0.5
rotation = 1 0 0 0 1 0 0 0 1
translation = 0 0 -2

[view]
id = %d
name = view%d
`, v.focal, i, i)
		require.NoError(t, os.WriteFile(filepath.Join(vd, "meta.ini"), []byte(meta), 0o644))
		writeImage(t, filepath.Join(vd, "original.jpg"), 8, 6)
		writeImage(t, filepath.Join(vd, "undistorted.png"), 8, 6)

		points := make([]ply.Point, v.points)
		for k := range points {
			points[k] = ply.Point{X: v.offset + float32(k)*0.01, Y: 0.1, R: 10, G: 20, B: 30, A: 200}
		}
		require.NoError(t, ply.WriteFile(filepath.Join(vd, "pointcloud.ply"), points))
	}
	return dir
}

func newTestProject(t *testing.T) *Project {
	t.Helper()
	settings := config.Default()
	settings.ShaderDir = "../shaders"
	settings.Workers = 2
	return New(settings, NewLoop())
}

// wait pumps the loop from the test goroutine until b completes.
func wait(t *testing.T, p *Project, b *Batch) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		p.Loop().Drain()
		select {
		case <-b.Done():
			p.Loop().Drain()
			return
		case <-p.Loop().Wake():
		case <-deadline:
			t.Fatalf("batch %q did not finish", b.Name)
		}
	}
}

func importScene(t *testing.T, p *Project, dir string) {
	t.Helper()
	b, err := p.ImportMVE(dir)
	require.NoError(t, err)
	wait(t, p, b)
	require.NoError(t, b.Err())
}

func TestImportBuildsViews(t *testing.T) {
	p := newTestProject(t)
	importScene(t, p, newMVEScene(t, testView{0.8, 10, 0}, testView{0.9, 15, 0}))

	require.Len(t, p.Views(), 2)
	for _, v := range p.Views() {
		assert.True(t, v.Created())
		assert.True(t, v.Active)
		require.NotNil(t, v.Mesh)
		require.NotNil(t, v.BBox)
		assert.Equal(t, 8, v.Width)
		assert.Equal(t, 6, v.Height)
		assert.True(t, p.Scene.HasNode(v.Name))
	}
	assert.Equal(t, 10, p.Views()[0].Points())
	assert.Equal(t, 15, p.Views()[1].Points())

	scenes := p.Scenes()
	require.Len(t, scenes, 1)
	assert.True(t, p.Scene.HasPass(scenes[0].Name))
	assert.True(t, p.Scene.HasPass(scenes[0].Name+":cloud"))
}

func TestImportTwiceIsNoop(t *testing.T) {
	p := newTestProject(t)
	dir := newMVEScene(t, testView{0.8, 3, 0})
	importScene(t, p, dir)
	importScene(t, p, dir)
	assert.Len(t, p.Views(), 1)
	assert.Len(t, p.Scenes(), 1)
}

func TestNonRobustViewIsMarkerOnly(t *testing.T) {
	p := newTestProject(t)
	importScene(t, p, newMVEScene(t, testView{0.8, 10, 0}, testView{2.5, 15, 0}))

	v := p.Views()[1]
	assert.False(t, v.Active)
	assert.Nil(t, v.Mesh)
	assert.Nil(t, v.BBox)
	require.NotNil(t, v.Camera)
	assert.Zero(t, v.Camera.Node().LineWidth)
	assert.True(t, v.Camera.Node().HasCommand("points"))
	assert.False(t, v.Camera.Node().HasCommand("lines"))
	assert.False(t, v.Valid())

	require.NoError(t, p.SetCameraMode(ModeView))
	assert.Same(t, p.Views()[0], p.CurrentView())
	p.SetCameraView(1)
	assert.Same(t, p.Views()[0], p.CurrentView(), "invalid views are skipped")

	wait(t, p, p.Preselect())
	assert.False(t, v.Built())
	assert.True(t, p.Views()[0].Built())
}

func TestSelectionExport(t *testing.T) {
	p := newTestProject(t)
	importScene(t, p, newMVEScene(t,
		testView{0.8, 10, 0},
		testView{0.9, 15, 0},
		testView{2.5, 7, 0},
	))
	wait(t, p, p.Preselect())

	assert.True(t, p.Select(0, 0, 0, true))
	assert.False(t, p.Select(0, 0, 0, true), "repeating a stroke changes nothing")
	assert.Len(t, p.Selection(), 1)
	assert.Equal(t, 10, p.Views()[0].Mesh.SelectedCount())
	assert.Equal(t, 15, p.Views()[1].Mesh.SelectedCount())

	out := filepath.Join(t.TempDir(), "selection.ply")
	b := p.ExportPLY(out)
	assert.Equal(t, 2, b.Total())
	wait(t, p, b)
	require.NoError(t, b.Err())

	cloud, err := ply.Open(out)
	require.NoError(t, err)
	assert.Equal(t, 25, cloud.Count)
	assert.Equal(t, []uint8{10, 20, 30, 200}, cloud.Colors[:4])

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	h, err := ply.ReadHeader(bufio.NewReader(f))
	require.NoError(t, err)
	var names []string
	for _, prop := range h.Element("vertex").Properties {
		names = append(names, prop.Name)
	}
	assert.Equal(t, []string{"x", "y", "z", "red", "green", "blue", "alpha"}, names)
}

func TestSubtractiveStroke(t *testing.T) {
	p := newTestProject(t)
	importScene(t, p, newMVEScene(t, testView{0.8, 100, 0}))
	wait(t, p, p.Preselect())
	p.SelectionRadius = 0.405
	mesh := p.Views()[0].Mesh

	// points sit at x = 0.00 .. 0.99, y = 0.1
	require.True(t, p.Select(0, 0.1, 0, true))
	assert.Equal(t, 41, mesh.SelectedCount())
	require.True(t, p.Select(1, 0.1, 0, true))
	assert.Equal(t, 81, mesh.SelectedCount())

	// the removal reaches x = 0.706, past the 0.605 of an additive stroke
	require.True(t, p.Select(0.2, 0.1, 0, false))
	assert.Equal(t, 29, mesh.SelectedCount())
	assert.InDelta(t, 0.50625, p.Selection()[2].Radius, 1e-12)
}

func TestPreselectReplaysLoadedStrokes(t *testing.T) {
	p := newTestProject(t)
	importScene(t, p, newMVEScene(t, testView{0.8, 10, 0}))

	assert.False(t, p.Select(0, 0, 0, true), "no index yet")
	p.selection = []Selection{NewClick(mgl64.Vec3{0, 0.1, 0}, 0.055, true, time.Now())}
	wait(t, p, p.Preselect())
	assert.Equal(t, 6, p.Views()[0].Mesh.SelectedCount())
}

func TestLoadScenario(t *testing.T) {
	dir := newMVEScene(t, testView{0.8, 10, 0})
	path := filepath.Join(t.TempDir(), "project.json")
	file := map[string]any{
		"version":       FileVersion,
		"displayRatio":  0.5,
		"maskPointSize": 2.0,
		"showAxis":      false,
		"scenes": []any{map[string]any{
			"name":  "mve.1",
			"path":  dir,
			"views": []any{},
		}},
	}
	data, err := json.Marshal(file)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	p := newTestProject(t)
	b, err := p.Load(path)
	require.NoError(t, err)
	wait(t, p, b)
	require.NoError(t, b.Err())

	assert.False(t, p.Scene.Node(axisName).Visible)
	assert.True(t, p.Scene.Node(planeName).Visible)
	assert.Equal(t, 2.0, p.MaskPointSize)
	require.Len(t, p.Views(), 1)
	assert.Equal(t, "mve.1:0000", p.Views()[0].Name)
	assert.Equal(t, 0.5, p.Views()[0].Mesh.DisplayRatio)
}

func TestLoadRejectsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": "tagger 0.9"}`), 0o644))
	_, err := newTestProject(t).Load(path)
	assert.ErrorIs(t, err, ErrVersion)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := newMVEScene(t, testView{0.8, 10, 0}, testView{0.9, 5, 0})
	p := newTestProject(t)
	importScene(t, p, dir)
	wait(t, p, p.Preselect())
	require.True(t, p.Select(0, 0, 0, true))
	p.RemoveView(1)
	p.ToggleBBox()
	p.SetDisplayRatio(0.25)
	require.NoError(t, p.SetClearColor("#ff000080"))
	p.OrientCamera(30, 10, 0)

	path := filepath.Join(t.TempDir(), "project.json")
	require.NoError(t, p.Save(path))

	q := newTestProject(t)
	b, err := q.Load(path)
	require.NoError(t, err)
	wait(t, q, b)
	require.NoError(t, b.Err())

	assert.Equal(t, 0.25, q.DisplayRatio)
	assert.False(t, q.ShowBBox)
	assert.Equal(t, p.ClearColor, q.ClearColor)
	pc, qc := p.perspective.Config(), q.perspective.Config()
	assert.Equal(t, pc.Yaw, qc.Yaw)
	assert.Equal(t, pc.Pitch, qc.Pitch)
	assert.Equal(t, pc.Eye, qc.Eye)
	require.Len(t, q.Selection(), 1)
	assert.True(t, p.Selection()[0].Equal(q.Selection()[0]))

	require.Len(t, q.Views(), 2)
	assert.True(t, q.Views()[0].Active)
	assert.False(t, q.Views()[1].Active)
	assert.Nil(t, q.Views()[1].Mesh)
	assert.False(t, q.Views()[0].BBox.Visible)

	wait(t, q, q.Preselect())
	assert.Equal(t, 10, q.Views()[0].Mesh.SelectedCount())
}

func TestCameraModes(t *testing.T) {
	p := newTestProject(t)
	var aspects []float64
	p.Hooks.Aspect = func(r float64) { aspects = append(aspects, r) }

	require.NoError(t, p.SetCameraMode(ModeView), "no views: ignored")
	assert.Equal(t, ModePerspective, p.CameraMode)
	assert.ErrorIs(t, p.SetCameraMode("fisheye"), ErrCameraMode)

	importScene(t, p, newMVEScene(t, testView{0.8, 4, 0}, testView{0.9, 4, 0}))
	require.NoError(t, p.SetCameraMode(ModeView))
	v0, v1 := p.Views()[0], p.Views()[1]
	assert.Same(t, v0.Camera, p.Camera())
	assert.True(t, p.Scene.Pass(overlayPass).Enabled)
	assert.True(t, p.Scene.Node(pictureName).Visible)
	assert.Equal(t, 6.0/8.0, aspects[len(aspects)-1])
	assert.Equal(t, float32(focusPointSize), v0.Mesh.Node().PointSize)
	assert.Equal(t, float32(defocusPointSize), v1.Mesh.Node().PointSize)

	p.SetCameraView(1)
	assert.Same(t, v1.Camera, p.Camera())
	p.SetCameraView(-3)
	assert.Same(t, v0.Camera, p.Camera())

	p.MoveCamera(0.5, 0, 0)
	assert.False(t, v0.Camera.AtOrigin())
	p.SetCameraAtOrigin(false)
	assert.True(t, v0.Camera.AtOrigin())

	require.NoError(t, p.SetCameraMode(ModeOrtho))
	assert.Same(t, p.ortho, p.Camera())
	assert.False(t, p.Scene.Pass(overlayPass).Enabled)
	assert.False(t, p.Scene.Node(pictureName).Visible)
	assert.Zero(t, aspects[len(aspects)-1])
	assert.Equal(t, float32(freePointSize), v0.Mesh.Node().PointSize)
	assert.Nil(t, p.CurrentView())

	p.CameraMode = ModeView
	p.viewIndex = 1
	p.RemoveCurrentView()
	assert.False(t, v1.Active)
	assert.Same(t, v0.Camera, p.Camera())
}

func TestDisplaySettings(t *testing.T) {
	p := newTestProject(t)
	redraws := 0
	p.Hooks.Redraw = func() { redraws++ }

	p.SetDisplayRatio(3)
	assert.Equal(t, 1.0, p.DisplayRatio)
	p.SetDisplayRatio(-1)
	assert.Zero(t, p.DisplayRatio)

	p.SetMaskPointSize(250)
	assert.Equal(t, 100.0, p.MaskPointSize)
	p.MaskDistanceRange = [2]float64{0.5, 1}
	p.SetMaskDistanceRange(0.2)
	assert.Equal(t, [2]float64{0.5, 0.5}, p.MaskDistanceRange)

	assert.Error(t, p.SetClearColor("not a color"))
	assert.Equal(t, core.Color{R: 0.5, G: 0.5, B: 0.5, A: 1}, p.ClearColor)

	p.ToggleAxis()
	p.TogglePlane()
	assert.False(t, p.Scene.Node(axisName).Visible)
	assert.False(t, p.Scene.Node(planeName).Visible)

	p.SetCloudShader("cloud-mask")
	assert.Equal(t, "cloud-mask", p.cloudShader.Get().Name())
	assert.Positive(t, redraws)
}

func TestRenderAndSelectAt(t *testing.T) {
	const w, h = 640, 480
	p := newTestProject(t)
	importScene(t, p, newMVEScene(t, testView{0.8, 50, -0.25}))
	wait(t, p, p.Preselect())
	p.SelectionRadius = 0.05
	p.MoveCamera(0, 0, 3)
	d := gputest.New()

	d.DepthValue = 1
	require.NoError(t, p.Render(d, w, h))
	assert.Positive(t, d.Count("DrawArrays"))
	assert.False(t, p.SelectAt(d, w/2, h/2, w, h, true), "background")
	assert.False(t, p.SelectAt(d, -1, 0, w, h, true), "outside the viewport")

	target := p.Camera().Project(mgl64.Vec3{0, 0.1, 0})
	d.DepthValue = float32(target[2])
	p.Scene.InvalidateDepth()
	x, y := int(target[0]+0.5), int(target[1]+0.5)
	require.True(t, p.SelectAt(d, x, y, w, h, true))
	assert.Positive(t, p.Views()[0].Mesh.SelectedCount())
	assert.Less(t, p.Views()[0].Mesh.SelectedCount(), 50)
}

func TestExportGLB(t *testing.T) {
	p := newTestProject(t)
	importScene(t, p, newMVEScene(t, testView{0.8, 4, 0}, testView{0.8, 3, 0}))
	wait(t, p, p.Preselect())
	require.True(t, p.Select(0, 0, 0, true))

	out := filepath.Join(t.TempDir(), "selection.glb")
	b := p.ExportGLB(out)
	wait(t, p, b)
	require.NoError(t, b.Err())

	doc, err := gltf.Open(out)
	require.NoError(t, err)
	require.Len(t, doc.Meshes, 1)
	prim := doc.Meshes[0].Primitives[0]
	assert.Equal(t, gltf.PrimitivePoints, prim.Mode)
	positions, err := modeler.ReadPosition(doc, doc.Accessors[prim.Attributes["POSITION"]], nil)
	require.NoError(t, err)
	assert.Len(t, positions, 7)
	colors, err := modeler.ReadColor(doc, doc.Accessors[prim.Attributes["COLOR_0"]], nil)
	require.NoError(t, err)
	assert.Equal(t, [4]uint8{10, 20, 30, 200}, colors[0])
}

func TestExportViews(t *testing.T) {
	p := newTestProject(t)
	dir := newMVEScene(t, testView{0.8, 4, 0}, testView{2.5, 4, 0})
	importScene(t, p, dir)
	d := gputest.New()
	d.DepthValue = 0.5

	_, err := p.ExportViews(d, "../escape")
	assert.ErrorIs(t, err, ErrFilename)

	b, err := p.ExportViews(d, "render")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Total())
	wait(t, p, b)
	require.NoError(t, b.Err())

	vd := p.Views()[0].Info.Path
	f, err := os.Open(filepath.Join(vd, "render-depth.png"))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	gray, ok := img.(*image.Gray16)
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 8, 6), gray.Bounds())
	assert.Equal(t, uint16(32768), gray.Gray16At(3, 3).Y)
	assert.FileExists(t, filepath.Join(vd, "render.png"))
	assert.NoFileExists(t, filepath.Join(p.Views()[1].Info.Path, "render.png"))

	assert.Equal(t, ModePerspective, p.CameraMode, "camera mode restored")
	assert.Empty(t, d.Framebuffers)
}

func TestExportAfterCloseWritesNothing(t *testing.T) {
	p := newTestProject(t)
	d := gputest.New()
	importScene(t, p, newMVEScene(t, testView{0.8, 10, 0}, testView{0.9, 15, 0}))
	wait(t, p, p.Preselect())
	require.True(t, p.Select(0, 0, 0, true))

	out := filepath.Join(t.TempDir(), "selection.ply")
	b := p.ExportPLY(out)
	require.NoError(t, p.Close(d))
	wait(t, p, b)

	assert.ErrorIs(t, b.Err(), ErrClosed)
	assert.NoFileExists(t, out)
	assert.Empty(t, p.Views())
}

func TestClose(t *testing.T) {
	p := newTestProject(t)
	d := gputest.New()
	importScene(t, p, newMVEScene(t, testView{0.8, 4, 0}))
	require.NoError(t, p.Render(d, 16, 16))
	assert.Positive(t, d.LiveBuffers())

	require.NoError(t, p.Close(d))
	assert.Empty(t, p.Views())
	assert.Empty(t, p.Scenes())
	assert.Zero(t, d.LiveBuffers())
	assert.Zero(t, d.LivePrograms())

	assert.True(t, p.Scene.HasNode(axisName))
	require.NoError(t, p.Render(d, 16, 16))
	importScene(t, p, newMVEScene(t, testView{0.8, 4, 0}))
	assert.Len(t, p.Views(), 1)
}
