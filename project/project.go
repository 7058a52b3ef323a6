// Package project ties MVE scenes, their point clouds and the scene graph
// into a tagging session: loading, camera control, brush selection and
// exports.
//
// A Project is owned by a Loop. Every exported method must run on the loop
// goroutine; background work is handed to a Pool and reports back through
// the loop.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"mve-tagger/config"
	"mve-tagger/core"
	"mve-tagger/gpu"
	"mve-tagger/ply"
	"mve-tagger/scene"
)

// FileVersion tags the project file format.
const FileVersion = "tagger 1.0"

var (
	// ErrVersion is returned when loading a file of another format.
	ErrVersion = errors.New("unsupported project file version")
	// ErrCameraMode is returned for unknown camera modes.
	ErrCameraMode = errors.New("invalid camera mode")
)

// CameraMode selects the camera used by the default passes.
type CameraMode string

const (
	ModeOrtho       CameraMode = "ortho"
	ModePerspective CameraMode = "perspective"
	ModeView        CameraMode = "view"
)

// Names of the project-wide nodes and passes.
const (
	axisName    = "axis"
	planeName   = "plane"
	pictureName = "picture"
	defaultPass = "default"
	overlayPass = "overlay"
)

// DefaultCloudShader renders clouds with their colors.
const DefaultCloudShader = "cloud-rgb"

// Hooks notify the owner of state changes. Every hook runs on the loop.
type Hooks struct {
	// Redraw asks for a new frame.
	Redraw func()
	// Aspect forces the viewport aspect ratio (height/width), 0 to release it.
	Aspect   func(ratio float64)
	Progress func(Progress)
}

type Project struct {
	Settings *config.Settings
	Scene    *scene.Scene
	Hooks    Hooks

	DisplayRatio      float64
	ClearColor        core.Color
	CloudShaderName   string
	MaskPointSize     float64
	MaskDistanceRange [2]float64

	ShowAxis     bool
	ShowPlane    bool
	ShowLocation bool
	ShowBBox     bool
	ShowPicture  bool

	CameraMode      CameraMode
	SelectionRadius float64

	loop *Loop
	pool *Pool
	// gen invalidates results of tasks started before Close.
	gen uint64

	scenes    map[string]*Scene
	views     []*View
	viewIndex int
	selection []Selection

	cloudShader       *scene.ShaderCell
	ortho2d           *scene.Camera
	ortho             *scene.Camera
	perspective       *scene.Camera
	orthoConfig       *scene.CameraConfig
	perspectiveConfig *scene.CameraConfig
}

// New returns an empty project bound to loop. The scene is populated
// immediately; call it on the loop goroutine.
func New(settings *config.Settings, loop *Loop) *Project {
	if settings == nil {
		settings = config.Default()
	}
	p := &Project{
		Settings:          settings,
		Scene:             scene.NewScene(settings.ShaderPath()),
		DisplayRatio:      1,
		ClearColor:        core.Color{R: 0.5, G: 0.5, B: 0.5, A: 1},
		CloudShaderName:   DefaultCloudShader,
		MaskPointSize:     1,
		MaskDistanceRange: [2]float64{0, 1},
		ShowAxis:          true,
		ShowPlane:         true,
		ShowLocation:      true,
		ShowBBox:          true,
		ShowPicture:       true,
		CameraMode:        ModePerspective,
		SelectionRadius:   settings.SelectionRadius,
		loop:              loop,
		pool:              NewPool(settings.Workers),
		scenes:            map[string]*Scene{},
		cloudShader:       &scene.ShaderCell{},
	}
	p.Scene.GCInterval = time.Duration(settings.GCInterval)
	p.create()
	return p
}

func (p *Project) Loop() *Loop { return p.loop }

// Views returns the views in display order.
func (p *Project) Views() []*View { return p.views }

// Scenes returns the imported scenes ordered by name.
func (p *Project) Scenes() []*Scene {
	out := make([]*Scene, 0, len(p.scenes))
	for _, s := range p.scenes {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *Scene) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Selection returns the strokes applied so far.
func (p *Project) Selection() []Selection { return p.selection }

// CurrentView returns the view looked through, nil outside view mode.
func (p *Project) CurrentView() *View {
	if p.CameraMode != ModeView || len(p.views) == 0 {
		return nil
	}
	return p.views[p.viewIndex]
}

// Camera returns the camera of the default passes.
func (p *Project) Camera() *scene.Camera { return p.Scene.DefaultCamera().Get() }

func (p *Project) robustness() robustness {
	return robustness{p.Settings.MinFocal, p.Settings.MaxFocal, p.Settings.MaxDist}
}

func (p *Project) redraw() {
	if p.Hooks.Redraw != nil {
		p.Hooks.Redraw()
	}
}

func (p *Project) aspect(ratio float64) {
	if p.Hooks.Aspect != nil {
		p.Hooks.Aspect(ratio)
	}
}

// create populates the scene with the cameras, helpers and passes shared by
// every scene. It is idempotent.
func (p *Project) create() {
	s := p.Scene
	s.SetDefaultShader(s.Shader(scene.DefaultShaderName))

	p.ortho2d = s.Ortho2DCamera("ortho2d")
	p.ortho = s.OrthoCamera("ortho")
	if p.orthoConfig != nil {
		p.ortho.LoadConfig(*p.orthoConfig)
	}
	p.perspective = s.PerspectiveCamera("perspective")
	if p.perspectiveConfig != nil {
		p.perspective.LoadConfig(*p.perspectiveConfig)
	}
	s.SetDefaultCamera(p.perspective)
	s.ClearColor = p.ClearColor
	p.cloudShader.Set(s.Shader(p.CloudShaderName))

	if !s.HasNode(axisName) {
		style := scene.AxisStyle()
		style.PointSize, style.LineWidth = 10, 5
		s.AddAxis(axisName, style, 0)
	}
	if !s.HasNode(planeName) {
		s.AddPlane(planeName, scene.PlaneStyle(), 0)
	}
	if !s.HasNode(pictureName) {
		style := scene.QuadStyle()
		style.Color = core.ColorBlack
		picture := s.AddQuad(pictureName, style, 0)
		picture.Uniforms["colorMask"] = scene.Floats(1, 1, 1, 0.5)
	}
	s.Node(axisName).Visible = p.ShowAxis
	s.Node(planeName).Visible = p.ShowPlane
	s.Node(pictureName).Visible = p.ShowPicture

	if !s.HasPass(defaultPass) {
		def := s.AddPass(defaultPass, defaultPassOrder)
		def.AttachNode(s.Node(axisName))
		def.AttachNode(s.Node(planeName))
	}
	if !s.HasPass(overlayPass) {
		overlay := s.AddPass(overlayPass, overlayPassOrder)
		overlay.SetCamera(p.ortho2d)
		overlay.DepthMask = false
		overlay.DepthTest = false
		overlay.CullFace = false
		overlay.Disable()
		overlay.AttachNode(s.Node(pictureName))
	}

	// view mode needs created views and falls back to ortho until then
	mode := p.CameraMode
	p.CameraMode = ModePerspective
	if err := p.SetCameraMode(mode); err != nil {
		core.Logger().Warn("reset camera mode", "mode", mode, "err", err)
		p.SetCameraMode(ModePerspective)
	}
	p.redraw()
}

// ── Persistence ──────────────────────────────────────────────────────────────

type fileView struct {
	Name    string  `json:"name"`
	ID      int     `json:"id"`
	Active  bool    `json:"active"`
	Density float64 `json:"density"`
	Opacity float64 `json:"opacity"`
}

type fileScene struct {
	Name  string     `json:"name"`
	Path  string     `json:"path"`
	Views []fileView `json:"views"`
}

type projectFile struct {
	Version           string              `json:"version"`
	DisplayRatio      float64             `json:"displayRatio"`
	ClearColor        [4]float32          `json:"clearColor"`
	CloudShaderName   string              `json:"cloudShaderName"`
	MaskPointSize     float64             `json:"maskPointSize"`
	MaskDistanceRange [2]float64          `json:"maskDistanceRange"`
	ShowAxis          bool                `json:"showAxis"`
	ShowPlane         bool                `json:"showPlane"`
	ShowLocation      bool                `json:"showLocation"`
	ShowBBox          bool                `json:"showBBox"`
	ShowPicture       bool                `json:"showPicture"`
	CameraMode        CameraMode          `json:"cameraMode"`
	OrthoCamera       *scene.CameraConfig `json:"orthoCamera"`
	PerspectiveCamera *scene.CameraConfig `json:"perspectiveCamera"`
	SelectionRadius   float64             `json:"selectionRadius"`
	Selection         []Selection         `json:"selection"`
	Scenes            []fileScene         `json:"scenes"`
}

// Load reads a project file, imports its scenes and starts creating their
// views in the background.
func (p *Project) Load(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	f := projectFile{
		DisplayRatio:      1,
		ClearColor:        [4]float32{0.5, 0.5, 0.5, 1},
		CloudShaderName:   DefaultCloudShader,
		MaskPointSize:     1,
		MaskDistanceRange: [2]float64{0, 1},
		ShowAxis:          true,
		ShowPlane:         true,
		ShowLocation:      true,
		ShowBBox:          true,
		ShowPicture:       true,
		CameraMode:        ModePerspective,
		SelectionRadius:   p.Settings.SelectionRadius,
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("load project %s: %w", path, err)
	}
	if f.Version != FileVersion {
		return nil, fmt.Errorf("load project %s: %w: %q", path, ErrVersion, f.Version)
	}

	var scenes []*Scene
	for _, fs := range f.Scenes {
		if _, ok := p.scenes[fs.Path]; ok {
			continue
		}
		views := map[int]*View{}
		for _, fv := range fs.Views {
			v := newView(fv.Name, fv.ID)
			v.Active, v.Density, v.Opacity = fv.Active, fv.Density, fv.Opacity
			views[fv.ID] = v
		}
		s, err := openScene(fs.Name, fs.Path, views)
		if err != nil {
			return nil, fmt.Errorf("load project %s: scene %q: %w", path, fs.Name, err)
		}
		scenes = append(scenes, s)
	}

	p.DisplayRatio = f.DisplayRatio
	c := f.ClearColor
	p.ClearColor = core.Color{R: c[0], G: c[1], B: c[2], A: c[3]}
	p.CloudShaderName = f.CloudShaderName
	p.MaskPointSize = f.MaskPointSize
	p.MaskDistanceRange = f.MaskDistanceRange
	p.ShowAxis, p.ShowPlane, p.ShowLocation = f.ShowAxis, f.ShowPlane, f.ShowLocation
	p.ShowBBox, p.ShowPicture = f.ShowBBox, f.ShowPicture
	p.CameraMode = f.CameraMode
	p.orthoConfig, p.perspectiveConfig = f.OrthoCamera, f.PerspectiveCamera
	p.SelectionRadius = f.SelectionRadius
	p.selection = append(p.selection, f.Selection...)

	slices.SortFunc(scenes, func(a, b *Scene) int { return strings.Compare(a.Name, b.Name) })
	for _, s := range scenes {
		p.scenes[s.Path] = s
		p.views = append(p.views, s.SortedViews()...)
	}

	mode, gen := p.CameraMode, p.gen
	p.create()
	core.Logger().Info("project loaded", "path", path, "scenes", len(scenes), "views", len(p.views))
	return p.createViews(scenes, func() error {
		if mode == ModeView && gen == p.gen {
			return p.SetCameraMode(ModeView)
		}
		return nil
	}), nil
}

// Save writes the project file.
func (p *Project) Save(path string) error {
	f := projectFile{
		Version:           FileVersion,
		DisplayRatio:      p.DisplayRatio,
		ClearColor:        p.ClearColor.Array(),
		CloudShaderName:   p.CloudShaderName,
		MaskPointSize:     p.MaskPointSize,
		MaskDistanceRange: p.MaskDistanceRange,
		ShowAxis:          p.ShowAxis,
		ShowPlane:         p.ShowPlane,
		ShowLocation:      p.ShowLocation,
		ShowBBox:          p.ShowBBox,
		ShowPicture:       p.ShowPicture,
		CameraMode:        p.CameraMode,
		SelectionRadius:   p.SelectionRadius,
		Selection:         p.selection,
		Scenes:            []fileScene{},
	}
	oc, pc := p.ortho.Config(), p.perspective.Config()
	f.OrthoCamera, f.PerspectiveCamera = &oc, &pc
	if f.Selection == nil {
		f.Selection = []Selection{}
	}
	for _, s := range p.Scenes() {
		fs := fileScene{Name: s.Name, Path: s.Path, Views: []fileView{}}
		for _, v := range s.SortedViews() {
			fs.Views = append(fs.Views, fileView{
				Name:    v.Name,
				ID:      v.ID,
				Active:  v.Active,
				Density: v.Density,
				Opacity: v.Opacity,
			})
		}
		f.Scenes = append(f.Scenes, fs)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	core.Logger().Info("project saved", "path", path)
	return nil
}

// ImportMVE adds the MVE scene at path. Importing a scene twice is a no-op.
func (p *Project) ImportMVE(path string) (*Batch, error) {
	if _, ok := p.scenes[path]; ok {
		return p.newBatch("import", 0, nil), nil
	}
	name := fmt.Sprintf("mve.%d", time.Now().Unix())
	for i := 1; p.hasSceneName(name); i++ {
		name = fmt.Sprintf("mve.%d.%d", time.Now().Unix(), i)
	}
	s, err := openScene(name, path, nil)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	p.scenes[path] = s
	p.views = append(p.views, s.SortedViews()...)
	core.Logger().Info("mve scene imported", "path", path, "name", name, "views", len(s.Views))
	return p.createViews([]*Scene{s}, nil), nil
}

func (p *Project) hasSceneName(name string) bool {
	for _, s := range p.scenes {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Close waits for background tasks and releases every scene and GPU
// resource, leaving an empty project.
func (p *Project) Close(d gpu.Device) error {
	p.gen++
	err := p.pool.Wait()
	p.pool = NewPool(p.Settings.Workers)

	for _, s := range p.scenes {
		s.destroy(p.Scene)
	}
	p.Scene.Destroy()
	p.Scene.Sweep(d)
	p.scenes = map[string]*Scene{}
	p.selection = nil
	p.views = nil
	p.viewIndex = 0
	p.create()

	core.Logger().Info("project closed")
	return err
}

// ── Background tasks ─────────────────────────────────────────────────────────

func (p *Project) newBatch(name string, total int, onDone func() error) *Batch {
	return newBatch(name, total, onDone, p.Hooks.Progress)
}

// spawn runs task on the pool and ticks b on the loop when it returns,
// whether it fails or not.
func (p *Project) spawn(b *Batch, name string, task func() error) {
	p.pool.Go(name, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s: panic: %v", name, r)
			}
			p.loop.Do(func() { b.tick(err) })
		}()
		return task()
	})
}

// current wraps a loop callback so that it is dropped after Close.
func (p *Project) current(f func()) func() {
	gen := p.gen
	return func() {
		if gen == p.gen {
			f()
		}
	}
}

// createViews loads the clouds of the scenes' views and builds their nodes.
// onDone runs on the loop once every view is built.
func (p *Project) createViews(scenes []*Scene, onDone func() error) *Batch {
	type job struct {
		scene *Scene
		view  *View
	}
	var jobs []job
	for _, s := range scenes {
		s.create(p.Scene, p.cloudShader)
		for _, v := range s.SortedViews() {
			if !v.created {
				jobs = append(jobs, job{s, v})
			}
		}
	}

	b := p.newBatch("load", len(jobs), onDone)
	r := p.robustness()
	seed := uint64(time.Now().UnixNano())
	for _, j := range jobs {
		s, v := j.scene, j.view
		want := v.wantsCloud(r)
		p.spawn(b, "create "+v.Name, func() error {
			var cloud *ply.Cloud
			var err error
			if want {
				if cloud, err = v.readCloud(seed); err != nil {
					err = fmt.Errorf("view %s: %w", v.Name, err)
				}
			}
			p.loop.Do(p.current(func() {
				v.create(p, cloud)
				s.attach(v)
				core.Logger().Info("view built", "view", v.Name, "active", v.Active, "points", v.Points())
				p.redraw()
			}))
			return err
		})
	}
	return b
}

// Preselect builds the spatial index of every active view and replays the
// recorded strokes on it.
func (p *Project) Preselect() *Batch {
	var views []*View
	for _, v := range p.views {
		if v.Active && !v.built && v.cloud != nil {
			views = append(views, v)
		}
	}
	b := p.newBatch("preselect", len(views), nil)
	leaf := p.Settings.MaxLeafs
	clicks := slices.Clone(p.selection)
	for _, v := range views {
		cloud := v.cloud
		p.spawn(b, "preselect "+v.Name, func() error {
			idx := buildIndex(cloud, leaf)
			var hits [][]int
			if idx != nil {
				hits = query(idx, clicks)
			}
			p.loop.Do(p.current(func() {
				if v.cloud != cloud {
					return
				}
				v.applyIndex(idx, clicks, hits)
				if idx != nil && len(p.selection) > len(clicks) {
					v.Select(p.selection[len(clicks):])
				}
				core.Logger().Info("view processed", "view", v.Name)
				p.redraw()
			}))
			return nil
		})
	}
	return b
}

// ── Views ────────────────────────────────────────────────────────────────────

// RemoveView deactivates the view at index and drops its nodes.
func (p *Project) RemoveView(index int) {
	if index < 0 || index >= len(p.views) {
		return
	}
	v := p.views[index]
	v.Active = false
	v.destroy(p.Scene)
	p.SetCameraView(0)
	core.Logger().Info("view removed", "view", v.Name)
	p.redraw()
}

// RemoveCurrentView removes the view looked through.
func (p *Project) RemoveCurrentView() {
	if p.CameraMode == ModeView {
		p.RemoveView(p.viewIndex)
	}
}

// ── Camera ───────────────────────────────────────────────────────────────────

// SetCameraMode switches the camera of the default passes. View mode needs
// at least one view and is ignored otherwise.
func (p *Project) SetCameraMode(mode CameraMode) error {
	switch mode {
	case ModeOrtho:
		p.Scene.SetDefaultCamera(p.ortho)
	case ModePerspective:
		p.Scene.SetDefaultCamera(p.perspective)
	case ModeView:
		if len(p.views) == 0 {
			return nil
		}
		p.CameraMode = mode
		p.SetCameraView(0)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrCameraMode, mode)
	}

	for _, v := range p.views {
		v.unfocus(p.DisplayRatio)
	}
	p.CameraMode = mode
	p.Scene.Pass(overlayPass).Disable()
	p.Scene.Node(pictureName).Hide()
	p.aspect(0)
	core.Logger().Info("active camera", "mode", mode)
	p.redraw()
	return nil
}

// SetCameraView moves di views away from the current one, skipping views
// that cannot be looked through.
func (p *Project) SetCameraView(di int) {
	n := len(p.views)
	if n == 0 {
		return
	}
	step := 1
	if di < 0 {
		step = -1
	}
	index := mod(p.viewIndex+di, n)
	for i := 0; i < n && !p.views[index].Valid(); i++ {
		index = mod(index+step, n)
	}
	p.SetCameraViewAbs(index)
}

// SetCameraViewRef looks through v.
func (p *Project) SetCameraViewRef(v *View) {
	if i := slices.Index(p.views, v); i >= 0 {
		p.SetCameraViewAbs(i)
	}
}

// SetCameraViewAbs looks through the view at index. An invalid view falls
// back to the orthographic camera.
func (p *Project) SetCameraViewAbs(index int) {
	if len(p.views) == 0 || p.CameraMode != ModeView {
		return
	}
	index = mod(index, len(p.views))
	if !p.views[index].Valid() {
		p.SetCameraMode(ModeOrtho)
		return
	}

	p.viewIndex = index
	v := p.views[index]
	p.Scene.SetDefaultCamera(v.Camera)
	p.Scene.Pass(overlayPass).Enable()

	picture := p.Scene.Node(pictureName)
	if p.ShowPicture && v.Camera.AtOrigin() && v.Width > 0 && v.Info.DepthColor() != "" {
		picture.AttachTexture(p.Scene.Texture(v.Info.DepthColor()))
		picture.Show()
	} else {
		picture.Hide()
	}

	if v.Width > 0 {
		p.aspect(float64(v.Height) / float64(v.Width))
	} else {
		p.aspect(0)
	}
	for _, other := range p.views {
		other.focus(other == v, p.DisplayRatio)
	}
	core.Logger().Info("active camera", "mode", ModeView, "view", v.Name)
	p.redraw()
}

// SetCameraAtOrigin resets the active camera, or every camera.
func (p *Project) SetCameraAtOrigin(all bool) {
	p.Camera().Origin()
	if all {
		p.ortho.Origin()
		p.perspective.Origin()
		for _, v := range p.views {
			if v.Camera != nil {
				v.Camera.Origin()
			}
		}
	}
	p.redraw()
}

func (p *Project) MoveCamera(dx, dy, dz float64) {
	p.Camera().Move(dx, dy, dz)
	p.redraw()
}

func (p *Project) OrientCamera(dyaw, dpitch, droll float64) {
	p.Camera().Orient(dyaw, dpitch, droll)
	p.redraw()
}

func (p *Project) ZoomCamera(d float64) {
	p.Camera().Zoom(d)
	p.redraw()
}

func mod(a, n int) int { return (a%n + n) % n }

// ── Display ──────────────────────────────────────────────────────────────────

func (p *Project) ToggleAxis() {
	p.ShowAxis = !p.ShowAxis
	p.Scene.Node(axisName).Visible = p.ShowAxis
	p.redraw()
}

func (p *Project) TogglePlane() {
	p.ShowPlane = !p.ShowPlane
	p.Scene.Node(planeName).Visible = p.ShowPlane
	p.redraw()
}

// ToggleLocation shows or hides the view camera markers.
func (p *Project) ToggleLocation() {
	p.ShowLocation = !p.ShowLocation
	for _, v := range p.views {
		if v.Camera != nil {
			v.Camera.Node().Visible = p.ShowLocation
		}
	}
	p.redraw()
}

func (p *Project) ToggleBBox() {
	p.ShowBBox = !p.ShowBBox
	for _, v := range p.views {
		if v.BBox != nil {
			v.BBox.Visible = p.ShowBBox
		}
	}
	p.redraw()
}

// TogglePicture shows or hides the photograph behind the current view.
func (p *Project) TogglePicture() {
	p.ShowPicture = !p.ShowPicture
	if v := p.CurrentView(); v != nil && v.Camera != nil {
		v.Camera.Origin()
		p.SetCameraView(0)
	}
	p.redraw()
}

// SetDisplayRatio sets the fraction of points drawn by unfocused clouds.
func (p *Project) SetDisplayRatio(ratio float64) {
	p.DisplayRatio = max(0, min(1, ratio))
	current := p.CurrentView()
	for _, v := range p.views {
		if v.Mesh == nil {
			continue
		}
		if v == current {
			v.Mesh.DisplayRatio = 1
		} else {
			v.Mesh.DisplayRatio = p.DisplayRatio
		}
	}
	p.redraw()
}

// SetClearColor parses a #rrggbb[aa] color. Invalid input leaves the color
// unchanged.
func (p *Project) SetClearColor(hex string) error {
	c, err := core.ParseHexColor(hex)
	if err != nil {
		core.Logger().Warn("ignoring clear color", "value", hex, "err", err)
		return err
	}
	p.ClearColor = c
	p.Scene.ClearColor = c
	core.Logger().Debug("clear color", "color", c.Hex())
	p.redraw()
	return nil
}

// SetCloudShader switches the shader of every cloud pass.
func (p *Project) SetCloudShader(name string) {
	p.CloudShaderName = name
	p.cloudShader.Set(p.Scene.Shader(name))
	p.redraw()
}

func (p *Project) SetMaskPointSize(size float64) {
	p.MaskPointSize = max(0, min(100, size))
	p.redraw()
}

// SetMaskDistanceRange sets the far end of the mask distance range.
func (p *Project) SetMaskDistanceRange(far float64) {
	p.MaskDistanceRange[1] = max(p.MaskDistanceRange[0], far)
	p.redraw()
}

// ── Selection ────────────────────────────────────────────────────────────────

// Select paints a stroke at the world position (x, y, z). The stroke is
// recorded only if it changed the selection of a view.
func (p *Project) Select(x, y, z float64, add bool) bool {
	click := NewClick(mgl64.Vec3{x, y, z}, p.SelectionRadius, add, time.Now())
	changed := false
	for _, s := range p.scenes {
		changed = s.Select([]Selection{click}) || changed
	}
	if changed {
		p.selection = append(p.selection, click)
		p.redraw()
	}
	return changed
}

// SelectAt paints a stroke under the window pixel (x, y). Clicks on the
// background are ignored.
func (p *Project) SelectAt(d gpu.Device, x, y, width, height int, add bool) bool {
	z := p.Scene.Depth(d, x, y, width, height)
	if z >= 1 {
		return false
	}
	pt := p.Camera().Unproject(float64(x), float64(y), float64(z), 1)
	return p.Select(pt[0], pt[1], pt[2], add)
}

// ── Rendering ────────────────────────────────────────────────────────────────

// Render draws a frame and releases unused GPU resources when due.
func (p *Project) Render(d gpu.Device, width, height int) error {
	uniforms := scene.Uniforms{
		"maskPointSize":     scene.Floats(float32(p.MaskPointSize), 0),
		"maskDistanceRange": scene.Floats(float32(p.MaskDistanceRange[0]), float32(p.MaskDistanceRange[1])),
	}
	if p.Scene.HasNode(pictureName) {
		uniforms["pictureOverlay"] = scene.Bool(p.Scene.Node(pictureName).Visible)
	}
	if err := p.Scene.Render(d, width, height, uniforms); err != nil {
		return err
	}
	p.Scene.MaybeSweep(d, time.Now())
	return nil
}
