package scene

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"mve-tagger/core"
	"mve-tagger/gpu"
)

const (
	DefaultGCInterval = 5 * time.Second
	DefaultShaderName = "display"
)

// Scene owns every pass, shader, texture and node, and the GPU resources
// behind them. It is not safe for concurrent use: one goroutine owns the
// scene together with its device.
type Scene struct {
	ClearColor core.Color
	Uniforms   Uniforms
	GCInterval time.Duration

	shaderDir string

	passes          map[string]*Pass
	shaders         map[string]*Shader
	textures        map[string]*Texture
	nodes           map[string]*Node
	removedShaders  []*Shader
	removedTextures []*Texture
	removedNodes    []*Node

	defaultCamera *CameraCell
	defaultShader *ShaderCell

	depthMap    []float32
	depthWidth  int
	depthHeight int
	lastSweep   time.Time
}

// NewScene returns an empty scene loading shader sources from shaderDir.
func NewScene(shaderDir string) *Scene {
	s := &Scene{
		ClearColor: core.Color{R: 0.5, G: 0.5, B: 0.5, A: 1},
		Uniforms:   Uniforms{},
		GCInterval: DefaultGCInterval,
		shaderDir:  shaderDir,
		passes:     map[string]*Pass{},
		shaders:    map[string]*Shader{},
		textures:   map[string]*Texture{},
		nodes:      map[string]*Node{},
		lastSweep:  time.Now(),
	}
	s.defaultCamera = &CameraCell{camera: NewCamera("", Ortho2D, CameraStyle())}
	s.defaultShader = &ShaderCell{shader: s.Shader(DefaultShaderName)}
	return s
}

func (s *Scene) ShaderDir() string { return s.shaderDir }

// ── Passes ────────────────────────────────────────────────────────────────────

// AddPass creates a pass bound to the default camera and shader cells.
func (s *Scene) AddPass(name string, order int) *Pass {
	if _, ok := s.passes[name]; ok {
		panic(fmt.Sprintf("scene: pass %q already exists", name))
	}
	p := newPass(name, s.defaultCamera, s.defaultShader)
	p.Order = order
	s.passes[name] = p
	return p
}

func (s *Scene) HasPass(name string) bool {
	_, ok := s.passes[name]
	return ok
}

func (s *Scene) Pass(name string) *Pass {
	p, ok := s.passes[name]
	if !ok {
		panic(fmt.Sprintf("scene: pass %q doesn't exist", name))
	}
	return p
}

// RemovePass detaches the pass from its shader and nodes and drops it.
func (s *Scene) RemovePass(name string) {
	p := s.Pass(name)
	p.cleanup()
	delete(s.passes, name)
}

// Passes returns the passes in render order.
func (s *Scene) Passes() []*Pass {
	out := slices.Collect(maps.Values(s.passes))
	slices.SortFunc(out, func(a, b *Pass) int {
		return cmp.Or(cmp.Compare(a.Order, b.Order), cmp.Compare(a.Name, b.Name))
	})
	return out
}

// ── Shared resources ──────────────────────────────────────────────────────────

// Shader returns the shader built from <dir>/<name>.vs|.fs, creating the
// registry entry on first use. Compilation happens on first enable.
func (s *Scene) Shader(name string) *Shader {
	if sh, ok := s.shaders[name]; ok {
		return sh
	}
	sh := newShader(s.shaderDir, name)
	s.shaders[name] = sh
	return sh
}

// Texture returns the texture for filename, creating the registry entry on
// first use.
func (s *Scene) Texture(filename string) *Texture {
	if t, ok := s.textures[filename]; ok {
		return t
	}
	t := newTexture(filename)
	s.textures[filename] = t
	return t
}

func (s *Scene) DefaultCamera() *CameraCell { return s.defaultCamera }
func (s *Scene) DefaultShader() *ShaderCell { return s.defaultShader }

func (s *Scene) SetDefaultCamera(c *Camera)  { s.defaultCamera.Set(c) }
func (s *Scene) SetDefaultShader(sh *Shader) { s.defaultShader.Set(sh) }

// ── Nodes ─────────────────────────────────────────────────────────────────────

// AddNode registers n. Registering the same node twice is a no-op; another
// node under the same name is a programming error.
func (s *Scene) AddNode(n *Node) *Node {
	if existing, ok := s.nodes[n.name]; ok {
		if existing != n {
			panic(fmt.Sprintf("scene: node %q already exists", n.name))
		}
		return n
	}
	s.nodes[n.name] = n
	return n
}

func (s *Scene) HasNode(name string) bool {
	_, ok := s.nodes[name]
	return ok
}

func (s *Scene) Node(name string) *Node {
	n, ok := s.nodes[name]
	if !ok {
		panic(fmt.Sprintf("scene: node %q doesn't exist", name))
	}
	return n
}

// Nodes returns the registered nodes sorted by name.
func (s *Scene) Nodes() []*Node {
	out := slices.Collect(maps.Values(s.nodes))
	slices.SortFunc(out, func(a, b *Node) int { return cmp.Compare(a.name, b.name) })
	return out
}

// RemoveNode unregisters the node and detaches it from its passes. GPU
// buffers are released on the next sweep.
func (s *Scene) RemoveNode(name string) {
	n := s.Node(name)
	n.cleanup()
	s.removedNodes = append(s.removedNodes, n)
	delete(s.nodes, name)
}

// RemoveNodesByPrefix removes every node whose name starts with prefix.
func (s *Scene) RemoveNodesByPrefix(prefix string) {
	for name, n := range s.nodes {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		n.cleanup()
		s.removedNodes = append(s.removedNodes, n)
		delete(s.nodes, name)
	}
}

// camera returns the registered camera called name or registers c.
func (s *Scene) camera(name string, build func() *Camera) *Camera {
	if n, ok := s.nodes[name]; ok {
		if n.camera == nil {
			panic(fmt.Sprintf("scene: node %q is not a camera", name))
		}
		return n.camera
	}
	c := build()
	s.AddNode(c.node)
	return c
}

// Ortho2DCamera returns the named camera, creating it on first use.
func (s *Scene) Ortho2DCamera(name string) *Camera {
	return s.camera(name, func() *Camera { return NewCamera(name, Ortho2D, CameraStyle()) })
}

func (s *Scene) OrthoCamera(name string) *Camera {
	return s.camera(name, func() *Camera { return NewCamera(name, Ortho, CameraStyle()) })
}

func (s *Scene) PerspectiveCamera(name string) *Camera {
	return s.camera(name, func() *Camera { return NewCamera(name, Perspective, CameraStyle()) })
}

// ViewCamera returns the named camera looking through pose.
func (s *Scene) ViewCamera(name string, pose ViewPose, style Style) *Camera {
	return s.camera(name, func() *Camera { return NewViewCamera(name, pose, style) })
}

func (s *Scene) AddAxis(name string, style Style, order int) *Node {
	n := NewAxis(name, style)
	n.Order = order
	return s.AddNode(n)
}

func (s *Scene) AddMesh(name string, pointSize, lineWidth float32, order int) *Node {
	n := NewMesh(name, pointSize, lineWidth)
	n.Order = order
	return s.AddNode(n)
}

func (s *Scene) AddPlane(name string, style Style, order int) *Node {
	n := NewPlane(name, style)
	n.Order = order
	return s.AddNode(n)
}

func (s *Scene) AddPointCloud(name string, pointSize float32, displayRatio float64, order int) *PointCloud {
	pc := NewPointCloud(name, pointSize, displayRatio)
	pc.node.Order = order
	s.AddNode(pc.node)
	return pc
}

func (s *Scene) AddQuad(name string, style Style, order int) *Node {
	n := NewQuad(name, style)
	n.Order = order
	return s.AddNode(n)
}

func (s *Scene) AddBBox(name string, size mgl64.Vec3, style Style, order int) *Node {
	n := NewBBox(name, size, style)
	n.Order = order
	return s.AddNode(n)
}

// ── Garbage collection ────────────────────────────────────────────────────────

// HasGarbage reports whether a Sweep would release anything.
func (s *Scene) HasGarbage() bool {
	if len(s.removedNodes) > 0 || len(s.removedShaders) > 0 || len(s.removedTextures) > 0 {
		return true
	}
	for _, sh := range s.shaders {
		if sh.HasGarbage() {
			return true
		}
	}
	for _, t := range s.textures {
		if t.HasGarbage() {
			return true
		}
	}
	for _, n := range s.nodes {
		if n.HasGarbage() {
			return true
		}
	}
	return false
}

// Destroy unregisters everything. The GPU side is released by the next
// Sweep, which must run on the device's goroutine.
func (s *Scene) Destroy() {
	s.removedShaders = append(s.removedShaders, slices.Collect(maps.Values(s.shaders))...)
	s.removedTextures = append(s.removedTextures, slices.Collect(maps.Values(s.textures))...)
	s.removedNodes = append(s.removedNodes, slices.Collect(maps.Values(s.nodes))...)
	s.passes = map[string]*Pass{}
	s.shaders = map[string]*Shader{}
	s.textures = map[string]*Texture{}
	s.nodes = map[string]*Node{}
}

// Sweep releases unused GPU resources and flushes the removal lists.
func (s *Scene) Sweep(d gpu.Device) {
	released := 0
	for _, sh := range s.shaders {
		if sh.HasGarbage() {
			sh.Destroy(d)
			released++
		}
	}
	for _, t := range s.textures {
		if t.HasGarbage() {
			t.Destroy(d)
			released++
		}
	}
	for _, n := range s.nodes {
		if n.HasGarbage() {
			n.Destroy(d)
			released++
		}
	}
	for _, n := range s.removedNodes {
		n.cleanup()
		n.Destroy(d)
		released++
	}
	s.removedNodes = nil
	for _, sh := range s.removedShaders {
		sh.Cleanup()
		sh.Destroy(d)
		released++
	}
	s.removedShaders = nil
	for _, t := range s.removedTextures {
		t.Cleanup()
		t.Destroy(d)
		released++
	}
	s.removedTextures = nil
	s.lastSweep = time.Now()
	if released > 0 {
		core.Logger().Debug("scene sweep", "released", released)
	}
}

// MaybeSweep runs Sweep when the GC interval elapsed since the last one.
func (s *Scene) MaybeSweep(d gpu.Device, now time.Time) bool {
	if now.Sub(s.lastSweep) < s.GCInterval {
		return false
	}
	s.Sweep(d)
	s.lastSweep = now
	return true
}

// ── Rendering ─────────────────────────────────────────────────────────────────

// Render clears the framebuffer and runs every pass in order. uniforms are
// pushed to every node, overridden by the scene and pass uniforms.
func (s *Scene) Render(d gpu.Device, width, height int, uniforms Uniforms) error {
	d.SetColorMask(true, true, true, true)
	d.SetDepthMask(true)
	d.SetStencilMask(0xffffffff)
	d.Clear(s.ClearColor.Array())

	merged := uniforms.Clone().Merge(s.Uniforms)

	depthChanged := false
	for _, p := range s.Passes() {
		changed, err := p.Render(d, width, height, merged)
		if err != nil {
			return err
		}
		depthChanged = depthChanged || changed
	}
	if depthChanged {
		s.InvalidateDepth()
	}
	return nil
}

// InvalidateDepth drops the cached depth map.
func (s *Scene) InvalidateDepth() {
	s.depthMap = nil
}

// DepthMap returns the depth buffer, rows top-down, reading it back only
// when the scene moved since the previous read.
func (s *Scene) DepthMap(d gpu.Device, width, height int) []float32 {
	if s.depthMap != nil && s.depthWidth == width && s.depthHeight == height {
		return s.depthMap
	}
	raw := d.ReadDepth(0, 0, width, height)
	flipped := make([]float32, len(raw))
	for y := range height {
		src := raw[(height-1-y)*width : (height-y)*width]
		copy(flipped[y*width:(y+1)*width], src)
	}
	s.depthMap = flipped
	s.depthWidth = width
	s.depthHeight = height
	return flipped
}

// Depth returns the depth at pixel (x, y), y counted from the top. Pixels
// outside the viewport read as the far plane.
func (s *Scene) Depth(d gpu.Device, x, y, width, height int) float32 {
	if x < 0 || y < 0 || x >= width || y >= height {
		return 1
	}
	return s.DepthMap(d, width, height)[y*width+x]
}
