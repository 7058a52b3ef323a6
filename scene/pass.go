package scene

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"mve-tagger/gpu"
)

// ShaderCell is a shared, re-pointable shader slot. Passes bound to a cell
// follow it when it changes.
type ShaderCell struct {
	shader *Shader
}

func (c *ShaderCell) Get() *Shader  { return c.shader }
func (c *ShaderCell) Set(s *Shader) { c.shader = s }

// CameraCell is a shared, re-pointable camera slot.
type CameraCell struct {
	camera *Camera
}

func (c *CameraCell) Get() *Camera  { return c.camera }
func (c *CameraCell) Set(k *Camera) { c.camera = k }

// Pass renders a set of nodes with one shader, one camera and one set of
// fixed-function flags.
type Pass struct {
	Name      string
	Order     int
	Enabled   bool
	ColorMask [4]bool
	DepthMask bool
	DepthTest bool
	CullFace  bool
	Blend     bool
	Uniforms  Uniforms

	camera     *Camera
	cameraCell *CameraCell
	shader     *Shader
	shaderCell *ShaderCell
	// attached is the shader currently holding this pass as a dependent.
	attached *Shader
	nodes    map[string]*Node
}

func newPass(name string, camera *CameraCell, shader *ShaderCell) *Pass {
	p := &Pass{
		Name:       name,
		Enabled:    true,
		ColorMask:  [4]bool{true, true, true, true},
		DepthMask:  true,
		DepthTest:  true,
		CullFace:   true,
		Blend:      true,
		Uniforms:   Uniforms{},
		cameraCell: camera,
		shaderCell: shader,
		nodes:      map[string]*Node{},
	}
	p.attachShader(p.Shader())
	return p
}

// Camera returns the camera the pass renders with.
func (p *Pass) Camera() *Camera {
	if p.camera != nil {
		return p.camera
	}
	return p.cameraCell.Get()
}

// SetCamera pins the pass to camera; nil rebinds it to the scene default.
func (p *Pass) SetCamera(camera *Camera) { p.camera = camera }

// Shader returns the shader the pass renders with.
func (p *Pass) Shader() *Shader {
	if p.shader != nil {
		return p.shader
	}
	if p.shaderCell != nil {
		return p.shaderCell.Get()
	}
	return nil
}

// SetShader pins the pass to shader.
func (p *Pass) SetShader(shader *Shader) {
	p.shader = shader
	p.attachShader(p.Shader())
}

// SetShaderCell binds the pass to a shared shader slot.
func (p *Pass) SetShaderCell(cell *ShaderCell) {
	p.shader = nil
	p.shaderCell = cell
	p.attachShader(p.Shader())
}

func (p *Pass) attachShader(s *Shader) {
	if p.attached == s {
		return
	}
	if p.attached != nil {
		p.attached.Detach(p)
	}
	p.attached = s
	if s != nil {
		s.Attach(p)
	}
}

func (p *Pass) detachShader(s *Shader) {
	if p.attached != s {
		return
	}
	s.Detach(p)
	p.attached = nil
	if p.shader == s {
		p.shader = nil
	}
}

// AttachNode adds n. A different node with the same name is a programming
// error.
func (p *Pass) AttachNode(n *Node) {
	if existing, ok := p.nodes[n.name]; ok {
		if existing != n {
			panic(fmt.Sprintf("scene: pass %q: node %q already exists", p.Name, n.name))
		}
		return
	}
	p.nodes[n.name] = n
	n.attachPass(p)
}

func (p *Pass) DetachNode(n *Node) {
	if existing, ok := p.nodes[n.name]; !ok || existing != n {
		panic(fmt.Sprintf("scene: pass %q: node %q not attached", p.Name, n.name))
	}
	n.detachPass(p)
	delete(p.nodes, n.name)
}

func (p *Pass) DetachNodes() {
	for _, n := range p.nodes {
		n.detachPass(p)
	}
	p.nodes = map[string]*Node{}
}

func (p *Pass) HasNode(name string) bool {
	_, ok := p.nodes[name]
	return ok
}

// Nodes returns the attached nodes in render order.
func (p *Pass) Nodes() []*Node {
	out := slices.Collect(maps.Values(p.nodes))
	slices.SortFunc(out, func(a, b *Node) int {
		return cmp.Or(cmp.Compare(a.Order, b.Order), cmp.Compare(a.name, b.name))
	})
	return out
}

func (p *Pass) Enable()  { p.Enabled = true }
func (p *Pass) Disable() { p.Enabled = false }
func (p *Pass) Toggle()  { p.Enabled = !p.Enabled }

func (p *Pass) cleanup() {
	if p.attached != nil {
		p.detachShader(p.attached)
	}
	p.DetachNodes()
}

// Render draws the attached nodes and reports whether the depth buffer may
// have changed since the previous frame.
func (p *Pass) Render(d gpu.Device, width, height int, uniforms Uniforms) (bool, error) {
	if !p.Enabled {
		return false, nil
	}
	shader := p.Shader()
	if shader == nil {
		return false, fmt.Errorf("pass %q: no shader", p.Name)
	}
	// the cell may have been re-pointed since the last frame
	p.attachShader(shader)
	camera := p.Camera()
	if camera == nil {
		return false, fmt.Errorf("pass %q: no camera", p.Name)
	}

	d.SetColorMask(p.ColorMask[0], p.ColorMask[1], p.ColorMask[2], p.ColorMask[3])
	d.SetDepthMask(p.DepthMask)
	d.SetDepthTest(p.DepthTest)
	d.DisableStencil()
	d.SetCullFace(p.CullFace)
	d.SetBlend(p.Blend)
	d.EnableProgramPointSize()

	merged := uniforms.Clone().Merge(p.Uniforms)

	if err := shader.Enable(d); err != nil {
		return false, fmt.Errorf("pass %q: %w", p.Name, err)
	}
	defer shader.Disable(d)

	camera.Setup(d, width, height, shader)

	movement := camera.node.Moved()
	for _, n := range p.Nodes() {
		shader.SetUniforms(merged)
		if err := n.Render(d, camera, shader); err != nil {
			return false, fmt.Errorf("pass %q: %w", p.Name, err)
		}
		movement = n.Moved() || movement
	}
	return p.DepthMask && movement, nil
}
