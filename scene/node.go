package scene

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"

	"mve-tagger/core"
	"mve-tagger/gpu"
	"mve-tagger/math"
)

// Kind selects the behavior variant of a Node.
type Kind int

const (
	KindMesh Kind = iota
	KindPointCloud
	KindCamera
)

func (k Kind) String() string {
	switch k {
	case KindPointCloud:
		return "pointcloud"
	case KindCamera:
		return "camera"
	}
	return "mesh"
}

// Node is a named, positioned renderable. Every node owns an ordered set of
// draw commands; point clouds and cameras add their own behavior on top.
type Node struct {
	Kind      Kind
	Order     int
	Visible   bool
	Uniforms  Uniforms
	PointSize float32
	LineWidth float32

	name     string
	created  bool
	model    mgl64.Mat4
	moved    atomic.Bool
	texture  *Texture
	passes   map[string]*Pass
	commands map[string]*DrawCommand
	removed  []*DrawCommand

	cloud  *PointCloud
	camera *Camera
}

func newNode(name string, kind Kind, pointSize, lineWidth float32) *Node {
	if name == "" {
		name = autoName(kind.String())
	}
	n := &Node{
		Kind:      kind,
		Visible:   true,
		PointSize: pointSize,
		LineWidth: lineWidth,
		Uniforms: Uniforms{
			"colors":     Ints(0),
			"pointSize":  Floats(1, 0),
			"hasTexture": Bool(false),
		},
		name:     name,
		model:    math.Identity(),
		passes:   map[string]*Pass{},
		commands: map[string]*DrawCommand{},
	}
	n.moved.Store(true)
	return n
}

// NewMesh returns a detached mesh node; Scene.AddMesh registers one.
func NewMesh(name string, pointSize, lineWidth float32) *Node {
	return newNode(name, KindMesh, pointSize, lineWidth)
}

func (n *Node) Name() string      { return n.name }
func (n *Node) Created() bool     { return n.created }
func (n *Node) Model() mgl64.Mat4 { return n.model }
func (n *Node) Texture() *Texture { return n.texture }

// PointCloud returns the point cloud variant, nil for other kinds.
func (n *Node) PointCloud() *PointCloud { return n.cloud }

// Camera returns the camera variant, nil for other kinds.
func (n *Node) Camera() *Camera { return n.camera }

// Passes returns the names of the passes the node is attached to.
func (n *Node) Passes() []string {
	return slices.Sorted(maps.Keys(n.passes))
}

func (n *Node) Show()   { n.Visible = true }
func (n *Node) Hide()   { n.Visible = false }
func (n *Node) Toggle() { n.Visible = !n.Visible }

// Moved reports whether the node moved since the previous call and clears
// the flag.
func (n *Node) Moved() bool {
	return n.moved.Swap(false)
}

func (n *Node) markMoved() { n.moved.Store(true) }

// Origin resets the node transform.
func (n *Node) Origin() {
	if n.camera != nil {
		n.camera.Origin()
		return
	}
	n.model = math.Identity()
	n.markMoved()
}

func (n *Node) Translate(tx, ty, tz float64) {
	if n.camera != nil {
		n.camera.translate(tx, ty, tz)
		return
	}
	n.model = math.Translate(tx, ty, tz).Mul4(n.model)
	n.markMoved()
}

// Rotate turns the node angle degrees around an axis. Cameras only accept
// Orient.
func (n *Node) Rotate(angle, ax, ay, az float64) {
	if n.Kind == KindCamera {
		panic(fmt.Sprintf("scene: camera %q cannot be rotated in world coordinates", n.name))
	}
	n.model = math.Rotate(angle, ax, ay, az).Mul4(n.model)
	n.markMoved()
}

func (n *Node) AttachTexture(t *Texture) {
	if t == nil {
		panic("scene: texture is required")
	}
	if n.texture == t {
		return
	}
	if n.texture != nil {
		n.texture.Detach(n)
	}
	n.texture = t
	t.Attach(n)
	n.Uniforms["hasTexture"] = Bool(true)
}

// DetachTexture drops t if it is the attached texture.
func (n *Node) DetachTexture(t *Texture) {
	if n.texture == nil || n.texture != t {
		return
	}
	n.texture.Detach(n)
	n.texture = nil
	n.Uniforms["hasTexture"] = Bool(false)
}

func (n *Node) attachPass(p *Pass) { n.passes[p.Name] = p }
func (n *Node) detachPass(p *Pass) { delete(n.passes, p.Name) }

// HasGarbage reports whether the node holds GPU buffers but is no longer
// rendered by any pass.
func (n *Node) HasGarbage() bool {
	return n.created && len(n.passes) == 0
}

// cleanup detaches the node from its texture and every pass.
func (n *Node) cleanup() {
	n.DetachTexture(n.texture)
	for _, p := range n.passes {
		p.DetachNode(n)
	}
}

// ── Draw commands ─────────────────────────────────────────────────────────────

// AddCommand registers c. Re-adding the same command is a no-op; a
// different command under an existing name is a programming error.
func (n *Node) AddCommand(c *DrawCommand) *DrawCommand {
	if existing, ok := n.commands[c.Name]; ok {
		if existing != c {
			panic(fmt.Sprintf("scene: node %q: command %q already exists", n.name, c.Name))
		}
		return c
	}
	n.commands[c.Name] = c
	return c
}

func (n *Node) AddDrawArrays(name string, vertices *VertexBuffer, count, offset int, primitive gpu.Primitive, order int) *DrawCommand {
	c := NewDrawArrays(name, vertices, count, offset, primitive)
	c.Order = order
	return n.AddCommand(c)
}

func (n *Node) AddDrawElements(name string, vertices *VertexBuffer, indices *IndexBuffer, offset, count, order int) *DrawCommand {
	c := NewDrawElements(name, vertices, indices, offset, count)
	c.Order = order
	return n.AddCommand(c)
}

// Command returns the named command and panics when it does not exist.
func (n *Node) Command(name string) *DrawCommand {
	c, ok := n.commands[name]
	if !ok {
		panic(fmt.Sprintf("scene: node %q: command %q doesn't exist", n.name, name))
	}
	return c
}

func (n *Node) HasCommand(name string) bool {
	_, ok := n.commands[name]
	return ok
}

// RemoveCommand unregisters a command; its buffers are released on the
// next render or destroy.
func (n *Node) RemoveCommand(name string) {
	c := n.Command(name)
	delete(n.commands, name)
	n.removed = append(n.removed, c)
}

// Commands returns the commands in draw order.
func (n *Node) Commands() []*DrawCommand {
	out := slices.Collect(maps.Values(n.commands))
	slices.SortFunc(out, func(a, b *DrawCommand) int {
		return cmp.Or(cmp.Compare(a.Order, b.Order), cmp.Compare(a.Name, b.Name))
	})
	return out
}

func (n *Node) flushRemoved(d gpu.Device) {
	for _, c := range n.removed {
		c.Destroy(d)
	}
	n.removed = nil
}

// ── Lifecycle ─────────────────────────────────────────────────────────────────

func (n *Node) create(d gpu.Device) error {
	if n.created {
		return nil
	}
	for _, c := range n.Commands() {
		if err := c.Create(d); err != nil {
			return fmt.Errorf("node %q: %w", n.name, err)
		}
	}
	n.created = true
	core.Logger().Debug("node created", "name", n.name, "kind", n.Kind)
	return nil
}

// Destroy releases the GPU buffers. Destroying a node still attached to a
// pass is a programming error.
func (n *Node) Destroy(d gpu.Device) {
	if len(n.passes) > 0 {
		panic(fmt.Sprintf("scene: node %q is attached to %v", n.name, n.Passes()))
	}
	if !n.created {
		n.flushRemoved(d)
		return
	}
	for _, c := range n.commands {
		c.Destroy(d)
	}
	n.flushRemoved(d)
	n.created = false
	core.Logger().Debug("node destroyed", "name", n.name)
}

// Render draws the node with the bound shader. Hidden nodes are skipped.
func (n *Node) Render(d gpu.Device, camera *Camera, shader *Shader) error {
	if !n.Visible {
		return nil
	}
	if err := n.create(d); err != nil {
		return err
	}

	vm := camera.ModelView().Mul4(n.model)
	shader.SetUniforms(n.Uniforms)
	shader.SetMat4("mMatrix", n.model)
	shader.SetMat4("vmMatrix", vm)
	shader.SetMat4("pvmMatrix", camera.Projection().Mul4(vm))

	if n.texture != nil {
		if err := n.texture.Enable(d); err != nil {
			return err
		}
		defer n.texture.Disable(d)
	}

	if n.preRender(d) {
		if err := n.renderCommands(d, shader); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) preRender(d gpu.Device) bool {
	if n.cloud != nil {
		n.cloud.preRender()
	}
	d.SetLineWidth(n.LineWidth)
	return true
}

func (n *Node) renderCommands(d gpu.Device, shader *Shader) error {
	for _, c := range n.Commands() {
		shader.SetVec2("pointSize", [2]float32{n.PointSize, 0})
		if err := c.Render(d, shader); err != nil {
			return err
		}
	}
	n.flushRemoved(d)
	return nil
}
