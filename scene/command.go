package scene

import (
	"github.com/google/uuid"

	"mve-tagger/gpu"
)

// DrawKind selects how a DrawCommand issues its draw call.
type DrawKind int

const (
	DrawArrays DrawKind = iota
	DrawElements
)

// DrawCommand is one draw call over a vertex buffer. Extra buffers are bound
// alongside the main one (the point cloud selection flags, for instance).
type DrawCommand struct {
	Name     string
	Kind     DrawKind
	Order    int
	Enabled  bool
	Uniforms Uniforms

	Vertices *VertexBuffer
	Extra    []*VertexBuffer
	Indices  *IndexBuffer

	// Primitive is used by draw-arrays; draw-elements uses the index
	// buffer's primitive.
	Primitive gpu.Primitive
	Offset    int
	// Count caps the number of drawn vertices or indices. Draw-elements
	// treats a negative count as "all".
	Count int
}

func autoName(prefix string) string {
	return prefix + "." + uuid.NewString()
}

// NewDrawArrays creates a draw-arrays command; a nil buffer gets an empty one.
func NewDrawArrays(name string, vertices *VertexBuffer, count, offset int, primitive gpu.Primitive) *DrawCommand {
	if name == "" {
		name = autoName("draw")
	}
	if vertices == nil {
		vertices = NewVertexBuffer(0)
	}
	return &DrawCommand{
		Name:      name,
		Kind:      DrawArrays,
		Enabled:   true,
		Uniforms:  Uniforms{},
		Vertices:  vertices,
		Primitive: primitive,
		Offset:    offset,
		Count:     count,
	}
}

// NewDrawElements creates a draw-elements command; nil buffers get empty ones.
func NewDrawElements(name string, vertices *VertexBuffer, indices *IndexBuffer, offset, count int) *DrawCommand {
	if name == "" {
		name = autoName("draw")
	}
	if vertices == nil {
		vertices = NewVertexBuffer(0)
	}
	if indices == nil {
		indices = NewIndexBuffer()
	}
	return &DrawCommand{
		Name:     name,
		Kind:     DrawElements,
		Enabled:  true,
		Uniforms: Uniforms{},
		Vertices: vertices,
		Indices:  indices,
		Offset:   offset,
		Count:    count,
	}
}

// Elements returns how many vertices or indices the next draw would emit.
func (c *DrawCommand) Elements() int {
	switch c.Kind {
	case DrawElements:
		n := c.Indices.Count - c.Offset
		if c.Count >= 0 {
			n = min(c.Count, n)
		}
		return n
	default:
		return min(c.Count, c.Vertices.Vertices-c.Offset)
	}
}

func (c *DrawCommand) Create(d gpu.Device) error {
	if err := c.Vertices.Create(d); err != nil {
		return err
	}
	for _, b := range c.Extra {
		if err := b.Create(d); err != nil {
			return err
		}
	}
	if c.Kind == DrawElements {
		return c.Indices.Create(d)
	}
	return nil
}

func (c *DrawCommand) Destroy(d gpu.Device) {
	if c.Kind == DrawElements {
		c.Indices.Destroy(d)
	}
	c.Vertices.Destroy(d)
	for _, b := range c.Extra {
		b.Destroy(d)
	}
}

// Render binds the buffers, issues the draw and unbinds them again.
func (c *DrawCommand) Render(d gpu.Device, shader *Shader) error {
	if !c.Enabled {
		return nil
	}
	shader.SetUniforms(c.Uniforms)

	if err := c.Vertices.Enable(d, shader); err != nil {
		return err
	}
	defer c.Vertices.Disable(d, shader)
	for _, b := range c.Extra {
		if err := b.Enable(d, shader); err != nil {
			return err
		}
		defer b.Disable(d, shader)
	}

	n := c.Elements()
	if n <= 0 {
		return nil
	}
	switch c.Kind {
	case DrawElements:
		if err := c.Indices.Enable(d, shader); err != nil {
			return err
		}
		d.DrawElements(c.Indices.Primitive, n, c.Indices.Type, c.Offset*c.Indices.Type.Size())
		c.Indices.Disable(d, shader)
	default:
		d.DrawArrays(c.Primitive, c.Offset, n)
	}
	return nil
}
