package scene

import (
	"errors"
	"fmt"
	"slices"
	"unsafe"

	"mve-tagger/gpu"
)

// ErrUnsupportedIndexType is returned for index types other than unsigned
// 8, 16 or 32 bit integers.
var ErrUnsupportedIndexType = errors.New("unsupported index type")

// Attribute is one named per-vertex array of a VertexBuffer.
type Attribute struct {
	Name       string
	Data       []byte
	Components int
	Type       gpu.DataType
	Enabled    bool
}

// size returns the byte length the attribute occupies for n vertices.
func (a *Attribute) size(n int) int {
	return n * a.Components * a.Type.Size()
}

// VertexBuffer holds named attributes for a fixed number of vertices. On the
// GPU every attribute gets one contiguous block, in insertion order.
type VertexBuffer struct {
	Vertices int
	Uniforms Uniforms

	attrs   []*Attribute
	offsets map[string]int
	handle  gpu.Handle
	dirty   bool
}

func NewVertexBuffer(vertices int) *VertexBuffer {
	return &VertexBuffer{
		Vertices: vertices,
		Uniforms: Uniforms{},
		offsets:  map[string]int{},
		dirty:    true,
	}
}

// bytesOf reinterprets a numeric slice as raw bytes without copying.
func bytesOf[T uint8 | uint16 | uint32 | float32](v []T) []byte {
	if len(v) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*int(unsafe.Sizeof(zero)))
}

// Reset drops every attribute and declares a new vertex count.
func (b *VertexBuffer) Reset(vertices int) {
	b.Vertices = vertices
	b.attrs = nil
	b.offsets = map[string]int{}
	b.dirty = true
}

// Add stores an attribute. Replacing an existing name keeps its position.
// Data shorter than the declared vertex count is a programming error.
func (b *VertexBuffer) Add(name string, data []byte, components int, dtype gpu.DataType) *Attribute {
	if dtype.Size() == 0 {
		panic(fmt.Sprintf("scene: attribute %q: unsupported type %v", name, dtype))
	}
	attr := &Attribute{Name: name, Data: data, Components: components, Type: dtype, Enabled: true}
	if len(data) < attr.size(b.Vertices) {
		panic(fmt.Sprintf("scene: attribute %q: %d bytes for %d vertices", name, len(data), b.Vertices))
	}
	if i := b.index(name); i >= 0 {
		b.attrs[i] = attr
	} else {
		b.attrs = append(b.attrs, attr)
	}
	b.dirty = true
	return attr
}

func (b *VertexBuffer) AddFloat32(name string, data []float32, components int) *Attribute {
	return b.Add(name, bytesOf(data), components, gpu.Float)
}

func (b *VertexBuffer) AddUint8(name string, data []uint8, components int) *Attribute {
	return b.Add(name, data, components, gpu.UnsignedByte)
}

func (b *VertexBuffer) Remove(name string) {
	if i := b.index(name); i >= 0 {
		b.attrs = slices.Delete(b.attrs, i, i+1)
		b.dirty = true
	}
}

// Attribute returns the named attribute or nil.
func (b *VertexBuffer) Attribute(name string) *Attribute {
	if i := b.index(name); i >= 0 {
		return b.attrs[i]
	}
	return nil
}

// Attributes returns the attributes in upload order.
func (b *VertexBuffer) Attributes() []*Attribute {
	return slices.Clone(b.attrs)
}

func (b *VertexBuffer) index(name string) int {
	return slices.IndexFunc(b.attrs, func(a *Attribute) bool { return a.Name == name })
}

// MarkDirty schedules a re-upload on the next Enable.
func (b *VertexBuffer) MarkDirty() { b.dirty = true }

func (b *VertexBuffer) Dirty() bool { return b.dirty }

// Offset returns the byte offset of the named attribute's block.
func (b *VertexBuffer) Offset(name string) (int, bool) {
	off, ok := b.offsets[name]
	return off, ok
}

func (b *VertexBuffer) Created() bool { return b.handle != 0 }

// Create lays out the blocks and uploads them.
func (b *VertexBuffer) Create(d gpu.Device) error {
	if b.handle == 0 {
		h, err := d.CreateBuffer()
		if err != nil {
			return fmt.Errorf("create vertex buffer: %w", err)
		}
		b.handle = h
	}
	b.offsets = map[string]int{}
	size := 0
	for _, a := range b.attrs {
		b.offsets[a.Name] = size
		size += a.size(b.Vertices)
	}
	packed := make([]byte, size)
	for _, a := range b.attrs {
		off := b.offsets[a.Name]
		copy(packed[off:off+a.size(b.Vertices)], a.Data)
	}
	d.BufferData(gpu.ArrayBuffer, b.handle, packed)
	b.dirty = false
	return nil
}

// Destroy releases the GPU buffer and keeps the CPU data for a later Create.
func (b *VertexBuffer) Destroy(d gpu.Device) {
	if b.handle == 0 {
		return
	}
	d.DeleteBuffer(b.handle)
	b.handle = 0
	b.dirty = true
}

// Enable uploads if needed, pushes the buffer uniforms and binds every
// enabled attribute.
func (b *VertexBuffer) Enable(d gpu.Device, shader *Shader) error {
	if b.dirty || b.handle == 0 {
		if err := b.Create(d); err != nil {
			return err
		}
	}
	shader.SetUniforms(b.Uniforms)
	d.BindBuffer(gpu.ArrayBuffer, b.handle)
	for _, a := range b.attrs {
		if a.Enabled {
			shader.SetAttribute(a.Name, a.Type, b.offsets[a.Name], a.Components, 0)
		}
	}
	d.BindBuffer(gpu.ArrayBuffer, 0)
	return nil
}

func (b *VertexBuffer) Disable(d gpu.Device, shader *Shader) {
	for _, a := range b.attrs {
		if a.Enabled {
			shader.UnsetAttribute(a.Name)
		}
	}
}

// IndexBuffer holds element indices for a draw-elements command.
type IndexBuffer struct {
	Count     int
	Primitive gpu.Primitive
	Type      gpu.DataType
	Uniforms  Uniforms

	data   []byte
	handle gpu.Handle
	dirty  bool
}

func NewIndexBuffer() *IndexBuffer {
	return &IndexBuffer{Primitive: gpu.Points, Type: gpu.UnsignedInt, Uniforms: Uniforms{}, dirty: true}
}

// Set replaces the indices. Only unsigned 8, 16 and 32 bit indices exist.
func (b *IndexBuffer) Set(count int, data []byte, primitive gpu.Primitive, dtype gpu.DataType) error {
	switch dtype {
	case gpu.UnsignedByte, gpu.UnsignedShort, gpu.UnsignedInt:
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedIndexType, dtype)
	}
	if len(data) < count*dtype.Size() {
		return fmt.Errorf("index buffer: %d bytes for %d indices", len(data), count)
	}
	b.Count = count
	b.data = data
	b.Primitive = primitive
	b.Type = dtype
	b.dirty = true
	return nil
}

func (b *IndexBuffer) SetUint32(indices []uint32, primitive gpu.Primitive) {
	// uint32 is always a valid index type
	_ = b.Set(len(indices), bytesOf(indices), primitive, gpu.UnsignedInt)
}

func (b *IndexBuffer) Created() bool { return b.handle != 0 }

func (b *IndexBuffer) Create(d gpu.Device) error {
	if b.handle == 0 {
		h, err := d.CreateBuffer()
		if err != nil {
			return fmt.Errorf("create index buffer: %w", err)
		}
		b.handle = h
	}
	d.BufferData(gpu.ElementArrayBuffer, b.handle, b.data[:b.Count*b.Type.Size()])
	b.dirty = false
	return nil
}

func (b *IndexBuffer) Destroy(d gpu.Device) {
	if b.handle == 0 {
		return
	}
	d.DeleteBuffer(b.handle)
	b.handle = 0
	b.dirty = true
}

func (b *IndexBuffer) Enable(d gpu.Device, shader *Shader) error {
	if b.dirty || b.handle == 0 {
		if err := b.Create(d); err != nil {
			return err
		}
	}
	shader.SetUniforms(b.Uniforms)
	d.BindBuffer(gpu.ElementArrayBuffer, b.handle)
	return nil
}

func (b *IndexBuffer) Disable(d gpu.Device, shader *Shader) {
	d.BindBuffer(gpu.ElementArrayBuffer, 0)
}
