// Package gputest provides an in-memory gpu.Device that records what the
// scene graph asks of it.
package gputest

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"maps"
	"slices"

	"mve-tagger/gpu"
)

// Program is a linked program as seen by the fake device.
type Program struct {
	Vertex   string
	Fragment string
	Uniforms map[string][]float32
	Deleted  bool
}

// Attrib is the last pointer set for a vertex attribute.
type Attrib struct {
	Components int
	Type       gpu.DataType
	Normalized bool
	Stride     int
	Offset     int
	Buffer     gpu.Handle
	Enabled    bool
}

// Draw is one recorded draw call.
type Draw struct {
	Mode    gpu.Primitive
	First   int
	Count   int
	Indexed bool
	Type    gpu.DataType
	Offset  int
	Program gpu.Handle
	// Attribs lists the attribute names enabled at draw time.
	Attribs []string
}

type location struct {
	program gpu.Handle
	name    string
}

// Device records calls instead of talking to a GPU. It is not safe for
// concurrent use; tests drive it from one goroutine at a time.
type Device struct {
	Calls []string
	Draws []Draw

	Programs     map[gpu.Handle]*Program
	Buffers      map[gpu.Handle][]byte
	Textures     map[gpu.Handle]image.Rectangle
	Framebuffers map[gpu.Handle]image.Rectangle
	Attribs      map[string]*Attrib

	// FailPrograms, when set, is returned by CreateProgram.
	FailPrograms error

	// Depth is returned by ReadDepth when its length matches the request;
	// otherwise every sample is DepthValue.
	Depth      []float32
	DepthValue float32
	ClearColor [4]float32

	ReadDepthCalls int
	ReadColorCalls int

	LastViewport [4]int
	ColorMask    [4]bool
	DepthMask    bool
	DepthTest    bool
	CullFace     bool
	Blend        bool
	LineWidth    float32
	StencilMask  uint32

	next        gpu.Handle
	program     gpu.Handle
	framebuffer gpu.Handle
	bound       map[gpu.BufferTarget]gpu.Handle
	textures    map[int]gpu.Handle
	locations   map[location]int32
	names       map[int32]location
}

// New returns an empty device with GL's initial state.
func New() *Device {
	return &Device{
		Programs:     map[gpu.Handle]*Program{},
		Buffers:      map[gpu.Handle][]byte{},
		Textures:     map[gpu.Handle]image.Rectangle{},
		Framebuffers: map[gpu.Handle]image.Rectangle{},
		Attribs:      map[string]*Attrib{},
		DepthValue:   1,
		ColorMask:    [4]bool{true, true, true, true},
		DepthMask:    true,
		LineWidth:    1,
		StencilMask:  ^uint32(0),
		bound:        map[gpu.BufferTarget]gpu.Handle{},
		textures:     map[int]gpu.Handle{},
		locations:    map[location]int32{},
		names:        map[int32]location{},
	}
}

var _ gpu.Device = (*Device)(nil)

func (d *Device) record(format string, args ...any) {
	d.Calls = append(d.Calls, fmt.Sprintf(format, args...))
}

func (d *Device) handle() gpu.Handle {
	d.next++
	return d.next
}

// Count returns how many recorded calls start with prefix.
func (d *Device) Count(prefix string) int {
	n := 0
	for _, c := range d.Calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// Uniform returns the last value pushed for name on the given program.
func (d *Device) Uniform(program gpu.Handle, name string) []float32 {
	p, ok := d.Programs[program]
	if !ok {
		return nil
	}
	return p.Uniforms[name]
}

// LiveBuffers returns how many buffers have not been deleted.
func (d *Device) LiveBuffers() int { return len(d.Buffers) }

// LivePrograms returns how many programs have not been deleted.
func (d *Device) LivePrograms() int {
	n := 0
	for _, p := range d.Programs {
		if !p.Deleted {
			n++
		}
	}
	return n
}

// CurrentProgram returns the program bound by UseProgram.
func (d *Device) CurrentProgram() gpu.Handle { return d.program }

// BoundTexture returns the texture bound to unit.
func (d *Device) BoundTexture(unit int) gpu.Handle { return d.textures[unit] }

func (d *Device) Viewport(x, y, width, height int) {
	d.LastViewport = [4]int{x, y, width, height}
	d.record("Viewport %d %d %d %d", x, y, width, height)
}

func (d *Device) Clear(c [4]float32) {
	d.ClearColor = c
	d.record("Clear")
}

func (d *Device) SetColorMask(r, g, b, a bool) { d.ColorMask = [4]bool{r, g, b, a} }
func (d *Device) SetDepthMask(enabled bool)    { d.DepthMask = enabled }
func (d *Device) SetDepthTest(enabled bool)    { d.DepthTest = enabled }
func (d *Device) SetStencilMask(mask uint32)   { d.StencilMask = mask }
func (d *Device) DisableStencil()              { d.StencilMask = 0 }
func (d *Device) SetCullFace(enabled bool)     { d.CullFace = enabled }
func (d *Device) SetBlend(enabled bool)        { d.Blend = enabled }
func (d *Device) SetLineWidth(width float32)   { d.LineWidth = width }
func (d *Device) EnableProgramPointSize()      {}

func (d *Device) CreateBuffer() (gpu.Handle, error) {
	h := d.handle()
	d.Buffers[h] = nil
	d.record("CreateBuffer %d", h)
	return h, nil
}

func (d *Device) BufferData(target gpu.BufferTarget, buffer gpu.Handle, data []byte) {
	if _, ok := d.Buffers[buffer]; !ok {
		panic(fmt.Sprintf("gputest: BufferData on unknown buffer %d", buffer))
	}
	d.Buffers[buffer] = slices.Clone(data)
	d.record("BufferData %d %d", buffer, len(data))
}

func (d *Device) BindBuffer(target gpu.BufferTarget, buffer gpu.Handle) {
	d.bound[target] = buffer
}

func (d *Device) DeleteBuffer(buffer gpu.Handle) {
	delete(d.Buffers, buffer)
	d.record("DeleteBuffer %d", buffer)
}

func (d *Device) CreateProgram(vertex, fragment string) (gpu.Handle, error) {
	if d.FailPrograms != nil {
		return 0, d.FailPrograms
	}
	if vertex == "" || fragment == "" {
		return 0, errors.New("gputest: empty shader source")
	}
	h := d.handle()
	d.Programs[h] = &Program{Vertex: vertex, Fragment: fragment, Uniforms: map[string][]float32{}}
	d.record("CreateProgram %d", h)
	return h, nil
}

func (d *Device) UseProgram(program gpu.Handle) {
	d.program = program
}

func (d *Device) DeleteProgram(program gpu.Handle) {
	if p, ok := d.Programs[program]; ok {
		p.Deleted = true
	}
	d.record("DeleteProgram %d", program)
}

func (d *Device) locate(program gpu.Handle, name string) int32 {
	key := location{program, name}
	if loc, ok := d.locations[key]; ok {
		return loc
	}
	loc := int32(len(d.locations))
	d.locations[key] = loc
	d.names[loc] = key
	return loc
}

func (d *Device) UniformLocation(program gpu.Handle, name string) int32 {
	return d.locate(program, name)
}

func (d *Device) AttribLocation(program gpu.Handle, name string) int32 {
	return d.locate(program, name)
}

func (d *Device) setUniform(loc int32, v []float32) {
	key, ok := d.names[loc]
	if !ok {
		return
	}
	if key.program != d.program {
		panic(fmt.Sprintf("gputest: uniform %q set while program %d is not bound", key.name, key.program))
	}
	d.Programs[key.program].Uniforms[key.name] = v
}

func (d *Device) Uniformf(loc int32, values ...float32) {
	d.setUniform(loc, slices.Clone(values))
}

func (d *Device) Uniformi(loc int32, values ...int32) {
	v := make([]float32, len(values))
	for i, x := range values {
		v[i] = float32(x)
	}
	d.setUniform(loc, v)
}

func (d *Device) UniformMatrix4(loc int32, m [16]float32) {
	d.setUniform(loc, m[:])
}

func (d *Device) attrib(loc uint32) *Attrib {
	key, ok := d.names[int32(loc)]
	if !ok {
		panic(fmt.Sprintf("gputest: unknown attribute location %d", loc))
	}
	a, ok := d.Attribs[key.name]
	if !ok {
		a = &Attrib{}
		d.Attribs[key.name] = a
	}
	return a
}

func (d *Device) VertexAttribPointer(loc uint32, components int, dtype gpu.DataType, normalized bool, stride, offset int) {
	a := d.attrib(loc)
	a.Components = components
	a.Type = dtype
	a.Normalized = normalized
	a.Stride = stride
	a.Offset = offset
	a.Buffer = d.bound[gpu.ArrayBuffer]
}

func (d *Device) EnableVertexAttribArray(loc uint32)  { d.attrib(loc).Enabled = true }
func (d *Device) DisableVertexAttribArray(loc uint32) { d.attrib(loc).Enabled = false }

func (d *Device) CreateTexture(img *image.RGBA) (gpu.Handle, error) {
	h := d.handle()
	d.Textures[h] = img.Bounds()
	d.record("CreateTexture %d %dx%d", h, img.Bounds().Dx(), img.Bounds().Dy())
	return h, nil
}

func (d *Device) BindTexture(unit int, texture gpu.Handle) {
	d.textures[unit] = texture
}

func (d *Device) DeleteTexture(texture gpu.Handle) {
	delete(d.Textures, texture)
	d.record("DeleteTexture %d", texture)
}

func (d *Device) enabledAttribs() []string {
	var names []string
	for _, name := range slices.Sorted(maps.Keys(d.Attribs)) {
		if d.Attribs[name].Enabled {
			names = append(names, name)
		}
	}
	return names
}

func (d *Device) DrawArrays(mode gpu.Primitive, first, count int) {
	d.Draws = append(d.Draws, Draw{Mode: mode, First: first, Count: count, Program: d.program, Attribs: d.enabledAttribs()})
	d.record("DrawArrays %d %d %d", mode, first, count)
}

func (d *Device) DrawElements(mode gpu.Primitive, count int, dtype gpu.DataType, offset int) {
	if d.bound[gpu.ElementArrayBuffer] == 0 {
		panic("gputest: DrawElements without an element buffer")
	}
	d.Draws = append(d.Draws, Draw{Mode: mode, Count: count, Indexed: true, Type: dtype, Offset: offset, Program: d.program, Attribs: d.enabledAttribs()})
	d.record("DrawElements %d %d %d", mode, count, offset)
}

func (d *Device) ReadDepth(x, y, width, height int) []float32 {
	d.ReadDepthCalls++
	out := make([]float32, width*height)
	if len(d.Depth) == len(out) {
		copy(out, d.Depth)
		return out
	}
	for i := range out {
		out[i] = d.DepthValue
	}
	return out
}

func (d *Device) ReadColor(x, y, width, height int) *image.RGBA {
	d.ReadColorCalls++
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	c := color.RGBA{
		R: uint8(d.ClearColor[0] * 255),
		G: uint8(d.ClearColor[1] * 255),
		B: uint8(d.ClearColor[2] * 255),
		A: uint8(d.ClearColor[3] * 255),
	}
	for py := range height {
		for px := range width {
			img.SetRGBA(px, py, c)
		}
	}
	return img
}

func (d *Device) CreateFramebuffer(width, height int) (gpu.Handle, error) {
	h := d.handle()
	d.Framebuffers[h] = image.Rect(0, 0, width, height)
	d.record("CreateFramebuffer %d %dx%d", h, width, height)
	return h, nil
}

func (d *Device) BindFramebuffer(framebuffer gpu.Handle) {
	d.framebuffer = framebuffer
	d.record("BindFramebuffer %d", framebuffer)
}

func (d *Device) DeleteFramebuffer(framebuffer gpu.Handle) {
	delete(d.Framebuffers, framebuffer)
	d.record("DeleteFramebuffer %d", framebuffer)
}
