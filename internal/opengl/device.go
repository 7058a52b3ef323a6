// Package opengl implements gpu.Device on an OpenGL 4.1 core context.
package opengl

import (
	"fmt"
	"image"
	"unsafe"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"mve-tagger/core"
	"mve-tagger/gpu"
)

// Device issues GL calls on the context that is current on the calling
// thread. Every method must run on that thread.
type Device struct {
	vao          uint32
	framebuffers map[gpu.Handle]*framebuffer
}

var _ gpu.Device = (*Device)(nil)

// New initialises OpenGL.
// Must be called after the GLFW window context is made current.
func New() (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	core.Logger().Info("opengl initialized",
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)))

	d := &Device{framebuffers: map[gpu.Handle]*framebuffer{}}
	// core profile refuses attribute pointers without a bound VAO; the scene
	// graph binds attributes per draw, so one global VAO is enough
	gl.GenVertexArrays(1, &d.vao)
	gl.BindVertexArray(d.vao)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	return d, nil
}

// Release frees the objects owned by the device itself.
func (d *Device) Release() {
	for h := range d.framebuffers {
		d.DeleteFramebuffer(h)
	}
	if d.vao != 0 {
		gl.DeleteVertexArrays(1, &d.vao)
		d.vao = 0
	}
}

// ── Fixed-function state ──────────────────────────────────────────────────────

func (d *Device) Viewport(x, y, width, height int) {
	gl.Viewport(int32(x), int32(y), int32(width), int32(height))
}

func (d *Device) Clear(c [4]float32) {
	gl.ClearColor(c[0], c[1], c[2], c[3])
	gl.ClearDepthf(1)
	gl.ClearStencil(0)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT | gl.STENCIL_BUFFER_BIT)
}

func (d *Device) SetColorMask(r, g, b, a bool) { gl.ColorMask(r, g, b, a) }
func (d *Device) SetDepthMask(enabled bool)    { gl.DepthMask(enabled) }
func (d *Device) SetStencilMask(mask uint32)   { gl.StencilMask(mask) }

func (d *Device) SetDepthTest(enabled bool) {
	if enabled {
		gl.DepthFunc(gl.LEQUAL)
		gl.Enable(gl.DEPTH_TEST)
		return
	}
	gl.DepthFunc(gl.ALWAYS)
	gl.Disable(gl.DEPTH_TEST)
}

func (d *Device) DisableStencil() {
	gl.StencilMask(0)
	gl.StencilFunc(gl.NEVER, 0, 0xffffffff)
	gl.StencilOp(gl.KEEP, gl.KEEP, gl.KEEP)
}

func (d *Device) SetCullFace(enabled bool) { toggle(gl.CULL_FACE, enabled) }

func (d *Device) SetBlend(enabled bool) {
	toggle(gl.BLEND, enabled)
	if enabled {
		gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	}
}

// SetLineWidth ignores non-positive widths, which GL rejects.
func (d *Device) SetLineWidth(width float32) {
	if width > 0 {
		gl.LineWidth(width)
	}
}

func (d *Device) EnableProgramPointSize() { gl.Enable(gl.PROGRAM_POINT_SIZE) }

func toggle(capability uint32, enabled bool) {
	if enabled {
		gl.Enable(capability)
	} else {
		gl.Disable(capability)
	}
}

// ── Buffers ───────────────────────────────────────────────────────────────────

func (d *Device) CreateBuffer() (gpu.Handle, error) {
	var id uint32
	gl.GenBuffers(1, &id)
	if id == 0 {
		return 0, fmt.Errorf("glGenBuffers returned no buffer")
	}
	return gpu.Handle(id), nil
}

func (d *Device) BufferData(target gpu.BufferTarget, buffer gpu.Handle, data []byte) {
	gl.BindBuffer(uint32(target), uint32(buffer))
	if len(data) == 0 {
		gl.BufferData(uint32(target), 0, nil, gl.STATIC_DRAW)
	} else {
		gl.BufferData(uint32(target), len(data), gl.Ptr(data), gl.STATIC_DRAW)
	}
	gl.BindBuffer(uint32(target), 0)
}

func (d *Device) BindBuffer(target gpu.BufferTarget, buffer gpu.Handle) {
	gl.BindBuffer(uint32(target), uint32(buffer))
}

func (d *Device) DeleteBuffer(buffer gpu.Handle) {
	id := uint32(buffer)
	gl.DeleteBuffers(1, &id)
}

// ── Draw calls ────────────────────────────────────────────────────────────────

func (d *Device) DrawArrays(mode gpu.Primitive, first, count int) {
	gl.DrawArrays(uint32(mode), int32(first), int32(count))
}

func (d *Device) DrawElements(mode gpu.Primitive, count int, dtype gpu.DataType, offset int) {
	gl.DrawElements(uint32(mode), int32(count), uint32(dtype), gl.PtrOffset(offset))
}

// ── Read-back ─────────────────────────────────────────────────────────────────

func (d *Device) ReadDepth(x, y, width, height int) []float32 {
	out := make([]float32, width*height)
	if len(out) == 0 {
		return out
	}
	gl.ReadPixels(int32(x), int32(y), int32(width), int32(height), gl.DEPTH_COMPONENT, gl.FLOAT, unsafe.Pointer(&out[0]))
	return out
}

// ReadColor returns the color buffer flipped to image row order.
func (d *Device) ReadColor(x, y, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if width == 0 || height == 0 {
		return img
	}
	raw := make([]byte, 4*width*height)
	gl.ReadPixels(int32(x), int32(y), int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&raw[0]))
	stride := 4 * width
	for row := range height {
		copy(img.Pix[row*img.Stride:row*img.Stride+stride], raw[(height-1-row)*stride:(height-row)*stride])
	}
	return img
}
