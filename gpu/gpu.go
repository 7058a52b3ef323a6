// Package gpu defines the slice of the graphics API used by the scene graph.
//
// The scene package never calls OpenGL directly: every GPU side effect goes
// through a Device, which is implemented by internal/opengl for a live
// context and by gpu/gputest for tests. A Device is bound to one context and
// must only be used from the goroutine that owns it.
package gpu

import "image"

// Handle names a GPU object (buffer, program, texture, framebuffer).
// The zero handle means "none".
type Handle uint32

// DataType mirrors the GL scalar type enums.
type DataType uint32

const (
	Byte          DataType = 0x1400
	UnsignedByte  DataType = 0x1401
	Short         DataType = 0x1402
	UnsignedShort DataType = 0x1403
	Int           DataType = 0x1404
	UnsignedInt   DataType = 0x1405
	Float         DataType = 0x1406
	Double        DataType = 0x140A
)

// Size returns the byte size of one element, or 0 for an unknown type.
func (t DataType) Size() int {
	switch t {
	case Byte, UnsignedByte:
		return 1
	case Short, UnsignedShort:
		return 2
	case Int, UnsignedInt, Float:
		return 4
	case Double:
		return 8
	}
	return 0
}

// Integer reports whether values of this type are normalized when fed to a
// float shader attribute.
func (t DataType) Integer() bool {
	return t != Float && t != Double
}

func (t DataType) String() string {
	switch t {
	case Byte:
		return "byte"
	case UnsignedByte:
		return "ubyte"
	case Short:
		return "short"
	case UnsignedShort:
		return "ushort"
	case Int:
		return "int"
	case UnsignedInt:
		return "uint"
	case Float:
		return "float"
	case Double:
		return "double"
	}
	return "unknown"
}

// Primitive mirrors the GL primitive enums.
type Primitive uint32

const (
	Points        Primitive = 0x0000
	Lines         Primitive = 0x0001
	LineLoop      Primitive = 0x0002
	LineStrip     Primitive = 0x0003
	Triangles     Primitive = 0x0004
	TriangleStrip Primitive = 0x0005
	TriangleFan   Primitive = 0x0006
)

// BufferTarget selects the binding point of a buffer object.
type BufferTarget uint32

const (
	ArrayBuffer        BufferTarget = 0x8892
	ElementArrayBuffer BufferTarget = 0x8893
)

// Device is the graphics context as seen by the scene graph.
type Device interface {
	// Fixed-function state.
	Viewport(x, y, width, height int)
	Clear(color [4]float32)
	SetColorMask(r, g, b, a bool)
	SetDepthMask(enabled bool)
	SetDepthTest(enabled bool)
	SetStencilMask(mask uint32)
	DisableStencil()
	SetCullFace(enabled bool)
	SetBlend(enabled bool)
	SetLineWidth(width float32)
	EnableProgramPointSize()

	// Buffers.
	CreateBuffer() (Handle, error)
	BufferData(target BufferTarget, buffer Handle, data []byte)
	BindBuffer(target BufferTarget, buffer Handle)
	DeleteBuffer(buffer Handle)

	// Programs.
	CreateProgram(vertex, fragment string) (Handle, error)
	UseProgram(program Handle)
	DeleteProgram(program Handle)
	UniformLocation(program Handle, name string) int32
	AttribLocation(program Handle, name string) int32
	Uniformf(location int32, values ...float32)
	Uniformi(location int32, values ...int32)
	UniformMatrix4(location int32, m [16]float32)
	VertexAttribPointer(location uint32, components int, dtype DataType, normalized bool, stride, offset int)
	EnableVertexAttribArray(location uint32)
	DisableVertexAttribArray(location uint32)

	// Textures.
	CreateTexture(img *image.RGBA) (Handle, error)
	BindTexture(unit int, texture Handle)
	DeleteTexture(texture Handle)

	// Draw calls.
	DrawArrays(mode Primitive, first, count int)
	DrawElements(mode Primitive, count int, dtype DataType, offset int)

	// Read-back. ReadDepth returns rows bottom-up as GL does; ReadColor
	// returns a top-down image.
	ReadDepth(x, y, width, height int) []float32
	ReadColor(x, y, width, height int) *image.RGBA

	// Offscreen targets. Binding the zero handle restores the default
	// framebuffer.
	CreateFramebuffer(width, height int) (Handle, error)
	BindFramebuffer(framebuffer Handle)
	DeleteFramebuffer(framebuffer Handle)
}
