package scene

import (
	"github.com/go-gl/mathgl/mgl64"

	"mve-tagger/core"
	"mve-tagger/gpu"
)

// Style groups the presentation parameters of the built-in meshes. The
// color alpha doubles as opacity.
type Style struct {
	Size      float32
	PointSize float32
	LineWidth float32
	Color     core.Color
}

func AxisStyle() Style {
	return Style{Size: 1, PointSize: 3, LineWidth: 1, Color: core.ColorYellow.WithAlpha(0.75)}
}

func CameraStyle() Style {
	return Style{Size: 0.25, PointSize: 4, LineWidth: 1, Color: core.ColorYellow.WithAlpha(0.75)}
}

func PlaneStyle() Style {
	return Style{Size: 25, PointSize: 3, LineWidth: 2, Color: core.ColorBlack}
}

func QuadStyle() Style {
	return Style{Size: 2, PointSize: 1, LineWidth: 1, Color: core.ColorWhite}
}

func BBoxStyle() Style {
	return Style{PointSize: 1, LineWidth: 1, Color: core.ColorWhite}
}

// solid repeats c for n vertices as float color4 data.
func solid(c core.Color, n int) []float32 {
	out := make([]float32, 0, 4*n)
	for range n {
		out = append(out, c.R, c.G, c.B, c.A)
	}
	return out
}

// NewAxis returns a mesh drawing the origin as a point and the three unit
// axes as red, green and blue lines fading out towards their tip.
func NewAxis(name string, style Style) *Node {
	if name == "" {
		name = autoName("axis")
	}
	n := newNode(name, KindMesh, style.PointSize, style.LineWidth)
	axisGeometry(n, style)
	return n
}

func axisGeometry(n *Node, style Style) {
	s := style.Size
	o := style.Color.A

	vb := NewVertexBuffer(7)
	vb.AddFloat32("vertex3", []float32{
		0, 0, 0,
		0, 0, 0, s, 0, 0,
		0, 0, 0, 0, s, 0,
		0, 0, 0, 0, 0, s,
	}, 3)
	vb.AddFloat32("color4", []float32{
		style.Color.R, style.Color.G, style.Color.B, o,
		1, 0, 0, o, 1, 0, 0, o / 3,
		0, 1, 0, o, 0, 1, 0, o / 3,
		0, 0, 1, o, 0, 0, 1, o / 3,
	}, 4)
	vb.Uniforms["colors"] = Ints(4)

	if style.PointSize > 0 {
		n.AddDrawArrays("points", vb, 1, 0, gpu.Points, 0)
	}
	if style.LineWidth > 0 {
		n.AddDrawArrays("lines", vb, 6, 1, gpu.Lines, 1)
	}
}

// NewPlane returns the ground grid: one point per integer coordinate of
// the y=0 plane within ±Size, plus its outline.
func NewPlane(name string, style Style) *Node {
	if name == "" {
		name = autoName("plane")
	}
	n := newNode(name, KindMesh, style.PointSize, style.LineWidth)

	size := int(style.Size)
	side := 2*size + 1
	count := side * side

	points := make([]float32, 0, 3*count)
	for x := -size; x <= size; x++ {
		for z := -size; z <= size; z++ {
			points = append(points, float32(x), 0, float32(z))
		}
	}
	grid := NewVertexBuffer(count)
	grid.AddFloat32("vertex3", points, 3)
	grid.AddFloat32("color4", solid(style.Color, count), 4)
	grid.Uniforms["colors"] = Ints(4)

	s := float32(size)
	outline := NewVertexBuffer(8)
	outline.AddFloat32("vertex3", []float32{
		-s, 0, -s, s, 0, -s,
		-s, 0, s, s, 0, s,
		-s, 0, -s, -s, 0, s,
		s, 0, -s, s, 0, s,
	}, 3)
	outline.AddFloat32("color4", solid(style.Color, 8), 4)
	outline.Uniforms["colors"] = Ints(4)

	n.AddDrawArrays("points", grid, count, 0, gpu.Points, 0)
	n.AddDrawArrays("lines", outline, 8, 0, gpu.Lines, 1)
	return n
}

// NewQuad returns a textured square in the z=0 plane, used to overlay a
// photograph on the viewport.
func NewQuad(name string, style Style) *Node {
	if name == "" {
		name = autoName("quad")
	}
	n := newNode(name, KindMesh, style.PointSize, style.LineWidth)

	h := style.Size / 2
	// keep samples inside the texture so clamped edges do not bleed
	const t = 0.001

	vb := NewVertexBuffer(4)
	vb.AddFloat32("vertex3", []float32{
		-h, -h, 0,
		-h, h, 0,
		h, h, 0,
		h, -h, 0,
	}, 3)
	vb.AddFloat32("color4", solid(style.Color, 4), 4)
	vb.Uniforms["colors"] = Ints(4)
	vb.AddFloat32("uv2", []float32{
		t, 1 - t,
		t, t,
		1 - t, t,
		1 - t, 1 - t,
	}, 2)

	n.AddDrawArrays("quads", vb, 4, 0, gpu.TriangleFan, 0)
	return n
}

// NewBBox returns the wireframe of a box of the given extent centred on the
// node origin.
func NewBBox(name string, size mgl64.Vec3, style Style) *Node {
	if name == "" {
		name = autoName("box")
	}
	n := newNode(name, KindMesh, style.PointSize, style.LineWidth)

	x, y, z := float32(size[0]/2), float32(size[1]/2), float32(size[2]/2)
	vb := NewVertexBuffer(8)
	vb.AddFloat32("vertex3", []float32{
		-x, -y, -z,
		x, -y, -z,
		x, y, -z,
		-x, y, -z,
		-x, -y, z,
		x, -y, z,
		x, y, z,
		-x, y, z,
	}, 3)
	vb.AddFloat32("color4", solid(style.Color, 8), 4)
	vb.Uniforms["colors"] = Ints(4)

	ib := NewIndexBuffer()
	ib.SetUint32([]uint32{
		0, 1, 1, 2, 2, 3, 3, 0,
		4, 5, 5, 6, 6, 7, 7, 4,
		0, 4, 1, 5, 2, 6, 3, 7,
	}, gpu.Lines)

	n.AddDrawElements("lines", vb, ib, 0, -1, 0)
	return n
}
