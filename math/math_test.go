package math

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func assertVec4(t *testing.T, expected, actual mgl64.Vec4, tolerance float64) {
	t.Helper()
	for i := range 4 {
		assert.InDelta(t, expected[i], actual[i], tolerance, "component %d", i)
	}
}

func TestTranslate(t *testing.T) {
	m := Translate(1, 2, 3)

	// translation lives in the last column
	assert.Equal(t, mgl64.Vec4{1, 2, 3, 1}, m.Col(3))
	assertVec4(t, mgl64.Vec4{2, 3, 4, 1}, m.Mul4x1(mgl64.Vec4{1, 1, 1, 1}), 1e-12)
}

func TestRotate(t *testing.T) {
	// 90 degrees around an unnormalized Y axis turns X into -Z
	m := Rotate(90, 0, 5, 0)
	assertVec4(t, mgl64.Vec4{0, 0, -1, 1}, m.Mul4x1(mgl64.Vec4{1, 0, 0, 1}), 1e-12)

	assert.Equal(t, Identity(), Rotate(45, 0, 0, 0))
}

func TestComposeOnTheLeft(t *testing.T) {
	m := Identity()
	m = Translate(1, 0, 0).Mul4(m)
	m = Rotate(90, 0, 0, 1).Mul4(m)

	// translate first, then rotate the result
	assertVec4(t, mgl64.Vec4{0, 1, 0, 1}, m.Mul4x1(mgl64.Vec4{0, 0, 0, 1}), 1e-12)
}

func TestPerspective(t *testing.T) {
	p := Perspective(90, 2, 0.1, 50.1)

	assert.InDelta(t, 0.5, p.At(0, 0), 1e-12)
	assert.InDelta(t, 1.0, p.At(1, 1), 1e-12)
	assert.Equal(t, -1.0, p.At(3, 2))
	assert.Equal(t, 0.0, p.At(3, 3))

	// near plane maps to depth 0, far plane to depth 1
	assert.InDelta(t, 0.0, Project(mgl64.Vec4{0, 0, -0.1, 1}, p, Identity())[2], 1e-9)
	assert.InDelta(t, 1.0, Project(mgl64.Vec4{0, 0, -50.1, 1}, p, Identity())[2], 1e-9)
}

func TestLookAt(t *testing.T) {
	eye := mgl64.Vec3{0, 0, 5}
	m := LookAt(eye, mgl64.Vec3{}, mgl64.Vec3{0, 1, 0})

	// the view matrix moves the eye to the origin
	assertVec4(t, mgl64.Vec4{0, 0, 0, 1}, m.Mul4x1(eye.Vec4(1)), 1e-12)
}

func TestNorm(t *testing.T) {
	assert.Equal(t, mgl64.Vec3{}, Norm(mgl64.Vec3{}))
	assert.InDelta(t, 1.0, Norm(mgl64.Vec3{3, 4, 0}).Len(), 1e-12)
}

func TestProjectFlipsY(t *testing.T) {
	p := Ortho(-1, 1, -1, 1, -1, 1)

	top := Project(mgl64.Vec4{0, 1, 0, 1}, p, Identity())
	assert.InDelta(t, 0.5, top[0], 1e-12)
	assert.InDelta(t, 0.0, top[1], 1e-12)

	bottomRight := Project(mgl64.Vec4{1, -1, 0, 1}, p, Identity())
	assert.InDelta(t, 1.0, bottomRight[0], 1e-12)
	assert.InDelta(t, 1.0, bottomRight[1], 1e-12)
}

func TestProjectUnprojectRoundTrip(t *testing.T) {
	modelView := LookAt(mgl64.Vec3{1, 2, 8}, mgl64.Vec3{0.5, 0, 0}, mgl64.Vec3{0, 1, 0})
	modelView = Rotate(17, 1, 1, 0).Mul4(modelView)

	projections := map[string]mgl64.Mat4{
		"ortho2d":     Ortho(-1, 1, -1, 1, -1, 1),
		"ortho":       Ortho(-50, 50, -28, 28, -50, 50),
		"perspective": Perspective(90, 16.0/9.0, 0.1, 50.1),
		"narrow":      Perspective(12, 0.75, 1, 100),
	}

	points := []mgl64.Vec4{
		{0, 0, 0, 1},
		{0.3, -0.2, 0.1, 1},
		{1, 1, 1, 1},
		{-0.7, 0.4, -0.5, 1},
	}

	for name, projection := range projections {
		t.Run(name, func(t *testing.T) {
			for _, pt := range points {
				if depth := -modelView.Mul4x1(pt)[2]; depth <= 0 && projection.At(3, 2) != 0 {
					continue
				}
				screen := Project(pt, projection, modelView)
				assertVec4(t, pt, Unproject(screen, projection, modelView), 1e-9)
			}
		})
	}
}

func TestUnprojectScreenPick(t *testing.T) {
	p := Ortho(-2, 2, -2, 2, -2, 2)
	// screen centre at mid depth is the origin
	assertVec4(t, mgl64.Vec4{0, 0, 0, 1}, Unproject(mgl64.Vec4{0.5, 0.5, 0.5, 1}, p, Identity()), 1e-12)
	// top-left corner
	got := Unproject(mgl64.Vec4{0, 0, 0.5, 1}, p, Identity())
	assert.InDelta(t, -2.0, got[0], 1e-12)
	assert.InDelta(t, 2.0, got[1], 1e-12)
}

func TestRotation3(t *testing.T) {
	r := Rotation3(Translate(4, 5, 6).Mul4(Rotate(30, 0, 0, 1)))
	assert.InDelta(t, math.Cos(mgl64.DegToRad(30)), r.At(0, 0), 1e-12)
	assert.InDelta(t, 1.0, r.At(2, 2), 1e-12)
}

func BenchmarkProject(b *testing.B) {
	p := Perspective(90, 1.5, 0.1, 50.1)
	mv := LookAt(mgl64.Vec3{0, 0, 5}, mgl64.Vec3{}, mgl64.Vec3{0, 1, 0})
	pt := mgl64.Vec4{0.1, 0.2, 0.3, 1}

	for i := 0; i < b.N; i++ {
		_ = Project(pt, p, mv)
	}
}

func BenchmarkUnproject(b *testing.B) {
	p := Perspective(90, 1.5, 0.1, 50.1)
	mv := LookAt(mgl64.Vec3{0, 0, 5}, mgl64.Vec3{}, mgl64.Vec3{0, 1, 0})
	pt := mgl64.Vec4{0.5, 0.5, 0.9, 1}

	for i := 0; i < b.N; i++ {
		_ = Unproject(pt, p, mv)
	}
}
