package math

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Matrices are column-major mgl64.Mat4 with the translation in the last
// column. Incremental transforms compose on the left: next = delta.Mul4(prev).

func Identity() mgl64.Mat4 {
	return mgl64.Ident4()
}

func Translate(tx, ty, tz float64) mgl64.Mat4 {
	return mgl64.Translate3D(tx, ty, tz)
}

// Rotate returns a rotation of angle degrees around the (normalized) axis.
func Rotate(angle, ax, ay, az float64) mgl64.Mat4 {
	axis := mgl64.Vec3{ax, ay, az}
	if axis.Len() == 0 {
		return mgl64.Ident4()
	}
	return mgl64.HomogRotate3D(mgl64.DegToRad(angle), axis.Normalize())
}

func Ortho(left, right, bottom, top, near, far float64) mgl64.Mat4 {
	return mgl64.Ortho(left, right, bottom, top, near, far)
}

// Perspective builds a symmetric frustum from a vertical field of view in degrees.
func Perspective(vfov, aspect, near, far float64) mgl64.Mat4 {
	f := 1 / math.Tan(mgl64.DegToRad(vfov)/2)
	var p mgl64.Mat4
	p.Set(0, 0, f/aspect)
	p.Set(1, 1, f)
	p.Set(2, 2, (near+far)/(near-far))
	p.Set(2, 3, 2*near*far/(near-far))
	p.Set(3, 2, -1)
	return p
}

func LookAt(eye, center, up mgl64.Vec3) mgl64.Mat4 {
	return mgl64.LookAtV(eye, center, up)
}

func Norm(v mgl64.Vec3) mgl64.Vec3 {
	if v.Len() == 0 {
		return v
	}
	return v.Normalize()
}

// Project maps a homogeneous point into [0,1] screen space with y pointing
// down. The w component is returned unmapped.
func Project(pt mgl64.Vec4, projection, modelView mgl64.Mat4) mgl64.Vec4 {
	v := projection.Mul4(modelView).Mul4x1(pt)
	return mgl64.Vec4{
		(v[0]/v[3] + 1) / 2,
		(-v[1]/v[3] + 1) / 2,
		(v[2]/v[3] + 1) / 2,
		v[3],
	}
}

// Unproject is the inverse of Project. The w component carries the clip
// space w returned by Project; screen picks pass 1.
func Unproject(pt mgl64.Vec4, projection, modelView mgl64.Mat4) mgl64.Vec4 {
	w := pt[3]
	ndc := mgl64.Vec4{
		(2*pt[0] - 1) * w,
		-(2*pt[1] - 1) * w,
		(2*pt[2] - 1) * w,
		w,
	}
	p := projection.Mul4(modelView).Inv().Mul4x1(ndc)
	return mgl64.Vec4{p[0] / p[3], p[1] / p[3], p[2] / p[3], 1}
}

// Rotation3 extracts the upper-left 3x3 block.
func Rotation3(m mgl64.Mat4) mgl64.Mat3 {
	return m.Mat3()
}
