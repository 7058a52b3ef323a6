package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"mve-tagger/gpu"
	"mve-tagger/math"
)

// CameraKind selects how a camera builds its projection and zooms.
type CameraKind int

const (
	Ortho2D CameraKind = iota
	Ortho
	Perspective
	View
)

func (k CameraKind) String() string {
	switch k {
	case Ortho2D:
		return "ortho2d"
	case Ortho:
		return "ortho"
	case Perspective:
		return "perspective"
	case View:
		return "view"
	}
	return fmt.Sprintf("CameraKind(%d)", int(k))
}

// ViewPose is the recorded calibration of a photograph: where it was taken
// from and how it projects.
type ViewPose interface {
	// Position is the camera centre in world coordinates.
	Position() mgl64.Vec3
	// Rotation maps world directions into the camera frame, with the
	// camera looking down +z and y pointing down.
	Rotation() mgl64.Mat3
	// Intrinsic returns the projection for a viewport of the given size.
	Intrinsic(width, height int, near, far float64) mgl64.Mat4
}

// flipYZ converts a computer-vision camera frame to the GL one.
var flipYZ = mgl64.Mat3{1, 0, 0, 0, -1, 0, 0, 0, -1}

// Camera is the variant carried by KindCamera nodes. It is drawn as a small
// axis marker at its pose.
type Camera struct {
	Kind CameraKind
	// FOV is the half extent for ortho cameras and the vertical field of
	// view in degrees for perspective ones. View cameras ignore it.
	FOV  float64
	Near float64
	Far  float64

	node *Node
	pose ViewPose

	yaw, pitch, roll float64
	base             mgl64.Mat3
	eye, front, up   mgl64.Vec3
	modelView        mgl64.Mat4
	projection       mgl64.Mat4
	width, height    int
	changed          bool
	viewDirty        bool
	atOrigin         bool
}

func newCamera(name string, kind CameraKind, style Style) *Camera {
	n := newNode(name, KindCamera, style.PointSize, style.LineWidth)
	axisGeometry(n, style)
	c := &Camera{
		Kind:       kind,
		node:       n,
		base:       mgl64.Ident3(),
		width:      -1,
		height:     -1,
		modelView:  math.Identity(),
		projection: math.Identity(),
	}
	switch kind {
	case Ortho2D:
		c.FOV, c.Near, c.Far = 1, -1, 1
	case Ortho:
		c.FOV, c.Near, c.Far = 50, -50, 50
	default:
		c.FOV, c.Near, c.Far = 90, 0.1, 50.1
	}
	n.camera = c
	return c
}

// NewCamera returns a detached camera; Scene.AddCamera registers one.
func NewCamera(name string, kind CameraKind, style Style) *Camera {
	c := newCamera(name, kind, style)
	c.Origin()
	return c
}

// NewViewCamera returns a detached camera looking through pose.
func NewViewCamera(name string, pose ViewPose, style Style) *Camera {
	if pose == nil {
		panic("scene: view camera requires a pose")
	}
	c := newCamera(name, View, style)
	c.pose = pose
	c.Origin()
	return c
}

func (c *Camera) Node() *Node            { return c.node }
func (c *Camera) Name() string           { return c.node.name }
func (c *Camera) Pose() ViewPose         { return c.pose }
func (c *Camera) AtOrigin() bool         { return c.atOrigin }
func (c *Camera) Eye() mgl64.Vec3        { return c.eye }
func (c *Camera) Front() mgl64.Vec3      { return c.front }
func (c *Camera) Up() mgl64.Vec3         { return c.up }
func (c *Camera) Size() (int, int)       { return c.width, c.height }
func (c *Camera) Projection() mgl64.Mat4 { return c.projection }
func (c *Camera) Angles() (yaw, pitch, roll float64) {
	return c.yaw, c.pitch, c.roll
}

// ModelView returns the world to camera transform.
func (c *Camera) ModelView() mgl64.Mat4 {
	c.update()
	return c.modelView
}

// rotation maps world directions into the camera frame.
func (c *Camera) rotation() mgl64.Mat3 {
	r := math.Rotation3(math.Rotate(c.roll, 0, 0, 1)).
		Mul3(math.Rotation3(math.Rotate(c.pitch, 1, 0, 0))).
		Mul3(math.Rotation3(math.Rotate(c.yaw, 0, 1, 0)))
	return r.Mul3(c.base)
}

func (c *Camera) poseChanged() {
	r := c.rotation().Transpose()
	c.front = math.Norm(r.Mul3x1(mgl64.Vec3{0, 0, -1}))
	c.up = math.Norm(r.Mul3x1(mgl64.Vec3{0, 1, 0}))
	// the marker sits at the camera pose
	c.node.model = mgl64.Translate3D(c.eye[0], c.eye[1], c.eye[2]).Mul4(r.Mat4())
	c.changed = true
	c.viewDirty = true
	c.node.markMoved()
}

// Origin resets the pose. View cameras return to the recorded pose of their
// photograph and still count as at origin.
func (c *Camera) Origin() {
	c.yaw, c.pitch, c.roll = 0, 0, 0
	c.base = mgl64.Ident3()
	c.eye = mgl64.Vec3{}
	if c.Kind == View && c.pose != nil {
		c.base = flipYZ.Mul3(c.pose.Rotation())
		c.eye = c.pose.Position()
	}
	c.atOrigin = true
	c.poseChanged()
}

func (c *Camera) translate(tx, ty, tz float64) {
	c.eye = c.eye.Add(mgl64.Vec3{tx, ty, tz})
	c.atOrigin = false
	c.poseChanged()
}

// Move translates along the camera's own axes: x right, y up, z backwards.
func (c *Camera) Move(dx, dy, dz float64) {
	delta := c.rotation().Transpose().Mul3x1(mgl64.Vec3{dx, dy, dz})
	c.translate(delta[0], delta[1], delta[2])
}

// Orient accumulates yaw, pitch and roll in degrees.
func (c *Camera) Orient(dyaw, dpitch, droll float64) {
	c.yaw += dyaw
	c.pitch += dpitch
	c.roll += droll
	c.atOrigin = false
	c.poseChanged()
}

// Zoom dollies perspective and view cameras along their view axis and
// widens or narrows ortho cameras. Positive values zoom out.
func (c *Camera) Zoom(d float64) {
	switch c.Kind {
	case Ortho2D, Ortho:
		c.FOV = max(0.001, min(100, c.FOV+d))
		c.changed = true
		c.node.markMoved()
	default:
		c.Move(0, 0, d)
	}
}

// SetFOV changes the field of view, clamped per kind.
func (c *Camera) SetFOV(fov float64) {
	switch c.Kind {
	case Perspective:
		c.FOV = max(0.1, min(120, fov))
	case View:
		return
	default:
		c.FOV = max(0.001, min(100, fov))
	}
	c.changed = true
	c.node.markMoved()
}

// SetClip changes the near and far planes.
func (c *Camera) SetClip(near, far float64) {
	c.Near, c.Far = near, far
	c.changed = true
	c.node.markMoved()
}

func (c *Camera) update() {
	if !c.viewDirty {
		return
	}
	c.viewDirty = false
	c.modelView = math.LookAt(c.eye, c.eye.Add(c.front), c.up)
}

func (c *Camera) buildProjection(width, height int) mgl64.Mat4 {
	switch c.Kind {
	case Ortho2D:
		return math.Ortho(-c.FOV, c.FOV, -c.FOV, c.FOV, c.Near, c.Far)
	case Ortho:
		a := float64(height) / float64(max(width, 1))
		return math.Ortho(-c.FOV, c.FOV, -c.FOV*a, c.FOV*a, c.Near, c.Far)
	case Perspective:
		a := float64(width) / float64(max(height, 1))
		return math.Perspective(c.FOV, a, c.Near, c.Far)
	default:
		return c.pose.Intrinsic(width, height, c.Near, c.Far)
	}
}

// Resize recomputes the projection when the viewport or a projection
// parameter changed.
func (c *Camera) Resize(width, height int) {
	if !c.changed && c.width == width && c.height == height {
		return
	}
	c.width = width
	c.height = height
	c.projection = c.buildProjection(width, height)
	c.changed = false
	c.node.markMoved()
}

// Setup prepares the viewport and pushes the camera uniforms to the bound
// shader.
func (c *Camera) Setup(d gpu.Device, width, height int, shader *Shader) {
	c.Resize(width, height)
	c.update()
	d.Viewport(0, 0, width, height)
	shader.SetMat4("pMatrix", c.projection)
	shader.SetMat4("vMatrix", c.modelView)
	shader.SetVec3("cameraPosition", c.eye)
}

// Project maps a world point to pixel coordinates of the last viewport.
func (c *Camera) Project(p mgl64.Vec3) mgl64.Vec4 {
	c.update()
	s := math.Project(p.Vec4(1), c.projection, c.modelView)
	return mgl64.Vec4{
		s[0] * float64(c.width-1),
		s[1] * float64(c.height-1),
		s[2],
		s[3],
	}
}

// Unproject maps pixel coordinates and a depth in [0,1] back to the world.
func (c *Camera) Unproject(x, y, z, w float64) mgl64.Vec3 {
	c.update()
	p := math.Unproject(mgl64.Vec4{
		x / float64(c.width-1),
		y / float64(c.height-1),
		z,
		w,
	}, c.projection, c.modelView)
	return p.Vec3()
}

// CameraConfig is the serialized pose and projection of a camera.
type CameraConfig struct {
	Yaw    float64    `json:"yaw"`
	Pitch  float64    `json:"pitch"`
	Roll   float64    `json:"roll"`
	Eye    [3]float64 `json:"eye"`
	Front  [3]float64 `json:"front"`
	Up     [3]float64 `json:"up"`
	Origin bool       `json:"origin"`
	FOV    float64    `json:"fov,omitempty"`
	HFOV   float64    `json:"hfov,omitempty"`
	VFOV   float64    `json:"vfov,omitempty"`
	Near   float64    `json:"near"`
	Far    float64    `json:"far"`
}

func (c *Camera) Config() CameraConfig {
	cfg := CameraConfig{
		Yaw:    c.yaw,
		Pitch:  c.pitch,
		Roll:   c.roll,
		Eye:    c.eye,
		Front:  c.front,
		Up:     c.up,
		Origin: c.atOrigin,
		Near:   c.Near,
		Far:    c.Far,
	}
	switch c.Kind {
	case Ortho2D:
		cfg.FOV = c.FOV
	case Ortho:
		cfg.HFOV = c.FOV
	case Perspective:
		cfg.VFOV = c.FOV
	}
	return cfg
}

// LoadConfig restores a pose saved by Config. Front and up are derived
// from the angles rather than trusted.
func (c *Camera) LoadConfig(cfg CameraConfig) {
	switch {
	case c.Kind == Ortho2D && cfg.FOV != 0:
		c.FOV = cfg.FOV
	case c.Kind == Ortho && cfg.HFOV != 0:
		c.FOV = cfg.HFOV
	case c.Kind == Perspective && cfg.VFOV != 0:
		c.FOV = cfg.VFOV
	}
	if cfg.Near != 0 || cfg.Far != 0 {
		c.Near, c.Far = cfg.Near, cfg.Far
	}
	c.yaw, c.pitch, c.roll = cfg.Yaw, cfg.Pitch, cfg.Roll
	c.eye = cfg.Eye
	c.atOrigin = cfg.Origin
	c.poseChanged()
}
