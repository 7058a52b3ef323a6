package scene

import (
	"encoding/json"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mve-tagger/math"
)

type fakePose struct {
	position mgl64.Vec3
	rotation mgl64.Mat3
}

func (p fakePose) Position() mgl64.Vec3 { return p.position }
func (p fakePose) Rotation() mgl64.Mat3 { return p.rotation }
func (p fakePose) Intrinsic(width, height int, near, far float64) mgl64.Mat4 {
	return math.Perspective(60, float64(width)/float64(height), near, far)
}

func assertVec3(t *testing.T, want, got mgl64.Vec3, msg ...any) {
	t.Helper()
	for i := range 3 {
		assert.InDelta(t, want[i], got[i], 1e-9, msg...)
	}
}

func testCameras() map[string]*Camera {
	pose := fakePose{
		position: mgl64.Vec3{1, 2, 3},
		rotation: math.Rotation3(math.Rotate(30, 0, 1, 0)),
	}
	return map[string]*Camera{
		"ortho2d":     NewCamera("ortho2d", Ortho2D, CameraStyle()),
		"ortho":       NewCamera("ortho", Ortho, CameraStyle()),
		"perspective": NewCamera("perspective", Perspective, CameraStyle()),
		"view":        NewViewCamera("view", pose, CameraStyle()),
	}
}

func TestCameraProjectUnprojectRoundTrip(t *testing.T) {
	for name, c := range testCameras() {
		t.Run(name, func(t *testing.T) {
			c.Move(0.3, -0.2, 0.1)
			c.Orient(10, -5, 3)
			c.Resize(640, 480)

			// a point half a unit in front of the camera
			p := c.Eye().Add(c.Front().Mul(0.5)).Add(c.Up().Mul(0.1))
			s := c.Project(p)
			assertVec3(t, p, c.Unproject(s[0], s[1], s[2], s[3]))
		})
	}
}

func TestCameraCentreProjectsToViewportCentre(t *testing.T) {
	for name, c := range testCameras() {
		t.Run(name, func(t *testing.T) {
			c.Resize(101, 51)
			s := c.Project(c.Eye().Add(c.Front().Mul(0.5)))
			assert.InDelta(t, 50, s[0], 1e-9)
			assert.InDelta(t, 25, s[1], 1e-9)
		})
	}
}

func TestViewCameraLooksThroughPose(t *testing.T) {
	rot := math.Rotation3(math.Rotate(30, 0, 1, 0)).Mul3(math.Rotation3(math.Rotate(-20, 1, 0, 0)))
	pose := fakePose{position: mgl64.Vec3{1, 2, 3}, rotation: rot}
	c := NewViewCamera("view", pose, CameraStyle())

	assert.True(t, c.AtOrigin())
	assertVec3(t, pose.position, c.Eye())
	// the photograph looks down its +z axis with y pointing down
	assertVec3(t, rot.Transpose().Mul3x1(mgl64.Vec3{0, 0, 1}), c.Front())
	assertVec3(t, rot.Transpose().Mul3x1(mgl64.Vec3{0, -1, 0}), c.Up())

	c.Move(0, 0, -1)
	assert.False(t, c.AtOrigin())
	c.Origin()
	assert.True(t, c.AtOrigin())
	assertVec3(t, pose.position, c.Eye())
}

func TestCameraMoveAndOrient(t *testing.T) {
	c := NewCamera("", Perspective, CameraStyle())
	assertVec3(t, mgl64.Vec3{0, 0, -1}, c.Front())
	assertVec3(t, mgl64.Vec3{0, 1, 0}, c.Up())

	c.Move(0, 0, -2)
	assertVec3(t, mgl64.Vec3{0, 0, -2}, c.Eye())

	c.Orient(90, 0, 0)
	assertVec3(t, mgl64.Vec3{1, 0, 0}, c.Front())
	c.Move(0, 0, -1)
	assertVec3(t, mgl64.Vec3{1, 0, -2}, c.Eye())

	c.Origin()
	assertVec3(t, mgl64.Vec3{}, c.Eye())
	assertVec3(t, mgl64.Vec3{0, 0, -1}, c.Front())

	// the marker follows the pose
	c.Move(1, 2, 3)
	assertVec3(t, c.Eye(), c.Node().Model().Col(3).Vec3())
	assert.Panics(t, func() { c.Node().Rotate(10, 0, 1, 0) })
}

func TestCameraZoom(t *testing.T) {
	persp := NewCamera("", Perspective, CameraStyle())
	persp.Zoom(2)
	assertVec3(t, mgl64.Vec3{0, 0, 2}, persp.Eye(), "dolly backwards")
	assert.Equal(t, 90.0, persp.FOV)

	persp.SetFOV(500)
	assert.Equal(t, 120.0, persp.FOV)
	persp.SetFOV(0)
	assert.Equal(t, 0.1, persp.FOV)

	ortho := NewCamera("", Ortho, CameraStyle())
	ortho.Zoom(10)
	assert.Equal(t, 60.0, ortho.FOV)
	ortho.Zoom(100)
	assert.Equal(t, 100.0, ortho.FOV)
	ortho.Zoom(-1000)
	assert.Equal(t, 0.001, ortho.FOV)
	assertVec3(t, mgl64.Vec3{}, ortho.Eye())
}

func TestCameraProjectionRecomputedOnResize(t *testing.T) {
	c := NewCamera("", Perspective, CameraStyle())
	c.Resize(200, 100)
	wide := c.Projection()
	c.Node().Moved()

	c.Resize(200, 100)
	assert.False(t, c.Node().Moved())

	c.Resize(100, 100)
	assert.True(t, c.Node().Moved())
	assert.NotEqual(t, wide, c.Projection())

	c.SetFOV(45)
	c.Resize(100, 100)
	// cot(22.5°)
	assert.InDelta(t, 2.414213562373095, c.Projection().At(1, 1), 1e-9)
}

func TestCameraSetupPushesMatrices(t *testing.T) {
	s, d := newTestScene(t)
	sh := s.Shader(DefaultShaderName)
	require.NoError(t, sh.Enable(d))
	defer sh.Disable(d)

	c := NewCamera("", Perspective, CameraStyle())
	c.Move(1, 2, 3)
	c.Setup(d, 320, 200, sh)

	assert.Equal(t, [4]int{0, 0, 320, 200}, d.LastViewport)
	assert.Equal(t, []float32{1, 2, 3}, d.Uniform(sh.Program(), "cameraPosition"))
	assert.Len(t, d.Uniform(sh.Program(), "pMatrix"), 16)
	assert.Len(t, d.Uniform(sh.Program(), "vMatrix"), 16)
}

func TestCameraConfigRoundTrip(t *testing.T) {
	for name, c := range testCameras() {
		if name == "view" {
			continue
		}
		t.Run(name, func(t *testing.T) {
			c.Move(1, -2, 0.5)
			c.Orient(15, 25, -5)
			c.SetFOV(c.FOV / 2)

			raw, err := json.Marshal(c.Config())
			require.NoError(t, err)
			var cfg CameraConfig
			require.NoError(t, json.Unmarshal(raw, &cfg))

			restored := NewCamera("", c.Kind, CameraStyle())
			restored.LoadConfig(cfg)
			assert.Equal(t, c.FOV, restored.FOV)
			assert.False(t, restored.AtOrigin())
			want, got := c.ModelView(), restored.ModelView()
			for i := range want {
				assert.InDelta(t, want[i], got[i], 1e-9)
			}
		})
	}
}

func TestCameraRendersMarker(t *testing.T) {
	s, d := newTestScene(t)
	p := s.AddPass("default", 0)
	c := s.PerspectiveCamera("camera.perspective")
	assert.Same(t, c, s.PerspectiveCamera("camera.perspective"))
	p.AttachNode(c.Node())

	_, err := p.Render(d, 64, 64, Uniforms{})
	require.NoError(t, err)
	require.Len(t, d.Draws, 2, "origin point and three axes")

	s.AddMesh("mesh", 1, 1, 0)
	assert.Panics(t, func() { s.OrthoCamera("mesh") })
}
