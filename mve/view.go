package mve

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"mve-tagger/core"
)

// Robustness bounds used when the caller has no settings of its own.
const (
	DefaultMinFocal = 0.5
	DefaultMaxFocal = 1.0
	DefaultMaxDist  = 5.0
)

// mismatch is the tolerance between bundle and meta.ini camera values.
const mismatch = 1e-3

// View is one directory under <scene>/views.
type View struct {
	Path string

	ID   int
	Name string

	FocalLength    float64
	Distortion     [2]float64
	PixelAspect    float64
	PrincipalPoint [2]float64
	// WorldToCamera rotation, rows as stored in meta.ini.
	Rot         mgl64.Mat3
	Translation mgl64.Vec3

	Width, Height           int
	DepthWidth, DepthHeight int
}

func loadView(dir string, cameras []BundleCamera) (*View, error) {
	v := &View{
		Path:        dir,
		ID:          -1,
		PixelAspect: 1,
		Rot:         mgl64.Ident3(),
	}

	f, err := os.Open(filepath.Join(dir, "meta.ini"))
	if err != nil {
		if os.IsNotExist(err) {
			return v, nil
		}
		return nil, err
	}
	meta, err := parseINI(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Join(dir, "meta.ini"), err)
	}

	if s, ok := meta["view"]; ok {
		id, err := s.float("id")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", dir, err)
		}
		v.ID = int(id)
		v.Name = s["name"]
	}
	if s, ok := meta["camera"]; ok {
		if err := v.loadCamera(s, cameras); err != nil {
			return nil, fmt.Errorf("%s: %w", dir, err)
		}
	}

	if p := v.Original(); p != "" {
		if v.Width, v.Height, err = imageSize(p); err != nil {
			return nil, err
		}
	}
	if p := v.DepthColor(); p != "" {
		if v.DepthWidth, v.DepthHeight, err = imageSize(p); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (v *View) loadCamera(s section, cameras []BundleCamera) error {
	var err error
	if v.FocalLength, err = s.float("focal_length"); err != nil {
		return err
	}
	if v.PixelAspect, err = s.float("pixel_aspect"); err != nil {
		return err
	}
	pp, err := s.floats("principal_point", 2)
	if err != nil {
		return err
	}
	v.PrincipalPoint = [2]float64{pp[0], pp[1]}
	r, err := s.floats("rotation", 9)
	if err != nil {
		return err
	}
	v.Rot = mgl64.Mat3FromRows(
		mgl64.Vec3{r[0], r[1], r[2]},
		mgl64.Vec3{r[3], r[4], r[5]},
		mgl64.Vec3{r[6], r[7], r[8]},
	)
	t, err := s.floats("translation", 3)
	if err != nil {
		return err
	}
	v.Translation = mgl64.Vec3{t[0], t[1], t[2]}

	if v.ID < 0 || v.ID >= len(cameras) {
		core.Logger().Warn("view has no bundle camera", "view", v.ID, "cameras", len(cameras))
		return nil
	}
	cam := cameras[v.ID]
	v.Distortion = cam.Distortion
	if v.FocalLength > 0 {
		v.compare(cam)
	}
	return nil
}

// compare logs the values where the bundle and meta.ini disagree.
func (v *View) compare(cam BundleCamera) {
	log := core.Logger()
	if df := math.Abs(cam.FocalLength - v.FocalLength); !(df < mismatch) {
		log.Warn("bundle != view meta", "view", v.ID, "focal_length", df)
	}
	for i := range 9 {
		if dr := math.Abs(cam.Rotation[i] - v.Rot[i]); !(dr < mismatch) {
			log.Warn("bundle != view meta", "view", v.ID, "rotation", cam.Rotation.Sub(v.Rot))
			break
		}
	}
	if dt := cam.Translation.Sub(v.Translation); !(math.Abs(dt[0]) < mismatch && math.Abs(dt[1]) < mismatch && math.Abs(dt[2]) < mismatch) {
		log.Warn("bundle != view meta", "view", v.ID, "translation", dt)
	}
}

func imageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

// ── Classification ───────────────────────────────────────────────────────────

func (v *View) Valid() bool { return v.ID >= 0 }
func (v *View) Ready() bool { return v.Valid() && v.FocalLength > 0 }

// Robust reports whether the calibration is trustworthy enough to render
// the view's cloud.
func (v *View) Robust(minFocal, maxFocal, maxDist float64) bool {
	return v.Ready() &&
		v.FocalLength >= minFocal && v.FocalLength <= maxFocal &&
		math.Abs(v.Distortion[0]) < maxDist && math.Abs(v.Distortion[1]) < maxDist
}

// ── Pose ─────────────────────────────────────────────────────────────────────

// Rotation returns the world to camera rotation.
func (v *View) Rotation() mgl64.Mat3 { return v.Rot }

// Position returns the camera centre in world coordinates.
func (v *View) Position() mgl64.Vec3 {
	return v.Rot.Transpose().Mul3x1(v.Translation).Mul(-1)
}

// CameraToWorld returns the rigid transform placing the camera in the world.
func (v *View) CameraToWorld() mgl64.Mat4 {
	m := v.Rot.Transpose().Mat4()
	m.SetCol(3, v.Position().Vec4(1))
	return m
}

// WorldToCamera returns the GL eye transform of the view (y and z flipped).
func (v *View) WorldToCamera() mgl64.Mat4 {
	m := v.Rot.Mat4()
	m.SetCol(3, v.Translation.Vec4(1))
	for c := range 4 {
		m.Set(1, c, -m.At(1, c))
		m.Set(2, c, -m.At(2, c))
	}
	return m
}

// Intrinsic returns the projection matrix of the view for a viewport of
// width x height and the given clip planes.
func (v *View) Intrinsic(width, height int, near, far float64) mgl64.Mat4 {
	a := float64(width) / float64(max(height, 1)) * v.PixelAspect
	ax, ay := v.FocalLength, v.FocalLength*a
	if a < 1 {
		ax, ay = v.FocalLength/a, v.FocalLength
	}
	var p mgl64.Mat4
	p.Set(0, 0, 2*ax)
	p.Set(0, 2, 2*(v.PrincipalPoint[0]-0.5))
	p.Set(1, 1, 2*ay)
	p.Set(1, 2, 2*(v.PrincipalPoint[1]-0.5))
	p.Set(2, 2, (near+far)/(near-far))
	p.Set(2, 3, 2*near*far/(near-far))
	p.Set(3, 2, -1)
	return p
}

// ── Files ────────────────────────────────────────────────────────────────────

// Each accessor returns "" when the file does not exist.

func (v *View) file(name string) string {
	p := filepath.Join(v.Path, name)
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

func (v *View) Original() string    { return v.file("original.jpg") }
func (v *View) Thumbnail() string   { return v.file("thumbnail.png") }
func (v *View) Undistorted() string { return v.file("undistorted.png") }

// depthMaps returns the depth-L*.mvei files in lexical order.
func (v *View) depthMaps() []string {
	matches, _ := filepath.Glob(filepath.Join(v.Path, "depth-L*.mvei"))
	slices.Sort(matches)
	return matches
}

// Depth returns the finest depth map.
func (v *View) Depth() string {
	if maps := v.depthMaps(); len(maps) > 0 {
		return maps[0]
	}
	return ""
}

// sibling finds the first depth level whose companion file exists.
func (v *View) sibling(prefix, ext string) string {
	for _, p := range v.depthMaps() {
		stem := strings.TrimSuffix(filepath.Base(p), ".mvei")
		name := strings.Replace(stem, "depth", prefix, 1) + ext
		if q := v.file(name); q != "" {
			return q
		}
	}
	return ""
}

// DepthColor returns the color image matching the depth map, falling back to
// the undistorted image.
func (v *View) DepthColor() string {
	if p := v.sibling("undist", ".png"); p != "" {
		return p
	}
	return v.Undistorted()
}

func (v *View) DepthViews() string { return v.sibling("views", ".mvei") }

// PLY returns the view's point cloud, possibly compressed.
func (v *View) PLY() string {
	for _, name := range []string{"pointcloud.ply", "pointcloud.ply.gz", "pointcloud.ply.xz"} {
		if p := v.file(name); p != "" {
			return p
		}
	}
	return ""
}

// ReadDepth loads the depth map.
func (v *View) ReadDepth() (*Image, error) {
	p := v.Depth()
	if p == "" {
		return nil, fmt.Errorf("view %d: %w", v.ID, os.ErrNotExist)
	}
	return ReadImage(p)
}

// ── Info ─────────────────────────────────────────────────────────────────────

// ViewInfo is the JSON description of a view.
type ViewInfo struct {
	ID             int           `json:"id"`
	Name           string        `json:"name"`
	FocalLength    float64       `json:"focal_length"`
	Distortion     [2]float64    `json:"distortion"`
	PixelAspect    float64       `json:"pixel_aspect"`
	PrincipalPoint [2]float64    `json:"principal_point"`
	Rotation       [3][3]float64 `json:"rotation"`
	Translation    [3]float64    `json:"translation"`
	Size           [2]int        `json:"size"`
	Original       string        `json:"original,omitempty"`
	Thumbnail      string        `json:"thumbnail,omitempty"`
	Undistorted    string        `json:"undistorted,omitempty"`
	Depth          string        `json:"depth,omitempty"`
	DepthColor     string        `json:"depthcolor,omitempty"`
	DepthViews     string        `json:"depthviews,omitempty"`
	DepthSize      [2]int        `json:"depthsize"`
	PLY            string        `json:"ply,omitempty"`
}

func (v *View) Info() ViewInfo {
	info := ViewInfo{
		ID:             v.ID,
		Name:           v.Name,
		FocalLength:    v.FocalLength,
		Distortion:     v.Distortion,
		PixelAspect:    v.PixelAspect,
		PrincipalPoint: v.PrincipalPoint,
		Translation:    v.Translation,
		Size:           [2]int{v.Width, v.Height},
		Original:       v.Original(),
		Thumbnail:      v.Thumbnail(),
		Undistorted:    v.Undistorted(),
		Depth:          v.Depth(),
		DepthColor:     v.DepthColor(),
		DepthViews:     v.DepthViews(),
		DepthSize:      [2]int{v.DepthWidth, v.DepthHeight},
		PLY:            v.PLY(),
	}
	for r := range 3 {
		row := v.Rot.Row(r)
		info.Rotation[r] = [3]float64(row)
	}
	return info
}
