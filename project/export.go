package project

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"mve-tagger/core"
	"mve-tagger/gpu"
	"mve-tagger/ply"
)

var (
	// ErrFilename is returned for export names that would escape the view
	// directory.
	ErrFilename = errors.New("invalid export filename")
	// ErrClosed fails tasks whose project was closed before they ran.
	ErrClosed = errors.New("project closed")
)

// ExportPLY writes the selected points of every active view to one binary
// PLY file.
func (p *Project) ExportPLY(path string) *Batch {
	return p.exportSelection("export ply", path, func(points []ply.Point) error {
		return ply.WriteFile(path, points, "exported by mve-tagger")
	})
}

// ExportGLB writes the selected points as a glTF binary point primitive.
func (p *Project) ExportGLB(path string) *Batch {
	return p.exportSelection("export glb", path, func(points []ply.Point) error {
		return writeGLB(path, points)
	})
}

// exportSelection gathers the selection of every active view on the pool
// and hands the concatenation to write once all views are done.
func (p *Project) exportSelection(name, path string, write func([]ply.Point) error) *Batch {
	var views []*View
	for _, v := range p.views {
		if v.Active && v.Mesh != nil && v.cloud != nil {
			views = append(views, v)
		}
	}
	gen := p.gen
	results := make([][]ply.Point, len(views))
	b := p.newBatch(name, len(views), func() error {
		if gen != p.gen {
			return fmt.Errorf("%s %s: %w", name, path, ErrClosed)
		}
		var all []ply.Point
		for _, r := range results {
			all = append(all, r...)
		}
		if err := write(all); err != nil {
			return fmt.Errorf("%s %s: %w", name, path, err)
		}
		core.Logger().Info("export done", "path", path, "points", len(all), "views", len(views))
		return nil
	})
	for i, v := range views {
		cloud, indices := v.cloud, v.Mesh.SelectedIndices()
		p.spawn(b, name+" "+v.Name, func() error {
			points := gather(cloud, indices)
			p.loop.Do(p.current(func() { results[i] = points }))
			return nil
		})
	}
	return b
}

func writeGLB(path string, points []ply.Point) error {
	doc := gltf.NewDocument()
	positions := make([][3]float32, len(points))
	colors := make([][4]uint8, len(points))
	for i, pt := range points {
		positions[i] = [3]float32{pt.X, pt.Y, pt.Z}
		colors[i] = [4]uint8{pt.R, pt.G, pt.B, pt.A}
	}
	attributes := map[string]int{}
	if len(points) > 0 {
		attributes["POSITION"] = modeler.WritePosition(doc, positions)
		attributes["COLOR_0"] = modeler.WriteColor(doc, colors)
	}
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name: "selection",
		Primitives: []*gltf.Primitive{{
			Mode:       gltf.PrimitivePoints,
			Attributes: attributes,
		}},
	})
	doc.Nodes = append(doc.Nodes, &gltf.Node{Name: "selection", Mesh: gltf.Index(0)})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, len(doc.Nodes)-1)
	return gltf.SaveBinary(doc, path)
}

// ── View renders ─────────────────────────────────────────────────────────────

// viewRender is the color and depth read back for one view, rows top-down.
type viewRender struct {
	color *image.RGBA
	depth []float32
}

// ExportViews renders every valid view through its own camera and writes
// <filename>.png and <filename>-depth.png into the view directory.
// Rendering happens on the loop, encoding on the pool.
func (p *Project) ExportViews(d gpu.Device, filename string) (*Batch, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return nil, fmt.Errorf("%w: %q", ErrFilename, filename)
	}
	var views []*View
	for _, v := range p.views {
		if v.Valid() && v.Info.Width > 0 && v.Info.Height > 0 {
			views = append(views, v)
		}
	}
	b := p.newBatch("export views", len(views), func() error {
		core.Logger().Info("export done", "file", filename, "views", len(views))
		return nil
	})
	gen := p.gen
	for _, v := range views {
		p.loop.Do(func() {
			if gen != p.gen {
				b.tick(ErrClosed)
				return
			}
			r, err := p.renderView(d, v)
			if err != nil {
				b.tick(fmt.Errorf("render %s: %w", v.Name, err))
				return
			}
			dir := v.Info.Path
			p.spawn(b, "encode "+v.Name, func() error {
				return writeViewRender(dir, filename, r)
			})
		})
	}
	return b, nil
}

// renderView draws the scene through v at origin into an offscreen target
// of the view's image size. The camera mode is restored afterwards.
func (p *Project) renderView(d gpu.Device, v *View) (viewRender, error) {
	width, height := v.Info.Width, v.Info.Height
	fb, err := d.CreateFramebuffer(width, height)
	if err != nil {
		return viewRender{}, err
	}
	mode, index := p.CameraMode, p.viewIndex
	defer func() {
		d.BindFramebuffer(0)
		d.DeleteFramebuffer(fb)
		p.Scene.InvalidateDepth()
		if mode == ModeView {
			p.viewIndex = index
			p.SetCameraViewAbs(index)
		} else {
			p.SetCameraMode(mode)
		}
	}()

	d.BindFramebuffer(fb)
	p.CameraMode = ModeView
	p.SetCameraViewRef(v)
	v.Camera.Origin()
	p.Scene.InvalidateDepth()
	if err := p.Render(d, width, height); err != nil {
		return viewRender{}, err
	}
	rgba := d.ReadColor(0, 0, width, height)
	depth := append([]float32(nil), p.Scene.DepthMap(d, width, height)...)
	return viewRender{color: rgba, depth: depth}, nil
}

func writeViewRender(dir, filename string, r viewRender) error {
	if err := writePNG(filepath.Join(dir, filename+".png"), r.color); err != nil {
		return err
	}
	b := r.color.Bounds()
	depth := image.NewGray16(image.Rect(0, 0, b.Dx(), b.Dy()))
	for i, z := range r.depth {
		z = max(0, min(1, z))
		depth.SetGray16(i%b.Dx(), i/b.Dx(), color.Gray16{Y: uint16(z*65535 + 0.5)})
	}
	return writePNG(filepath.Join(dir, filename+"-depth.png"), depth)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
