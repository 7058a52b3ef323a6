package scene

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"mve-tagger/core"
	"mve-tagger/gpu"
)

// Texture is a 2D texture uploaded from an image file. Nodes attach it by
// filename through the scene registry, so one file is uploaded once.
type Texture struct {
	state
	Width  int
	Height int
	handle gpu.Handle
}

func newTexture(filename string) *Texture {
	return &Texture{state: newState(filename)}
}

// Filename returns the image path the texture is loaded from.
func (t *Texture) Filename() string { return t.name }

// Handle returns the GPU texture, 0 when not created.
func (t *Texture) Handle() gpu.Handle { return t.handle }

func (t *Texture) Enable(d gpu.Device) error {
	return t.state.enable(d, t)
}

func (t *Texture) Disable(d gpu.Device) {
	t.state.disable(d, t)
}

func (t *Texture) Destroy(d gpu.Device) {
	t.state.destroy(d, t)
}

// Cleanup forcibly detaches every node using this texture. Only used when
// the whole scene is torn down.
func (t *Texture) Cleanup() {
	for _, dep := range t.dependents() {
		if n, ok := dep.(*Node); ok {
			n.DetachTexture(t)
		}
		t.Detach(dep)
	}
}

// LoadImage decodes an image file and converts it to RGBA.
func LoadImage(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open texture %q: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode texture %q: %w", path, err)
	}
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba, nil
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba, nil
}

func (t *Texture) create(d gpu.Device) error {
	img, err := LoadImage(t.name)
	if err != nil {
		return err
	}
	handle, err := d.CreateTexture(img)
	if err != nil {
		return fmt.Errorf("upload texture %q: %w", t.name, err)
	}
	t.handle = handle
	t.Width = img.Bounds().Dx()
	t.Height = img.Bounds().Dy()
	core.Logger().Debug("texture created", "file", t.name, "width", t.Width, "height", t.Height)
	return nil
}

func (t *Texture) update(gpu.Device) error { return nil }

func (t *Texture) release(d gpu.Device) {
	if t.handle != 0 {
		d.DeleteTexture(t.handle)
		core.Logger().Debug("texture destroyed", "file", t.name)
	}
	t.handle = 0
	t.Width = 0
	t.Height = 0
}

func (t *Texture) bind(d gpu.Device) {
	d.BindTexture(0, t.handle)
}

func (t *Texture) unbind(d gpu.Device) {
	d.BindTexture(0, 0)
}
