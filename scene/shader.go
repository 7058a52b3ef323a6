package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"mve-tagger/core"
	"mve-tagger/gpu"
)

// Shader is a linked program built from <dir>/<name>.vs and <dir>/<name>.fs.
// It recompiles itself when either source file changes on disk.
type Shader struct {
	state
	dir     string
	program gpu.Handle
	mtime   time.Time
	device  gpu.Device

	uniforms map[string]int32
	attribs  map[string]int32
}

func newShader(dir, name string) *Shader {
	return &Shader{state: newState(name), dir: dir}
}

// Paths returns the vertex and fragment source paths.
func (s *Shader) Paths() (vertex, fragment string) {
	return filepath.Join(s.dir, s.name+".vs"), filepath.Join(s.dir, s.name+".fs")
}

// Program returns the current program handle, 0 when not created.
func (s *Shader) Program() gpu.Handle { return s.program }

// ModTime returns the newest source modification time seen at creation.
func (s *Shader) ModTime() time.Time { return s.mtime }

func (s *Shader) Enable(d gpu.Device) error {
	return s.state.enable(d, s)
}

func (s *Shader) Disable(d gpu.Device) {
	s.state.disable(d, s)
}

func (s *Shader) Destroy(d gpu.Device) {
	s.state.destroy(d, s)
}

// Cleanup forcibly detaches every pass using this shader. Only used when
// the whole scene is torn down.
func (s *Shader) Cleanup() {
	for _, dep := range s.dependents() {
		if p, ok := dep.(*Pass); ok {
			p.detachShader(s)
		}
		s.Detach(dep)
	}
}

func (s *Shader) sourceTime() (time.Time, error) {
	vs, fs := s.Paths()
	var newest time.Time
	for _, path := range []string{vs, fs} {
		info, err := os.Stat(path)
		if err != nil {
			return time.Time{}, fmt.Errorf("shader %q: %w", s.name, err)
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}
	return newest, nil
}

func (s *Shader) create(d gpu.Device) error {
	if s.name == "" {
		return fmt.Errorf("shader: missing program name")
	}
	mtime, err := s.sourceTime()
	if err != nil {
		return err
	}
	vs, fs := s.Paths()
	vertex, err := os.ReadFile(vs)
	if err != nil {
		return fmt.Errorf("shader %q: %w", s.name, err)
	}
	fragment, err := os.ReadFile(fs)
	if err != nil {
		return fmt.Errorf("shader %q: %w", s.name, err)
	}
	program, err := d.CreateProgram(string(vertex), string(fragment))
	if err != nil {
		return fmt.Errorf("shader %q: %w", s.name, err)
	}
	s.program = program
	s.mtime = mtime
	s.uniforms = map[string]int32{}
	s.attribs = map[string]int32{}
	core.Logger().Debug("shader created", "name", s.name, "program", program)
	return nil
}

func (s *Shader) update(d gpu.Device) error {
	mtime, err := s.sourceTime()
	if err != nil {
		return err
	}
	if mtime.Equal(s.mtime) {
		return nil
	}
	core.Logger().Info("reloading shader", "name", s.name)
	s.release(d)
	return s.create(d)
}

func (s *Shader) release(d gpu.Device) {
	if s.program != 0 {
		d.DeleteProgram(s.program)
		core.Logger().Debug("shader destroyed", "name", s.name, "program", s.program)
	}
	s.program = 0
	s.uniforms = nil
	s.attribs = nil
}

func (s *Shader) bind(d gpu.Device) {
	d.UseProgram(s.program)
	s.device = d
}

func (s *Shader) unbind(d gpu.Device) {
	d.UseProgram(0)
	s.device = nil
}

func (s *Shader) mustBeEnabled() gpu.Device {
	if s.enabled <= 0 || s.device == nil {
		panic(fmt.Sprintf("scene: shader %q must be enabled", s.name))
	}
	return s.device
}

func (s *Shader) uniform(name string) (gpu.Device, int32) {
	d := s.mustBeEnabled()
	loc, ok := s.uniforms[name]
	if !ok {
		loc = d.UniformLocation(s.program, name)
		s.uniforms[name] = loc
	}
	return d, loc
}

func (s *Shader) attrib(name string) (gpu.Device, int32) {
	d := s.mustBeEnabled()
	loc, ok := s.attribs[name]
	if !ok {
		loc = d.AttribLocation(s.program, name)
		s.attribs[name] = loc
	}
	return d, loc
}

func (s *Shader) SetFloat(name string, v float32) {
	if d, loc := s.uniform(name); loc >= 0 {
		d.Uniformf(loc, v)
	}
}

func (s *Shader) SetInt(name string, v int32) {
	if d, loc := s.uniform(name); loc >= 0 {
		d.Uniformi(loc, v)
	}
}

func (s *Shader) SetVec2(name string, v [2]float32) {
	if d, loc := s.uniform(name); loc >= 0 {
		d.Uniformf(loc, v[:]...)
	}
}

func (s *Shader) SetVec3(name string, v mgl64.Vec3) {
	if d, loc := s.uniform(name); loc >= 0 {
		d.Uniformf(loc, float32(v[0]), float32(v[1]), float32(v[2]))
	}
}

func (s *Shader) SetVec4(name string, v [4]float32) {
	if d, loc := s.uniform(name); loc >= 0 {
		d.Uniformf(loc, v[:]...)
	}
}

// SetMat4 uploads a column-major matrix.
func (s *Shader) SetMat4(name string, m mgl64.Mat4) {
	if d, loc := s.uniform(name); loc >= 0 {
		var f [16]float32
		for i, v := range m {
			f[i] = float32(v)
		}
		d.UniformMatrix4(loc, f)
	}
}

func (s *Shader) SetUniform(name string, u Uniform) {
	d, loc := s.uniform(name)
	if loc < 0 || len(u.Values) == 0 {
		return
	}
	if u.Int {
		d.Uniformi(loc, u.ints()...)
	} else {
		d.Uniformf(loc, u.Values...)
	}
}

func (s *Shader) SetUniforms(uniforms Uniforms) {
	s.mustBeEnabled()
	for name, u := range uniforms {
		s.SetUniform(name, u)
	}
}

// SetAttribute points the named attribute at the bound array buffer.
// Integer types are normalized to [0,1].
func (s *Shader) SetAttribute(name string, dtype gpu.DataType, offset, components, stride int) {
	d, loc := s.attrib(name)
	if loc < 0 {
		return
	}
	d.VertexAttribPointer(uint32(loc), components, dtype, dtype.Integer(), stride, offset)
	d.EnableVertexAttribArray(uint32(loc))
}

func (s *Shader) UnsetAttribute(name string) {
	d, loc := s.attrib(name)
	if loc < 0 {
		return
	}
	d.DisableVertexAttribArray(uint32(loc))
}
