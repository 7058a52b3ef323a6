package scene

import (
	"fmt"
	"maps"
	"slices"

	"mve-tagger/gpu"
)

// resource is implemented by the shared GPU objects (shaders, textures).
type resource interface {
	create(d gpu.Device) error
	update(d gpu.Device) error
	release(d gpu.Device)
	bind(d gpu.Device)
	unbind(d gpu.Device)
}

// state tracks the lifetime of a shared GPU object: whether it exists on the
// GPU, how deeply it is bound, and which scene items depend on it. The
// dependents only decide GC eligibility; they never keep the object alive.
type state struct {
	name    string
	created bool
	enabled int
	deps    map[any]struct{}
}

func newState(name string) state {
	return state{name: name, deps: map[any]struct{}{}}
}

func (s *state) Name() string  { return s.name }
func (s *state) Created() bool { return s.created }

// EnableCount returns the current bind depth.
func (s *state) EnableCount() int { return s.enabled }

func (s *state) ensureCreated(d gpu.Device, r resource) error {
	if s.created {
		return nil
	}
	if err := r.create(d); err != nil {
		return err
	}
	s.created = true
	s.enabled = 0
	return nil
}

func (s *state) enable(d gpu.Device, r resource) error {
	if err := s.ensureCreated(d, r); err != nil {
		return err
	}
	if s.enabled < 0 {
		panic(fmt.Sprintf("scene: %s: invalid enable count %d", s.name, s.enabled))
	}
	if s.enabled == 0 {
		if err := r.update(d); err != nil {
			return err
		}
		r.bind(d)
	}
	s.enabled++
	return nil
}

func (s *state) disable(d gpu.Device, r resource) {
	if s.enabled <= 0 {
		panic(fmt.Sprintf("scene: %s: disable without matching enable", s.name))
	}
	s.enabled--
	if s.enabled == 0 {
		r.unbind(d)
	}
}

func (s *state) destroy(d gpu.Device, r resource) {
	if s.enabled > 0 {
		panic(fmt.Sprintf("scene: %s: destroy while enabled", s.name))
	}
	if len(s.deps) > 0 {
		panic(fmt.Sprintf("scene: %s: destroy while attached to %d dependents", s.name, len(s.deps)))
	}
	if s.created {
		r.release(d)
		s.created = false
		s.enabled = 0
	}
}

// Attach records dep as a dependent.
func (s *state) Attach(dep any) {
	s.deps[dep] = struct{}{}
}

// Detach forgets dep; unknown dependents are ignored.
func (s *state) Detach(dep any) {
	delete(s.deps, dep)
}

// Dependents returns how many items currently depend on the object.
func (s *state) Dependents() int { return len(s.deps) }

// HasGarbage reports whether the object holds GPU memory nobody uses.
func (s *state) HasGarbage() bool {
	return s.created && len(s.deps) == 0
}

func (s *state) dependents() []any {
	return slices.Collect(maps.Keys(s.deps))
}
