package project

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"mve-tagger/mve"
	"mve-tagger/scene"
)

// Render order of the scene passes.
const (
	defaultPassOrder = 0
	scenePassOrder   = 10
	cloudPassOrder   = 11
	overlayPassOrder = 100
)

// Scene is one imported MVE reconstruction.
type Scene struct {
	Name  string
	Path  string
	Views map[int]*View

	MVE *mve.Scene

	pass      *scene.Pass
	cloudPass *scene.Pass
}

// openScene reads the MVE scene at path and merges it with the saved
// views. Saved views missing from disk become inactive.
func openScene(name, path string, views map[int]*View) (*Scene, error) {
	m, err := mve.Open(path)
	if err != nil {
		return nil, err
	}
	if views == nil {
		views = map[int]*View{}
	}
	s := &Scene{Name: name, Path: path, Views: views, MVE: m}
	for _, info := range m.Views {
		name := fmt.Sprintf("%s:%04d", s.Name, info.ID)
		v, ok := s.Views[info.ID]
		if !ok {
			v = newView(name, info.ID)
			s.Views[info.ID] = v
		}
		v.Name = name
		v.Info = info
	}
	for _, v := range s.Views {
		if v.Info == nil {
			v.Active = false
		}
	}
	return s, nil
}

// SortedViews returns the views ordered by name.
func (s *Scene) SortedViews() []*View {
	out := slices.Collect(maps.Values(s.Views))
	slices.SortFunc(out, func(a, b *View) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// create adds the scene passes. Clouds render with the project's cloud
// shader, everything else with the default one.
func (s *Scene) create(sc *scene.Scene, cloudShader *scene.ShaderCell) {
	s.destroy(sc)
	s.pass = sc.AddPass(s.Name, scenePassOrder)
	s.cloudPass = sc.AddPass(s.Name+":cloud", cloudPassOrder)
	s.cloudPass.SetShaderCell(cloudShader)
}

// attach adds the created view nodes to the scene passes.
func (s *Scene) attach(v *View) {
	if v.Camera != nil {
		s.pass.AttachNode(v.Camera.Node())
	}
	if v.BBox != nil {
		s.pass.AttachNode(v.BBox)
	}
	if v.Mesh != nil {
		s.cloudPass.AttachNode(v.Mesh.Node())
	}
}

func (s *Scene) destroy(sc *scene.Scene) {
	for _, v := range s.Views {
		v.destroy(sc)
	}
	if s.pass != nil {
		sc.RemovePass(s.pass.Name)
		s.pass = nil
	}
	if s.cloudPass != nil {
		sc.RemovePass(s.cloudPass.Name)
		s.cloudPass = nil
	}
}

// Select applies the strokes to every view of the scene.
func (s *Scene) Select(clicks []Selection) bool {
	changed := false
	for _, v := range s.Views {
		changed = v.Select(clicks) || changed
	}
	return changed
}
