// Package mve reads the on-disk layout of MVE reconstructions: the bundle
// file, per-view meta.ini and images, and the .mvei raw image format.
package mve

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// BundleFile is the bundle name relative to the scene directory.
const BundleFile = "synth_0.out"

// Scene is an MVE scene directory.
type Scene struct {
	Path    string
	Cameras []BundleCamera
	// Views are the valid views sorted by id.
	Views []*View
}

// Open reads the bundle and the views of the scene at path.
func Open(path string) (*Scene, error) {
	cameras, err := ReadBundle(filepath.Join(path, BundleFile))
	if err != nil {
		return nil, fmt.Errorf("open mve scene: %w", err)
	}
	s := &Scene{Path: path, Cameras: cameras}

	entries, err := os.ReadDir(filepath.Join(path, "views"))
	if err != nil {
		return nil, fmt.Errorf("open mve scene: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, err := loadView(filepath.Join(path, "views", e.Name()), cameras)
		if err != nil {
			return nil, fmt.Errorf("open mve scene: %w", err)
		}
		if v.Valid() {
			s.Views = append(s.Views, v)
		}
	}
	slices.SortStableFunc(s.Views, func(a, b *View) int { return a.ID - b.ID })
	return s, nil
}

// View returns the view with the given id, or nil.
func (s *Scene) View(id int) *View {
	i, ok := slices.BinarySearchFunc(s.Views, id, func(v *View, id int) int { return v.ID - id })
	if !ok {
		return nil
	}
	return s.Views[i]
}

// ReadyViews returns the views with a calibrated camera.
func (s *Scene) ReadyViews() []*View {
	var out []*View
	for _, v := range s.Views {
		if v.Ready() {
			out = append(out, v)
		}
	}
	return out
}

// RobustViews returns the views passing View.Robust.
func (s *Scene) RobustViews(minFocal, maxFocal, maxDist float64) []*View {
	var out []*View
	for _, v := range s.Views {
		if v.Robust(minFocal, maxFocal, maxDist) {
			out = append(out, v)
		}
	}
	return out
}
