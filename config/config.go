// Package config holds the tagger settings stored as TOML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
)

// DefaultFile is the settings location used by the CLI.
const DefaultFile = "~/.config/mve-tagger/config.toml"

type WindowSettings struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Title  string `toml:"title"`
	VSync  bool   `toml:"vsync"`
}

// Settings tune view classification, indexing and the runtime.
type Settings struct {
	// Views whose focal length lies outside [MinFocal, MaxFocal] or whose
	// radial distortion reaches MaxDist are not loaded.
	MinFocal float64 `toml:"min_focal"`
	MaxFocal float64 `toml:"max_focal"`
	MaxDist  float64 `toml:"max_dist"`

	// MaxLeafs is the k-d tree leaf size.
	MaxLeafs int `toml:"max_leafs"`
	// Workers bounds the background tasks run at once.
	Workers int `toml:"workers"`

	GCInterval      Duration `toml:"gc_interval"`
	ShaderDir       string   `toml:"shader_dir"`
	SelectionRadius float64  `toml:"selection_radius"`

	Window WindowSettings `toml:"window"`
}

func Default() *Settings {
	return &Settings{
		MinFocal:        0.5,
		MaxFocal:        1.0,
		MaxDist:         1,
		MaxLeafs:        1000,
		Workers:         4,
		GCInterval:      Duration(5 * time.Second),
		ShaderDir:       "shaders",
		SelectionRadius: 1.0,
		Window: WindowSettings{
			Width:  1280,
			Height: 720,
			Title:  "MVE Tagger",
			VSync:  true,
		},
	}
}

// Load reads the settings at path on top of the defaults. A missing file
// yields the defaults.
func Load(path string) (*Settings, error) {
	s := Default()
	p, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(s); err != nil {
		return nil, fmt.Errorf("load settings %s: %w", p, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("load settings %s: %w", p, err)
	}
	return s, nil
}

// Save writes the settings to path, creating its directory.
func (s *Settings) Save(path string) error {
	p, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return os.WriteFile(p, data, 0o644)
}

func (s *Settings) Validate() error {
	switch {
	case s.MinFocal > s.MaxFocal:
		return fmt.Errorf("min_focal %g exceeds max_focal %g", s.MinFocal, s.MaxFocal)
	case s.MaxLeafs < 1:
		return fmt.Errorf("max_leafs must be positive, got %d", s.MaxLeafs)
	case s.Workers < 1:
		return fmt.Errorf("workers must be positive, got %d", s.Workers)
	case s.GCInterval <= 0:
		return fmt.Errorf("gc_interval must be positive, got %s", s.GCInterval)
	case s.SelectionRadius <= 0:
		return fmt.Errorf("selection_radius must be positive, got %g", s.SelectionRadius)
	}
	return nil
}

// ShaderPath returns the shader directory with ~ expanded.
func (s *Settings) ShaderPath() string {
	p, err := homedir.Expand(s.ShaderDir)
	if err != nil {
		return s.ShaderDir
	}
	return p
}

// Duration is a time.Duration stored as a string such as "5s".
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
