// Command tagger views MVE reconstructions and tags their point clouds.
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mve-tagger/config"
	"mve-tagger/core"
	"mve-tagger/core/window"
	"mve-tagger/project"
)

type options struct {
	configFile string
	debug      bool
	settings   *config.Settings
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "tagger",
		Short:        "View MVE scenes and tag their point clouds",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if opts.debug {
				level = slog.LevelDebug
			}
			core.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			settings, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}
			opts.settings = settings
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", config.DefaultFile, "settings file")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "log GPU resources and sweeps")

	root.AddCommand(
		newViewCommand(opts),
		newInfoCommand(opts),
		newExportPLYCommand(opts),
		newExportViewsCommand(opts),
	)
	return root
}

// windowConfig maps the settings onto the window options.
func windowConfig(s *config.Settings) window.Config {
	cfg := window.DefaultConfig()
	cfg.Width = s.Window.Width
	cfg.Height = s.Window.Height
	cfg.Title = s.Window.Title
	cfg.VSync = s.Window.VSync
	return cfg
}

// openProject loads a project file or imports MVE scene directories.
func openProject(p *project.Project, paths []string) ([]*project.Batch, error) {
	var batches []*project.Batch
	for _, path := range paths {
		var b *project.Batch
		var err error
		if isProjectFile(path) {
			b, err = p.Load(path)
		} else {
			b, err = p.ImportMVE(path)
		}
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, nil
}

func isProjectFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// await drives the loop from the calling goroutine until b completes.
func await(l *project.Loop, b *project.Batch) error {
	for {
		l.Drain()
		select {
		case <-b.Done():
			l.Drain()
			return b.Err()
		case <-l.Wake():
		}
	}
}

// reportProgress logs batch progress at most once per second.
func reportProgress() func(project.Progress) {
	var last time.Time
	return func(p project.Progress) {
		if p.Count < p.Total && time.Since(last) < time.Second {
			return
		}
		last = time.Now()
		core.Logger().Info(p.String())
	}
}
