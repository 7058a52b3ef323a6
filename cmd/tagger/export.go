package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mve-tagger/core"
	"mve-tagger/core/window"
	"mve-tagger/internal/opengl"
	"mve-tagger/project"
)

// loadHeadless opens a project on a loop driven by the calling goroutine.
func loadHeadless(opts *options, path string) (*project.Project, error) {
	p := project.New(opts.settings, project.NewLoop())
	p.Hooks.Progress = reportProgress()
	batches, err := openProject(p, []string{path})
	if err != nil {
		return nil, err
	}
	for _, b := range batches {
		if err := await(p.Loop(), b); err != nil {
			core.Logger().Warn("project loaded with errors", "err", err)
		}
	}
	return p, nil
}

func newExportPLYCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export-ply <project.json> <out.ply|out.glb>",
		Short: "Write the selected points of a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadHeadless(opts, args[0])
			if err != nil {
				return err
			}
			if err := await(p.Loop(), p.Preselect()); err != nil {
				return err
			}
			out := args[1]
			var b *project.Batch
			switch strings.ToLower(filepath.Ext(out)) {
			case ".ply":
				b = p.ExportPLY(out)
			case ".glb":
				b = p.ExportGLB(out)
			default:
				return fmt.Errorf("unknown export format %q", filepath.Ext(out))
			}
			return await(p.Loop(), b)
		},
	}
}

func newExportViewsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export-views <project.json> <filename>",
		Short: "Render every view into <filename>.png and <filename>-depth.png",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := windowConfig(opts.settings)
			cfg.Hidden = true
			w, err := window.New(cfg)
			if err != nil {
				return err
			}
			defer w.Destroy()
			d, err := opengl.New()
			if err != nil {
				return err
			}
			defer d.Release()

			p, err := loadHeadless(opts, args[0])
			if err != nil {
				return err
			}
			defer p.Close(d)
			b, err := p.ExportViews(d, args[1])
			if err != nil {
				return err
			}
			return await(p.Loop(), b)
		},
	}
}
