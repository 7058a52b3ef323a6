package main

import (
	"context"

	"github.com/spf13/cobra"

	"mve-tagger/core"
	"mve-tagger/core/window"
	"mve-tagger/internal/opengl"
	"mve-tagger/project"
)

func newViewCommand(opts *options) *cobra.Command {
	var save string
	cmd := &cobra.Command{
		Use:   "view [project.json | mve-scene]...",
		Short: "Open the interactive viewer",
		RunE: func(cmd *cobra.Command, args []string) error {
			if save == "" && len(args) == 1 && isProjectFile(args[0]) {
				save = args[0]
			}
			return runViewer(opts, args, save)
		},
	}
	cmd.Flags().StringVar(&save, "save", "", "project file written by F5 (defaults to the opened project)")
	return cmd
}

func runViewer(opts *options, paths []string, save string) error {
	w, err := window.New(windowConfig(opts.settings))
	if err != nil {
		return err
	}
	defer w.Destroy()
	d, err := opengl.New()
	if err != nil {
		return err
	}
	defer d.Release()

	loop := project.NewLoop()
	p := project.New(opts.settings, loop)
	dirty := true
	p.Hooks.Redraw = func() { dirty = true }
	p.Hooks.Aspect = w.SetAspect
	p.Hooks.Progress = reportProgress()
	w.OnResize = func(int, int) { dirty = true }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-loop.Wake():
				window.Wake()
			}
		}
	}()

	watcher, err := project.WatchShaders(opts.settings.ShaderPath(), loop, p.Hooks.Redraw)
	if err != nil {
		core.Logger().Warn("shader reload disabled", "err", err)
	} else {
		defer watcher.Close()
		go watcher.Run(ctx)
	}

	if _, err := openProject(p, paths); err != nil {
		return err
	}

	in := newInput(w, p, d, save)
	in.bind()

	var renderErr error
	for !w.ShouldClose() {
		if dirty || in.pending() {
			w.PollEvents()
		} else {
			w.WaitEvents(0.5)
		}
		loop.Drain()
		if !dirty && !in.pending() {
			continue
		}
		dirty = false
		width, height := w.GetFramebufferSize()
		if width == 0 || height == 0 {
			in.clicks = in.clicks[:0]
			continue
		}
		if err := p.Render(d, width, height); err != nil {
			// a broken shader source is reported once until it changes
			if renderErr == nil || err.Error() != renderErr.Error() {
				core.Logger().Error("render failed", "err", err)
			}
			renderErr = err
		} else {
			renderErr = nil
		}
		in.resolve(width, height)
		w.SwapBuffers()
	}

	loop.Stop()
	loop.Drain()
	return p.Close(d)
}
