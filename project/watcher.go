package project

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"mve-tagger/core"
)

// ShaderWatcher requests a redraw when a shader source changes. Shaders
// recompile themselves on their next use, so a redraw is all it takes.
type ShaderWatcher struct {
	watcher *fsnotify.Watcher
	loop    *Loop
	redraw  func()
}

// WatchShaders watches dir. redraw runs on loop.
func WatchShaders(dir string, loop *Loop, redraw func()) (*ShaderWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	return &ShaderWatcher{watcher: w, loop: loop, redraw: redraw}, nil
}

// Run forwards events until ctx is done or the watcher is closed.
func (sw *ShaderWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if !isShaderSource(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				core.Logger().Debug("shader changed", "file", event.Name, "op", event.Op.String())
				sw.loop.Do(sw.redraw)
			}
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			core.Logger().Warn("shader watcher", "err", err)
		}
	}
}

func (sw *ShaderWatcher) Close() error { return sw.watcher.Close() }

func isShaderSource(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".vs" || ext == ".fs"
}
