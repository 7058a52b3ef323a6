package project

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShaderWatcherRequestsRedraw(t *testing.T) {
	dir := t.TempDir()
	loop := NewLoop()
	var redraws atomic.Int32
	sw, err := WatchShaders(dir, loop, func() { redraws.Add(1) })
	require.NoError(t, err)
	defer sw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sw.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	assert.Never(t, func() bool { return loop.Drain() > 0 }, 300*time.Millisecond, 20*time.Millisecond)
	assert.Zero(t, redraws.Load())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cloud-rgb.fs"), []byte("void main() {}\n"), 0o644))
	require.Eventually(t, func() bool {
		loop.Drain()
		return redraws.Load() > 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestShaderWatcherStopsOnCancel(t *testing.T) {
	sw, err := WatchShaders(t.TempDir(), NewLoop(), func() {})
	require.NoError(t, err)
	defer sw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchShadersMissingDir(t *testing.T) {
	_, err := WatchShaders(filepath.Join(t.TempDir(), "missing"), NewLoop(), func() {})
	assert.Error(t, err)
}

func TestIsShaderSource(t *testing.T) {
	assert.True(t, isShaderSource("shaders/display.vs"))
	assert.True(t, isShaderSource("cloud-mask.fs"))
	assert.False(t, isShaderSource("cloud-mask.fs.swp"))
	assert.False(t, isShaderSource("README"))
}
