package project

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopRunsInOrder(t *testing.T) {
	l := NewLoop()
	var got []int
	for i := range 3 {
		require.True(t, l.Do(func() {
			got = append(got, i)
			if i == 0 {
				l.Do(func() { got = append(got, 10) })
			}
		}))
	}
	assert.Equal(t, 4, l.Drain())
	assert.Equal(t, []int{0, 1, 2, 10}, got)
	assert.Zero(t, l.Drain())
}

func TestLoopCall(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	n := 0
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Call(func() error {
				n++
				return nil
			}))
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, n)

	boom := errors.New("boom")
	assert.ErrorIs(t, l.Call(func() error { return boom }), boom)
	assert.ErrorContains(t, l.Call(func() error { panic("bad") }), "bad")

	cancel()
	<-done
	assert.ErrorIs(t, l.Call(func() error { return nil }), ErrStopped)
	assert.False(t, l.Do(func() {}))
}

func TestLoopStopKeepsQueuedWork(t *testing.T) {
	l := NewLoop()
	ran := false
	l.Do(func() { ran = true })
	l.Stop()
	assert.False(t, l.Do(func() {}))
	assert.Equal(t, 1, l.Drain())
	assert.True(t, ran)
}
