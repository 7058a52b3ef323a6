package project

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolLimitsWorkers(t *testing.T) {
	p := NewPool(2)
	var running, peak atomic.Int32
	for range 8 {
		p.Go("sleep", func() error {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		})
	}
	require.NoError(t, p.Wait())
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPoolReportsErrors(t *testing.T) {
	p := NewPool(1)
	p.Go("fail", func() error { return errors.New("fail") })
	p.Go("panic", func() error { panic("oops") })
	assert.Error(t, p.Wait())
}

func TestBatch(t *testing.T) {
	var progress []Progress
	done := 0
	b := newBatch("load", 3, func() error {
		done++
		return errors.New("write failed")
	}, func(p Progress) { progress = append(progress, p) })

	b.tick(nil)
	b.tick(errors.New("view 1"))
	select {
	case <-b.Done():
		t.Fatal("finished early")
	default:
	}
	b.tick(nil)
	<-b.Done()

	assert.Equal(t, 1, done)
	require.Len(t, progress, 3)
	assert.Equal(t, 2, progress[1].Count)
	assert.Equal(t, "load: task complete", progress[2].String())
	assert.ErrorContains(t, b.Err(), "view 1")
	assert.ErrorContains(t, b.Err(), "write failed")
}

func TestEmptyBatchFinishes(t *testing.T) {
	done := false
	b := newBatch("noop", 0, func() error { done = true; return nil }, nil)
	<-b.Done()
	assert.True(t, done)
	assert.NoError(t, b.Err())
}

func TestProgressString(t *testing.T) {
	p := Progress{Batch: "export", Count: 1, Total: 4, Remaining: 95 * time.Second}
	assert.Equal(t, "export: 1 / 4 (1:35 remaining)", p.String())
}

func TestNewClick(t *testing.T) {
	at := time.UnixMilli(1234)
	add := NewClick([3]float64{1, 2, 3}, 2, true, at)
	sub := NewClick([3]float64{1, 2, 3}, 2, false, at)
	assert.Equal(t, 2.0, add.Radius)
	assert.Equal(t, 2.5, sub.Radius)
	assert.Equal(t, int64(1234), add.Time)
	assert.False(t, add.Equal(sub))
	assert.True(t, add.Equal(NewClick([3]float64{1, 2, 3}, 2, true, time.Now())))
}
