package project

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mve-tagger/core"
)

// DefaultWorkers bounds the background tasks run at once.
const DefaultWorkers = 4

// Pool runs background tasks with bounded parallelism. Tasks never touch
// the scene graph: they hand their results back through the Loop.
type Pool struct {
	g    errgroup.Group
	feed sync.WaitGroup
}

func NewPool(workers int) *Pool {
	p := &Pool{}
	p.g.SetLimit(max(1, workers))
	return p
}

// Go schedules task without blocking the caller, which may be the loop.
// A panicking task is reported as an error.
func (p *Pool) Go(name string, task func() error) {
	p.feed.Add(1)
	go func() {
		defer p.feed.Done()
		p.g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%s: panic: %v", name, r)
				}
				if err != nil {
					core.Logger().Error("task failed", "task", name, "err", err)
				}
			}()
			return task()
		})
	}()
}

// Wait blocks until every scheduled task finished and returns the first
// error.
func (p *Pool) Wait() error {
	p.feed.Wait()
	return p.g.Wait()
}

// ── Batches ──────────────────────────────────────────────────────────────────

// Progress is reported after every finished task of a batch.
type Progress struct {
	Batch     string
	Count     int
	Total     int
	Elapsed   time.Duration
	Remaining time.Duration
}

func (p Progress) String() string {
	if p.Count >= p.Total {
		return fmt.Sprintf("%s: task complete", p.Batch)
	}
	rem := p.Remaining.Round(time.Second)
	return fmt.Sprintf("%s: %d / %d (%d:%02d remaining)", p.Batch, p.Count, p.Total,
		int(rem.Minutes()), int(rem.Seconds())%60)
}

// Batch counts the completion of a group of tasks. Ticks are delivered on
// the loop; the completion callback runs there once every task ticked and
// its error joins the task errors.
type Batch struct {
	Name string

	total      int
	count      int
	begin      time.Time
	errs       []error
	done       chan struct{}
	onDone     func() error
	onProgress func(Progress)
}

func newBatch(name string, total int, onDone func() error, onProgress func(Progress)) *Batch {
	b := &Batch{
		Name:       name,
		total:      total,
		begin:      time.Now(),
		done:       make(chan struct{}),
		onDone:     onDone,
		onProgress: onProgress,
	}
	if total == 0 {
		b.finish()
	}
	return b
}

// Done is closed after the completion callback ran.
func (b *Batch) Done() <-chan struct{} { return b.done }

// Err joins the task errors. It is complete once Done is closed.
func (b *Batch) Err() error { return errors.Join(b.errs...) }

func (b *Batch) Total() int { return b.total }

// tick records one finished task. It runs on the loop.
func (b *Batch) tick(err error) {
	if err != nil {
		b.errs = append(b.errs, err)
	}
	b.count++
	if b.onProgress != nil {
		elapsed := time.Since(b.begin)
		ratio := float64(b.count) / float64(b.total)
		b.onProgress(Progress{
			Batch:     b.Name,
			Count:     b.count,
			Total:     b.total,
			Elapsed:   elapsed,
			Remaining: time.Duration(float64(elapsed)/max(0.01, ratio)) - elapsed,
		})
	}
	if b.count == b.total {
		b.finish()
	}
}

func (b *Batch) finish() {
	if b.onDone != nil {
		if err := b.onDone(); err != nil {
			b.errs = append(b.errs, err)
		}
		b.onDone = nil
	}
	close(b.done)
}
