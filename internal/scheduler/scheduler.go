// Package scheduler runs cancellable repeating jobs.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// Task is a job repeating on a fixed interval until stopped.
type Task struct {
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// Every starts fn on a fresh interval counted from now.
// fn is never invoked after Stop returns or parent is cancelled.
func Every(parent context.Context, interval time.Duration, fn func(ctx context.Context, now time.Time)) *Task {
	ctx, cancel := context.WithCancel(parent)
	t := &Task{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go t.loop(ctx, interval, fn)
	return t
}

func (t *Task) loop(ctx context.Context, interval time.Duration, fn func(ctx context.Context, now time.Time)) {
	defer close(t.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			// both cases may be ready at once; cancellation wins
			if ctx.Err() != nil {
				return
			}
			fn(ctx, now)
		}
	}
}

// Stop cancels the task and waits for an in-flight run to return.
// Must not be called from inside fn.
func (t *Task) Stop() {
	t.stopOnce.Do(t.cancel)
	<-t.done
}

// Done is closed once the task has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}
