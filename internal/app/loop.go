package app

import (
	"time"

	"github.com/ayusman/mudra/internal/session"
)

// loop runs queued work until stop is closed, then drains what was already
// queued so no caller waits forever.
func (a *App) loop(stop <-chan struct{}, done chan<- struct{}, events chan func()) {
	defer close(done)
	for {
		select {
		case fn := <-events:
			fn()
		case <-stop:
			for {
				select {
				case fn := <-events:
					fn()
				default:
					return
				}
			}
		}
	}
}

// enqueue queues fn on the loop. It returns the channel closed when the loop
// exits, or false when the loop is not running.
func (a *App) enqueue(fn func()) (<-chan struct{}, bool) {
	a.mu.Lock()
	stop, done, events := a.stopCh, a.loopDone, a.events
	a.mu.Unlock()
	if stop == nil {
		return nil, false
	}

	select {
	case events <- fn:
		return done, true
	case <-stop:
		return nil, false
	}
}

func (a *App) post(fn func()) bool {
	_, ok := a.enqueue(fn)
	return ok
}

// loopScheduler fires timers on the loop goroutine. The inner scheduler only
// decides when; the callback is posted back so the controller is never
// touched concurrently.
type loopScheduler struct {
	inner session.Scheduler
	post  func(func()) bool
}

func (s loopScheduler) Schedule(d time.Duration, fn func()) session.Timer {
	return s.inner.Schedule(d, func() {
		s.post(fn)
	})
}

// afterFuncScheduler schedules on the runtime timer heap.
type afterFuncScheduler struct{}

func (afterFuncScheduler) Schedule(d time.Duration, fn func()) session.Timer {
	return time.AfterFunc(d, fn)
}
