package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/starlight-bridge/starlight/internal/core"
	"github.com/starlight-bridge/starlight/internal/log"
)

type projectTimer struct {
	job      *Job
	stop     chan struct{}
	stopOnce sync.Once
}

func (t *projectTimer) cancel() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// Schedule implements Host. The timer holds a job until fn returns or the
// timer is cancelled.
func (p *Project) Schedule(delay time.Duration, fn func(ctx context.Context)) string {
	return p.startTimer(delay, 0, fn)
}

// ScheduleRepeating implements Host
func (p *Project) ScheduleRepeating(initial, period time.Duration, fn func(ctx context.Context)) string {
	if period <= 0 {
		period = time.Millisecond
	}
	return p.startTimer(initial, period, fn)
}

// CancelTimer implements Host
func (p *Project) CancelTimer(id string) bool {
	if !core.IsValidID(id) {
		log.Debug("[Project] malformed timer id", "project", p.name, "timer", id)
		return false
	}
	p.timerMu.Lock()
	t, ok := p.timers[id]
	p.timerMu.Unlock()
	if !ok {
		return false
	}
	t.cancel()
	return true
}

// Timers returns the number of pending timers
func (p *Project) Timers() int {
	p.timerMu.Lock()
	defer p.timerMu.Unlock()
	return len(p.timers)
}

func (p *Project) startTimer(delay, period time.Duration, fn func(ctx context.Context)) string {
	id := core.NewID("tmr")
	t := &projectTimer{
		job:  p.locker.Acquire(p.id),
		stop: make(chan struct{}),
	}

	p.timerMu.Lock()
	p.timers[id] = t
	p.timerMu.Unlock()

	go p.runTimer(id, t, delay, period, fn)
	return id
}

func (p *Project) runTimer(id string, t *projectTimer, delay, period time.Duration, fn func(ctx context.Context)) {
	defer func() {
		p.timerMu.Lock()
		delete(p.timers, id)
		p.timerMu.Unlock()
		t.job.Release()
	}()

	ctx := t.job.Context()
	wait := delay
	for {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-t.stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := p.runTimerTick(ctx, fn); err != nil {
			log.Warn("[Project] timer callback failed", "project", p.name, "timer", id, "error", err)
			if ctx.Err() != nil {
				return
			}
		}
		if period <= 0 {
			return
		}
		wait = period
	}
}

func (p *Project) runTimerTick(ctx context.Context, fn func(ctx context.Context)) error {
	done, err := p.submit(ctx, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Project) cancelAllTimers() {
	p.timerMu.Lock()
	defer p.timerMu.Unlock()
	for _, t := range p.timers {
		t.cancel()
	}
}
