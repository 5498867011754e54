package usecase

import (
	"context"
	"sync"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
	"github.com/starlight-bridge/starlight/internal/core"
	"github.com/starlight-bridge/starlight/internal/log"
)

// JobLocker counts outstanding asynchronous work per owner token and lets
// the owner's work be cancelled as a unit.
type JobLocker struct {
	mu      sync.Mutex
	entries map[string]*jobEntry
}

type jobEntry struct {
	count  int
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// NewJobLocker creates an empty locker
func NewJobLocker() *JobLocker {
	return &JobLocker{entries: make(map[string]*jobEntry)}
}

func (l *JobLocker) entry(id string) *jobEntry {
	e, ok := l.entries[id]
	if !ok {
		e = &jobEntry{}
		l.entries[id] = e
	}
	if e.ctx == nil {
		e.ctx, e.cancel = context.WithCancel(context.Background())
	}
	return e
}

// RequestLock increments the outstanding count for id and returns the new value
func (l *JobLocker) RequestLock(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entry(id)
	e.count++
	return e.count
}

// RequestRelease decrements the outstanding count for id. Releasing below zero
// leaves the count at zero and returns ErrReleaseUnderflow.
func (l *JobLocker) RequestRelease(id string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[id]
	if !ok || e.count == 0 {
		log.Warn("[JobLocker] release without matching lock", "owner", id)
		return 0, domain.ErrReleaseUnderflow
	}
	e.count--
	core.AssertInvariant(e.count >= 0, "job count of "+id+" went negative")
	return e.count, nil
}

// StopAllJobs zeroes the count for id, cancels the owner's context and
// returns how many jobs were force-released. Work already running in native
// calls is only signalled, not killed.
func (l *JobLocker) StopAllJobs(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[id]
	if !ok {
		return 0
	}
	released := e.count
	core.AssertInvariant(released >= 0, "job count of "+id+" is negative")
	e.count = 0
	e.gen++
	if e.cancel != nil {
		e.cancel()
	}
	e.ctx, e.cancel = nil, nil

	if released > 0 {
		log.Info("[JobLocker] stopped jobs", "owner", id, "released", released)
	}
	return released
}

// Count returns the outstanding count for id
func (l *JobLocker) Count(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[id]; ok {
		return e.count
	}
	return 0
}

// Context returns the context that is cancelled by the next StopAllJobs(id)
func (l *JobLocker) Context(id string) context.Context {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entry(id).ctx
}

// Forget drops all state for id, cancelling anything still attached to it
func (l *JobLocker) Forget(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[id]; ok {
		if e.cancel != nil {
			e.cancel()
		}
		delete(l.entries, id)
	}
}

// Job is one locked unit of work
type Job struct {
	locker *JobLocker
	owner  string
	gen    uint64
	ctx    context.Context
	once   sync.Once
}

// Acquire locks a job for owner. The returned job's context is cancelled by
// StopAllJobs(owner).
func (l *JobLocker) Acquire(owner string) *Job {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entry(owner)
	e.count++
	return &Job{locker: l, owner: owner, gen: e.gen, ctx: e.ctx}
}

// Context is done once the owner's jobs are stopped
func (j *Job) Context() context.Context {
	return j.ctx
}

// Owner returns the token the job is counted against
func (j *Job) Owner() string {
	return j.owner
}

// Release gives the job back. It is idempotent and does nothing when the
// job was already released by StopAllJobs.
func (j *Job) Release() {
	j.once.Do(func() {
		l := j.locker
		l.mu.Lock()
		defer l.mu.Unlock()

		e, ok := l.entries[j.owner]
		if !ok || e.gen != j.gen || e.count == 0 {
			return
		}
		e.count--
		core.AssertInvariant(e.count >= 0, "job count of "+j.owner+" went negative")
	})
}
