package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gammazero/workerpool"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
	"github.com/starlight-bridge/starlight/internal/biz/repo"
	"github.com/starlight-bridge/starlight/internal/core"
	"github.com/starlight-bridge/starlight/internal/log"
)

// ProjectState is the compile lifecycle of a project
type ProjectState int32

const (
	StateUncompiled ProjectState = iota
	StateCompiled
	StateDestroyed
)

func (s ProjectState) String() string {
	switch s {
	case StateUncompiled:
		return "uncompiled"
	case StateCompiled:
		return "compiled"
	case StateDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// DefaultCallTimeout bounds a single entry point invocation
const DefaultCallTimeout = 10 * time.Second

// ProjectOptions tune the runtime of a single project
type ProjectOptions struct {
	CallTimeout     time.Duration
	DefaultPoolSize int
}

// Project is one loaded automation unit. It owns at most one compiled scope
// and a worker pool on which its entry points run.
type Project struct {
	id   string
	name string

	repo   repo.ProjectRepo
	lang   Language
	locker *JobLocker

	infoMu sync.RWMutex
	info   domain.ProjectInfo

	// mu guards state, scope and pool
	mu    sync.RWMutex
	state ProjectState
	scope Scope
	pool  *workerpool.WorkerPool

	envMu sync.RWMutex
	env   map[string]string

	timerMu sync.Mutex
	timers  map[string]*projectTimer

	callTimeout time.Duration
}

func newProject(info domain.ProjectInfo, lang Language, projectRepo repo.ProjectRepo, locker *JobLocker, opts ProjectOptions) *Project {
	size := info.PoolSize
	if size <= 0 {
		size = opts.DefaultPoolSize
	}
	if size <= 0 {
		size = 1
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	return &Project{
		id:          info.ID,
		name:        info.Name,
		repo:        projectRepo,
		lang:        lang,
		locker:      locker,
		info:        info.Clone(),
		state:       StateUncompiled,
		pool:        workerpool.New(size),
		env:         map[string]string{},
		timers:      make(map[string]*projectTimer),
		callTimeout: timeout,
	}
}

// ProjectID implements Host
func (p *Project) ProjectID() string {
	return p.id
}

// ProjectName implements Host
func (p *Project) ProjectName() string {
	return p.name
}

// Env implements Host
func (p *Project) Env() map[string]string {
	p.envMu.RLock()
	defer p.envMu.RUnlock()

	out := make(map[string]string, len(p.env))
	for k, v := range p.env {
		out[k] = v
	}
	return out
}

// Info returns a copy of the persisted info
func (p *Project) Info() domain.ProjectInfo {
	p.infoMu.RLock()
	defer p.infoMu.RUnlock()
	return p.info.Clone()
}

// Language returns the adapter the project is bound to
func (p *Project) Language() Language {
	return p.lang
}

func (p *Project) updateInfo(fn func(info *domain.ProjectInfo)) (domain.ProjectInfo, error) {
	p.infoMu.Lock()
	defer p.infoMu.Unlock()

	next := p.info.Clone()
	fn(&next)
	if next.MainScript != p.info.MainScript && !domain.ValidMainScript(next.MainScript) {
		return p.info.Clone(), fmt.Errorf("%w: %q", domain.ErrInvalidMainScript, next.MainScript)
	}
	// identity is fixed for the lifetime of the object
	next.ID, next.Name = p.id, p.name
	p.info = next
	return p.info.Clone(), nil
}

// SetEnabled gates dispatch eligibility; it does not touch compile state
func (p *Project) SetEnabled(enabled bool) {
	_, _ = p.updateInfo(func(info *domain.ProjectInfo) { info.IsEnabled = enabled })
}

// State returns the current lifecycle state
func (p *Project) State() ProjectState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// IsCompiled reports whether the project holds a usable scope
func (p *Project) IsCompiled() bool {
	return p.State() == StateCompiled
}

// IsEventCallAllowed checks the permission set only
func (p *Project) IsEventCallAllowed(eventID string) bool {
	p.infoMu.RLock()
	defer p.infoMu.RUnlock()
	return p.info.AllowsEvent(eventID)
}

// Eligible reports whether eventID may be delivered to this project now
func (p *Project) Eligible(eventID string) bool {
	if !p.IsCompiled() {
		return false
	}
	p.infoMu.RLock()
	defer p.infoMu.RUnlock()
	return p.info.IsEnabled && p.info.AllowsEvent(eventID)
}

// ActiveJobs returns the number of outstanding asynchronous jobs
func (p *Project) ActiveJobs() int {
	return p.locker.Count(p.id)
}

// Load compiles the main script, replacing any previous scope. On failure
// the project is left uncompiled and a *domain.CompileError is returned.
func (p *Project) Load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateDestroyed {
		return domain.ErrProjectDestroyed
	}
	p.releaseLocked()

	env, err := p.repo.ReadEnv(ctx, p.name)
	if err != nil {
		log.Warn("[Project] failed to read env", "project", p.name, "error", err)
		env = map[string]string{}
	}
	p.envMu.Lock()
	p.env = env
	p.envMu.Unlock()

	info := p.Info()
	source, err := p.repo.ReadSource(ctx, &info)
	if err != nil {
		return &domain.CompileError{Project: p.name, LanguageID: p.lang.ID(), Err: err}
	}

	scope, err := p.lang.Compile(ctx, p, source)
	if err != nil {
		log.Warn("[Project] compile failed", "project", p.name, "error", err)
		// timers started by a partially evaluated script must not survive
		p.StopAllJobs()
		return &domain.CompileError{Project: p.name, LanguageID: p.lang.ID(), Err: err}
	}

	p.scope = scope
	p.state = StateCompiled
	log.Info("[Project] compiled", "project", p.name, "language", p.lang.ID())
	return nil
}

// Destroy stops every job, releases the scope and shuts the worker pool
// down. Calling it again does nothing.
func (p *Project) Destroy() {
	p.mu.Lock()
	if p.state == StateDestroyed {
		p.mu.Unlock()
		return
	}
	p.releaseLocked()
	core.AssertInvariant(p.scope == nil, "destroyed project "+p.name+" still holds a scope")
	p.state = StateDestroyed
	pool := p.pool
	p.mu.Unlock()

	// Stop waits for running tasks; a hung script must not block the caller
	go pool.Stop()
	p.locker.Forget(p.id)
	log.Info("[Project] destroyed", "project", p.name)
}

// StopAllJobs force-releases the project's outstanding jobs
func (p *Project) StopAllJobs() int {
	released := p.locker.StopAllJobs(p.id)
	p.cancelAllTimers()
	return released
}

// releaseLocked drops the current scope. Caller holds p.mu.
func (p *Project) releaseLocked() {
	p.StopAllJobs()
	if p.scope != nil {
		p.lang.Release(p.scope)
		p.scope = nil
	}
	if p.state == StateCompiled {
		p.state = StateUncompiled
	}
}

// CallFunction invokes fn on the project's worker pool and waits for it,
// bounded by the call timeout. Failures are reported through onFailure and
// never returned. A missing entry point or a project destroyed meanwhile is
// not a failure.
func (p *Project) CallFunction(ctx context.Context, fn string, args []any, onFailure func(err error)) {
	if onFailure == nil {
		onFailure = func(error) {}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	done, err := p.submit(callCtx, func(ctx context.Context) error {
		p.mu.RLock()
		scope, state := p.scope, p.state
		p.mu.RUnlock()
		if state == StateDestroyed {
			return domain.ErrProjectDestroyed
		}
		if scope == nil {
			return domain.ErrNotCompiled
		}
		_, err := p.lang.Invoke(ctx, scope, fn, args)
		return err
	})
	if errors.Is(err, domain.ErrProjectDestroyed) {
		// removed after the dispatcher took its snapshot
		log.Debug("[Project] call skipped on destroyed project", "project", p.name, "function", fn)
		return
	}
	if err != nil {
		onFailure(err)
		return
	}

	select {
	case err = <-done:
	case <-callCtx.Done():
		err = callCtx.Err()
	}

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrFunctionNotFound):
		log.Debug("[Project] entry point not defined", "project", p.name, "function", fn)
	case errors.Is(err, domain.ErrProjectDestroyed):
		log.Debug("[Project] call skipped on destroyed project", "project", p.name, "function", fn)
	default:
		onFailure(&domain.RuntimeScriptError{Project: p.name, Function: fn, Err: err})
	}
}

// submit queues task on the pool while the project is compiled. The
// returned channel receives the task result.
func (p *Project) submit(ctx context.Context, task func(ctx context.Context) error) (<-chan error, error) {
	done := make(chan error, 1)

	p.mu.RLock()
	defer p.mu.RUnlock()

	switch p.state {
	case StateDestroyed:
		return nil, domain.ErrProjectDestroyed
	case StateUncompiled:
		return nil, domain.ErrNotCompiled
	}

	p.pool.Submit(func() {
		if err := ctx.Err(); err != nil {
			done <- err
			return
		}
		done <- runGuarded(ctx, task)
	})
	return done, nil
}

func runGuarded(ctx context.Context, task func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return task(ctx)
}
