package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
	"github.com/starlight-bridge/starlight/internal/biz/repo"
	"github.com/starlight-bridge/starlight/internal/log"
)

// InitState tracks session startup
type InitState int32

const (
	InitNone InitState = iota
	InitProcessing
	InitDone
	InitClosed
)

func (s InitState) String() string {
	switch s {
	case InitNone:
		return "none"
	case InitProcessing:
		return "processing"
	case InitDone:
		return "done"
	case InitClosed:
		return "closed"
	}
	return "unknown"
}

// Registrar declares a group of events during Init
type Registrar func(reg *EventRegistry) error

// SessionOptions configure a runtime session
type SessionOptions struct {
	Project     ProjectOptions
	BusCapacity int
	Overflow    OverflowPolicy
}

// Session is the runtime context: it owns the registries, the project
// manager and the lifecycle bus, and is passed to collaborators explicitly.
type Session struct {
	Events    *EventRegistry
	Languages *LanguageManager
	Locker    *JobLocker
	Bus       *EventBus
	Projects  *ProjectManager

	state     atomic.Int32
	mu        sync.Mutex
	busCancel context.CancelFunc
}

// NewSession wires an uninitialized session. Languages should be added
// before Init so stored projects can be compiled.
func NewSession(projectRepo repo.ProjectRepo, opts SessionOptions) *Session {
	s := &Session{
		Events:    NewEventRegistry(),
		Languages: NewLanguageManager(),
		Locker:    NewJobLocker(),
		Bus:       NewEventBus(opts.BusCapacity, opts.Overflow),
	}
	s.Projects = NewProjectManager(projectRepo, s.Languages, s.Events, s.Locker, s.Bus, opts.Project)
	return s
}

// State returns the init state
func (s *Session) State() InitState {
	return InitState(s.state.Load())
}

// IsInitComplete reports whether events are being dispatched
func (s *Session) IsInitComplete() bool {
	return s.State() == InitDone
}

// Init registers events, seals the registry, starts the lifecycle bus and
// loads stored projects. It can run only once.
func (s *Session) Init(ctx context.Context, registrars ...Registrar) error {
	if !s.state.CompareAndSwap(int32(InitNone), int32(InitProcessing)) {
		return domain.ErrAlreadyInitialized
	}

	// registrars run against a draft so a failed Init leaves the registry
	// untouched and can be retried
	staged := s.Events.draft()
	for _, register := range registrars {
		if err := register(staged); err != nil {
			s.state.Store(int32(InitNone))
			return fmt.Errorf("register events: %w", err)
		}
	}
	if err := s.Events.commit(staged); err != nil {
		s.state.Store(int32(InitNone))
		return fmt.Errorf("register events: %w", err)
	}
	s.Events.Seal()

	busCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.busCancel = cancel
	s.mu.Unlock()
	s.Bus.Start(busCtx)

	if err := s.Projects.LoadAll(ctx); err != nil {
		s.Shutdown()
		return fmt.Errorf("load projects: %w", err)
	}

	s.state.Store(int32(InitDone))
	log.Info("[Session] initialized",
		"events", len(s.Events.Events()),
		"languages", len(s.Languages.Languages()),
		"projects", len(s.Projects.Projects()))
	return nil
}

// FireEvent dispatches through the project manager. Before Init completes
// it does nothing.
func (s *Session) FireEvent(ctx context.Context, eventID string, args []any, onFailure FailureFunc) error {
	if !s.IsInitComplete() {
		log.Debug("[Session] event ignored before init", "event", eventID)
		return nil
	}
	return s.Projects.FireEvent(ctx, eventID, args, onFailure)
}

// Shutdown destroys every project and stops the bus
func (s *Session) Shutdown() {
	prev := InitState(s.state.Swap(int32(InitClosed)))
	if prev == InitClosed {
		return
	}

	s.Projects.Purge()
	s.Bus.Stop()

	s.mu.Lock()
	if s.busCancel != nil {
		s.busCancel()
	}
	s.mu.Unlock()
	log.Info("[Session] shut down")
}
