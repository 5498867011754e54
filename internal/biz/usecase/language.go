package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/mo"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
)

// Scope is the opaque compiled form a language adapter returns
type Scope any

// Host is what a compiled project may call back into
type Host interface {
	ProjectID() string
	ProjectName() string
	Env() map[string]string
	// Schedule runs fn once after delay and returns a timer id
	Schedule(delay time.Duration, fn func(ctx context.Context)) string
	// ScheduleRepeating runs fn after initial and then every period
	ScheduleRepeating(initial, period time.Duration, fn func(ctx context.Context)) string
	// CancelTimer stops a timer, reporting whether it was still pending
	CancelTimer(id string) bool
}

// Language compiles sources and invokes entry points.
// Invoke returns domain.ErrFunctionNotFound when the scope lacks fn.
type Language interface {
	ID() string
	Name() string
	Extension() string
	Compile(ctx context.Context, host Host, source string) (Scope, error)
	Invoke(ctx context.Context, scope Scope, fn string, args []any) (any, error)
	Release(scope Scope)
}

// LanguageManager is the adapter table keyed by language id
type LanguageManager struct {
	mu        sync.RWMutex
	languages map[string]Language
}

// NewLanguageManager creates an empty adapter table
func NewLanguageManager() *LanguageManager {
	return &LanguageManager{languages: make(map[string]Language)}
}

// AddLanguage registers an adapter; ids must be unique
func (m *LanguageManager) AddLanguage(lang Language) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.languages[lang.ID()]; exists {
		return fmt.Errorf("language %s already registered", lang.ID())
	}
	m.languages[lang.ID()] = lang
	return nil
}

// Language looks up an adapter by id
func (m *LanguageManager) Language(id string) mo.Option[Language] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if lang, ok := m.languages[id]; ok {
		return mo.Some(lang)
	}
	return mo.None[Language]()
}

// Languages returns all adapters sorted by id
func (m *LanguageManager) Languages() []Language {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Language, 0, len(m.languages))
	for _, l := range m.languages {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (m *LanguageManager) resolve(id string) (Language, error) {
	lang, ok := m.Language(id).Get()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrLanguageNotFound, id)
	}
	return lang, nil
}
