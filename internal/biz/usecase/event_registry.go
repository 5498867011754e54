package usecase

import (
	"fmt"
	"sync"

	"github.com/samber/mo"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
)

// EventRegistry holds the typed event schema. Events are registered once at
// startup; after Seal the registry is read-only.
type EventRegistry struct {
	mu         sync.RWMutex
	events     map[string]domain.EventDefinition
	order      []string
	categories []string
	sealed     bool
}

// NewEventRegistry creates an empty registry
func NewEventRegistry() *EventRegistry {
	return &EventRegistry{
		events: make(map[string]domain.EventDefinition),
	}
}

// Register adds a definition
func (r *EventRegistry) Register(def domain.EventDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("register %s: %w", def.ID, domain.ErrRegistrySealed)
	}
	if _, exists := r.events[def.ID]; exists {
		return &domain.DuplicateEventError{EventID: def.ID}
	}
	if def.FunctionName == "" {
		def.FunctionName = def.ID
	}
	def.ArgTypes = append([]domain.ArgKind(nil), def.ArgTypes...)

	r.events[def.ID] = def
	r.order = append(r.order, def.ID)
	if !containsString(r.categories, def.Category) {
		r.categories = append(r.categories, def.Category)
	}
	return nil
}

// CategoryBuilder collects the events of one category
type CategoryBuilder struct {
	registry *EventRegistry
	name     string
	err      error
}

// Add registers an event whose entry point is fn and whose arguments are kinds.
// The first error is kept and later calls become no-ops.
func (b *CategoryBuilder) Add(id, fn string, kinds ...domain.ArgKind) *CategoryBuilder {
	if b.err != nil {
		return b
	}
	b.err = b.registry.Register(domain.EventDefinition{
		ID:           id,
		Category:     b.name,
		FunctionName: fn,
		ArgTypes:     kinds,
	})
	return b
}

// Category registers a group of events
func (r *EventRegistry) Category(name string, build func(c *CategoryBuilder)) error {
	b := &CategoryBuilder{registry: r, name: name}
	build(b)
	if b.err != nil {
		return fmt.Errorf("category %s: %w", name, b.err)
	}
	return nil
}

// MustCategory is Category for startup code where a duplicate is fatal
func (r *EventRegistry) MustCategory(name string, build func(c *CategoryBuilder)) {
	if err := r.Category(name, build); err != nil {
		panic(err)
	}
}

// draft returns an unsealed copy that registrations can be staged in
func (r *EventRegistry) draft() *EventRegistry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d := NewEventRegistry()
	for id, def := range r.events {
		d.events[id] = def
	}
	d.order = append([]string(nil), r.order...)
	d.categories = append([]string(nil), r.categories...)
	return d
}

// commit replaces the registry contents with a staged draft
func (r *EventRegistry) commit(d *EventRegistry) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return domain.ErrRegistrySealed
	}
	r.events, r.order, r.categories = d.events, d.order, d.categories
	return nil
}

// Seal prevents further registration
func (r *EventRegistry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal was called
func (r *EventRegistry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Resolve looks up an event by id
func (r *EventRegistry) Resolve(id string) mo.Option[domain.EventDefinition] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.events[id]
	if !ok {
		return mo.None[domain.EventDefinition]()
	}
	return mo.Some(def)
}

// Events returns every definition in registration order
func (r *EventRegistry) Events() []domain.EventDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.EventDefinition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.events[id])
	}
	return out
}

// Categories returns category names in registration order
func (r *EventRegistry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.categories...)
}

// Validate checks args against def. Every argument is inspected so the error
// lists all mismatches at once.
func (r *EventRegistry) Validate(def domain.EventDefinition, args []any) error {
	if len(args) != len(def.ArgTypes) {
		return &domain.ValidationError{
			EventID:       def.ID,
			ExpectedArity: len(def.ArgTypes),
			GotArity:      len(args),
		}
	}

	var mismatches []domain.ArgMismatch
	for i, kind := range def.ArgTypes {
		if !kind.Accepts(args[i]) {
			mismatches = append(mismatches, domain.ArgMismatch{
				Position: i,
				Expected: kind,
				Got:      domain.KindOf(args[i]),
			})
		}
	}
	if len(mismatches) > 0 {
		return &domain.ValidationError{
			EventID:       def.ID,
			ExpectedArity: len(def.ArgTypes),
			GotArity:      len(args),
			Mismatches:    mismatches,
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
