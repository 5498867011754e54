// Package parser turns raw platform notifications into chat messages.
// Each Spec targets one notification layout; rules choose the spec by id.
package parser

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/samber/mo"

	"github.com/starlight-bridge/starlight/internal/biz/chat"
	"github.com/starlight-bridge/starlight/internal/biz/domain"
)

// Spec extracts a chat message from a notification using one reply action.
// A nil message with a nil error means the notification is not a chat message.
type Spec interface {
	ID() string
	Name() string
	Parse(userID int, n *domain.Notification, reply *domain.NotificationAction) (*domain.ChatMessage, error)
}

// Registry maps spec ids to specs
type Registry struct {
	mu    sync.RWMutex
	specs map[string]Spec
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]Spec)}
}

// DefaultRegistry returns a registry holding every built-in spec
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, s := range []Spec{DefaultSpec{}, AndroidRSpec{}, FeishuSpec{}} {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a spec; ids must be unique
func (r *Registry) Register(s Spec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.specs[s.ID()]; exists {
		return fmt.Errorf("parser spec %s already registered", s.ID())
	}
	r.specs[s.ID()] = s
	return nil
}

// Get looks a spec up by id
func (r *Registry) Get(id string) mo.Option[Spec] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.specs[id]; ok {
		return mo.Some(s)
	}
	return mo.None[Spec]()
}

// IDs returns the registered ids, sorted
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.specs))
	for id := range r.specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ReadAction returns the first action that takes no input, the platform's
// "mark as read" button
func ReadAction(n *domain.Notification) *domain.NotificationAction {
	for i := range n.Actions {
		if !n.Actions[i].CanReply() {
			return &n.Actions[i]
		}
	}
	return nil
}

// ProfileHash fingerprints a profile image; 0 when absent
func ProfileHash(img []byte) int64 {
	if len(img) == 0 {
		return 0
	}
	h := fnv.New64a()
	h.Write(img)
	return int64(h.Sum64())
}

func newRoom(n *domain.Notification, id, name string, group bool, reply *domain.NotificationAction) *chat.Room {
	if id == "" {
		id = name
	}
	room := chat.NewRoom(id, name, group)
	room.Bind(reply, ReadAction(n))
	return room
}
