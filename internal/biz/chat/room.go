package chat

import (
	"context"
	"sync"
	"time"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
	"github.com/starlight-bridge/starlight/internal/log"
)

// ActionTimeout bounds a single reply or read action
const ActionTimeout = 10 * time.Second

// Room is a chat destination backed by notification actions
type Room struct {
	id    string
	name  string
	group bool

	mu             sync.RWMutex
	reply          *domain.NotificationAction
	read           *domain.NotificationAction
	lastReceivedID int64
}

// NewRoom creates an unbound room
func NewRoom(id, name string, isGroupChat bool) *Room {
	return &Room{id: id, name: name, group: isGroupChat, lastReceivedID: -1}
}

func (r *Room) ID() string {
	return r.id
}

func (r *Room) Name() string {
	return r.name
}

func (r *Room) IsGroupChat() bool {
	return r.group
}

func (r *Room) IsKind(kind domain.ArgKind) bool {
	return r != nil && kind == domain.ArgChatRoom
}

// Bind sets the reply and read actions. Either may be nil.
func (r *Room) Bind(reply, read *domain.NotificationAction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reply = reply
	r.read = read
}

func (r *Room) rebindFrom(other *Room) {
	other.mu.RLock()
	reply, read := other.reply, other.read
	other.mu.RUnlock()
	if reply != nil || read != nil {
		r.Bind(reply, read)
	}
}

// CanReply reports whether Send has an action to perform
func (r *Room) CanReply() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reply != nil && r.reply.Perform != nil && r.reply.CanReply()
}

// SetLastReceivedID records the chat log id of the newest message
func (r *Room) SetLastReceivedID(id int64) {
	r.mu.Lock()
	r.lastReceivedID = id
	r.mu.Unlock()
}

// LastReceivedID returns -1 when nothing was received
func (r *Room) LastReceivedID() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastReceivedID
}

// Send performs the reply action with text in its first remote input
func (r *Room) Send(text string) bool {
	r.mu.RLock()
	action := r.reply
	r.mu.RUnlock()

	if action == nil || action.Perform == nil || !action.CanReply() {
		log.Debug("[Room] no reply binding", "room", r.name)
		return false
	}

	results := map[string]string{action.RemoteInputs[0].ResultKey: text}
	ctx, cancel := context.WithTimeout(context.Background(), ActionTimeout)
	defer cancel()

	if err := action.Perform(ctx, results); err != nil {
		log.Warn("[Room] reply failed", "room", r.name, "error", err)
		return false
	}
	return true
}

// MarkAsRead performs the read action if one was bound
func (r *Room) MarkAsRead() bool {
	r.mu.RLock()
	action := r.read
	r.mu.RUnlock()

	if action == nil || action.Perform == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), ActionTimeout)
	defer cancel()

	if err := action.Perform(ctx, nil); err != nil {
		log.Warn("[Room] mark as read failed", "room", r.name, "error", err)
		return false
	}
	return true
}
