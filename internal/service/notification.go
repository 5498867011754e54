package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/starlight-bridge/starlight/internal/biz/chat"
	"github.com/starlight-bridge/starlight/internal/biz/domain"
	"github.com/starlight-bridge/starlight/internal/biz/parser"
	"github.com/starlight-bridge/starlight/internal/biz/usecase"
	"github.com/starlight-bridge/starlight/internal/log"
)

// Events fired by the notification pipeline
const (
	EventOnMessage            = "onMessage"
	EventOnMessageDeleted     = "onMessageDeleted"
	EventOnNotificationPosted = "onNotificationPosted"
	EventLegacyResponse       = "response"
)

// Dispatcher fans an event out to projects
type Dispatcher interface {
	FireEvent(ctx context.Context, eventID string, args []any, onFailure usecase.FailureFunc) error
}

// NotificationConfig holds the runtime switches of the pipeline
type NotificationConfig struct {
	GlobalPower                bool `json:"global_power"`
	LegacyEvent                bool `json:"legacy_event"`
	UseNotificationPostedEvent bool `json:"use_notification_posted_event"`
	LogReceivedMessage         bool `json:"log_received_message"`
}

// NotificationService turns platform notifications into chat events
type NotificationService struct {
	dispatcher Dispatcher
	specs      *parser.Registry
	rooms      *chat.Directory
	bus        *usecase.EventBus

	mu               sync.Mutex
	rules            []domain.RuleData
	sourceRules      []domain.RuleData
	currentChatLogID int64

	cfgMu sync.RWMutex
	cfg   NotificationConfig
}

// NewNotificationService creates the pipeline. bus may be nil.
func NewNotificationService(
	dispatcher Dispatcher,
	specs *parser.Registry,
	rooms *chat.Directory,
	bus *usecase.EventBus,
	cfg NotificationConfig,
) *NotificationService {
	return &NotificationService{
		dispatcher:       dispatcher,
		specs:            specs,
		rooms:            rooms,
		bus:              bus,
		rules:            []domain.RuleData{domain.DefaultRule},
		currentChatLogID: -1,
		cfg:              cfg,
	}
}

// RegisterEvents declares the events this pipeline fires
func RegisterEvents(reg *usecase.EventRegistry) error {
	return reg.Category("message", func(c *usecase.CategoryBuilder) {
		c.Add(EventOnMessage, "onMessage", domain.ArgChatMessage).
			Add(EventOnMessageDeleted, "onMessageDeleted", domain.ArgDeletedMessage).
			Add(EventOnNotificationPosted, "onNotificationPosted", domain.ArgNotification).
			Add(EventLegacyResponse, "response",
				domain.ArgString, domain.ArgString, domain.ArgString, domain.ArgBool,
				domain.ArgReplier, domain.ArgImageDB)
	})
}

// Rooms returns the room directory
func (s *NotificationService) Rooms() *chat.Directory {
	return s.rooms
}

// Config returns the current switches
func (s *NotificationService) Config() NotificationConfig {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// UpdateConfig changes the switches and returns the result
func (s *NotificationService) UpdateConfig(fn func(cfg *NotificationConfig)) NotificationConfig {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	fn(&s.cfg)
	return s.cfg
}

// SetRules replaces the rules; an empty list falls back to the default rule
func (s *NotificationService) SetRules(rules []domain.RuleData) {
	if len(rules) == 0 {
		rules = []domain.RuleData{domain.DefaultRule}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = mergeRules(rules, s.sourceRules)
}

// AddSourceRule keeps rule active for an attached notification source. It
// is appended after the configured rules unless one already covers the
// same package and user.
func (s *NotificationService) AddSourceRule(rule domain.RuleData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sourceRules = append(s.sourceRules, rule)
	s.rules = mergeRules(s.rules, []domain.RuleData{rule})
}

func mergeRules(rules, extra []domain.RuleData) []domain.RuleData {
	out := append([]domain.RuleData(nil), rules...)
	for _, r := range extra {
		covered := false
		for _, existing := range out {
			if existing.Matches(r.PackageName, r.UserID) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, r)
		}
	}
	return out
}

// Rules returns the active rules in priority order
func (s *NotificationService) Rules() []domain.RuleData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RuleData(nil), s.rules...)
}

// ReloadRules re-resolves the active rules
func (s *NotificationService) ReloadRules(ctx context.Context, uc *usecase.RuleUsecase) error {
	rules, err := uc.Resolve(ctx)
	if err != nil {
		return err
	}
	s.SetRules(rules)
	log.Info("[Notification] rules loaded", "count", len(rules))
	return nil
}

// LastChatLogID returns the dedup key of the last dispatched message
func (s *NotificationService) LastChatLogID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentChatLogID
}

// matchRule returns the first matching rule and whether rooms parsed under
// it are kept in the directory: the first rule and attached source rules are.
func (s *NotificationService) matchRule(packageName string, userID int) (rule domain.RuleData, memoize bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rules {
		if !r.Matches(packageName, userID) {
			continue
		}
		if i == 0 {
			return r, true, true
		}
		for _, src := range s.sourceRules {
			if src == r {
				return r, true, true
			}
		}
		return r, false, true
	}
	return domain.RuleData{}, false, false
}

// OnNotificationPosted runs the parsing pipeline for one notification.
// Nothing is returned: a bad notification is logged and dropped.
func (s *NotificationService) OnNotificationPosted(ctx context.Context, n *domain.Notification) {
	cfg := s.Config()
	if !cfg.GlobalPower || len(n.Actions) == 0 {
		return
	}

	if cfg.UseNotificationPostedEvent {
		s.fire(ctx, EventOnNotificationPosted, n)
	}
	defer s.publish(domain.LifecycleNotificationPosted, n)

	rule, memoize, ok := s.matchRule(n.PackageName, n.UserID)
	if !ok {
		return
	}

	spec, ok := s.specs.Get(rule.ParserSpecID).Get()
	if !ok {
		log.Warn("[Notification] unknown parser spec", "spec", rule.ParserSpecID, "package", n.PackageName)
		return
	}

	for _, action := range n.ReplyActions() {
		msg, err := parseSafely(spec, n, action)
		if err != nil {
			log.Error("[Notification] failed to parse message content", "spec", spec.ID(), "error", err)
			continue
		}
		if msg == nil {
			return
		}

		if !s.accept(msg, memoize) {
			log.Debug("[Notification] duplicate delivery dropped", "chat_log_id", msg.ChatLogID)
			return
		}
		if cfg.LogReceivedMessage {
			log.Info("[Notification] message received",
				"package", n.PackageName,
				"user_id", n.UserID,
				"room", msg.Room.Name(),
				"sender", msg.Sender.Name,
				"sender_id", msg.Sender.ID,
				"profile_hash", msg.Sender.ProfileHash,
				"message", msg.Text)
		}

		s.fire(ctx, EventOnMessage, msg)
		if cfg.LegacyEvent {
			s.fire(ctx, EventLegacyResponse,
				msg.Room.Name(),
				msg.Text,
				msg.Sender.Name,
				msg.Room.IsGroupChat(),
				s.rooms.Replier(msg.Room.ID()),
				chat.NewImageDB(msg.Sender.ProfileImage))
		}
		return
	}
}

// accept applies the dedup gate and records room state
func (s *NotificationService) accept(msg *domain.ChatMessage, memoize bool) bool {
	s.mu.Lock()
	if msg.ChatLogID == s.currentChatLogID {
		s.mu.Unlock()
		return false
	}
	s.currentChatLogID = msg.ChatLogID
	s.mu.Unlock()

	room, ok := msg.Room.(*chat.Room)
	if !ok {
		return true
	}
	room.SetLastReceivedID(msg.ChatLogID)
	if memoize {
		room = s.rooms.Remember(room)
		msg.Room = room
	}
	s.rooms.SetLastReceived(room)
	return true
}

// OnNotificationRemoved fires a deletion event when the withdrawn
// notification is the last dispatched message
func (s *NotificationService) OnNotificationRemoved(ctx context.Context, n *domain.Notification, reason domain.RemovalReason) {
	defer s.publish(domain.LifecycleNotificationDismiss, map[string]any{"key": n.Key, "reason": int(reason)})

	if !s.Config().GlobalPower {
		return
	}
	if _, _, ok := s.matchRule(n.PackageName, n.UserID); !ok {
		return
	}
	if len(n.ReplyActions()) == 0 || !reason.IsCancellation() {
		return
	}

	deleted := s.toDeletedMessage(n)
	if deleted.ChatLogID != s.LastChatLogID() {
		return
	}
	s.fire(ctx, EventOnMessageDeleted, deleted)
}

func (s *NotificationService) toDeletedMessage(n *domain.Notification) *domain.DeletedMessage {
	roomID := n.String(domain.ExtraFeishuChatID)
	if roomID == "" {
		roomID = n.Tag
	}

	msg := &domain.DeletedMessage{
		Text:        n.String(domain.ExtraText),
		Sender:      n.String(domain.ExtraTitle),
		PackageName: n.PackageName,
		ChatLogID:   n.Int64(domain.ExtraChatLogID),
	}
	if room, ok := s.rooms.Room(roomID); ok {
		msg.Room = room
	}
	return msg
}

func (s *NotificationService) fire(ctx context.Context, eventID string, args ...any) {
	err := s.dispatcher.FireEvent(ctx, eventID, args, func(p *usecase.Project, err error) {
		log.Error("[Notification] failed to call event on project", "event", eventID, "project", p.ProjectName(), "error", err)
	})
	if err != nil {
		log.Error("[Notification] event rejected", "event", eventID, "error", err)
	}
}

func (s *NotificationService) publish(t domain.LifecycleType, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(domain.LifecycleEvent{Type: t, Payload: payload}); err != nil {
		log.Debug("[Notification] lifecycle event dropped", "type", t, "error", err)
	}
}

func parseSafely(spec parser.Spec, n *domain.Notification, action *domain.NotificationAction) (msg *domain.ChatMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			msg, err = nil, &domain.ParseError{SpecID: spec.ID(), Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return spec.Parse(n.UserID, n, action)
}
