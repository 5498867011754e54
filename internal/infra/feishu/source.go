package feishu

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
	"github.com/starlight-bridge/starlight/internal/log"
)

const (
	replyResultKey = "reply"
	readReaction   = "DONE"
	cacheSize      = 256
)

// API is the part of the Feishu client the source needs
type API interface {
	SendText(ctx context.Context, chatID, text string) error
	AddReaction(ctx context.Context, messageID, emojiType string) error
	GetChatInfo(ctx context.Context, chatID string) (*ChatInfo, error)
	GetChatMembers(ctx context.Context, chatID string) ([]*ChatMember, error)
}

// Sink consumes synthesized notifications
type Sink interface {
	OnNotificationPosted(ctx context.Context, n *domain.Notification)
	OnNotificationRemoved(ctx context.Context, n *domain.Notification, reason domain.RemovalReason)
}

// Source turns Feishu IM events into platform notifications, so Feishu
// chats flow through the same rule and parser pipeline as any messenger
type Source struct {
	api    API
	sink   Sink
	userID int

	chats  *lru.Cache[string, *ChatInfo]
	names  *lru.Cache[string, map[string]string]
	posted *lru.Cache[string, *domain.Notification]
}

// NewSource creates a new source posting as userID
func NewSource(api API, sink Sink, userID int) (*Source, error) {
	chats, err := lru.New[string, *ChatInfo](cacheSize)
	if err != nil {
		return nil, err
	}
	names, err := lru.New[string, map[string]string](cacheSize)
	if err != nil {
		return nil, err
	}
	posted, err := lru.New[string, *domain.Notification](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Source{api: api, sink: sink, userID: userID, chats: chats, names: names, posted: posted}, nil
}

// Handlers binds the source to a client event loop
func (s *Source) Handlers(ctx context.Context) Handlers {
	return Handlers{
		OnMessage: func(msg *Message) { s.HandleMessage(ctx, msg) },
		OnRecall:  func(r *Recall) { s.HandleRecall(ctx, r) },
	}
}

// HandleMessage posts a notification for a received message
func (s *Source) HandleMessage(ctx context.Context, msg *Message) {
	// Filter out messages sent by the bot itself to prevent infinite loops
	if msg.SenderType == "app" {
		return
	}

	n := s.toNotification(ctx, msg)
	s.posted.Add(msg.MsgID, n)
	s.sink.OnNotificationPosted(ctx, n)
}

// HandleRecall withdraws the notification of a recalled message
func (s *Source) HandleRecall(ctx context.Context, r *Recall) {
	n, ok := s.posted.Peek(r.MsgID)
	if ok {
		s.posted.Remove(r.MsgID)
	} else {
		n = s.toNotification(ctx, &Message{ChatID: r.ChatID, MsgID: r.MsgID})
	}
	s.sink.OnNotificationRemoved(ctx, n, domain.ReasonAppCancel)
}

func (s *Source) toNotification(ctx context.Context, msg *Message) *domain.Notification {
	chatID, msgID := msg.ChatID, msg.MsgID
	info := s.chatInfo(ctx, chatID)

	chatType := msg.ChatType
	if chatType == "" {
		chatType = info.ChatType
	}

	return &domain.Notification{
		Key:         msgID,
		PackageName: domain.PackageFeishu,
		UserID:      s.userID,
		Tag:         chatID,
		PostTime:    time.UnixMilli(msg.CreateTime),
		Actions: []domain.NotificationAction{
			{
				Title: "Mark as read",
				Perform: func(ctx context.Context, _ map[string]string) error {
					return s.api.AddReaction(ctx, msgID, readReaction)
				},
			},
			{
				Title:        "Reply",
				RemoteInputs: []domain.RemoteInput{{ResultKey: replyResultKey, Label: "Reply"}},
				Perform: func(ctx context.Context, results map[string]string) error {
					text, ok := results[replyResultKey]
					if !ok {
						return fmt.Errorf("missing %s input", replyResultKey)
					}
					return s.api.SendText(ctx, chatID, text)
				},
			},
		},
		Extras: map[string]any{
			domain.ExtraTitle:          s.senderName(ctx, chatID, msg.SenderID),
			domain.ExtraText:           msg.Content,
			domain.ExtraChatLogID:      ChatLogID(msgID),
			domain.ExtraFeishuChatID:   chatID,
			domain.ExtraFeishuChatName: info.Name,
			domain.ExtraFeishuChatType: chatType,
			domain.ExtraFeishuSenderID: msg.SenderID,
			domain.ExtraFeishuMsgID:    msgID,
		},
	}
}

// chatInfo never fails; unknown chats are named by their id
func (s *Source) chatInfo(ctx context.Context, chatID string) *ChatInfo {
	if info, ok := s.chats.Get(chatID); ok {
		return info
	}
	info, err := s.api.GetChatInfo(ctx, chatID)
	if err != nil {
		log.Warn("[Feishu] failed to get chat info", "chat_id", chatID, "error", err)
		return &ChatInfo{ChatID: chatID, Name: chatID}
	}
	if info.Name == "" {
		info.Name = chatID
	}
	s.chats.Add(chatID, info)
	return info
}

func (s *Source) senderName(ctx context.Context, chatID, openID string) string {
	if openID == "" {
		return ""
	}
	names, ok := s.names.Get(chatID)
	if !ok || names[openID] == "" {
		members, err := s.api.GetChatMembers(ctx, chatID)
		if err != nil {
			log.Warn("[Feishu] failed to get chat members", "chat_id", chatID, "error", err)
			return openID
		}
		names = make(map[string]string, len(members))
		for _, m := range members {
			names[m.MemberID] = m.Name
		}
		s.names.Add(chatID, names)
	}
	if name := names[openID]; name != "" {
		return name
	}
	return openID
}

// ChatLogID derives a stable positive dedup key from a message id
func ChatLogID(msgID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(msgID))
	return int64(h.Sum64() & (1<<63 - 1))
}
