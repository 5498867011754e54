package domain

import (
	"context"
	"time"
)

// Well-known notification extras
const (
	ExtraTitle               = "android.title"
	ExtraText                = "android.text"
	ExtraSubText             = "android.subText"
	ExtraSummaryText         = "android.summaryText"
	ExtraConversationTitle   = "android.conversationTitle"
	ExtraIsGroupConversation = "android.isGroupConversation"
	ExtraMessages            = "android.messages"
	ExtraChatLogID           = "chatLogId"

	ExtraFeishuChatID   = "feishu.chatId"
	ExtraFeishuChatName = "feishu.chatName"
	ExtraFeishuChatType = "feishu.chatType"
	ExtraFeishuSenderID = "feishu.senderId"
	ExtraFeishuMsgID    = "feishu.messageId"
)

// RemovalReason says why a notification was withdrawn
type RemovalReason int

const (
	ReasonClick RemovalReason = iota + 1
	ReasonCancel
	ReasonCancelAll
	ReasonError
	ReasonPackageChanged
	ReasonUserStopped
	ReasonPackageBanned
	ReasonAppCancel
	ReasonAppCancelAll
)

// IsCancellation reports whether the user or the posting app withdrew a single notification
func (r RemovalReason) IsCancellation() bool {
	return r == ReasonCancel || r == ReasonAppCancel
}

// RemoteInput is a free-text slot on a reply-capable action
type RemoteInput struct {
	ResultKey string `json:"result_key"`
	Label     string `json:"label"`
}

// NotificationAction is an action attached to a notification.
// Perform is invoked with the remote input results keyed by ResultKey.
type NotificationAction struct {
	Title        string        `json:"title"`
	RemoteInputs []RemoteInput `json:"remote_inputs"`

	Perform func(ctx context.Context, results map[string]string) error `json:"-"`
}

// CanReply reports whether the action accepts free-text input
func (a *NotificationAction) CanReply() bool {
	return len(a.RemoteInputs) > 0
}

// Person is one participant in a messaging-style notification
type Person struct {
	Key  string
	Name string
}

// MessagingEntry is one line of a messaging-style notification
type MessagingEntry struct {
	Text   string
	Time   time.Time
	Sender *Person
}

// Notification is a raw platform notification
type Notification struct {
	Key         string
	PackageName string
	UserID      int
	Tag         string
	PostTime    time.Time
	Actions     []NotificationAction
	Extras      map[string]any
	LargeIcon   []byte
}

func (n *Notification) IsKind(kind ArgKind) bool {
	return n != nil && kind == ArgNotification
}

// String returns the extra under key, or "" when absent or not a string
func (n *Notification) String(key string) string {
	if v, ok := n.Extras[key].(string); ok {
		return v
	}
	return ""
}

// Bool returns the extra under key, or false
func (n *Notification) Bool(key string) bool {
	v, _ := n.Extras[key].(bool)
	return v
}

// Int64 returns the extra under key, or 0
func (n *Notification) Int64(key string) int64 {
	switch v := n.Extras[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Messages returns the messaging-style entries, if any
func (n *Notification) Messages() []MessagingEntry {
	v, _ := n.Extras[ExtraMessages].([]MessagingEntry)
	return v
}

// ReplyActions returns the reply-capable actions in declaration order
func (n *Notification) ReplyActions() []*NotificationAction {
	var out []*NotificationAction
	for i := range n.Actions {
		if n.Actions[i].CanReply() {
			out = append(out, &n.Actions[i])
		}
	}
	return out
}
