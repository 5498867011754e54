package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
)

func actions(sent *[]string) []domain.NotificationAction {
	return []domain.NotificationAction{
		{Title: "Mark as read", Perform: func(context.Context, map[string]string) error { return nil }},
		{
			Title:        "Reply",
			RemoteInputs: []domain.RemoteInput{{ResultKey: "reply"}},
			Perform: func(ctx context.Context, results map[string]string) error {
				*sent = append(*sent, results["reply"])
				return nil
			},
		},
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"android_r", "default", "feishu"}, r.IDs())
	assert.True(t, r.Get("default").IsPresent())
	assert.True(t, r.Get("v2").IsAbsent())
	assert.Error(t, r.Register(DefaultSpec{}))
}

func TestDefaultSpec_GroupMessage(t *testing.T) {
	var sent []string
	n := &domain.Notification{
		PackageName: domain.PackageKakaoTalk,
		Tag:         "room-7",
		Actions:     actions(&sent),
		LargeIcon:   []byte{1, 2, 3},
		Extras: map[string]any{
			domain.ExtraTitle:     "Alice",
			domain.ExtraText:      "hello",
			domain.ExtraSubText:   "Team",
			domain.ExtraChatLogID: int64(42),
		},
	}

	msg, err := DefaultSpec{}.Parse(0, n, n.ReplyActions()[0])
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, "Alice", msg.Sender.Name)
	assert.NotZero(t, msg.Sender.ProfileHash)
	assert.Equal(t, int64(42), msg.ChatLogID)
	assert.Equal(t, "room-7", msg.Room.ID())
	assert.Equal(t, "Team", msg.Room.Name())
	assert.True(t, msg.Room.IsGroupChat())

	assert.True(t, msg.Room.Send("pong"))
	assert.Equal(t, []string{"pong"}, sent)
	assert.True(t, msg.Room.MarkAsRead())
}

func TestDefaultSpec_DirectMessageAndErrors(t *testing.T) {
	var sent []string
	n := &domain.Notification{
		Actions: actions(&sent),
		Extras:  map[string]any{domain.ExtraTitle: "Bob", domain.ExtraText: "yo"},
	}
	msg, err := DefaultSpec{}.Parse(0, n, n.ReplyActions()[0])
	require.NoError(t, err)
	assert.Equal(t, "Bob", msg.Room.Name())
	assert.Equal(t, "Bob", msg.Room.ID(), "room id falls back to the name without a tag")
	assert.False(t, msg.Room.IsGroupChat())

	_, err = DefaultSpec{}.Parse(0, &domain.Notification{Extras: map[string]any{}}, nil)
	_, ok := domain.IsParseError(err)
	assert.True(t, ok)

	msg, err = DefaultSpec{}.Parse(0, &domain.Notification{}, nil)
	assert.NoError(t, err)
	assert.Nil(t, msg)
}

func TestAndroidRSpec_UsesLatestMessage(t *testing.T) {
	var sent []string
	n := &domain.Notification{
		Tag:     "conv-1",
		Actions: actions(&sent),
		Extras: map[string]any{
			domain.ExtraTitle:               "Team",
			domain.ExtraText:                "summary",
			domain.ExtraConversationTitle:   "Team",
			domain.ExtraIsGroupConversation: true,
			domain.ExtraChatLogID:           int64(9),
			domain.ExtraMessages: []domain.MessagingEntry{
				{Text: "older", Sender: &domain.Person{Key: "k1", Name: "Carol"}},
				{Text: "newest", Sender: &domain.Person{Key: "k2", Name: "Dave"}},
			},
		},
	}

	msg, err := AndroidRSpec{}.Parse(0, n, n.ReplyActions()[0])
	require.NoError(t, err)
	assert.Equal(t, "newest", msg.Text)
	assert.Equal(t, "Dave", msg.Sender.Name)
	assert.Equal(t, "k2", msg.Sender.ID)
	assert.Equal(t, "Team", msg.Room.Name())
	assert.True(t, msg.Room.IsGroupChat())
	assert.Equal(t, int64(9), msg.ChatLogID)
}

func TestAndroidRSpec_GroupWithoutTitleFails(t *testing.T) {
	n := &domain.Notification{Extras: map[string]any{
		domain.ExtraTitle:               "x",
		domain.ExtraIsGroupConversation: true,
	}}
	_, err := AndroidRSpec{}.Parse(0, n, nil)
	_, ok := domain.IsParseError(err)
	assert.True(t, ok)
}

func TestFeishuSpec(t *testing.T) {
	var sent []string
	n := &domain.Notification{
		PackageName: domain.PackageFeishu,
		Actions:     actions(&sent),
		Extras: map[string]any{
			domain.ExtraFeishuChatID:   "oc_1",
			domain.ExtraFeishuChatName: "Ops",
			domain.ExtraFeishuChatType: "group",
			domain.ExtraFeishuSenderID: "ou_1",
			domain.ExtraText:           "deploy?",
			domain.ExtraChatLogID:      int64(5),
		},
	}
	msg, err := FeishuSpec{}.Parse(0, n, n.ReplyActions()[0])
	require.NoError(t, err)
	assert.Equal(t, "oc_1", msg.Room.ID())
	assert.Equal(t, "Ops", msg.Room.Name())
	assert.Equal(t, "ou_1", msg.Sender.Name)
	assert.True(t, msg.Room.IsGroupChat())

	msg, err = FeishuSpec{}.Parse(0, &domain.Notification{Extras: map[string]any{}}, nil)
	assert.NoError(t, err)
	assert.Nil(t, msg)
}
