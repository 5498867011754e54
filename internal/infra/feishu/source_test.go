package feishu

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starlight-bridge/starlight/internal/biz/chat"
	"github.com/starlight-bridge/starlight/internal/biz/domain"
	"github.com/starlight-bridge/starlight/internal/biz/parser"
)

// fakeAPI records outgoing calls
type fakeAPI struct {
	mu          sync.Mutex
	sent        []string
	reactions   []string
	memberCalls int
	infoErr     error
}

func (f *fakeAPI) SendText(ctx context.Context, chatID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, chatID+":"+text)
	return nil
}

func (f *fakeAPI) AddReaction(ctx context.Context, messageID, emojiType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, messageID+":"+emojiType)
	return nil
}

func (f *fakeAPI) GetChatInfo(ctx context.Context, chatID string) (*ChatInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return &ChatInfo{ChatID: chatID, Name: "Dev Team", ChatType: "group"}, nil
}

func (f *fakeAPI) GetChatMembers(ctx context.Context, chatID string) ([]*ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberCalls++
	return []*ChatMember{{MemberID: "ou_alice", Name: "Alice"}}, nil
}

type removal struct {
	n      *domain.Notification
	reason domain.RemovalReason
}

type recordingSink struct {
	posted  []*domain.Notification
	removed []removal
}

func (s *recordingSink) OnNotificationPosted(ctx context.Context, n *domain.Notification) {
	s.posted = append(s.posted, n)
}

func (s *recordingSink) OnNotificationRemoved(ctx context.Context, n *domain.Notification, reason domain.RemovalReason) {
	s.removed = append(s.removed, removal{n, reason})
}

func TestSource_MessageParsesWithFeishuSpec(t *testing.T) {
	api := &fakeAPI{}
	sink := &recordingSink{}
	src, err := NewSource(api, sink, 0)
	require.NoError(t, err)

	src.HandleMessage(context.Background(), &Message{
		ChatID: "oc_1", MsgID: "om_1", MsgType: "text", ChatType: "group",
		Content: "hello", SenderID: "ou_alice", SenderType: "user",
	})
	require.Len(t, sink.posted, 1)
	n := sink.posted[0]
	assert.Equal(t, domain.PackageFeishu, n.PackageName)
	assert.Equal(t, ChatLogID("om_1"), n.Int64(domain.ExtraChatLogID))

	msg, err := parser.FeishuSpec{}.Parse(0, n, n.ReplyActions()[0])
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, "Alice", msg.Sender.Name)
	assert.Equal(t, "Dev Team", msg.Room.Name())
	assert.True(t, msg.Room.IsGroupChat())

	assert.True(t, msg.Room.Send("hi back"))
	assert.True(t, msg.Room.MarkAsRead())
	assert.Equal(t, []string{"oc_1:hi back"}, api.sent)
	assert.Equal(t, []string{"om_1:DONE"}, api.reactions)

	_, ok := msg.Room.(*chat.Room)
	assert.True(t, ok)
}

func TestSource_IgnoresOwnMessagesAndCachesMembers(t *testing.T) {
	api := &fakeAPI{}
	sink := &recordingSink{}
	src, err := NewSource(api, sink, 0)
	require.NoError(t, err)

	src.HandleMessage(context.Background(), &Message{ChatID: "oc_1", MsgID: "om_0", SenderType: "app"})
	assert.Empty(t, sink.posted)

	for _, id := range []string{"om_1", "om_2"} {
		src.HandleMessage(context.Background(), &Message{ChatID: "oc_1", MsgID: id, SenderID: "ou_alice"})
	}
	assert.Len(t, sink.posted, 2)
	assert.Equal(t, 1, api.memberCalls)
}

func TestSource_Recall(t *testing.T) {
	api := &fakeAPI{infoErr: errors.New("forbidden")}
	sink := &recordingSink{}
	src, err := NewSource(api, sink, 0)
	require.NoError(t, err)

	src.HandleMessage(context.Background(), &Message{ChatID: "oc_1", MsgID: "om_1", SenderID: "ou_x", Content: "oops"})
	src.HandleRecall(context.Background(), &Recall{ChatID: "oc_1", MsgID: "om_1"})
	src.HandleRecall(context.Background(), &Recall{ChatID: "oc_1", MsgID: "om_9"})

	require.Len(t, sink.removed, 2)
	assert.Same(t, sink.posted[0], sink.removed[0].n)
	assert.Equal(t, domain.ReasonAppCancel, sink.removed[0].reason)
	assert.Equal(t, "oc_1", sink.removed[0].n.String(domain.ExtraFeishuChatName), "chat id names unknown chats")
	assert.Equal(t, ChatLogID("om_9"), sink.removed[1].n.Int64(domain.ExtraChatLogID))
}

func TestChatLogID(t *testing.T) {
	assert.Equal(t, ChatLogID("om_1"), ChatLogID("om_1"))
	assert.NotEqual(t, ChatLogID("om_1"), ChatLogID("om_2"))
	assert.GreaterOrEqual(t, ChatLogID("om_1"), int64(0))
}

func TestParseContent(t *testing.T) {
	mentions := map[string]string{"@_user_1": "Bob"}
	assert.Equal(t, "hi @Bob", parseTextContent(`{"text":"hi @_user_1"}`, mentions))
	assert.Equal(t, "", parseTextContent(`not json`, nil))

	post := `{"title":"Plan","content":[[{"tag":"text","text":"ask "},{"tag":"at","user_id":"@_user_1"}],[{"tag":"img","image_key":"k"}]]}`
	assert.Equal(t, "Plan\nask @Bob\n[Image]", parsePostContent(post, mentions))
}
