package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"

	"github.com/starlight-bridge/starlight/internal/log"
)

// Message represents a received Feishu message
type Message struct {
	ChatID     string
	MsgID      string
	MsgType    string // text, image, post
	ChatType   string // p2p (private), group
	Content    string // Text content (extracted from all message types)
	SenderID   string
	SenderType string // user, app
	CreateTime int64  // Message creation time (milliseconds Unix timestamp from Feishu)
}

// Recall represents a withdrawn message
type Recall struct {
	ChatID     string
	MsgID      string
	RecallType string
}

// ChatMember represents a member in a chat
type ChatMember struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
}

// ChatInfo represents information about a chat
type ChatInfo struct {
	ChatID   string `json:"chat_id"`
	Name     string `json:"name"`
	ChatType string `json:"chat_type"` // p2p, group
}

// Handlers receive decoded events. They must return quickly so the SDK can ACK.
type Handlers struct {
	OnMessage func(msg *Message)
	OnRecall  func(recall *Recall)
}

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
	}
}

// Start connects to Feishu via WebSocket and blocks until ctx ends or the
// connection fails
func (c *Client) Start(ctx context.Context, h Handlers) error {
	// Must return quickly so SDK can send ACK, otherwise Feishu will retry due to timeout
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			if msg := decodeMessage(event); msg != nil && h.OnMessage != nil {
				go h.OnMessage(msg)
			}
			return nil
		}).
		OnP2MessageRecalledV1(func(ctx context.Context, event *larkim.P2MessageRecalledV1) error {
			if r := decodeRecall(event); r != nil && h.OnRecall != nil {
				go h.OnRecall(r)
			}
			return nil
		})

	wsCli := larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	log.Info("[Feishu] Starting WebSocket connection...")
	return wsCli.Start(ctx)
}

func decodeMessage(event *larkim.P2MessageReceiveV1) *Message {
	if event.Event == nil || event.Event.Message == nil {
		return nil
	}
	rawMsg := event.Event.Message

	msg := &Message{
		ChatID:   str(rawMsg.ChatId),
		MsgID:    str(rawMsg.MessageId),
		MsgType:  str(rawMsg.MessageType),
		ChatType: str(rawMsg.ChatType),
	}
	if ts, err := strconv.ParseInt(str(rawMsg.CreateTime), 10, 64); err == nil {
		msg.CreateTime = ts
	}

	if sender := event.Event.Sender; sender != nil {
		msg.SenderType = str(sender.SenderType)
		if sender.SenderId != nil {
			msg.SenderID = str(sender.SenderId.OpenId)
		}
	}

	mentionMap := make(map[string]string)
	for _, mention := range rawMsg.Mentions {
		if mention.Key != nil && mention.Name != nil {
			mentionMap[*mention.Key] = *mention.Name
		}
	}

	content := str(rawMsg.Content)
	switch msg.MsgType {
	case "text":
		msg.Content = parseTextContent(content, mentionMap)
	case "image":
		msg.Content = "[Image]"
	case "post":
		msg.Content = parsePostContent(content, mentionMap)
	default:
		log.Debug("[Feishu] Unsupported message type", "type", msg.MsgType)
		return nil
	}
	return msg
}

func decodeRecall(event *larkim.P2MessageRecalledV1) *Recall {
	if event.Event == nil {
		return nil
	}
	return &Recall{
		ChatID:     str(event.Event.ChatId),
		MsgID:      str(event.Event.MessageId),
		RecallType: str(event.Event.RecallType),
	}
}

// SendText sends a text message to a chat
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	contentJSON, _ := json.Marshal(map[string]string{"text": text})

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}

	log.Debug("[Feishu] Message sent", "chat_id", chatID)
	return nil
}

// AddReaction adds an emoji reaction to a message
func (c *Client) AddReaction(ctx context.Context, messageID, emojiType string) error {
	req := larkim.NewCreateMessageReactionReqBuilder().
		MessageId(messageID).
		Body(larkim.NewCreateMessageReactionReqBodyBuilder().
			ReactionType(larkim.NewEmojiBuilder().EmojiType(emojiType).Build()).
			Build()).
		Build()

	resp, err := c.larkCli.Im.MessageReaction.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("add reaction failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("add reaction error: %s", resp.Msg)
	}
	return nil
}

// GetChatInfo retrieves information about a chat
func (c *Client) GetChatInfo(ctx context.Context, chatID string) (*ChatInfo, error) {
	req := larkim.NewGetChatReqBuilder().
		ChatId(chatID).
		Build()

	resp, err := c.larkCli.Im.Chat.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get chat info failed: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("get chat info error: %s", resp.Msg)
	}

	return &ChatInfo{
		ChatID:   chatID,
		Name:     str(resp.Data.Name),
		ChatType: str(resp.Data.ChatMode),
	}, nil
}

// GetChatMembers retrieves members of a chat (group)
// Uses pagination to get all members
func (c *Client) GetChatMembers(ctx context.Context, chatID string) ([]*ChatMember, error) {
	var members []*ChatMember
	var pageToken string

	for {
		reqBuilder := larkim.NewGetChatMembersReqBuilder().
			MemberIdType("open_id").
			ChatId(chatID).
			PageSize(100)
		if pageToken != "" {
			reqBuilder = reqBuilder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.ChatMembers.Get(ctx, reqBuilder.Build())
		if err != nil {
			return nil, fmt.Errorf("get chat members failed: %w", err)
		}
		if !resp.Success() {
			return nil, fmt.Errorf("get chat members error: %s", resp.Msg)
		}

		for _, item := range resp.Data.Items {
			members = append(members, &ChatMember{
				MemberID: str(item.MemberId),
				Name:     str(item.Name),
			})
		}

		if resp.Data.PageToken == nil || *resp.Data.PageToken == "" {
			break
		}
		pageToken = *resp.Data.PageToken
	}
	return members, nil
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
