package parser

import (
	"github.com/starlight-bridge/starlight/internal/biz/domain"
)

// FeishuSpec reads notifications synthesized from Feishu IM events
type FeishuSpec struct{}

func (FeishuSpec) ID() string {
	return domain.ParserSpecFeishu
}

func (FeishuSpec) Name() string {
	return "Feishu IM"
}

func (s FeishuSpec) Parse(userID int, n *domain.Notification, reply *domain.NotificationAction) (*domain.ChatMessage, error) {
	chatID := n.String(domain.ExtraFeishuChatID)
	if chatID == "" {
		return nil, nil
	}

	senderID := n.String(domain.ExtraFeishuSenderID)
	if senderID == "" {
		return nil, &domain.ParseError{SpecID: s.ID(), Reason: "missing sender id"}
	}
	senderName := n.String(domain.ExtraTitle)
	if senderName == "" {
		senderName = senderID
	}

	roomName := n.String(domain.ExtraFeishuChatName)
	if roomName == "" {
		roomName = chatID
	}
	group := n.String(domain.ExtraFeishuChatType) == "group"

	room := newRoom(n, chatID, roomName, group, reply)
	chatLogID := n.Int64(domain.ExtraChatLogID)
	room.SetLastReceivedID(chatLogID)

	return &domain.ChatMessage{
		Text: n.String(domain.ExtraText),
		Sender: domain.ChatSender{
			Name:        senderName,
			ID:          senderID,
			ProfileHash: ProfileHash(n.LargeIcon),
		},
		Room:        room,
		ChatLogID:   chatLogID,
		PackageName: n.PackageName,
	}, nil
}
