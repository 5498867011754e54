package parser

import (
	"github.com/starlight-bridge/starlight/internal/biz/domain"
)

// DefaultSpec reads the legacy layout: the title is the sender, the sub
// text names a group room and the notification tag is the room id.
type DefaultSpec struct{}

func (DefaultSpec) ID() string {
	return domain.ParserSpecDefault
}

func (DefaultSpec) Name() string {
	return "Legacy notification layout"
}

func (s DefaultSpec) Parse(userID int, n *domain.Notification, reply *domain.NotificationAction) (*domain.ChatMessage, error) {
	if n.Extras == nil {
		return nil, nil
	}

	sender := n.String(domain.ExtraTitle)
	text := n.String(domain.ExtraText)
	if sender == "" {
		return nil, &domain.ParseError{SpecID: s.ID(), Reason: "missing title"}
	}

	roomName := n.String(domain.ExtraSubText)
	if roomName == "" {
		roomName = n.String(domain.ExtraSummaryText)
	}
	group := roomName != ""
	if !group {
		roomName = sender
	}

	room := newRoom(n, n.Tag, roomName, group, reply)
	chatLogID := n.Int64(domain.ExtraChatLogID)
	room.SetLastReceivedID(chatLogID)

	return &domain.ChatMessage{
		Text: text,
		Sender: domain.ChatSender{
			Name:         sender,
			ID:           sender,
			ProfileHash:  ProfileHash(n.LargeIcon),
			ProfileImage: n.LargeIcon,
		},
		Room:        room,
		ChatLogID:   chatLogID,
		PackageName: n.PackageName,
	}, nil
}
