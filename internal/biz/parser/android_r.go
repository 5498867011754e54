package parser

import (
	"github.com/starlight-bridge/starlight/internal/biz/domain"
)

// AndroidRSpec reads messaging-style notifications, where the conversation
// title names group rooms and the newest message carries the sender.
type AndroidRSpec struct{}

func (AndroidRSpec) ID() string {
	return domain.ParserSpecAndroidR
}

func (AndroidRSpec) Name() string {
	return "Messaging style (Android 11+)"
}

func (s AndroidRSpec) Parse(userID int, n *domain.Notification, reply *domain.NotificationAction) (*domain.ChatMessage, error) {
	if n.Extras == nil {
		return nil, nil
	}

	title := n.String(domain.ExtraTitle)
	text := n.String(domain.ExtraText)
	senderName, senderID := title, title

	if messages := n.Messages(); len(messages) > 0 {
		latest := messages[len(messages)-1]
		if latest.Text != "" {
			text = latest.Text
		}
		if latest.Sender != nil {
			senderName = latest.Sender.Name
			senderID = latest.Sender.Key
			if senderID == "" {
				senderID = senderName
			}
		}
	}
	if senderName == "" {
		return nil, &domain.ParseError{SpecID: s.ID(), Reason: "no sender in title or messages"}
	}

	group := n.Bool(domain.ExtraIsGroupConversation)
	roomName := n.String(domain.ExtraConversationTitle)
	if roomName == "" {
		roomName = n.String(domain.ExtraSubText)
	}
	if roomName == "" {
		if group {
			return nil, &domain.ParseError{SpecID: s.ID(), Reason: "group conversation without title"}
		}
		roomName = title
	}

	room := newRoom(n, n.Tag, roomName, group, reply)
	chatLogID := n.Int64(domain.ExtraChatLogID)
	room.SetLastReceivedID(chatLogID)

	return &domain.ChatMessage{
		Text: text,
		Sender: domain.ChatSender{
			Name:         senderName,
			ID:           senderID,
			ProfileHash:  ProfileHash(n.LargeIcon),
			ProfileImage: n.LargeIcon,
		},
		Room:        room,
		ChatLogID:   chatLogID,
		PackageName: n.PackageName,
	}, nil
}
