package domain

// ChatRoom is a reply destination
type ChatRoom interface {
	ID() string
	Name() string
	IsGroupChat() bool
	// Send performs the reply action bound to the room
	Send(text string) bool
	// MarkAsRead is best-effort
	MarkAsRead() bool
}

// ChatSender identifies the author of a chat message
type ChatSender struct {
	Name         string `json:"name"`
	ID           string `json:"id"`
	ProfileHash  int64  `json:"profile_hash"`
	ProfileImage []byte `json:"-"`
}

// ChatMessage is a structured chat event built from a platform notification
type ChatMessage struct {
	Text        string     `json:"text"`
	Sender      ChatSender `json:"sender"`
	Room        ChatRoom   `json:"-"`
	ChatLogID   int64      `json:"chat_log_id"`
	PackageName string     `json:"package_name"`
}

func (m *ChatMessage) IsKind(kind ArgKind) bool {
	return m != nil && kind == ArgChatMessage
}

// DeletedMessage describes a message the platform withdrew
type DeletedMessage struct {
	Text        string   `json:"text"`
	Sender      string   `json:"sender"`
	Room        ChatRoom `json:"-"`
	PackageName string   `json:"package_name"`
	ChatLogID   int64    `json:"chat_log_id"`
}

func (m *DeletedMessage) IsKind(kind ArgKind) bool {
	return m != nil && kind == ArgDeletedMessage
}
