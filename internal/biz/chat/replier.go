package chat

import "github.com/starlight-bridge/starlight/internal/biz/domain"

// Replier sends text to a fixed room. It holds only the room id so a
// cached replier never keeps a room alive.
type Replier struct {
	roomID string
	dir    *Directory
}

func (r *Replier) IsKind(kind domain.ArgKind) bool {
	return r != nil && kind == domain.ArgReplier
}

// RoomID returns the bound room id
func (r *Replier) RoomID() string {
	return r.roomID
}

// Reply sends text to the bound room
func (r *Replier) Reply(text string) bool {
	return r.dir.SendToID(r.roomID, text)
}

// ReplyTo sends text to the named room, or to the bound room when name is empty
func (r *Replier) ReplyTo(name, text string) bool {
	if name == "" {
		return r.Reply(text)
	}
	return r.dir.SendTo(name, text)
}
