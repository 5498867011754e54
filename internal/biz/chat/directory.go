package chat

import (
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starlight-bridge/starlight/internal/log"
)

// DefaultCacheSize is the number of rooms kept when none is configured
const DefaultCacheSize = 512

// Directory remembers rooms by id and name so scripts can reply to rooms
// other than the one an event came from. Rooms are kept in a bounded LRU;
// evicting a room also evicts its replier.
type Directory struct {
	mu       sync.Mutex
	rooms    *lru.Cache[string, *Room]
	repliers *lru.Cache[string, *Replier]
	names    map[string]string
	last     *Room
}

// NewDirectory creates a directory holding at most size rooms
func NewDirectory(size int) *Directory {
	if size <= 0 {
		size = DefaultCacheSize
	}
	d := &Directory{names: make(map[string]string)}

	// sizes are positive so construction cannot fail
	d.repliers, _ = lru.New[string, *Replier](size)
	d.rooms, _ = lru.NewWithEvict[string, *Room](size, func(id string, room *Room) {
		d.repliers.Remove(id)
		log.Debug("[Directory] room evicted", "room", room.Name(), "id", id)
	})
	return d
}

// Remember stores room unless one with the same id is already known; in
// that case the known room keeps its identity and takes the new bindings.
// The canonical room is returned.
func (d *Directory) Remember(room *Room) *Room {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.rooms.Get(room.ID()); ok {
		existing.rebindFrom(room)
		existing.SetLastReceivedID(room.LastReceivedID())
		return existing
	}
	d.rooms.Add(room.ID(), room)
	d.names[room.Name()] = room.ID()
	return room
}

// SetLastReceived marks room as the target of Send and MarkAsRead
func (d *Directory) SetLastReceived(room *Room) {
	d.mu.Lock()
	d.last = room
	d.mu.Unlock()
}

// LastReceived returns the most recent room, or nil
func (d *Directory) LastReceived() *Room {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Room looks a room up by id
func (d *Directory) Room(id string) (*Room, bool) {
	return d.rooms.Get(id)
}

// RoomByName looks a room up by display name
func (d *Directory) RoomByName(name string) (*Room, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, ok := d.names[name]
	if !ok {
		return nil, false
	}
	room, ok := d.rooms.Get(id)
	if !ok {
		delete(d.names, name)
		return nil, false
	}
	return room, true
}

// HasRoom reports whether a room with that name is known
func (d *Directory) HasRoom(name string) bool {
	_, ok := d.RoomByName(name)
	return ok
}

// RoomNames returns the names of the rooms still cached
func (d *Directory) RoomNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, 0, len(d.names))
	for name, id := range d.names {
		if d.rooms.Contains(id) {
			names = append(names, name)
		} else {
			delete(d.names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Rooms returns the cached rooms, least recently used first
func (d *Directory) Rooms() []*Room {
	return d.rooms.Values()
}

// Send replies to the last room a message came from
func (d *Directory) Send(text string) bool {
	room := d.LastReceived()
	if room == nil {
		return false
	}
	return room.Send(text)
}

// SendTo replies to a room by name
func (d *Directory) SendTo(name, text string) bool {
	room, ok := d.RoomByName(name)
	if !ok {
		log.Warn("[Directory] cannot send to a room that never received a message", "room", name)
		return false
	}
	return room.Send(text)
}

// SendToID replies to a room by id
func (d *Directory) SendToID(id, text string) bool {
	room, ok := d.Room(id)
	if !ok {
		return false
	}
	return room.Send(text)
}

// MarkAsRead marks the last room as read
func (d *Directory) MarkAsRead() bool {
	room := d.LastReceived()
	if room == nil {
		return false
	}
	return room.MarkAsRead()
}

// MarkAsReadIn marks a room as read by name
func (d *Directory) MarkAsReadIn(name string) bool {
	room, ok := d.RoomByName(name)
	if !ok {
		return false
	}
	return room.MarkAsRead()
}

// Replier returns the cached replier for roomID, creating it on demand
func (d *Directory) Replier(roomID string) *Replier {
	if r, ok := d.repliers.Get(roomID); ok {
		return r
	}
	r := &Replier{roomID: roomID, dir: d}
	if prev, ok, _ := d.repliers.PeekOrAdd(roomID, r); ok {
		return prev
	}
	return r
}

// Forget evicts a room and its replier, e.g. when the platform reports the
// conversation closed
func (d *Directory) Forget(roomID string) {
	d.rooms.Remove(roomID)
	d.repliers.Remove(roomID)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last != nil && d.last.ID() == roomID {
		d.last = nil
	}
}
