package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// MatchRoom names the fan-out scope of a match's chat.
func MatchRoom(matchID string) string {
	return "match:" + matchID
}

// StoryRoom names the fan-out scope of a story's viewers.
func StoryRoom(storyID string) string {
	return "story:" + storyID
}

// Hub owns room membership and fan-out for live sessions. Broadcasts are
// fire-and-forget: a session that cannot keep up has the event dropped and
// reconciles through a later history fetch.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Session]struct{}
	// joined rooms per session, so unregister can leave them all
	joined map[*Session]map[string]struct{}
	users  map[string]map[*Session]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Session]struct{}),
		joined: make(map[*Session]map[string]struct{}),
		users:  make(map[string]map[*Session]struct{}),
	}
}

// Register adds an authenticated session to the hub.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.users[s.UserID] == nil {
		h.users[s.UserID] = make(map[*Session]struct{})
	}
	h.users[s.UserID][s] = struct{}{}
	h.joined[s] = make(map[string]struct{})

	log.Debug().Str("user_id", s.UserID).Msg("session registered")
}

// Unregister removes a session from every room and closes its send queue.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms, ok := h.joined[s]
	if !ok {
		return
	}
	for room := range rooms {
		delete(h.rooms[room], s)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.joined, s)

	delete(h.users[s.UserID], s)
	if len(h.users[s.UserID]) == 0 {
		delete(h.users, s.UserID)
	}

	close(s.send)

	log.Debug().Str("user_id", s.UserID).Msg("session unregistered")
}

// Join subscribes a session to a room.
func (h *Hub) Join(s *Session, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms, ok := h.joined[s]
	if !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Session]struct{})
	}
	h.rooms[room][s] = struct{}{}
	rooms[room] = struct{}{}
}

// Leave unsubscribes a session from a room. Always succeeds.
func (h *Hub) Leave(s *Session, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.rooms[room], s)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
	delete(h.joined[s], room)
}

// Publish broadcasts an event to every session in a room.
func (h *Hub) Publish(room, eventType string, data any) {
	payload, err := json.Marshal(outbound{Type: eventType, Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("failed to marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.rooms[room] {
		select {
		case s.send <- payload:
		default:
			log.Warn().Str("user_id", s.UserID).Str("room", room).Msg("send buffer full, event dropped")
		}
	}
}

// SendTo delivers an event to one session only (errors, acks).
func (h *Hub) SendTo(s *Session, eventType string, data any) {
	payload, err := json.Marshal(outbound{Type: eventType, Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("failed to marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.joined[s]; !ok {
		return
	}
	select {
	case s.send <- payload:
	default:
	}
}

// SendToUser delivers an event to every live session of one user,
// independent of room membership (match created/cancelled notices).
func (h *Hub) SendToUser(userID, eventType string, data any) {
	payload, err := json.Marshal(outbound{Type: eventType, Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("failed to marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.users[userID] {
		select {
		case s.send <- payload:
		default:
		}
	}
}

// IsOnline reports whether a user has at least one live session.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

type outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}
