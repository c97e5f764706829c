package ws

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	sendBufferSize = 32
	writeTimeout   = 10 * time.Second
)

// Session binds one live connection to one authenticated principal. It is
// created after credential verification and passed into every event
// handler; room membership lives in the hub, mutated only through it.
type Session struct {
	UserID string

	conn *websocket.Conn
	send chan []byte
}

// NewSession wraps an upgraded connection for the given user.
func NewSession(conn *websocket.Conn, userID string) *Session {
	return &Session{
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
}

// WritePump drains the send queue onto the connection. It runs in its own
// goroutine and exits when the hub closes the queue on unregister.
func (s *Session) WritePump() {
	defer s.conn.Close()

	for payload := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Debug().Err(err).Str("user_id", s.UserID).Msg("session write failed")
			return
		}
	}
}

// ReadMessage blocks for the next client frame.
func (s *Session) ReadMessage() ([]byte, error) {
	_, payload, err := s.conn.ReadMessage()
	return payload, err
}
