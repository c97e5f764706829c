package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"heartlink-backend/internal/apperr"
	"heartlink-backend/internal/services"
	"heartlink-backend/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler owns the live channel: it authenticates connections,
// dispatches typed client events to the services and reports failures
// through a distinct error event instead of dropping them.
type WebSocketHandler struct {
	hub          *ws.Hub
	userService  *services.UserService
	matchService *services.MatchService
	chatService  *services.ChatService
	storyService *services.StoryService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *ws.Hub,
	userService *services.UserService,
	matchService *services.MatchService,
	chatService *services.ChatService,
	storyService *services.StoryService,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:          hub,
		userService:  userService,
		matchService: matchService,
		chatService:  chatService,
		storyService: storyService,
	}
}

// envelope is the client event frame
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandleWebSocket handles GET /ws. The credential is verified before the
// upgrade; an unauthenticated connection never reaches the hub.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}
	userID, err := h.userService.ValidateJWT(token)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	session := ws.NewSession(conn, userID)
	h.hub.Register(session)
	defer h.hub.Unregister(session)
	go session.WritePump()

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	ctx := context.WithoutCancel(r.Context())
	for {
		payload, err := session.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("user_id", userID).Msg("WebSocket closed")
			}
			return
		}

		var msg envelope
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.hub.SendTo(session, "error", map[string]string{"message": "invalid message format"})
			continue
		}

		if err := h.handleEvent(ctx, session, msg); err != nil {
			log.Debug().Err(err).Str("user_id", userID).Str("type", msg.Type).Msg("event failed")
			h.hub.SendTo(session, "error", map[string]string{
				"event":   msg.Type,
				"message": apperr.Message(err),
			})
		}
	}
}

func (h *WebSocketHandler) handleEvent(ctx context.Context, s *ws.Session, msg envelope) error {
	switch msg.Type {
	case "join-match":
		var data struct {
			MatchID string `json:"match_id"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return apperr.New(apperr.KindInvalidArgument, "invalid event data")
		}
		if _, err := h.matchService.Authorize(ctx, data.MatchID, s.UserID); err != nil {
			return err
		}
		h.hub.Join(s, ws.MatchRoom(data.MatchID))
		return nil

	case "send-message":
		var data struct {
			MatchID string `json:"match_id"`
			Text    string `json:"text"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return apperr.New(apperr.KindInvalidArgument, "invalid event data")
		}
		_, err := h.chatService.Send(ctx, data.MatchID, s.UserID, data.Text)
		return err

	case "mark-as-read":
		var data struct {
			MatchID    string   `json:"match_id"`
			MessageIDs []string `json:"message_ids"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return apperr.New(apperr.KindInvalidArgument, "invalid event data")
		}
		_, err := h.chatService.MarkRead(ctx, data.MatchID, s.UserID, data.MessageIDs)
		return err

	case "join-story":
		var data struct {
			StoryID string `json:"story_id"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return apperr.New(apperr.KindInvalidArgument, "invalid event data")
		}
		if err := h.storyService.AuthorizeViewer(ctx, data.StoryID, s.UserID); err != nil {
			return err
		}
		h.hub.Join(s, ws.StoryRoom(data.StoryID))
		return nil

	case "leave-story":
		var data struct {
			StoryID string `json:"story_id"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return apperr.New(apperr.KindInvalidArgument, "invalid event data")
		}
		h.hub.Leave(s, ws.StoryRoom(data.StoryID))
		return nil

	case "add-story-comment":
		var data struct {
			StoryID string `json:"story_id"`
			Text    string `json:"text"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return apperr.New(apperr.KindInvalidArgument, "invalid event data")
		}
		_, err := h.storyService.AddComment(ctx, data.StoryID, s.UserID, data.Text)
		return err

	case "delete-story-comment":
		var data struct {
			StoryID   string `json:"story_id"`
			CommentID string `json:"comment_id"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return apperr.New(apperr.KindInvalidArgument, "invalid event data")
		}
		return h.storyService.DeleteComment(ctx, data.StoryID, data.CommentID, s.UserID)

	case "toggle-story-like":
		var data struct {
			StoryID string `json:"story_id"`
			Liked   bool   `json:"liked"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return apperr.New(apperr.KindInvalidArgument, "invalid event data")
		}
		var err error
		if data.Liked {
			_, err = h.storyService.Like(ctx, data.StoryID, s.UserID)
		} else {
			_, err = h.storyService.Unlike(ctx, data.StoryID, s.UserID)
		}
		return err

	default:
		return apperr.Newf(apperr.KindInvalidArgument, "unknown event type %q", msg.Type)
	}
}
