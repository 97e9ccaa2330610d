package handlers

import (
	"net/http"
	"time"

	"memevault-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler subscribes clients to live game events
type WebSocketHandler struct {
	hub   *services.GameHub
	games *services.GameService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.GameHub, games *services.GameService) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, games: games}
}

// HandleWebSocket handles GET /ws/games/{id}. The first message is a
// snapshot of the game; later ones are the game's events.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	game, err := h.games.GetGame(r.Context(), gameID)
	if err != nil {
		respondServiceError(w, err, map[string]any{"game_id": gameID})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("game_id", gameID).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	snapshot := services.WSMessage{
		Type:      services.EventGameUpdated,
		GameID:    gameID,
		Timestamp: time.Now().UnixMilli(),
		Data:      game,
	}
	if err := conn.WriteJSON(snapshot); err != nil {
		log.Error().Err(err).Str("game_id", gameID).Msg("Failed to send game snapshot")
		return
	}

	h.hub.Register(gameID, conn)
	defer h.hub.Unregister(gameID, conn)
	log.Info().Str("game_id", gameID).Msg("WebSocket connection established")

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go h.ping(gameID, conn, done)

	// clients only listen; reading drives pong and close handling
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("game_id", gameID).Msg("WebSocket error")
			}
			return
		}
	}
}

func (h *WebSocketHandler) ping(gameID string, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				log.Debug().Err(err).Str("game_id", gameID).Msg("WebSocket ping failed")
				return
			}
		}
	}
}
