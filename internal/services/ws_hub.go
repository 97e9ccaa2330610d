package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type      string `json:"type"`
	GameID    string `json:"gameId,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// subscriber serializes writes to one connection
type subscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *subscriber) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// GameHub fans game events out to the WebSocket subscribers of each game
type GameHub struct {
	mu    sync.RWMutex
	games map[string]map[*websocket.Conn]*subscriber
}

// NewGameHub creates a new game hub
func NewGameHub() *GameHub {
	return &GameHub{games: make(map[string]map[*websocket.Conn]*subscriber)}
}

// Register subscribes conn to gameID's events
func (h *GameHub) Register(gameID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.games[gameID]
	if !ok {
		subs = make(map[*websocket.Conn]*subscriber)
		h.games[gameID] = subs
	}
	subs[conn] = &subscriber{conn: conn}

	log.Info().Str("game_id", gameID).Int("subscribers", len(subs)).Msg("WebSocket connection registered")
}

// Unregister closes conn and removes it from gameID
func (h *GameHub) Unregister(gameID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.games[gameID]
	if !ok {
		return
	}
	if _, exists := subs[conn]; !exists {
		return
	}
	conn.Close()
	delete(subs, conn)
	if len(subs) == 0 {
		delete(h.games, gameID)
	}
	log.Info().Str("game_id", gameID).Msg("WebSocket connection unregistered")
}

// Subscribers returns how many connections follow gameID
func (h *GameHub) Subscribers(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.games[gameID])
}

// Publish sends an event to every subscriber of gameID. Connections that
// fail the write are dropped.
func (h *GameHub) Publish(gameID, eventType string, data any) {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.games[gameID]))
	for _, s := range h.games[gameID] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(WSMessage{
		Type:      eventType,
		GameID:    gameID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	})
	if err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("Failed to marshal message")
		return
	}

	for _, s := range subs {
		if err := s.write(payload); err != nil {
			log.Warn().Err(err).Str("game_id", gameID).Msg("Failed to send message, dropping subscriber")
			h.Unregister(gameID, s.conn)
		}
	}
}

// Close disconnects every subscriber
func (h *GameHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for gameID, subs := range h.games {
		for conn := range subs {
			conn.Close()
		}
		delete(h.games, gameID)
	}
}
