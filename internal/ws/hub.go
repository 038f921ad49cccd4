// internal/ws/hub.go
//
// Connection hub: one room of clients per game.
// Responsibilities:
//   - Register and unregister clients, keeping game connectivity flags in
//     step with the sockets that back them.
//   - Dispatch inbound messages (moves, actions, status pulls) to the
//     player's game.
//   - Fan snapshots out to a game's room; the hub is the EventSink games
//     publish to.
//
// Locking: the room map's mutex is always released before touching a
// game. Games call GameUpdated while holding their own lock, so the
// reverse order would deadlock.

package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/grab-game/internal/game"
)

// Browsers connect from whatever origin serves the frontend; the HTTP
// token check happens before the upgrade.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GameSource resolves games for connections and messages. The registry
// satisfies it.
type GameSource interface {
	Get(id string) (*game.Game, error)
	GameFor(playerID string) (*game.Game, bool)
}

// Hub owns every live websocket, grouped into per-game rooms.
type Hub struct {
	source GameSource

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{} // game id -> clients

	register   chan *Client
	unregister chan *Client
}

// NewHub builds a hub over a game source.
func NewHub(source GameSource) *Hub {
	return &Hub{
		source:     source,
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes registrations until the context ends.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

// ServeWS upgrades an authenticated request into a live connection to
// the player's current game. Callers have already verified the token.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, playerID, username string) {
	g, ok := h.source.GameFor(playerID)
	if !ok {
		http.Error(w, "no unfinished game for player", http.StatusConflict)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("player_id", playerID).Msg("websocket upgrade")
		return
	}
	c := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		playerID: playerID,
		username: username,
		gameID:   g.ID(),
	}
	h.register <- c
	go c.writePump()
	c.readPump()
}

// GameUpdated broadcasts a snapshot to the game's room. Games call this
// while holding their own lock, so it only marshals and enqueues.
func (h *Hub) GameUpdated(s game.Snapshot) {
	data, err := json.Marshal(outMessage{Type: TypeGameState, State: &s})
	if err != nil {
		log.Error().Err(err).Str("game_id", s.GameID).Msg("marshal snapshot")
		return
	}
	h.mu.RLock()
	room := h.rooms[s.GameID]
	clients := make([]*Client, 0, len(room))
	for c := range room {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.enqueue(data)
	}
}

// addClient seats a connection in its room, greets it with the current
// state, and flips the player's connectivity on.
func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	room := h.rooms[c.gameID]
	if room == nil {
		room = make(map[*Client]struct{})
		h.rooms[c.gameID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()

	g, err := h.source.Get(c.gameID)
	if err != nil {
		c.sendError("game not found")
		return
	}
	c.sendJSON(outMessage{Type: TypeConnected, GameID: c.gameID, PlayerID: c.playerID})
	snap := g.Snapshot()
	c.sendJSON(outMessage{Type: TypeGameState, State: &snap})
	if err := g.SetConnected(c.playerID, true); err != nil {
		log.Warn().Err(err).Str("player_id", c.playerID).Msg("mark connected")
	}
	log.Info().Str("player_id", c.playerID).Str("game_id", c.gameID).Msg("websocket connected")
}

// removeClient drops a connection. The player only counts as
// disconnected once their last socket is gone.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	room, ok := h.rooms[c.gameID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := room[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.gameID)
	}
	lastSocket := true
	for other := range room {
		if other.playerID == c.playerID {
			lastSocket = false
			break
		}
	}
	h.mu.Unlock()

	log.Info().Str("player_id", c.playerID).Str("game_id", c.gameID).Msg("websocket disconnected")
	if !lastSocket {
		return
	}
	g, err := h.source.Get(c.gameID)
	if err != nil {
		return
	}
	if err := g.SetConnected(c.playerID, false); err != nil {
		log.Debug().Err(err).Str("player_id", c.playerID).Msg("mark disconnected")
	}
}

// handleMessage dispatches one inbound frame. It runs on the client's
// read goroutine.
func (h *Hub) handleMessage(c *Client, data []byte) {
	var msg inMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("invalid message format")
		return
	}
	g, err := h.source.Get(c.gameID)
	if err != nil {
		c.sendError("game not found")
		return
	}
	switch msg.Type {
	case TypeMove:
		out, err := g.ApplyMove(c.playerID, msg.Word)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		c.sendJSON(outMessage{Type: TypeMoveResult, Result: &out})
	case TypePlayerAction:
		if err := g.ApplyAction(c.playerID, msg.Action); err != nil {
			c.sendError(err.Error())
		}
	case TypeGetStatus:
		snap := g.Snapshot()
		c.sendJSON(outMessage{Type: TypeGameState, State: &snap})
	default:
		c.sendError("unknown message type: " + msg.Type)
	}
}
