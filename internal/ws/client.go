// internal/ws/client.go
//
// One websocket connection.
// Responsibilities:
//   - Pump inbound frames to the hub's message handler.
//   - Pump outbound frames from a buffered send channel, with pings to
//     keep the connection alive and deadlines to drop dead peers.
//   - Never block a broadcaster: writes to a full send buffer are dropped.

package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/grab-game/internal/game"
)

const (
	// writeWait is how long one frame write may take.
	writeWait = 10 * time.Second

	// pongWait is how long we keep a silent peer before declaring it dead.
	pongWait = 60 * time.Second

	// pingPeriod must fire before pongWait runs out.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound frames; words are short.
	maxMessageSize = 1024

	// sendBuffer is the per-client outbound queue.
	sendBuffer = 32
)

// Inbound message types.
const (
	TypeMove         = "move"
	TypePlayerAction = "player_action"
	TypeGetStatus    = "get_status"
)

// Outbound message types.
const (
	TypeConnected  = "connected"
	TypeGameState  = "game_state"
	TypeMoveResult = "move_result"
	TypeError      = "error"
)

// inMessage is the envelope clients send.
type inMessage struct {
	Type   string `json:"type"`
	Word   string `json:"word,omitempty"`
	Action string `json:"action,omitempty"`
}

// outMessage is the envelope clients receive. Unused fields stay off the
// wire.
type outMessage struct {
	Type     string         `json:"type"`
	GameID   string         `json:"game_id,omitempty"`
	PlayerID string         `json:"player_id,omitempty"`
	State    *game.Snapshot `json:"state,omitempty"`
	Result   *game.Outcome  `json:"result,omitempty"`
	Message  string         `json:"message,omitempty"`
}

// Client ties one websocket to one authenticated player in one game.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	playerID string
	username string
	gameID   string
}

// readPump relays inbound frames to the hub until the peer goes away.
// It runs on the connection's HTTP handler goroutine.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("player_id", c.playerID).Msg("websocket read")
			}
			return
		}
		c.hub.handleMessage(c, data)
	}
}

// writePump drains the send channel and pings the peer. One per client,
// started by the hub.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue hands a frame to the write pump without ever blocking the
// caller. Slow consumers lose frames rather than stall the game.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		log.Warn().Str("player_id", c.playerID).Msg("send buffer full, frame dropped")
	}
}

func (c *Client) sendJSON(msg outMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("marshal frame")
		return
	}
	c.enqueue(data)
}

func (c *Client) sendError(text string) {
	c.sendJSON(outMessage{Type: TypeError, Message: text})
}
