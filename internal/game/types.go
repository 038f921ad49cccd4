// internal/game/types.go
//
// Core type definitions for the Grab game engine.
// Defines:
//   - Status: game lifecycle states (waiting/active/finished).
//   - Player: one player's state inside a game.
//   - Snapshot / PlayerSnapshot: immutable copies handed to the event sink.
//   - Config: the knobs for one game instance.
//   - Collaborator interfaces: Dictionary, EventSink, LetterDrawer.

package game

import (
	"time"

	"github.com/grab-game/internal/letters"
)

// Status is the lifecycle state of a game.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// ActionReady is the only player action the engine understands: the player
// is done with the current turn and wants the next letter drawn.
const ActionReady = "ready_for_next_turn"

// Defaults applied by New when Config fields are left zero.
const (
	DefaultMaxPlayers = 4
	DefaultMinPlayers = 2
	DefaultTurnLimit  = 5 * time.Minute
	DefaultGrace      = 10 * time.Minute
)

// Player holds one player's state inside a game.
// Owned words live in the game's ledger, not here.
type Player struct {
	ID        string
	Username  string
	Score     int
	Ready     bool // ready_for_next_turn, reset every turn start
	Connected bool
}

// Config carries the knobs for one game instance. Zero fields select the
// package defaults; TurnLimit 0 means the game is untimed.
type Config struct {
	MaxPlayers int
	MinPlayers int
	TurnLimit  time.Duration
	Grace      time.Duration  // how long a fully disconnected game survives
	Bag        letters.Counts // initial bag; empty selects the standard set
	Dict       Dictionary     // required
	Drawer     LetterDrawer   // nil selects a time-seeded random drawer
	Sink       EventSink      // optional
	Now        func() time.Time
}

// Dictionary answers whether a word is allowed in play.
type Dictionary interface {
	Contains(word string) bool
}

// EventSink receives a snapshot after every externally visible change.
// The engine invokes the sink while holding the game's lock, so
// implementations must not block and must not call back into the game.
type EventSink interface {
	GameUpdated(Snapshot)
}

// Tee fans snapshots out to several sinks in order.
type Tee []EventSink

// GameUpdated implements EventSink.
func (t Tee) GameUpdated(s Snapshot) {
	for _, sink := range t {
		sink.GameUpdated(s)
	}
}

// LetterDrawer picks the next letter (index 0..25) out of a bag.
// ok is false when the bag is empty. Implementations must return a letter
// whose count in the bag is positive.
type LetterDrawer interface {
	Draw(bag letters.Counts) (letter int, ok bool)
}

// Snapshot is an immutable copy of a game's externally visible state.
type Snapshot struct {
	GameID            string           `json:"game_id"`
	Status            Status           `json:"status"`
	CreatorID         string           `json:"creator_id"`
	MaxPlayers        int              `json:"max_players"`
	TimeLimitSeconds  int              `json:"time_limit_seconds"`
	CurrentTurn       int              `json:"current_turn"`
	TurnTimeRemaining *int             `json:"turn_time_remaining"` // seconds; nil when untimed or not active
	Pool              string           `json:"pool"`                // sorted letters, e.g. "aaelt"
	BagCount          int              `json:"bag_count"`
	Players           []PlayerSnapshot `json:"players"` // join order
	CreatedAt         time.Time        `json:"created_at"`
	StartedAt         *time.Time       `json:"started_at,omitempty"`
	FinishedAt        *time.Time       `json:"finished_at,omitempty"`
}

// PlayerSnapshot is one player's entry inside a Snapshot.
type PlayerSnapshot struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Score     int      `json:"score"`
	Connected bool     `json:"connected"`
	Ready     bool     `json:"ready_for_next_turn"`
	Words     []string `json:"words"` // formation order
}

// OwnedWord pairs a word in play with its current owner.
type OwnedWord struct {
	Word    string
	OwnerID string
}
