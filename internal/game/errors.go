// internal/game/errors.go
//
// Sentinel errors for state and input failures. Move legality failures are
// not errors: the validator reports those as Rejected outcomes.

package game

import "errors"

var (
	ErrGameNotWaiting = errors.New("game is not accepting players")
	ErrGameNotActive  = errors.New("game is not active")
	ErrGameFinished   = errors.New("game is already finished")
	ErrGameFull       = errors.New("game is full")
	ErrAlreadyJoined  = errors.New("player already joined this game")
	ErrNotCreator     = errors.New("only the game creator may do this")
	ErrTooFewPlayers  = errors.New("not enough players to start")
	ErrPlayerNotFound = errors.New("player is not in this game")
	ErrUnknownAction  = errors.New("unknown action")

	ErrWordExists   = errors.New("word is already in play")
	ErrWordNotFound = errors.New("word is not in play")
)
