// internal/events/recorder.go
//
// Snapshot observer that turns state changes into records.
// Responsibilities:
//   - Receive every published snapshot without ever blocking the game
//     lock: GameUpdated only enqueues, a worker goroutine does the rest.
//   - Detect lifecycle transitions and emit the matching Kafka events.
//   - Hand finished games to the archive.
//
// The recorder tracks the last status it saw per game, so repeated
// snapshots within one status (moves, joins, connects) cost nothing
// downstream.

package events

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/grab-game/internal/game"
)

// snapshotBuffer bounds how many snapshots can wait for the worker.
const snapshotBuffer = 256

// Archiver persists finished games. *archive.Store satisfies it; a nil
// interface disables archiving.
type Archiver interface {
	SaveResult(ctx context.Context, snap game.Snapshot) error
	Enabled() bool
}

// Recorder consumes game snapshots and records lifecycle transitions.
type Recorder struct {
	producer *Producer
	store    Archiver

	ch   chan game.Snapshot
	seen map[string]game.Status // last status per game, worker-owned
}

// NewRecorder builds a recorder around an event producer and an optional
// archive.
func NewRecorder(producer *Producer, store Archiver) *Recorder {
	return &Recorder{
		producer: producer,
		store:    store,
		ch:       make(chan game.Snapshot, snapshotBuffer),
		seen:     make(map[string]game.Status),
	}
}

// GameUpdated enqueues a snapshot for the worker. Called with the game
// lock held, so it must not block; a full queue drops the snapshot.
func (r *Recorder) GameUpdated(s game.Snapshot) {
	select {
	case r.ch <- s:
	default:
		log.Warn().Str("game_id", s.GameID).Msg("recorder queue full, snapshot dropped")
	}
}

// Run processes snapshots until the context ends.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-r.ch:
			r.observe(ctx, s)
		}
	}
}

// observe reacts to a snapshot if it carries a status transition.
func (r *Recorder) observe(ctx context.Context, s game.Snapshot) {
	prev, known := r.seen[s.GameID]
	if known && prev == s.Status {
		return
	}
	r.seen[s.GameID] = s.Status

	switch s.Status {
	case game.StatusWaiting:
		if !known {
			r.producer.Emit(EventGameCreated, s)
		}
	case game.StatusActive:
		r.producer.Emit(EventGameStarted, s)
	case game.StatusFinished:
		r.producer.Emit(EventGameFinished, s)
		r.archive(ctx, s)
		// Finished games publish nothing further.
		delete(r.seen, s.GameID)
	}
}

// archive persists the final standings when an archive is configured.
func (r *Recorder) archive(ctx context.Context, s game.Snapshot) {
	if r.store == nil || !r.store.Enabled() {
		return
	}
	if err := r.store.SaveResult(ctx, s); err != nil {
		log.Error().Err(err).Str("game_id", s.GameID).Msg("archive game result")
		return
	}
	log.Info().Str("game_id", s.GameID).Int("turns", s.CurrentTurn).Msg("game archived")
}
