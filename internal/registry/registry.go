// internal/registry/registry.go
//
// In-memory registry of live game instances.
// Responsibilities:
//   - Create games with collision-free ids and hand out references by id.
//   - Enforce the one-unfinished-game-per-player rule on create and join.
//   - Drive every game's clock from a single scheduler loop.
//   - Evict finished games after the retention window.
//
// Characteristics:
//   - Games are kept in a map guarded by an RWMutex; the mutex orders
//     strictly before any per-game lock, and nothing that runs under a
//     game lock ever calls back into the registry.
//   - State is lost when the process restarts.

package registry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grab-game/internal/game"
)

const (
	// DefaultTickInterval is how often the scheduler advances game clocks.
	DefaultTickInterval = 250 * time.Millisecond

	// DefaultRetention is how long a finished game stays queryable.
	DefaultRetention = 10 * time.Minute
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrPlayerBusy   = errors.New("player is already in a game")
	ErrNotFinished  = errors.New("game is not finished")
)

// Config carries the collaborators and policies shared by every game the
// registry creates.
type Config struct {
	Dict       game.Dictionary
	Sink       game.EventSink
	MinPlayers int
	Grace      time.Duration
	Retention  time.Duration
	Now        func() time.Time
}

// Registry owns every live game.
type Registry struct {
	mu         sync.RWMutex
	games      map[string]*game.Game // keyed by lowercase game id
	playerGame map[string]string     // player id -> game id

	cfg Config
}

// New constructs an empty registry.
func New(cfg Config) *Registry {
	if cfg.Dict == nil {
		panic("registry: nil dictionary")
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		games:      make(map[string]*game.Game),
		playerGame: make(map[string]string),
		cfg:        cfg,
	}
}

// SetSink wires the snapshot sink games publish to. The sink and the
// registry reference each other at startup, so it is set after
// construction and before the first game exists. Not synchronized.
func (r *Registry) SetSink(sink game.EventSink) {
	r.cfg.Sink = sink
}

// Create makes a new game with the creator already seated.
func (r *Registry) Create(creatorID, username string, maxPlayers int, turnLimit time.Duration) (*game.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busyLocked(creatorID) {
		return nil, ErrPlayerBusy
	}
	id := r.uniqueIDLocked()
	g := game.New(id, creatorID, game.Config{
		MaxPlayers: maxPlayers,
		MinPlayers: r.cfg.MinPlayers,
		TurnLimit:  turnLimit,
		Grace:      r.cfg.Grace,
		Dict:       r.cfg.Dict,
		Sink:       r.cfg.Sink,
		Now:        r.cfg.Now,
	})
	if err := g.Join(creatorID, username); err != nil {
		return nil, err
	}
	r.games[id] = g
	r.playerGame[creatorID] = id
	return g, nil
}

// Get returns the game with the given id, case-insensitively.
func (r *Registry) Get(id string) (*game.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if g, ok := r.games[strings.ToLower(id)]; ok {
		return g, nil
	}
	return nil, ErrGameNotFound
}

// Join seats a player in a waiting game. A player already seated in an
// unfinished game elsewhere is refused.
func (r *Registry) Join(gameID, playerID, username string) (*game.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[strings.ToLower(gameID)]
	if !ok {
		return nil, ErrGameNotFound
	}
	if gid, ok := r.playerGame[playerID]; ok && gid != g.ID() {
		if cur, ok := r.games[gid]; ok && !cur.Finished() {
			return nil, ErrPlayerBusy
		}
	}
	if err := g.Join(playerID, username); err != nil {
		return nil, err
	}
	r.playerGame[playerID] = g.ID()
	return g, nil
}

// GameFor returns the unfinished game a player is seated in, if any.
func (r *Registry) GameFor(playerID string) (*game.Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.playerGame[playerID]
	if !ok {
		return nil, false
	}
	g, ok := r.games[id]
	if !ok || g.Finished() {
		return nil, false
	}
	return g, true
}

// List returns a snapshot of every game, newest first.
func (r *Registry) List() []game.Snapshot {
	r.mu.RLock()
	games := make([]*game.Game, 0, len(r.games))
	for _, g := range r.games {
		games = append(games, g)
	}
	r.mu.RUnlock()

	snaps := make([]game.Snapshot, 0, len(games))
	for _, g := range games {
		snaps = append(snaps, g.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		if !snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
		}
		return snaps[i].GameID < snaps[j].GameID
	})
	return snaps
}

// Remove drops a finished game immediately instead of waiting out the
// retention window.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[strings.ToLower(id)]
	if !ok {
		return ErrGameNotFound
	}
	if !g.Finished() {
		return ErrNotFinished
	}
	delete(r.games, strings.ToLower(id))
	r.releaseLocked()
	return nil
}

// Run drives game clocks until the context ends.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			r.Tick(now)
		}
	}
}

// Tick advances every game's clock once, then evicts games that finished
// longer than the retention window ago. Exported so tests can drive time
// without the ticker.
func (r *Registry) Tick(now time.Time) {
	r.mu.RLock()
	games := make([]*game.Game, 0, len(r.games))
	for _, g := range r.games {
		games = append(games, g)
	}
	r.mu.RUnlock()
	for _, g := range games {
		g.Tick(now)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, g := range r.games {
		fin, ok := g.FinishedAt()
		if ok && now.Sub(fin) >= r.cfg.Retention {
			delete(r.games, id)
		}
	}
	r.releaseLocked()
}

// releaseLocked unbinds players whose game is finished or gone, freeing
// them to create or join another. Callers hold r.mu.
func (r *Registry) releaseLocked() {
	for pid, gid := range r.playerGame {
		g, ok := r.games[gid]
		if !ok || g.Finished() {
			delete(r.playerGame, pid)
		}
	}
}

// busyLocked reports whether the player is seated in an unfinished game.
// Callers hold r.mu.
func (r *Registry) busyLocked(playerID string) bool {
	gid, ok := r.playerGame[playerID]
	if !ok {
		return false
	}
	g, ok := r.games[gid]
	if !ok || g.Finished() {
		delete(r.playerGame, playerID)
		return false
	}
	return true
}

// uniqueIDLocked returns a compact 16-hex-char id not already in use.
// Callers hold r.mu.
func (r *Registry) uniqueIDLocked() string {
	for {
		id := randomID()
		if _, ok := r.games[id]; !ok {
			return id
		}
	}
}

// randomID returns a compact 16-hex-char identifier.
// Collisions are extremely unlikely given crypto/rand entropy.
func randomID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
