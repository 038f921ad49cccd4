// internal/game/game.go
//
// One authoritative game instance.
// Responsibilities:
//   - Compose pool, bag, ledger, and players into a single guarded state.
//   - Serialize every mutation through one mutex, so callers observe
//     linearizable behavior per game.
//   - Drive the turn cycle: letter draws, ready consensus, timer expiry.
//   - Freeze the turn timer while nobody is connected and finish the game
//     after the grace window runs out.
//   - Apply validated moves atomically and publish snapshots to the sink.
//
// Notes:
//   - The sink is called with the lock held; implementations must be
//     non-blocking and must not call back into this package.
//   - Tick carries the scheduler's clock, so tests drive time explicitly.
//   - Legality rejections come back as Outcome values, never as errors.

package game

import (
	"strings"
	"sync"
	"time"

	"github.com/grab-game/internal/letters"
)

// Game is one authoritative game instance. All exported methods are safe
// for concurrent use.
type Game struct {
	mu sync.Mutex

	id        string
	creatorID string

	maxPlayers int
	minPlayers int
	turnLimit  time.Duration
	grace      time.Duration

	status  Status
	players []*Player // join order
	byID    map[string]*Player

	pool   letters.Counts
	bag    letters.Counts
	ledger *Ledger

	turn         int
	turnDeadline time.Time     // zero when untimed or paused
	turnLeft     time.Duration // frozen remainder while paused
	paused       bool
	emptySince   time.Time // when the last connection dropped; zero otherwise

	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time

	dict   Dictionary
	drawer LetterDrawer
	sink   EventSink
	now    func() time.Time
}

// New constructs a game in the waiting state. The dictionary is the one
// collaborator that has no default.
func New(id, creatorID string, cfg Config) *Game {
	if cfg.Dict == nil {
		panic("game: nil dictionary")
	}
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = DefaultMaxPlayers
	}
	if cfg.MinPlayers <= 0 {
		cfg.MinPlayers = DefaultMinPlayers
	}
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultGrace
	}
	if cfg.Bag.IsEmpty() {
		cfg.Bag = letters.StandardBag()
	}
	if cfg.Drawer == nil {
		cfg.Drawer = NewDrawer(time.Now().UnixNano())
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	g := &Game{
		id:         id,
		creatorID:  creatorID,
		maxPlayers: cfg.MaxPlayers,
		minPlayers: cfg.MinPlayers,
		turnLimit:  cfg.TurnLimit,
		grace:      cfg.Grace,
		status:     StatusWaiting,
		byID:       make(map[string]*Player),
		bag:        cfg.Bag,
		ledger:     NewLedger(),
		dict:       cfg.Dict,
		drawer:     cfg.Drawer,
		sink:       cfg.Sink,
		now:        cfg.Now,
	}
	g.createdAt = g.now()
	return g
}

// ID returns the game's identifier. Immutable, so no lock is needed.
func (g *Game) ID() string { return g.id }

// CreatorID returns the creating player's id.
func (g *Game) CreatorID() string { return g.creatorID }

// Status returns the current lifecycle state.
func (g *Game) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Finished reports whether the game has ended.
func (g *Game) Finished() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status == StatusFinished
}

// FinishedAt returns when the game ended, if it has.
func (g *Game) FinishedAt() (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.finishedAt, g.status == StatusFinished
}

// PlayerIDs returns the ids of every joined player in join order.
func (g *Game) PlayerIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, len(g.players))
	for i, p := range g.players {
		ids[i] = p.ID
	}
	return ids
}

// ------------------------------ operations ---------------------------------

// Join adds a player while the game is still waiting for players.
func (g *Game) Join(playerID, username string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != StatusWaiting {
		return ErrGameNotWaiting
	}
	if _, ok := g.byID[playerID]; ok {
		return ErrAlreadyJoined
	}
	if len(g.players) >= g.maxPlayers {
		return ErrGameFull
	}
	p := &Player{ID: playerID, Username: username}
	g.players = append(g.players, p)
	g.byID[playerID] = p
	g.publish()
	return nil
}

// Start moves the game from waiting to active and begins the first turn.
// Only the creator may start, and only with enough players joined.
func (g *Game) Start(callerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != StatusWaiting {
		return ErrGameNotWaiting
	}
	if callerID != g.creatorID {
		return ErrNotCreator
	}
	if len(g.players) < g.minPlayers {
		return ErrTooFewPlayers
	}
	now := g.now()
	g.status = StatusActive
	g.startedAt = now
	if g.connectedCount() == 0 {
		g.emptySince = now
	}
	g.advanceTurn(now)
	g.publish()
	return nil
}

// Stop forces the game to finished. Only the creator may stop it.
func (g *Game) Stop(callerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status == StatusFinished {
		return ErrGameFinished
	}
	if callerID != g.creatorID {
		return ErrNotCreator
	}
	g.finish(g.now())
	g.publish()
	return nil
}

// ApplyMove validates the proposed word and, when accepted, applies it
// atomically: pool letters come out, the consumed word changes hands, the
// mover's score grows by the word's value. A rejection changes nothing.
func (g *Game) ApplyMove(playerID, word string) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != StatusActive {
		return Outcome{}, ErrGameNotActive
	}
	mover, ok := g.byID[playerID]
	if !ok {
		return Outcome{}, ErrPlayerNotFound
	}

	word = strings.ToLower(strings.TrimSpace(word))
	out := validate(word, g.pool, g.candidates(), g.dict)
	if !out.Accepted {
		return out, nil
	}

	// The validator proved all three steps possible; a failure past this
	// point is state corruption and panics.
	pool, ok := g.pool.SubtractIfPossible(out.PoolLetters)
	if !ok {
		panic("pool underflow applying a validated move")
	}
	g.pool = pool
	if out.ConsumedWord != "" {
		if _, _, err := g.ledger.TakeWord(out.ConsumedWord); err != nil {
			panic("validated move consumed a missing word: " + out.ConsumedWord)
		}
	}
	if err := g.ledger.AddWord(playerID, out.Word); err != nil {
		panic("validated move duplicates a word: " + out.Word)
	}
	mover.Score += out.Score
	g.publish()
	return out, nil
}

// ApplyAction handles a protocol action from a player. Marking ready
// evaluates the consensus turn-end condition immediately.
func (g *Game) ApplyAction(playerID, action string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != StatusActive {
		return ErrGameNotActive
	}
	p, ok := g.byID[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	if action != ActionReady {
		return ErrUnknownAction
	}
	p.Ready = true
	if g.allConnectedReady() {
		g.advanceTurn(g.now())
	}
	g.publish()
	return nil
}

// SetConnected records transport connectivity for a player. Losing the last
// connection freezes the turn timer; the first reconnect resumes it. A
// departing holdout can also complete the ready consensus for the players
// who remain.
func (g *Game) SetConnected(playerID string, connected bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.byID[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	if p.Connected == connected {
		return nil
	}
	alreadyFinished := g.status == StatusFinished
	p.Connected = connected
	if g.status == StatusActive {
		now := g.now()
		if g.connectedCount() == 0 {
			g.emptySince = now
			g.pauseTimer(now)
		} else {
			g.emptySince = time.Time{}
			if g.paused {
				g.resumeTimer(now)
			}
			// Both edges can complete the consensus: a holdout leaving,
			// or a ready player coming back as the only one connected.
			if g.allConnectedReady() {
				g.advanceTurn(now)
			}
		}
	}
	if !alreadyFinished {
		g.publish()
	}
	return nil
}

// Tick drives time-based transitions. It is safe to call at any cadence
// and does nothing unless a deadline or the grace window has passed.
func (g *Game) Tick(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != StatusActive {
		return
	}
	if g.connectedCount() == 0 {
		if !g.emptySince.IsZero() && now.Sub(g.emptySince) >= g.grace {
			g.finish(now)
			g.publish()
		}
		return
	}
	if !g.turnDeadline.IsZero() && !now.Before(g.turnDeadline) {
		g.advanceTurn(now)
		g.publish()
	}
}

// Snapshot returns a deep copy of the externally visible state.
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

// ------------------------------ turn cycle ---------------------------------

// advanceTurn starts the next turn: draw one letter into the pool, reset
// every ready flag, restart the timer. An empty bag ends the game instead.
// Callers hold g.mu.
func (g *Game) advanceTurn(now time.Time) {
	letter, ok := g.drawer.Draw(g.bag)
	if !ok {
		g.finish(now)
		return
	}
	g.bag.Remove(letter)
	g.pool.Add(letter)
	g.turn++
	for _, p := range g.players {
		p.Ready = false
	}
	g.resetTimer(now)
}

// resetTimer arms the turn countdown for a fresh turn. A turn that starts
// with nobody connected begins frozen at the full duration.
func (g *Game) resetTimer(now time.Time) {
	g.paused = false
	g.turnLeft = 0
	g.turnDeadline = time.Time{}
	if g.turnLimit <= 0 {
		return
	}
	if g.connectedCount() == 0 {
		g.paused = true
		g.turnLeft = g.turnLimit
		return
	}
	g.turnDeadline = now.Add(g.turnLimit)
}

// pauseTimer freezes the remaining turn time.
func (g *Game) pauseTimer(now time.Time) {
	if g.turnDeadline.IsZero() {
		return
	}
	g.turnLeft = g.turnDeadline.Sub(now)
	if g.turnLeft < 0 {
		g.turnLeft = 0
	}
	g.turnDeadline = time.Time{}
	g.paused = true
}

// resumeTimer restarts a frozen countdown from where it stopped.
func (g *Game) resumeTimer(now time.Time) {
	g.turnDeadline = now.Add(g.turnLeft)
	g.turnLeft = 0
	g.paused = false
}

// finish moves the game to finished exactly once and applies the end
// bonus: every player still holding words banks their summed value. The
// status flips before the bonus, so a second call cannot re-apply it.
func (g *Game) finish(now time.Time) {
	if g.status == StatusFinished {
		return
	}
	g.status = StatusFinished
	g.finishedAt = now
	g.turnDeadline = time.Time{}
	g.turnLeft = 0
	g.paused = false
	for _, p := range g.players {
		for _, w := range g.ledger.WordsOf(p.ID) {
			p.Score += letters.WordScore(w)
		}
	}
}

// allConnectedReady reports whether at least one player is connected and
// every connected player is ready.
func (g *Game) allConnectedReady() bool {
	connected := 0
	for _, p := range g.players {
		if !p.Connected {
			continue
		}
		connected++
		if !p.Ready {
			return false
		}
	}
	return connected > 0
}

// connectedCount returns how many players currently have a live channel.
func (g *Game) connectedCount() int {
	n := 0
	for _, p := range g.players {
		if p.Connected {
			n++
		}
	}
	return n
}

// candidates lists every word in play in canonical order: owners by join
// order, then each owner's words oldest first.
func (g *Game) candidates() []string {
	var out []string
	for _, p := range g.players {
		out = append(out, g.ledger.WordsOf(p.ID)...)
	}
	return out
}

// ------------------------------ snapshots ----------------------------------

// publish hands the current snapshot to the sink. Callers hold g.mu.
func (g *Game) publish() {
	if g.sink == nil {
		return
	}
	g.sink.GameUpdated(g.snapshotLocked())
}

// snapshotLocked builds a Snapshot. Callers hold g.mu.
func (g *Game) snapshotLocked() Snapshot {
	s := Snapshot{
		GameID:           g.id,
		Status:           g.status,
		CreatorID:        g.creatorID,
		MaxPlayers:       g.maxPlayers,
		TimeLimitSeconds: int(g.turnLimit / time.Second),
		CurrentTurn:      g.turn,
		Pool:             g.pool.String(),
		BagCount:         g.bag.Sum(),
		CreatedAt:        g.createdAt,
	}
	if !g.startedAt.IsZero() {
		t := g.startedAt
		s.StartedAt = &t
	}
	if !g.finishedAt.IsZero() {
		t := g.finishedAt
		s.FinishedAt = &t
	}
	if g.status == StatusActive && g.turnLimit > 0 {
		remaining := g.turnLeft
		if !g.turnDeadline.IsZero() {
			remaining = g.turnDeadline.Sub(g.now())
		}
		if remaining < 0 {
			remaining = 0
		}
		sec := int(remaining / time.Second)
		s.TurnTimeRemaining = &sec
	}
	s.Players = make([]PlayerSnapshot, 0, len(g.players))
	for _, p := range g.players {
		s.Players = append(s.Players, PlayerSnapshot{
			ID:        p.ID,
			Username:  p.Username,
			Score:     p.Score,
			Connected: p.Connected,
			Ready:     p.Ready,
			Words:     g.ledger.WordsOf(p.ID),
		})
	}
	return s
}
