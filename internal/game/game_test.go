package game

import (
	"testing"
	"time"

	"github.com/grab-game/internal/letters"
)

// ------------------------------ test doubles --------------------------------

// scriptedDrawer hands out a fixed letter sequence, then falls back to the
// first letter left in the bag.
type scriptedDrawer struct {
	letters []int
	i       int
}

func drawScript(seq string) *scriptedDrawer {
	d := &scriptedDrawer{}
	for i := 0; i < len(seq); i++ {
		d.letters = append(d.letters, int(seq[i]-'a'))
	}
	return d
}

func (d *scriptedDrawer) Draw(bag letters.Counts) (int, bool) {
	if bag.IsEmpty() {
		return 0, false
	}
	if d.i < len(d.letters) {
		l := d.letters[d.i]
		d.i++
		return l, true
	}
	for i := 0; i < 26; i++ {
		if bag[i] > 0 {
			return i, true
		}
	}
	return 0, false
}

type fakeClock struct {
	t time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// At returns a moment relative to the clock's current reading.
func (c *fakeClock) At(d time.Duration) time.Time { return c.t.Add(d) }

type recordingSink struct {
	snaps []Snapshot
}

func (r *recordingSink) GameUpdated(s Snapshot) { r.snaps = append(r.snaps, s) }

func (r *recordingSink) last() Snapshot {
	return r.snaps[len(r.snaps)-1]
}

// ------------------------------ helpers -------------------------------------

func mustJoin(t *testing.T, g *Game, id, name string) {
	t.Helper()
	if err := g.Join(id, name); err != nil {
		t.Fatalf("Join(%s): %v", id, err)
	}
}

func connect(t *testing.T, g *Game, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := g.SetConnected(id, true); err != nil {
			t.Fatalf("SetConnected(%s): %v", id, err)
		}
	}
}

func readyUp(t *testing.T, g *Game, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := g.ApplyAction(id, ActionReady); err != nil {
			t.Fatalf("ApplyAction(%s, ready): %v", id, err)
		}
	}
}

func mustMove(t *testing.T, g *Game, id, word string) Outcome {
	t.Helper()
	out, err := g.ApplyMove(id, word)
	if err != nil {
		t.Fatalf("ApplyMove(%s, %s): %v", id, word, err)
	}
	if !out.Accepted {
		t.Fatalf("ApplyMove(%s, %s) rejected: %s", id, word, out.Reason)
	}
	return out
}

// startedGame builds a two-player game, connects both, and starts it.
func startedGame(t *testing.T, cfg Config) (*Game, *fakeClock) {
	t.Helper()
	clock := newClock()
	cfg.Now = clock.Now
	if cfg.Dict == nil {
		cfg.Dict = newDict("eat", "tea", "ate", "cat", "rate", "create")
	}
	g := New("g1", "p1", cfg)
	mustJoin(t, g, "p1", "alice")
	mustJoin(t, g, "p2", "bob")
	connect(t, g, "p1", "p2")
	if err := g.Start("p1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return g, clock
}

// lettersInPlay counts every letter visible in a snapshot: still bagged,
// loose in the pool, or locked inside formed words.
func lettersInPlay(s Snapshot) int {
	n := s.BagCount + len(s.Pool)
	for _, p := range s.Players {
		for _, w := range p.Words {
			n += len(w)
		}
	}
	return n
}

// ------------------------------ lifecycle -----------------------------------

func TestGameJoinRules(t *testing.T) {
	clock := newClock()
	g := New("g1", "p1", Config{Dict: newDict(), MaxPlayers: 2, Now: clock.Now})

	mustJoin(t, g, "p1", "alice")
	if err := g.Join("p1", "alice"); err != ErrAlreadyJoined {
		t.Errorf("rejoining err = %v, want ErrAlreadyJoined", err)
	}
	mustJoin(t, g, "p2", "bob")
	if err := g.Join("p3", "carol"); err != ErrGameFull {
		t.Errorf("join past capacity err = %v, want ErrGameFull", err)
	}

	connect(t, g, "p1", "p2")
	if err := g.Start("p1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := g.Join("p3", "carol"); err != ErrGameNotWaiting {
		t.Errorf("join after start err = %v, want ErrGameNotWaiting", err)
	}
}

func TestGameStartRules(t *testing.T) {
	clock := newClock()
	g := New("g1", "p1", Config{Dict: newDict(), Now: clock.Now})
	mustJoin(t, g, "p1", "alice")

	if err := g.Start("p2"); err != ErrNotCreator {
		t.Errorf("foreign start err = %v, want ErrNotCreator", err)
	}
	if err := g.Start("p1"); err != ErrTooFewPlayers {
		t.Errorf("solo start err = %v, want ErrTooFewPlayers", err)
	}

	mustJoin(t, g, "p2", "bob")
	connect(t, g, "p1", "p2")
	if err := g.Start("p1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := g.Start("p1"); err != ErrGameNotWaiting {
		t.Errorf("double start err = %v, want ErrGameNotWaiting", err)
	}

	s := g.Snapshot()
	if s.Status != StatusActive {
		t.Errorf("Status = %s, want active", s.Status)
	}
	if s.CurrentTurn != 1 {
		t.Errorf("CurrentTurn = %d, want 1", s.CurrentTurn)
	}
	if len(s.Pool) != 1 {
		t.Errorf("Pool = %q, want one letter after the first draw", s.Pool)
	}
	if s.StartedAt == nil {
		t.Error("StartedAt should be set")
	}
}

func TestGameStopRules(t *testing.T) {
	g, _ := startedGame(t, Config{})
	if err := g.Stop("p2"); err != ErrNotCreator {
		t.Errorf("foreign stop err = %v, want ErrNotCreator", err)
	}
	if err := g.Stop("p1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !g.Finished() {
		t.Error("game should be finished after Stop")
	}
	if err := g.Stop("p1"); err != ErrGameFinished {
		t.Errorf("second stop err = %v, want ErrGameFinished", err)
	}
}

func TestGameStopWhileWaiting(t *testing.T) {
	clock := newClock()
	g := New("g1", "p1", Config{Dict: newDict(), Now: clock.Now})
	mustJoin(t, g, "p1", "alice")
	if err := g.Stop("p1"); err != nil {
		t.Fatalf("Stop from waiting: %v", err)
	}
	s := g.Snapshot()
	if s.Status != StatusFinished {
		t.Errorf("Status = %s, want finished", s.Status)
	}
	if s.StartedAt != nil {
		t.Error("StartedAt should stay unset for a game stopped before starting")
	}
	if s.FinishedAt == nil {
		t.Error("FinishedAt should be set")
	}
}

// TestGameFullRound plays a complete game: letters drawn turn by turn, a
// pool build, a steal that extends it, and the end bonus when the bag runs
// dry.
func TestGameFullRound(t *testing.T) {
	bag, _ := letters.FromWord("eatcre")
	g, _ := startedGame(t, Config{Bag: bag, Drawer: drawScript("eatcre")})
	total := 6

	// Turns 2 and 3 add a and t to the opening e.
	readyUp(t, g, "p1", "p2")
	readyUp(t, g, "p1", "p2")
	s := g.Snapshot()
	if s.CurrentTurn != 3 {
		t.Fatalf("CurrentTurn = %d, want 3", s.CurrentTurn)
	}
	if s.Pool != "aet" {
		t.Fatalf("Pool = %q, want aet", s.Pool)
	}
	if n := lettersInPlay(s); n != total {
		t.Fatalf("letters in play = %d, want %d", n, total)
	}

	out := mustMove(t, g, "p1", "  EAT ")
	if out.Word != "eat" {
		t.Errorf("Word = %q, want eat (normalized)", out.Word)
	}
	if out.Score != 3 {
		t.Errorf("Score = %d, want 3", out.Score)
	}
	s = g.Snapshot()
	if s.Pool != "" {
		t.Errorf("Pool = %q, want empty after eat", s.Pool)
	}
	if s.Players[0].Score != 3 {
		t.Errorf("p1 score = %d, want 3", s.Players[0].Score)
	}
	if len(s.Players[0].Words) != 1 || s.Players[0].Words[0] != "eat" {
		t.Errorf("p1 words = %v, want [eat]", s.Players[0].Words)
	}

	// Three more turns deliver c, r, e.
	readyUp(t, g, "p1", "p2")
	readyUp(t, g, "p1", "p2")
	readyUp(t, g, "p1", "p2")
	s = g.Snapshot()
	if s.Pool != "cer" {
		t.Fatalf("Pool = %q, want cer", s.Pool)
	}
	if s.BagCount != 0 {
		t.Fatalf("BagCount = %d, want 0", s.BagCount)
	}

	out = mustMove(t, g, "p2", "create")
	if out.ConsumedWord != "eat" {
		t.Errorf("ConsumedWord = %q, want eat", out.ConsumedWord)
	}
	if out.Score != 8 {
		t.Errorf("Score = %d, want 8", out.Score)
	}
	s = g.Snapshot()
	if len(s.Players[0].Words) != 0 {
		t.Errorf("p1 words = %v, want none after the steal", s.Players[0].Words)
	}
	if len(s.Players[1].Words) != 1 || s.Players[1].Words[0] != "create" {
		t.Errorf("p2 words = %v, want [create]", s.Players[1].Words)
	}
	if n := lettersInPlay(s); n != total {
		t.Fatalf("letters in play = %d, want %d", n, total)
	}

	// The word is now unique for the rest of the game.
	out, err := g.ApplyMove("p1", "create")
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if out.Accepted || out.Reason != RejectDuplicateWord {
		t.Errorf("re-forming create = %+v, want duplicate_word", out)
	}

	// The bag is empty, so the next turn cannot begin.
	readyUp(t, g, "p1", "p2")
	s = g.Snapshot()
	if s.Status != StatusFinished {
		t.Fatalf("Status = %s, want finished after the bag empties", s.Status)
	}
	if s.FinishedAt == nil {
		t.Error("FinishedAt should be set")
	}
	if s.Players[1].Score != 16 {
		t.Errorf("p2 final score = %d, want 8 earned + 8 bonus", s.Players[1].Score)
	}
	if s.Players[0].Score != 3 {
		t.Errorf("p1 final score = %d, want 3", s.Players[0].Score)
	}

	if _, err := g.ApplyMove("p1", "tea"); err != ErrGameNotActive {
		t.Errorf("move after finish err = %v, want ErrGameNotActive", err)
	}
	if err := g.ApplyAction("p1", ActionReady); err != ErrGameNotActive {
		t.Errorf("action after finish err = %v, want ErrGameNotActive", err)
	}
}

func TestGameRejectedMoveChangesNothing(t *testing.T) {
	bag, _ := letters.FromWord("eat")
	g, _ := startedGame(t, Config{Bag: bag, Drawer: drawScript("eat")})
	readyUp(t, g, "p1", "p2")
	readyUp(t, g, "p1", "p2")
	before := g.Snapshot()

	out, err := g.ApplyMove("p1", "cat")
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if out.Accepted || out.Reason != RejectCannotConstruct {
		t.Fatalf("cat without a c = %+v, want cannot_construct", out)
	}

	out, err = g.ApplyMove("p1", "tae")
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if out.Accepted || out.Reason != RejectNotInDictionary {
		t.Fatalf("tae = %+v, want not_in_dictionary", out)
	}

	after := g.Snapshot()
	if after.Pool != before.Pool {
		t.Errorf("Pool changed on rejection: %q -> %q", before.Pool, after.Pool)
	}
	if after.Players[0].Score != before.Players[0].Score {
		t.Errorf("score changed on rejection")
	}
	if after.CurrentTurn != before.CurrentTurn {
		t.Errorf("turn changed on rejection")
	}
}

func TestGameMoveErrors(t *testing.T) {
	clock := newClock()
	g := New("g1", "p1", Config{Dict: newDict("eat"), Now: clock.Now})
	mustJoin(t, g, "p1", "alice")

	if _, err := g.ApplyMove("p1", "eat"); err != ErrGameNotActive {
		t.Errorf("move while waiting err = %v, want ErrGameNotActive", err)
	}

	mustJoin(t, g, "p2", "bob")
	connect(t, g, "p1", "p2")
	if err := g.Start("p1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := g.ApplyMove("ghost", "eat"); err != ErrPlayerNotFound {
		t.Errorf("move by stranger err = %v, want ErrPlayerNotFound", err)
	}
	if err := g.ApplyAction("p1", "dance"); err != ErrUnknownAction {
		t.Errorf("unknown action err = %v, want ErrUnknownAction", err)
	}
	if g.Snapshot().Players[0].Ready {
		t.Error("rejected action must not mark the player ready")
	}
}

// ------------------------------ turn ends -----------------------------------

func TestGameReadyConsensusIgnoresDisconnected(t *testing.T) {
	clock := newClock()
	g := New("g1", "p1", Config{Dict: newDict(), MinPlayers: 3, Now: clock.Now})
	mustJoin(t, g, "p1", "alice")
	mustJoin(t, g, "p2", "bob")
	mustJoin(t, g, "p3", "carol")
	connect(t, g, "p1", "p2") // p3 never connects
	if err := g.Start("p1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	readyUp(t, g, "p1")
	if g.Snapshot().CurrentTurn != 1 {
		t.Fatal("one ready of two connected should not end the turn")
	}
	readyUp(t, g, "p2")
	s := g.Snapshot()
	if s.CurrentTurn != 2 {
		t.Fatalf("CurrentTurn = %d, want 2 once every connected player is ready", s.CurrentTurn)
	}
	for _, p := range s.Players {
		if p.Ready {
			t.Errorf("player %s still ready after the turn advanced", p.ID)
		}
	}
}

func TestGameDisconnectCompletesConsensus(t *testing.T) {
	g, _ := startedGame(t, Config{})
	readyUp(t, g, "p1")

	// The lone holdout leaving makes everyone still connected ready.
	if err := g.SetConnected("p2", false); err != nil {
		t.Fatalf("SetConnected: %v", err)
	}
	if got := g.Snapshot().CurrentTurn; got != 2 {
		t.Fatalf("CurrentTurn = %d, want 2 after the holdout disconnects", got)
	}
}

func TestGameTimerExpiry(t *testing.T) {
	g, clock := startedGame(t, Config{TurnLimit: 30 * time.Second})

	g.Tick(clock.At(29 * time.Second))
	if got := g.Snapshot().CurrentTurn; got != 1 {
		t.Fatalf("CurrentTurn = %d, want 1 before the deadline", got)
	}
	g.Tick(clock.At(30 * time.Second))
	if got := g.Snapshot().CurrentTurn; got != 2 {
		t.Fatalf("CurrentTurn = %d, want 2 at the deadline", got)
	}
}

func TestGameUntimedTurnsNeverExpire(t *testing.T) {
	g, clock := startedGame(t, Config{})

	s := g.Snapshot()
	if s.TurnTimeRemaining != nil {
		t.Errorf("TurnTimeRemaining = %v, want nil for untimed games", *s.TurnTimeRemaining)
	}
	g.Tick(clock.At(240 * time.Hour))
	if got := g.Snapshot().CurrentTurn; got != 1 {
		t.Fatalf("CurrentTurn = %d, want 1; untimed turns end only by consensus", got)
	}
}

func TestGameTimerFreezesWhileEmpty(t *testing.T) {
	g, clock := startedGame(t, Config{TurnLimit: 30 * time.Second, Grace: time.Hour})

	// Both players drop at t+10s with 20s on the clock.
	clock.Advance(10 * time.Second)
	if err := g.SetConnected("p1", false); err != nil {
		t.Fatal(err)
	}
	if err := g.SetConnected("p2", false); err != nil {
		t.Fatal(err)
	}

	s := g.Snapshot()
	if s.TurnTimeRemaining == nil || *s.TurnTimeRemaining != 20 {
		t.Fatalf("TurnTimeRemaining = %v, want 20 frozen", s.TurnTimeRemaining)
	}

	// Far past the original deadline, the turn is still turn 1.
	g.Tick(clock.At(10 * time.Minute))
	if got := g.Snapshot().CurrentTurn; got != 1 {
		t.Fatalf("CurrentTurn = %d, want 1 while the timer is frozen", got)
	}

	// Reconnecting restarts the countdown from the frozen 20s.
	clock.Advance(5 * time.Minute)
	if err := g.SetConnected("p1", true); err != nil {
		t.Fatal(err)
	}
	g.Tick(clock.At(19 * time.Second))
	if got := g.Snapshot().CurrentTurn; got != 1 {
		t.Fatalf("CurrentTurn = %d, want 1 before the resumed deadline", got)
	}
	g.Tick(clock.At(20 * time.Second))
	if got := g.Snapshot().CurrentTurn; got != 2 {
		t.Fatalf("CurrentTurn = %d, want 2 at the resumed deadline", got)
	}
}

func TestGameAbandonedGameFinishes(t *testing.T) {
	g, clock := startedGame(t, Config{})

	if err := g.SetConnected("p1", false); err != nil {
		t.Fatal(err)
	}
	if err := g.SetConnected("p2", false); err != nil {
		t.Fatal(err)
	}

	g.Tick(clock.At(10*time.Minute - time.Second))
	if g.Finished() {
		t.Fatal("game finished before the grace window elapsed")
	}
	g.Tick(clock.At(10 * time.Minute))
	if !g.Finished() {
		t.Fatal("game should finish after ten minutes with nobody connected")
	}
}

func TestGameReconnectResetsGrace(t *testing.T) {
	g, clock := startedGame(t, Config{})

	if err := g.SetConnected("p1", false); err != nil {
		t.Fatal(err)
	}
	if err := g.SetConnected("p2", false); err != nil {
		t.Fatal(err)
	}

	// A brief visit five minutes in restarts the countdown.
	clock.Advance(5 * time.Minute)
	if err := g.SetConnected("p1", true); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Minute)
	if err := g.SetConnected("p1", false); err != nil {
		t.Fatal(err)
	}

	g.Tick(clock.At(9*time.Minute + 59*time.Second))
	if g.Finished() {
		t.Fatal("grace window should have restarted on reconnect")
	}
	g.Tick(clock.At(10 * time.Minute))
	if !g.Finished() {
		t.Fatal("game should finish ten minutes after the second abandonment")
	}
}

func TestGameStartsPausedWithNobodyConnected(t *testing.T) {
	clock := newClock()
	g := New("g1", "p1", Config{
		Dict:      newDict(),
		TurnLimit: 30 * time.Second,
		Now:       clock.Now,
	})
	mustJoin(t, g, "p1", "alice")
	mustJoin(t, g, "p2", "bob")
	if err := g.Start("p1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s := g.Snapshot()
	if s.TurnTimeRemaining == nil || *s.TurnTimeRemaining != 30 {
		t.Fatalf("TurnTimeRemaining = %v, want the full 30 frozen", s.TurnTimeRemaining)
	}

	// The countdown only starts once somebody shows up.
	clock.Advance(5 * time.Minute)
	if err := g.SetConnected("p1", true); err != nil {
		t.Fatal(err)
	}
	g.Tick(clock.At(29 * time.Second))
	if got := g.Snapshot().CurrentTurn; got != 1 {
		t.Fatalf("CurrentTurn = %d, want 1", got)
	}
	g.Tick(clock.At(30 * time.Second))
	if got := g.Snapshot().CurrentTurn; got != 2 {
		t.Fatalf("CurrentTurn = %d, want 2", got)
	}
}

// ------------------------------ snapshots & sink ----------------------------

func TestGameSnapshotIsIsolated(t *testing.T) {
	bag, _ := letters.FromWord("eat")
	g, _ := startedGame(t, Config{Bag: bag, Drawer: drawScript("eat")})
	readyUp(t, g, "p1", "p2")
	readyUp(t, g, "p1", "p2")
	mustMove(t, g, "p1", "eat")

	s := g.Snapshot()
	s.Players[0].Score = 999
	s.Players[0].Words[0] = "clobbered"

	fresh := g.Snapshot()
	if fresh.Players[0].Score != 3 {
		t.Errorf("score mutated through snapshot: %d", fresh.Players[0].Score)
	}
	if fresh.Players[0].Words[0] != "eat" {
		t.Errorf("words mutated through snapshot: %v", fresh.Players[0].Words)
	}
}

func TestGameSinkSeesEveryChange(t *testing.T) {
	sink := &recordingSink{}
	clock := newClock()
	g := New("g1", "p1", Config{Dict: newDict(), Sink: sink, Now: clock.Now})

	mustJoin(t, g, "p1", "alice")
	if len(sink.snaps) != 1 || len(sink.last().Players) != 1 {
		t.Fatalf("join should publish a one-player snapshot, got %d snaps", len(sink.snaps))
	}
	mustJoin(t, g, "p2", "bob")
	connect(t, g, "p1", "p2")
	if err := g.Start("p1"); err != nil {
		t.Fatal(err)
	}
	if sink.last().Status != StatusActive {
		t.Errorf("sink should have seen the start, last status = %s", sink.last().Status)
	}

	if err := g.Stop("p1"); err != nil {
		t.Fatal(err)
	}
	if sink.last().Status != StatusFinished {
		t.Errorf("sink should have seen the finish, last status = %s", sink.last().Status)
	}

	// Connection changes after the end are bookkeeping, not news.
	n := len(sink.snaps)
	if err := g.SetConnected("p1", false); err != nil {
		t.Fatal(err)
	}
	if len(sink.snaps) != n {
		t.Errorf("disconnect after finish published %d extra snapshots", len(sink.snaps)-n)
	}
}

func TestGameCandidateOrder(t *testing.T) {
	g, _ := startedGame(t, Config{})

	// Owners in join order, each owner's words oldest first.
	_ = g.ledger.AddWord("p2", "tea")
	_ = g.ledger.AddWord("p1", "cat")
	_ = g.ledger.AddWord("p2", "rate")

	got := g.candidates()
	want := []string{"cat", "tea", "rate"}
	if len(got) != len(want) {
		t.Fatalf("candidates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("candidates = %v, want %v", got, want)
		}
	}
}
