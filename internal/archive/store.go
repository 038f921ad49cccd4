// internal/archive/store.go
//
// Persistence for finished games.
// Responsibilities:
//   - Record one row per finished game: winner, score, turn count, and the
//     full score sheet as JSON.
//   - Serve the all-time leaderboard (wins, then points).
//
// A nil *Store is a valid, disabled archive.

package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/grab-game/internal/game"
)

// ErrDisabled is returned by writes when no database is configured.
var ErrDisabled = errors.New("archive: disabled")

// Store writes finished games to SQLite and reads them back aggregated.
type Store struct {
	db *sql.DB
}

// New wraps an opened archive database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Enabled reports whether results will actually be persisted.
func (s *Store) Enabled() bool {
	return s != nil && s.db != nil
}

// scoreLine is one player's final standing inside scores_json.
type scoreLine struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// SaveResult records a finished game. The snapshot must be of a finished
// game; the winner is the highest scorer, earliest joiner on ties.
func (s *Store) SaveResult(ctx context.Context, snap game.Snapshot) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	lines := make([]scoreLine, 0, len(snap.Players))
	for _, p := range snap.Players {
		lines = append(lines, scoreLine{PlayerID: p.ID, Username: p.Username, Score: p.Score})
	}
	scores, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	winner, winnerScore := winnerOf(snap.Players)
	finished := time.Now().UTC()
	if snap.FinishedAt != nil {
		finished = snap.FinishedAt.UTC()
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO game_results
            (game_id, finished_at, turns, winner, winner_score, scores_json)
        VALUES (?, ?, ?, ?, ?, ?)`,
		snap.GameID, finished, snap.CurrentTurn, winner, winnerScore, string(scores),
	)
	return err
}

// LeaderboardRow is one username's aggregate across every archived game.
type LeaderboardRow struct {
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	Points   int    `json:"points"`
}

// Leaderboard returns the top winners, most wins first, total winning
// points breaking ties. Default limit is 20.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT winner, COUNT(1) AS wins, SUM(winner_score) AS points
        FROM game_results
        WHERE winner != ''
        GROUP BY winner
        ORDER BY wins DESC, points DESC, winner ASC
        LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]LeaderboardRow, 0, limit)
	for rows.Next() {
		var r LeaderboardRow
		if err := rows.Scan(&r.Username, &r.Wins, &r.Points); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// winnerOf picks the highest scorer; the earliest joiner wins ties. An
// empty player list yields an empty winner.
func winnerOf(players []game.PlayerSnapshot) (string, int) {
	winner := ""
	best := 0
	for i, p := range players {
		if i == 0 || p.Score > best {
			winner = p.Username
			best = p.Score
		}
	}
	return winner, best
}
