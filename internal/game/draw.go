// internal/game/draw.go
//
// Random letter drawing. The drawer is injected so tests can script draws
// and replay games deterministically.

package game

import (
	"math/rand"

	"github.com/grab-game/internal/letters"
)

// randDrawer picks uniformly over the remaining letter instances in a bag,
// weighted by count.
type randDrawer struct {
	rng *rand.Rand
}

// NewDrawer returns a LetterDrawer seeded for reproducible draws. Each game
// needs its own drawer: the underlying source is not safe for concurrent
// use, and the per-game lock is what serializes Draw calls.
func NewDrawer(seed int64) LetterDrawer {
	return &randDrawer{rng: rand.New(rand.NewSource(seed))}
}

// Draw implements LetterDrawer.
func (d *randDrawer) Draw(bag letters.Counts) (int, bool) {
	total := bag.Sum()
	if total == 0 {
		return 0, false
	}
	n := d.rng.Intn(total)
	for i := 0; i < 26; i++ {
		n -= bag[i]
		if n < 0 {
			return i, true
		}
	}
	panic("draw walked past the bag total")
}
