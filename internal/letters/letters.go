// internal/letters/letters.go
//
// Letter multiset arithmetic for the Grab engine.
// Responsibilities:
//   - Counts: a fixed 26-slot multiset over a-z, used for the pool, the bag,
//     and per-word letter accounting.
//   - Multiset operations: Add, Remove, SubtractIfPossible, ContainsSubset.
//   - FromWord parsing with strict a-z validation.
//   - The standard tile distribution and the letter point table.
//
// Notes:
//   - Counts is a value type; assignment copies it, which snapshot code
//     relies on.
//   - Mutating methods are only called while holding the owning game's lock.

package letters

import (
	"fmt"
	"strings"
)

// Counts is a multiset over the lowercase alphabet.
// Index i holds the number of copies of letter 'a'+i.
type Counts [26]int

// pointValues holds the point value of each letter a-z (classic Scrabble).
var pointValues = [26]int{
	1, 3, 3, 2, 1, 4, 2, 4, 1, 8, 5, 1, 3,
	1, 1, 3, 10, 1, 1, 1, 1, 4, 4, 8, 4, 10,
}

// standardTiles is the English tile distribution without blanks, 98 tiles.
var standardTiles = Counts{
	9, 2, 2, 4, 12, 2, 3, 2, 9, 1, 1, 4, 2,
	6, 8, 2, 1, 6, 4, 6, 4, 2, 2, 1, 2, 1,
}

// StandardBag returns a full bag holding the standard tile distribution.
func StandardBag() Counts { return standardTiles }

// FromWord converts a word into its letter counts.
// Fails if the word is empty or contains anything outside a-z.
func FromWord(word string) (Counts, error) {
	var c Counts
	if word == "" {
		return c, fmt.Errorf("empty word")
	}
	for _, r := range word {
		if r < 'a' || r > 'z' {
			return Counts{}, fmt.Errorf("invalid letter %q in %q", r, word)
		}
		c[r-'a']++
	}
	return c, nil
}

// Add puts one copy of the letter at index i (0..25) into the multiset.
func (c *Counts) Add(i int) { c[i]++ }

// Remove takes one copy of the letter at index i out of the multiset.
// Removing from an empty count is an accounting bug, so it panics; the
// validator guarantees callers never underflow.
func (c *Counts) Remove(i int) {
	if c[i] <= 0 {
		panic(fmt.Sprintf("letters: removing %q from empty count", byte('a'+i)))
	}
	c[i]--
}

// SubtractIfPossible returns c minus other, or ok=false when any letter of
// other exceeds c. c itself is never modified, so a failed subtraction
// leaves no partial state behind.
func (c Counts) SubtractIfPossible(other Counts) (Counts, bool) {
	out := c
	for i := 0; i < 26; i++ {
		out[i] -= other[i]
		if out[i] < 0 {
			return Counts{}, false
		}
	}
	return out, true
}

// ContainsSubset reports whether every letter count in other fits within c.
func (c Counts) ContainsSubset(other Counts) bool {
	for i := 0; i < 26; i++ {
		if other[i] > c[i] {
			return false
		}
	}
	return true
}

// Sum returns the total number of letters in the multiset.
func (c Counts) Sum() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// IsEmpty reports whether the multiset holds no letters.
func (c Counts) IsEmpty() bool { return c == Counts{} }

// String renders the multiset as sorted letters, e.g. {a:2, c:1} -> "aac".
func (c Counts) String() string {
	var b strings.Builder
	b.Grow(c.Sum())
	for i := 0; i < 26; i++ {
		for n := 0; n < c[i]; n++ {
			b.WriteByte(byte('a' + i))
		}
	}
	return b.String()
}

// WordScore sums the point values of a word's letters.
// The word must already be validated to a-z.
func WordScore(word string) int {
	score := 0
	for _, r := range word {
		score += pointValues[r-'a']
	}
	return score
}
