// internal/game/ledger.go
//
// Word ownership bookkeeping for one game.
// Responsibilities:
//   - Track which player owns which word (a word has exactly one owner).
//   - Preserve each player's formation order; the validator's candidate
//     ordering depends on it.
//   - Take a word out of play atomically, returning its letters.

package game

import (
	"github.com/grab-game/internal/letters"
)

// Ledger tracks the words in play for one game. It is not safe for
// concurrent use on its own; the owning Game serializes access.
type Ledger struct {
	owner map[string]string   // word -> player id
	words map[string][]string // player id -> words in formation order
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		owner: make(map[string]string),
		words: make(map[string][]string),
	}
}

// Has reports whether the word is in play for anyone.
func (l *Ledger) Has(word string) bool {
	_, ok := l.owner[word]
	return ok
}

// Size returns the number of words in play.
func (l *Ledger) Size() int { return len(l.owner) }

// AddWord records word as owned by playerID.
// Fails if the word is already in play anywhere in the game.
func (l *Ledger) AddWord(playerID, word string) error {
	if l.Has(word) {
		return ErrWordExists
	}
	l.owner[word] = playerID
	l.words[playerID] = append(l.words[playerID], word)
	return nil
}

// TakeWord removes a word from its owner and returns the owner id and the
// word's letters. Fails if the word is not in play.
func (l *Ledger) TakeWord(word string) (string, letters.Counts, error) {
	owner, ok := l.owner[word]
	if !ok {
		return "", letters.Counts{}, ErrWordNotFound
	}
	delete(l.owner, word)
	ws := l.words[owner]
	for i, w := range ws {
		if w == word {
			l.words[owner] = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	c, err := letters.FromWord(word)
	if err != nil {
		panic("ledger holds an invalid word: " + word)
	}
	return owner, c, nil
}

// WordsOf returns playerID's words in the order they were formed.
// The returned slice is a copy.
func (l *Ledger) WordsOf(playerID string) []string {
	ws := l.words[playerID]
	out := make([]string, len(ws))
	copy(out, ws)
	return out
}

// AllWords returns every (word, owner) pair grouped by the given player
// order, preserving each player's formation order within the group.
func (l *Ledger) AllWords(playerOrder []string) []OwnedWord {
	out := make([]OwnedWord, 0, len(l.owner))
	for _, pid := range playerOrder {
		for _, w := range l.words[pid] {
			out = append(out, OwnedWord{Word: w, OwnerID: pid})
		}
	}
	return out
}

// LockedLetters sums the letters bound up in every word in play.
func (l *Ledger) LockedLetters() letters.Counts {
	var total letters.Counts
	for w := range l.owner {
		c, err := letters.FromWord(w)
		if err != nil {
			panic("ledger holds an invalid word: " + w)
		}
		for i := 0; i < 26; i++ {
			total[i] += c[i]
		}
	}
	return total
}
