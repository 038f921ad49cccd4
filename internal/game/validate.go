// internal/game/validate.go
//
// Move legality for the Grab engine.
// Responsibilities:
//   - Decide whether a proposed word can be built from the pool plus at
//     most one word already in play.
//   - Pick the consumed word deterministically when several would work.
//
// The candidate order is part of the engine contract: the pool alone is
// tried first, then every word in play ordered by the owners' join order
// and, within one owner, by formation order (oldest first). The first
// workable candidate wins, so identical game states always resolve the
// same move the same way.

package game

import (
	"github.com/grab-game/internal/letters"
)

// RejectReason classifies why a move was turned down.
type RejectReason string

const (
	RejectInvalidCharacters RejectReason = "invalid_characters"
	RejectDuplicateWord     RejectReason = "duplicate_word"
	RejectNotInDictionary   RejectReason = "not_in_dictionary"
	RejectCannotConstruct   RejectReason = "cannot_construct"
)

// Outcome is the validator's verdict on a proposed word. A rejected move is
// a normal outcome, not an engine failure: nothing changed and the reason
// travels back to the player.
type Outcome struct {
	Accepted     bool           `json:"accepted"`
	Reason       RejectReason   `json:"reason,omitempty"`        // set only when rejected
	Word         string         `json:"word"`                    // the word under consideration
	ConsumedWord string         `json:"consumed_word,omitempty"` // existing word disassembled; empty for pool-only builds
	PoolLetters  letters.Counts `json:"-"`                       // letters the move takes from the pool
	Score        int            `json:"score,omitempty"`         // points awarded on acceptance
}

// validate decides whether word can be built and from what.
//
// Steps:
//  1. invalid_characters unless the word is one or more letters a-z.
//  2. duplicate_word if the word is already in play; a word can never be
//     re-formed with identical text, whatever letters would justify it.
//  3. not_in_dictionary if the dictionary disallows it.
//  4. Try the pool alone, then each candidate in order. A candidate works
//     when the new word's letters minus the candidate's letters fit in the
//     pool. A pool-only build always takes at least one pool letter (the
//     word itself); a consuming build may take zero, which is how anagram
//     steals happen.
//  5. cannot_construct when nothing fits.
//
// candidates must already be in canonical order (see the Game's
// candidates method). validate never mutates its inputs.
func validate(word string, pool letters.Counts, candidates []string, dict Dictionary) Outcome {
	need, err := letters.FromWord(word)
	if err != nil {
		return Outcome{Reason: RejectInvalidCharacters, Word: word}
	}
	for _, c := range candidates {
		if c == word {
			return Outcome{Reason: RejectDuplicateWord, Word: word}
		}
	}
	if !dict.Contains(word) {
		return Outcome{Reason: RejectNotInDictionary, Word: word}
	}

	if pool.ContainsSubset(need) {
		return Outcome{
			Accepted:    true,
			Word:        word,
			PoolLetters: need,
			Score:       letters.WordScore(word),
		}
	}

	for _, cand := range candidates {
		remainder, ok := need.SubtractIfPossible(mustCounts(cand))
		if !ok {
			continue
		}
		if !pool.ContainsSubset(remainder) {
			continue
		}
		return Outcome{
			Accepted:     true,
			Word:         word,
			ConsumedWord: cand,
			PoolLetters:  remainder,
			Score:        letters.WordScore(word),
		}
	}
	return Outcome{Reason: RejectCannotConstruct, Word: word}
}

// mustCounts converts a word already in play to its letter counts.
// Words are validated before they enter the ledger, so a failure here is
// a corruption bug and panics.
func mustCounts(word string) letters.Counts {
	c, err := letters.FromWord(word)
	if err != nil {
		panic("invalid word in play: " + word)
	}
	return c
}
