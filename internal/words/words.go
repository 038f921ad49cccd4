// internal/words/words.go
//
// Dictionary loading for the game engine.
//
// Responsibilities:
//   - Load a word list from a named tournament list, an explicit path, or
//     the embedded default.
//   - Normalize entries to lowercase and drop anything non-alphabetic.
//   - Expose membership lookups through a value the engine can hold.
//
// Selection behavior (Load):
//   1. An empty spec loads the embedded default list.
//   2. "twl06" and "sowpods" resolve to <WORD_LIST_DIR>/<name>.txt.
//   3. Anything else is treated as a file path.
//
// Environment variables:
//   WORD_LIST      twl06 | sowpods | /path/to/list.txt (read by main)
//   WORD_LIST_DIR  directory for the named lists (default "data")
//
// Constraints:
//   - Words are one or more ASCII letters; lists are normalized to lowercase.
//   - A named or pathed list that cannot be read is an error, never a
//     silent fallback.

package words

import (
	"bufio"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed default_words.txt
var embeddedDefault string

// names of the bundled tournament lists resolved via WORD_LIST_DIR.
var namedLists = map[string]bool{
	"twl06":   true,
	"sowpods": true,
}

// List is an immutable word set. The zero value contains nothing; use
// Load.
type List struct {
	name  string
	words map[string]struct{}
}

// Load builds a List from spec. See the package comment for how spec is
// resolved.
func Load(spec string) (*List, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		l := &List{name: "default", words: toSet(normalizeLines(embeddedDefault))}
		if len(l.words) == 0 {
			return nil, fmt.Errorf("words: embedded default list is empty")
		}
		return l, nil
	}

	path := spec
	name := spec
	if namedLists[spec] {
		dir := os.Getenv("WORD_LIST_DIR")
		if dir == "" {
			dir = "data"
		}
		path = filepath.Join(dir, spec+".txt")
	} else {
		name = strings.TrimSuffix(filepath.Base(spec), filepath.Ext(spec))
	}

	list, err := readWordFile(path)
	if err != nil {
		return nil, fmt.Errorf("words: load %s: %w", spec, err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("words: list %s is empty", spec)
	}
	return &List{name: name, words: toSet(list)}, nil
}

// Contains reports whether w is in the list. Lookup is case-insensitive.
func (l *List) Contains(w string) bool {
	_, ok := l.words[strings.ToLower(w)]
	return ok
}

// Len returns how many words the list holds.
func (l *List) Len() int { return len(l.words) }

// Name returns the list's short name, e.g. "twl06" or "default".
func (l *List) Name() string { return l.name }

// readWordFile loads one word per line from a file, lowercases, trims,
// and keeps only alphabetic entries.
func readWordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		w := strings.TrimSpace(strings.ToLower(sc.Text()))
		if len(w) > 0 && isAlpha(w) {
			out = append(out, w)
		}
	}
	return out, sc.Err()
}

// normalizeLines processes an embedded multiline string into a slice of
// valid lowercase words.
func normalizeLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		w := strings.TrimSpace(strings.ToLower(line))
		if len(w) > 0 && isAlpha(w) {
			out = append(out, w)
		}
	}
	return out
}

// toSet converts a list of strings into a lookup set.
func toSet(list []string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, w := range list {
		m[w] = struct{}{}
	}
	return m
}

// isAlpha reports whether s is all lowercase ASCII letters.
func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
