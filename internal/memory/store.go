// Package memory stores short notes the agent has chosen to remember and
// recalls the ones relevant to the ongoing conversation.
package memory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Entry is a single memory.
type Entry struct {
	ID       string    `yaml:"id"`
	Created  time.Time `yaml:"created"`
	Keywords []string  `yaml:"keywords"`
	Text     string    `yaml:"text"`
}

// Store is a yaml file backed list of entries.
type Store struct {
	path    string
	mu      sync.RWMutex
	entries []Entry
	debug   bool
}

// Open the store at path. A missing file is an empty store, it is created on
// the first Add.
func Open(path string) (*Store, error) {
	s := &Store{
		path:  path,
		debug: misc.Truthy(os.Getenv("DEBUG")),
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read memory file: %w", err)
	}
	if err := yaml.Unmarshal(b, &s.entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal memory file: %w", err)
	}
	if s.debug {
		ancli.PrintOK(fmt.Sprintf("loaded %v memories from: '%v'\n", len(s.entries), path))
	}
	return s, nil
}

// Add a memory and persist the store.
func (s *Store) Add(text string) (Entry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Entry{}, errors.New("memory text is empty")
	}
	e := Entry{
		ID:       uuid.NewString(),
		Created:  time.Now(),
		Keywords: keywords(text),
		Text:     text,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	if err := s.persist(); err != nil {
		s.entries = s.entries[:len(s.entries)-1]
		return Entry{}, err
	}
	return e, nil
}

func (s *Store) persist() error {
	b, err := yaml.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("failed to marshal memories: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create memory dir: %w", err)
	}
	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		return fmt.Errorf("failed to write memory file: %w", err)
	}
	return nil
}

// Len returns the amount of stored memories.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Search returns at most limit entries sharing keywords with query, best
// match first. Ties go to the most recent entry.
func (s *Store) Search(query string, limit int) []Entry {
	want := keywords(query)
	if len(want) == 0 || limit <= 0 {
		return nil
	}
	type scored struct {
		e     Entry
		score int
	}
	s.mu.RLock()
	hits := make([]scored, 0)
	for _, e := range s.entries {
		score := 0
		for _, k := range e.Keywords {
			if slices.Contains(want, k) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{e: e, score: score})
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(hits, func(a, b scored) int {
		if a.score != b.score {
			return b.score - a.score
		}
		return b.e.Created.Compare(a.e.Created)
	})
	ret := make([]Entry, 0, min(limit, len(hits)))
	for _, h := range hits[:min(limit, len(hits))] {
		ret = append(ret, h.e)
	}
	return ret
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"you": {}, "your": {}, "are": {}, "was": {}, "have": {}, "has": {},
	"from": {}, "but": {}, "not": {}, "can": {}, "will": {}, "what": {},
}

// keywords of text: lower cased, deduplicated words of at least three
// letters, minus stop words.
func keywords(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	ret := make([]string, 0, len(words))
	for _, w := range words {
		if len([]rune(w)) < 3 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if !slices.Contains(ret, w) {
			ret = append(ret, w)
		}
	}
	return ret
}
