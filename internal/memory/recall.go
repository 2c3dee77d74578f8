package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/baalimago/agentloop/internal/history"
)

// recallWindow is the amount of trailing messages used as search query.
const recallWindow = 3

// Recall searches the store for memories relevant to a conversation. Unless
// forced, a search is only made every skip+1 fetches; the fetches in between
// reuse the previous result.
type Recall struct {
	store *Store
	count int
	skip  int

	mu      sync.Mutex
	skipped int
	last    string
	primed  bool
}

func NewRecall(store *Store, count, skip int) *Recall {
	return &Recall{store: store, count: count, skip: max(skip, 0)}
}

func (r *Recall) Fetch(ctx context.Context, force bool, conversation []history.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count <= 0 {
		return "", nil
	}
	if !force && r.primed && r.skipped < r.skip {
		r.skipped++
		return r.last, nil
	}
	r.skipped = 0
	r.primed = true

	from := max(len(conversation)-recallWindow, 0)
	var query strings.Builder
	for _, m := range conversation[from:] {
		query.WriteString(m.Content)
		query.WriteString("\n")
	}
	hits := r.store.Search(query.String(), r.count)
	if len(hits) == 0 {
		r.last = ""
		return "", nil
	}
	var sb strings.Builder
	sb.WriteString("# Memories on the topic\n")
	for _, h := range hits {
		sb.WriteString(fmt.Sprintf("- %v\n", h.Text))
	}
	r.last = strings.TrimRight(sb.String(), "\n")
	return r.last, nil
}
