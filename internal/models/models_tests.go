// This file contains tests intended to be used by the implementations of the
// StreamCompleter interface
package models

import (
	"context"
	"testing"
	"time"

	"github.com/baalimago/go_away_boilerplate/pkg/testboil"
)

// StreamCompleter_Test asserts that s stops streaming once its context is
// cancelled.
func StreamCompleter_Test(t *testing.T, s StreamCompleter) {
	testboil.ReturnsOnContextCancel(t, func(ctx context.Context) {
		ch, err := s.StreamCompletions(ctx, Chat{Messages: []Message{{Role: "user", Content: "hello"}}})
		if err != nil {
			return
		}
		for range ch {
		}
	}, time.Second)
}
