package app

import (
	"testing"

	"trivia-sync/internal/infra/memory"
	"trivia-sync/internal/protocol"
	"trivia-sync/internal/tracker"
)

func TestHandlerTablesAreExhaustive(t *testing.T) {
	c := NewController(memory.NewChannel(), tracker.New(memory.NewUsedStore()), nil, Options{})
	if missing := protocol.Missing(c.handlers); len(missing) != 0 {
		t.Fatalf("controller has no handler for %v", missing)
	}
	if missing := protocol.Missing(displayHandlers()); len(missing) != 0 {
		t.Fatalf("display has no handler for %v", missing)
	}
}
