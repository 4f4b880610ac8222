package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/rlchess/internal/ir"
)

// createTestStore creates a new temporary store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testGame builds a Game component row for game id with the given seq.
func testGame(gameID int64, state string, seq int64) Component {
	return Component{
		EntityID:  ir.MustEntityID(ir.IRInt(gameID)),
		Component: "Game",
		Keys:      ir.IRArray{ir.MustFelt(ir.FeltHex(bigInt(gameID)))},
		Value: ir.Obj(
			ir.O("game_id", ir.IRInt(gameID)),
			ir.O("invite_state", ir.IRString(state)),
			ir.O("room_owner_address", ir.IRString("0xa")),
		),
		Seq: seq,
	}
}

func mustUpsert(t *testing.T, s *Store, c Component) bool {
	t.Helper()
	changed, err := s.UpsertComponent(context.Background(), c)
	if err != nil {
		t.Fatalf("UpsertComponent() failed: %v", err)
	}
	return changed
}
