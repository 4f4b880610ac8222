package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rlchess/internal/ir"
)

func sampleResult() *Result {
	r := NewResult()
	r.Trace = []TraceEvent{
		{Type: EventInvocation, Seq: 1, Action: "create_game", As: "alice", Args: ir.IRObject{"game_format_id": ir.IRInt(2)}},
		{Type: EventCompletion, Seq: 2, Action: "create_game", Status: "confirmed"},
		{Type: EventInvocation, Seq: 3, Action: "join_game", As: "bob", Args: ir.IRObject{"game_id": ir.IRInt(1)}},
		{Type: EventCompletion, Seq: 4, Action: "join_game", Status: "confirmed"},
		{Type: EventInvocation, Seq: 5, Action: "join_game", As: "carol", Args: ir.IRObject{"game_id": ir.IRInt(1)}},
		{Type: EventCompletion, Seq: 6, Action: "join_game", Status: "rejected"},
	}
	return r
}

func TestAssertTraceContains(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, assertTraceContains(r, Assertion{Action: "join_game"}))
	assert.NoError(t, assertTraceContains(r, Assertion{Action: "join_game", Args: map[string]any{"game_id": 1}}))
	assert.NoError(t, assertTraceContains(r, Assertion{Action: "join_game", Status: "rejected"}))

	err := assertTraceContains(r, Assertion{Action: "start_game"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in trace")

	err = assertTraceContains(r, Assertion{Action: "join_game", Args: map[string]any{"game_id": 2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invoked 2 times, none matching game_id=2")

	err = assertTraceContains(r, Assertion{Action: "create_game", Status: "rejected"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "with status rejected")
}

func TestAssertTraceOrder(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, assertTraceOrder(r, []string{"create_game", "join_game"}))
	assert.NoError(t, assertTraceOrder(r, []string{"create_game", "join_game", "join_game"}))

	err := assertTraceOrder(r, []string{"join_game", "create_game"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create_game not found after join_game")
}

func TestAssertTraceCount(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, assertTraceCount(r, Assertion{Action: "join_game", Count: 2}))
	assert.NoError(t, assertTraceCount(r, Assertion{Action: "join_game", Status: "confirmed", Count: 1}))
	assert.NoError(t, assertTraceCount(r, Assertion{Action: "make_move", Count: 0}))

	err := assertTraceCount(r, Assertion{Action: "join_game", Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected join_game to appear 3 times, found 2")
}

func TestMatchSubset(t *testing.T) {
	actual := ir.IRObject{
		"game_id":            ir.IRInt(1),
		"room_owner_address": ir.IRString("0xa11ce"),
		"invite_state":       ir.IRString("Accepted"),
	}

	assert.NoError(t, matchSubset(actual, nil))
	assert.NoError(t, matchSubset(actual, map[string]any{"game_id": 1, "invite_state": "Accepted"}))
	assert.NoError(t, matchSubset(actual, map[string]any{"room_owner_address": "0x000a11ce"}), "felts compare by value")

	err := matchSubset(actual, map[string]any{"invite_state": "Rejected"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field invite_state: expected "Rejected", got "Accepted"`)

	err = matchSubset(actual, map[string]any{"room_end": 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field room_end missing")
}

func TestToIRObject_NestedYAML(t *testing.T) {
	obj, err := toIRObject(map[string]any{
		"outer": map[any]any{"inner": 1},
		"list":  []any{"a", true},
	})
	require.NoError(t, err)

	assert.Equal(t, ir.IRObject{"inner": ir.IRInt(1)}, obj["outer"])
	assert.Equal(t, ir.IRArray{ir.IRString("a"), ir.IRBool(true)}, obj["list"])

	_, err = toIRObject(map[string]any{"x": 1.5})
	assert.Error(t, err)
}
