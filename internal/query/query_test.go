package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rlchess/internal/ir"
)

func TestHasValue_Matches(t *testing.T) {
	q := HasValue("Game", ir.Obj(
		ir.O("game_id", ir.IRInt(3)),
		ir.O("invite_state", ir.IRString("Accepted")),
	))

	game := ir.Obj(
		ir.O("game_id", ir.IRInt(3)),
		ir.O("invite_state", ir.IRString("Accepted")),
		ir.O("room_owner_address", ir.IRString("0x1")),
	)
	assert.True(t, q.Matches("Game", "0xe1", game))
	assert.False(t, q.Matches("GameState", "0xe1", game), "component must match")

	game["invite_state"] = ir.IRString("Rejected")
	assert.False(t, q.Matches("Game", "0xe1", game))

	delete(game, "invite_state")
	assert.False(t, q.Matches("Game", "0xe1", game), "missing field never matches")
}

func TestMatches_FeltCanonicalForm(t *testing.T) {
	q := HasValue("Player", ir.Obj(ir.O("address", ir.IRString("0x00ABC"))))
	assert.True(t, q.Matches("Player", "e", ir.Obj(ir.O("address", ir.IRString("0xabc")))))
}

func TestMatches_NonFeltStringExact(t *testing.T) {
	player := ir.Obj(ir.O("profile_pic_uri", ir.IRString("0x0A")))
	assert.True(t, HasValue("Player", ir.Obj(ir.O("profile_pic_uri", ir.IRString("0x0A")))).Matches("Player", "e", player))
	assert.False(t, HasValue("Player", ir.Obj(ir.O("profile_pic_uri", ir.IRString("0xa")))).Matches("Player", "e", player),
		"hex-looking text outside felt members is compared verbatim")
}

func TestCompile_FeltNormalizationFollowsMember(t *testing.T) {
	_, params, err := Compile(HasValue("Player", ir.Obj(ir.O("profile_pic_uri", ir.IRString("0x0A")))))
	require.NoError(t, err)
	assert.Equal(t, []any{"Player", "$.profile_pic_uri", "0x0A"}, params)

	_, params, err = Compile(HasValue("Player", ir.Obj(ir.O("address", ir.IRString("0x0A")))))
	require.NoError(t, err)
	assert.Equal(t, []any{"Player", "$.address", "0xa"}, params)
}

func TestHas_MatchesAnyValue(t *testing.T) {
	q := Has("Player")
	assert.True(t, q.Matches("Player", "e", ir.IRObject{}))

	pinned := q.ForEntity("e1")
	assert.True(t, pinned.Matches("Player", "e1", ir.IRObject{}))
	assert.False(t, pinned.Matches("Player", "e2", ir.IRObject{}))
	assert.Equal(t, "", q.Entity, "ForEntity returns a copy")
}

func TestEmptyAnd_MatchesEverything(t *testing.T) {
	q := Query{Component: "Game", Filter: And{}}
	assert.True(t, q.Matches("Game", "e", ir.Obj(ir.O("x", ir.IRInt(1)))))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		q       Query
		wantErr bool
	}{
		{"has", Has("GameState"), false},
		{"has value", HasValue("Game", ir.Obj(ir.O("game_id", ir.IRInt(1)))), false},
		{"empty component", Query{}, true},
		{"bad component", Has("Game; DROP"), true},
		{"bad field", HasValue("Game", ir.Obj(ir.O("game_id')", ir.IRInt(1)))), true},
		{"field starts with digit", HasValue("Game", ir.Obj(ir.O("1x", ir.IRInt(1)))), true},
		{"object literal", HasValue("Game", ir.Obj(ir.O("x", ir.IRObject{}))), true},
		{"null literal", HasValue("Game", ir.Obj(ir.O("x", ir.IRNull{}))), true},
		{"negative limit", Query{Component: "Game", Limit: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.q)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCompile(t *testing.T) {
	q := HasValue("Game", ir.Obj(
		ir.O("invite_state", ir.IRString("Awaiting")),
		ir.O("game_id", ir.IRInt(3)),
		ir.O("room_owner_address", ir.IRString("0x0AB")),
		ir.O("open", ir.IRBool(true)),
	))

	sql, params, err := Compile(q)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT entity_id, component, value, seq FROM components WHERE component = ? AND "+
			"json_extract(value, ?) = ? AND json_extract(value, ?) = ? AND "+
			"json_extract(value, ?) = ? AND json_extract(value, ?) = ? "+
			"ORDER BY seq ASC, entity_id COLLATE BINARY ASC",
		sql)
	assert.Equal(t, []any{
		"Game",
		"$.game_id", int64(3),
		"$.invite_state", "Awaiting",
		"$.open", int64(1),
		"$.room_owner_address", "0xab",
	}, params)
}

func TestCompile_EntityAndLimit(t *testing.T) {
	q := Has("Player").ForEntity("0xe")
	q.Limit = 1

	sql, params, err := Compile(q)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT entity_id, component, value, seq FROM components WHERE component = ? AND entity_id = ? "+
			"ORDER BY seq ASC, entity_id COLLATE BINARY ASC LIMIT ?",
		sql)
	assert.Equal(t, []any{"Player", "0xe", 1}, params)
}

func TestCompile_RejectsInvalid(t *testing.T) {
	_, _, err := Compile(HasValue("Game", ir.Obj(ir.O("a-b", ir.IRInt(1)))))
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	q := HasValue("Game", ir.Obj(ir.O("game_id", ir.IRInt(3))))
	assert.Equal(t, "Game{game_id=3}", q.String())
	assert.Equal(t, "Player[0xe]", Has("Player").ForEntity("0xe").String())
}
