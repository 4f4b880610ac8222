package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortedKeys_UTF16Order(t *testing.T) {
	obj := IRObject{
		"b":          IRInt(1),
		"a":          IRInt(2),
		"\U0001F600": IRInt(3), // surrogate pair, sorts before U+FFFD in UTF-16
		"\uFFFD":     IRInt(4),
	}
	assert.Equal(t, []string{"a", "b", "\U0001F600", "\uFFFD"}, obj.SortedKeys())
}

func TestUnmarshalIRValue(t *testing.T) {
	v, err := UnmarshalIRValue([]byte(`{"game_id":3,"name":"0x616c696365","open":true,"tags":["a",1],"none":null}`))
	require.NoError(t, err)

	obj, ok := v.(IRObject)
	require.True(t, ok)
	assert.Equal(t, IRInt(3), obj["game_id"])
	assert.Equal(t, IRString("0x616c696365"), obj["name"])
	assert.Equal(t, IRBool(true), obj["open"])
	assert.Equal(t, IRArray{IRString("a"), IRInt(1)}, obj["tags"])
	assert.Equal(t, IRNull{}, obj["none"])
}

func TestUnmarshalIRValue_RejectsFloats(t *testing.T) {
	for _, in := range []string{`1.5`, `{"a":1e3}`, `[2E1]`} {
		_, err := UnmarshalIRValue([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestIRObject_JSONRoundTrip(t *testing.T) {
	obj := Obj(
		O("room_owner_address", IRString("0xabc")),
		O("game_id", IRInt(7)),
		O("moves", IRArray{IRString("e2e4")}),
	)

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"game_id":7,"moves":["e2e4"],"room_owner_address":"0xabc"}`, string(data))

	var back IRObject
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, Equal(obj, back))
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b IRValue
		want bool
	}{
		{"same int", IRInt(1), IRInt(1), true},
		{"int vs string", IRInt(1), IRString("1"), false},
		{"felt case and padding", IRString("0x0A"), IRString("0xa"), true},
		{"plain strings differ", IRString("Awaiting"), IRString("Accepted"), false},
		{"nested objects", Obj(O("a", IRArray{IRInt(1)})), Obj(O("a", IRArray{IRInt(1)})), true},
		{"object missing key", Obj(O("a", IRInt(1))), Obj(O("b", IRInt(1))), false},
		{"array length", IRArray{IRInt(1)}, IRArray{}, false},
		{"null", IRNull{}, IRNull{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestClone_IsDeep(t *testing.T) {
	orig := Obj(O("inner", Obj(O("x", IRInt(1)))))
	cp := orig.Clone()
	cp["inner"].(IRObject)["x"] = IRInt(2)

	assert.Equal(t, IRInt(1), orig["inner"].(IRObject)["x"])
}

func TestIRObject_Accessors(t *testing.T) {
	obj := Obj(O("n", IRInt(4)), O("s", IRString("x")), O("b", IRBool(true)))

	n, ok := obj.Int("n")
	assert.True(t, ok)
	assert.Equal(t, int64(4), n)

	_, ok = obj.Int("s")
	assert.False(t, ok)

	s, ok := obj.Str("s")
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	b, ok := obj.Bool("b")
	assert.True(t, ok)
	assert.True(t, b)
}
