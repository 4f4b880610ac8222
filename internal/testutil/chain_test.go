package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMulticall(t *testing.T) {
	calls, err := decodeMulticall([]string{"0x2", "0xA", "0x5", "0x1", "0x7", "0xb", "0x6", "0x0"})
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, ChainCall{To: "0xa", Selector: "0x5", Calldata: []string{"0x7"}}, calls[0])
	assert.Equal(t, "0xb", calls[1].To)
	assert.Empty(t, calls[1].Calldata)
}

func TestDecodeMulticall_Truncated(t *testing.T) {
	for _, cd := range [][]string{
		{},
		{"0x1", "0xa"},
		{"0x1", "0xa", "0x5", "0x3", "0x1"},
		{"zz"},
	} {
		_, err := decodeMulticall(cd)
		assert.Error(t, err, "%v", cd)
	}
}

func TestManualClock(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewManualClock(start)
	assert.Equal(t, start, c.Now())
	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())
}

func TestStubSigner(t *testing.T) {
	s := &StubSigner{Addr: "0xabc"}
	sig, err := s.Sign(make([]byte, 32))
	require.NoError(t, err)
	assert.Len(t, sig, 65)
	assert.Equal(t, int64(1), s.Signed())

	a, _ := s.Sign([]byte{1})
	b, _ := s.Sign([]byte{1})
	assert.Equal(t, a, b)
}

func TestFixedIDGenerator(t *testing.T) {
	assert.Equal(t, "test-id", NewFixedIDGenerator("").Generate())
	g := NewFixedIDGenerator("corr-1")
	assert.Equal(t, g.Generate(), g.Generate())
}
