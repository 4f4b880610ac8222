package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: test_scenario
description: "Alice registers"
accounts:
  alice: "0xa11ce"
flow:
  - as: alice
    invoke: register_player
    args:
      name: alice
assertions:
  - type: trace_contains
    action: register_player
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "0xa11ce", scenario.Accounts["alice"])
	require.Len(t, scenario.Flow, 1)
	assert.Equal(t, "register_player", scenario.Flow[0].Invoke)
	assert.Equal(t, "alice", scenario.Flow[0].As)
	assert.Equal(t, "alice", scenario.Flow[0].Args["name"])
	assert.Nil(t, scenario.Flow[0].Expect)
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_TestdataScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadScenario(path)
			require.NoError(t, err)
		})
	}
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown field",
			content: minimalScenario + "assertion: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name: "missing name",
			content: `
description: d
accounts: {alice: "0x1"}
flow: [{as: alice, invoke: create_game, args: {game_format_id: 1}}]
`,
			wantErr: "name is required",
		},
		{
			name: "missing accounts",
			content: `
name: n
description: d
flow: [{as: alice, invoke: create_game, args: {game_format_id: 1}}]
`,
			wantErr: "accounts map is required",
		},
		{
			name: "bad address",
			content: `
name: n
description: d
accounts: {alice: "alice"}
flow: [{as: alice, invoke: create_game, args: {game_format_id: 1}}]
`,
			wantErr: "is not a 0x felt",
		},
		{
			name: "unknown signer",
			content: `
name: n
description: d
accounts: {alice: "0x1"}
flow: [{as: bob, invoke: create_game, args: {game_format_id: 1}}]
`,
			wantErr: `unknown account "bob"`,
		},
		{
			name: "unknown action",
			content: `
name: n
description: d
accounts: {alice: "0x1"}
flow: [{as: alice, invoke: resign, args: {}}]
`,
			wantErr: `unknown action "resign"`,
		},
		{
			name: "missing args",
			content: `
name: n
description: d
accounts: {alice: "0x1"}
flow: [{as: alice, invoke: create_game}]
`,
			wantErr: "args is required",
		},
		{
			name: "unknown expected status",
			content: `
name: n
description: d
accounts: {alice: "0x1"}
flow: [{as: alice, invoke: create_game, args: {game_format_id: 1}, expect: {status: ok}}]
`,
			wantErr: `unknown status "ok"`,
		},
		{
			name: "final_state without expect",
			content: `
name: n
description: d
accounts: {alice: "0x1"}
flow: [{as: alice, invoke: create_game, args: {game_format_id: 1}}]
assertions: [{type: final_state, component: Game}]
`,
			wantErr: "expect is required for final_state",
		},
		{
			name: "final_state unknown component",
			content: `
name: n
description: d
accounts: {alice: "0x1"}
flow: [{as: alice, invoke: create_game, args: {game_format_id: 1}}]
assertions: [{type: final_state, component: Board, expect: {x: 1}}]
`,
			wantErr: `unknown component "Board"`,
		},
		{
			name: "unknown assertion type",
			content: `
name: n
description: d
accounts: {alice: "0x1"}
flow: [{as: alice, invoke: create_game, args: {game_format_id: 1}}]
assertions: [{type: trace_absent, action: create_game}]
`,
			wantErr: `unknown assertion type "trace_absent"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
