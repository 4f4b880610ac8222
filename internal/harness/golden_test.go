package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_InviteAndPlay(t *testing.T) {
	result, err := RunWithGolden(t, loadTestScenario(t, "invite_and_play"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %s", strings.Join(result.Errors, "\n"))
}

func TestMarshalTrace_OmitsValues(t *testing.T) {
	result, err := Run(loadTestScenario(t, "invite_and_play"))
	require.NoError(t, err)

	// Values are in the trace but not in the golden form.
	require.NotNil(t, result.Trace[1].Value)

	out, err := MarshalTrace("invite_and_play", result)
	require.NoError(t, err)
	assert.NotContains(t, string(out), `"value"`)
	assert.True(t, strings.HasPrefix(string(out), `{"scenario_name":"invite_and_play","trace":[`))
}
