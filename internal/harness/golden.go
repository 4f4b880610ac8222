package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rlchess/internal/ir"
)

// TraceSnapshot is the golden form of a scenario run.
//
// Component values are left out: they are checked by expect clauses and
// final_state assertions, and would otherwise tie the golden files to
// details such as FEN counters.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
}

// canonical converts the snapshot into an IR tree for canonical JSON.
func (s *TraceSnapshot) canonical() ir.IRObject {
	trace := make(ir.IRArray, len(s.Trace))
	for i, ev := range s.Trace {
		obj := ir.IRObject{
			"type":   ir.IRString(ev.Type),
			"seq":    ir.IRInt(ev.Seq),
			"action": ir.IRString(ev.Action),
		}
		setString(obj, "as", ev.As)
		if ev.Type == EventInvocation {
			args := ev.Args
			if args == nil {
				args = ir.IRObject{}
			}
			obj["args"] = args
		}
		setString(obj, "status", ev.Status)
		setString(obj, "stage", ev.Stage)
		setString(obj, "tx_hash", ev.TxHash)
		setString(obj, "component", ev.Component)
		setString(obj, "entity_id", ev.EntityID)
		setString(obj, "error", ev.Error)
		trace[i] = obj
	}
	return ir.IRObject{
		"scenario_name": ir.IRString(s.ScenarioName),
		"trace":         trace,
	}
}

func setString(obj ir.IRObject, key, v string) {
	if v != "" {
		obj[key] = ir.IRString(v)
	}
}

// MarshalTrace renders a result's trace as canonical JSON.
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: scenarioName, Trace: result.Trace}
	return ir.MarshalCanonical(snapshot.canonical())
}

// RunWithGolden executes a scenario and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
