package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rlchess/internal/ir"
	"github.com/roach88/rlchess/internal/lobby"
	"github.com/roach88/rlchess/internal/model"
)

// Scenario is a scripted lobby session run against a simulated chain.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Accounts maps signer names used in the flow to account addresses.
	Accounts map[string]string `yaml:"accounts"`

	// Flow lists the actions to run, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and synced state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// FlowStep invokes one lobby action as one account.
type FlowStep struct {
	// As names the signing account (a key of Scenario.Accounts).
	As string `yaml:"as"`

	// Invoke is the action name, e.g. "register_player".
	Invoke string `yaml:"invoke"`

	// Args are the action arguments. Address arguments may name an account.
	Args map[string]any `yaml:"args"`

	// Expect checks the action result. Nil expects "confirmed".
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected action result.
type ExpectClause struct {
	// Status is the expected result status, e.g. "confirmed" or "rejected".
	Status string `yaml:"status"`

	// Stage is the expected stage, checked when set.
	Stage string `yaml:"stage,omitempty"`

	// Error must be a substring of the result error, checked when set.
	Error string `yaml:"error,omitempty"`

	// Value is a subset match against the confirming component value.
	Value map[string]any `yaml:"value,omitempty"`
}

// Assertion validates the trace or the final synced state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Action names the action (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Args are matched as a subset of the invocation args (trace_contains).
	Args map[string]any `yaml:"args,omitempty"`

	// Status, when set, must be the status the matched invocation completed
	// with (trace_contains, trace_count).
	Status string `yaml:"status,omitempty"`

	// Count is the expected number of invocations (trace_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected invocation order (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Component is the synced component to query (final_state).
	Component string `yaml:"component,omitempty"`

	// Where selects components by field equality (final_state).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect is matched as a subset of the selected value (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// Actions a flow step may invoke.
var knownActions = []string{
	string(lobby.ActionRegisterPlayer),
	string(lobby.ActionUpdatePlayer),
	string(lobby.ActionInvite),
	string(lobby.ActionReplyInvite),
	string(lobby.ActionCreateGame),
	string(lobby.ActionJoinGame),
	string(lobby.ActionStartGame),
	string(lobby.ActionMakeMove),
}

var knownStatuses = []string{
	string(lobby.StatusConfirmed),
	string(lobby.StatusRejected),
	string(lobby.StatusTimedOut),
	string(lobby.StatusCanceled),
	string(lobby.StatusFailed),
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Accounts) == 0 {
		return fmt.Errorf("accounts map is required and must be non-empty")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for name, addr := range s.Accounts {
		if !ir.IsFelt(addr) {
			return fmt.Errorf("accounts.%s: %q is not a 0x felt", name, addr)
		}
	}

	for i, step := range s.Flow {
		if step.As == "" {
			return fmt.Errorf("flow[%d]: as is required", i)
		}
		if _, ok := s.Accounts[step.As]; !ok {
			return fmt.Errorf("flow[%d]: unknown account %q", i, step.As)
		}
		if !slices.Contains(knownActions, step.Invoke) {
			return fmt.Errorf("flow[%d]: unknown action %q", i, step.Invoke)
		}
		if step.Args == nil {
			return fmt.Errorf("flow[%d]: args is required (use empty map if no args)", i)
		}
		if step.Expect != nil && !slices.Contains(knownStatuses, step.Expect.Status) {
			return fmt.Errorf("flow[%d].expect: unknown status %q", i, step.Expect.Status)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Status != "" && !slices.Contains(knownStatuses, a.Status) {
		return fmt.Errorf("assertions[%d]: unknown status %q", index, a.Status)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if !slices.Contains(model.Components(), a.Component) {
			return fmt.Errorf("assertions[%d]: unknown component %q for final_state", index, a.Component)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
