package harness

import "github.com/roach88/rlchess/internal/ir"

// Trace event types.
const (
	EventInvocation = "invocation"
	EventCompletion = "completion"
)

// TraceEvent is one entry of a scenario trace: an action invocation or the
// result it completed with.
type TraceEvent struct {
	Type   string      `json:"type"` // "invocation" or "completion"
	Seq    int64       `json:"seq"`
	Action string      `json:"action"`
	As     string      `json:"as,omitempty"`
	Args   ir.IRObject `json:"args,omitempty"`

	Status    string      `json:"status,omitempty"`
	Stage     string      `json:"stage,omitempty"`
	TxHash    string      `json:"tx_hash,omitempty"`
	Component string      `json:"component,omitempty"`
	EntityID  string      `json:"entity_id,omitempty"`
	Value     ir.IRObject `json:"value,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds invocations and completions in order.
	Trace []TraceEvent `json:"trace"`

	// Errors lists failed expectations. Empty when Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failed expectation and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// completionFor returns the completion following the invocation at index i.
func (r *Result) completionFor(i int) (TraceEvent, bool) {
	if i+1 < len(r.Trace) && r.Trace[i+1].Type == EventCompletion {
		return r.Trace[i+1], true
	}
	return TraceEvent{}, false
}
