package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/rlchess/internal/ir"
	"github.com/roach88/rlchess/internal/query"
	"github.com/roach88/rlchess/internal/store"
)

// evaluateAssertion dispatches one assertion by type.
func evaluateAssertion(ctx context.Context, st *store.Store, result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result, a)
	case AssertTraceOrder:
		return assertTraceOrder(result, a.Actions)
	case AssertTraceCount:
		return assertTraceCount(result, a)
	case AssertFinalState:
		return assertFinalState(ctx, st, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertTraceContains checks that some invocation of a.Action has args
// matching a.Args and, when a.Status is set, completed with that status.
func assertTraceContains(result *Result, a Assertion) error {
	seen := 0
	for i, ev := range result.Trace {
		if ev.Type != EventInvocation || ev.Action != a.Action {
			continue
		}
		seen++
		if matchSubset(ev.Args, a.Args) != nil {
			continue
		}
		if a.Status != "" {
			c, ok := result.completionFor(i)
			if !ok || c.Status != a.Status {
				continue
			}
		}
		return nil
	}
	if seen == 0 {
		return fmt.Errorf("action %s not found in trace", a.Action)
	}
	want := formatArgs(a.Args)
	if a.Status != "" {
		want += " with status " + a.Status
	}
	return fmt.Errorf("action %s invoked %d times, none matching %s", a.Action, seen, want)
}

// assertTraceOrder checks that the actions were invoked in this relative
// order. Other invocations may come in between.
func assertTraceOrder(result *Result, actions []string) error {
	next := 0
	for _, ev := range result.Trace {
		if next == len(actions) {
			break
		}
		if ev.Type == EventInvocation && ev.Action == actions[next] {
			next++
		}
	}
	if next < len(actions) {
		return fmt.Errorf("expected order %s, but %s not found after %s",
			strings.Join(actions, " -> "), actions[next], strings.Join(actions[:next], " -> "))
	}
	return nil
}

// assertTraceCount checks the number of invocations of a.Action, counting
// only those that completed with a.Status when set.
func assertTraceCount(result *Result, a Assertion) error {
	count := 0
	for i, ev := range result.Trace {
		if ev.Type != EventInvocation || ev.Action != a.Action {
			continue
		}
		if a.Status != "" {
			c, ok := result.completionFor(i)
			if !ok || c.Status != a.Status {
				continue
			}
		}
		count++
	}
	if count != a.Count {
		return fmt.Errorf("expected %s to appear %d times, found %d", a.Action, a.Count, count)
	}
	return nil
}

// assertFinalState selects synced components with a.Where and checks the
// first of them against a.Expect.
func assertFinalState(ctx context.Context, st *store.Store, a Assertion) error {
	where, err := toIRObject(a.Where)
	if err != nil {
		return fmt.Errorf("where: %w", err)
	}
	q := query.Has(a.Component)
	if len(where) > 0 {
		q = query.HasValue(a.Component, where)
	}

	rows, err := st.QueryComponents(ctx, q)
	if err != nil {
		return fmt.Errorf("query %s: %w", q, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("no %s where %s", a.Component, formatArgs(a.Where))
	}
	if err := matchSubset(rows[0].Value, a.Expect); err != nil {
		return fmt.Errorf("%s where %s: %w", a.Component, formatArgs(a.Where), err)
	}
	return nil
}

// matchSubset checks that actual holds every expected field. Felt strings
// compare by value, so "0x0a" matches "0xa".
func matchSubset(actual ir.IRObject, expected map[string]any) error {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		want, err := ir.FromAny(expected[k])
		if err != nil {
			return fmt.Errorf("field %s: %w", k, err)
		}
		got, ok := actual[k]
		if !ok {
			return fmt.Errorf("field %s missing", k)
		}
		if !valuesEqual(want, got) {
			return fmt.Errorf("field %s: expected %s, got %s", k, render(want), render(got))
		}
	}
	return nil
}

func valuesEqual(want, got ir.IRValue) bool {
	ws, wok := want.(ir.IRString)
	gs, gok := got.(ir.IRString)
	if wok && gok && ir.IsFelt(string(ws)) && ir.IsFelt(string(gs)) {
		return ir.NormalizeFelt(string(ws)) == ir.NormalizeFelt(string(gs))
	}
	return ir.Equal(want, got)
}

// toIRObject converts decoded YAML into an IRObject.
func toIRObject(m map[string]any) (ir.IRObject, error) {
	obj := make(ir.IRObject, len(m))
	for k, v := range m {
		iv, err := ir.FromAny(normalizeYAML(v))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		obj[k] = iv
	}
	return obj, nil
}

// normalizeYAML turns the map[any]any yaml may produce for nested
// mappings into map[string]any.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[fmt.Sprint(k)] = normalizeYAML(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalizeYAML(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalizeYAML(e)
		}
		return out
	default:
		return v
	}
}

func render(v ir.IRValue) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// formatArgs renders a where or args map deterministically.
func formatArgs(m map[string]any) string {
	if len(m) == 0 {
		return "(no conditions)"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(parts, " AND ")
}
