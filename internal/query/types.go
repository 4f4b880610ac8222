package query

import (
	"fmt"
	"sort"

	"github.com/roach88/rlchess/internal/ir"
)

// Predicate is a filter over component fields.
type Predicate interface {
	predicateNode()
}

// Equals matches when the field holds the literal value.
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// And matches when every predicate matches. An empty And matches everything.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Query selects components of one kind, optionally pinned to one entity.
type Query struct {
	Component string
	Entity    string    // "" for any entity
	Filter    Predicate // nil for no filter
	Limit     int       // 0 for no limit; only used by Compile
}

// Has selects every component of the given kind.
func Has(component string) Query {
	return Query{Component: component}
}

// HasValue selects components whose fields equal the given values.
// Fields are ANDed in sorted key order so the compiled SQL is stable.
func HasValue(component string, fields ir.IRObject) Query {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	preds := make([]Predicate, 0, len(keys))
	for _, k := range keys {
		preds = append(preds, Equals{Field: k, Value: fields[k]})
	}
	return Query{Component: component, Filter: And{Predicates: preds}}
}

// ForEntity returns a copy of q pinned to one entity.
func (q Query) ForEntity(entityID string) Query {
	q.Entity = entityID
	return q
}

// String renders the query for logs.
func (q Query) String() string {
	s := q.Component
	if q.Entity != "" {
		s += "[" + q.Entity + "]"
	}
	if q.Filter != nil {
		s += describe(q.Filter)
	}
	return s
}

func describe(p Predicate) string {
	switch pred := p.(type) {
	case Equals:
		b, err := ir.MarshalIRValue(pred.Value)
		if err != nil {
			return fmt.Sprintf("{%s=?}", pred.Field)
		}
		return fmt.Sprintf("{%s=%s}", pred.Field, b)
	case And:
		s := ""
		for _, c := range pred.Predicates {
			s += describe(c)
		}
		return s
	default:
		return "{?}"
	}
}

// Validate rejects queries neither backend can evaluate: empty component
// names, field names outside [a-z0-9_], and non-scalar literals.
func Validate(q Query) error {
	if q.Component == "" {
		return fmt.Errorf("query: component is required")
	}
	if !isIdent(q.Component, true) {
		return fmt.Errorf("query: invalid component name %q", q.Component)
	}
	if q.Limit < 0 {
		return fmt.Errorf("query: negative limit")
	}
	if q.Filter == nil {
		return nil
	}
	return validatePredicate(q.Filter)
}

func validatePredicate(p Predicate) error {
	switch pred := p.(type) {
	case Equals:
		if !isIdent(pred.Field, false) {
			return fmt.Errorf("query: invalid field name %q", pred.Field)
		}
		switch pred.Value.(type) {
		case ir.IRString, ir.IRInt, ir.IRBool:
			return nil
		default:
			return fmt.Errorf("query: field %q: unsupported literal %T", pred.Field, pred.Value)
		}
	case And:
		for _, c := range pred.Predicates {
			if err := validatePredicate(c); err != nil {
				return err
			}
		}
		return nil
	case nil:
		return fmt.Errorf("query: nil predicate")
	default:
		return fmt.Errorf("query: unsupported predicate %T", p)
	}
}

// isIdent accepts snake_case field names, and CamelCase when upper is true.
func isIdent(s string, upper bool) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		case upper && r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}
