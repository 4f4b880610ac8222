package query

import (
	"fmt"
	"strings"

	"github.com/roach88/rlchess/internal/ir"
	"github.com/roach88/rlchess/internal/model"
)

// Compile converts q into parameterized SQL over the components table.
//
// The statement selects (entity_id, component, value, seq). Literals are
// always bound as parameters, including the JSON path. Every statement ends
// with ORDER BY seq, entity_id so reads are deterministic.
func Compile(q Query) (string, []any, error) {
	if err := Validate(q); err != nil {
		return "", nil, err
	}

	where := []string{"component = ?"}
	params := []any{q.Component}

	if q.Entity != "" {
		where = append(where, "entity_id = ?")
		params = append(params, q.Entity)
	}

	if q.Filter != nil {
		sql, p, err := compilePredicate(q.Component, q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		if sql != "" {
			where = append(where, sql)
			params = append(params, p...)
		}
	}

	stmt := "SELECT entity_id, component, value, seq FROM components WHERE " +
		strings.Join(where, " AND ") +
		" ORDER BY seq ASC, entity_id COLLATE BINARY ASC"
	if q.Limit > 0 {
		stmt += " LIMIT ?"
		params = append(params, q.Limit)
	}
	return stmt, params, nil
}

// compilePredicate returns "" for predicates that are always true.
func compilePredicate(component string, p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case Equals:
		param, err := literalParam(pred.Value, model.IsFeltField(component, pred.Field))
		if err != nil {
			return "", nil, fmt.Errorf("field %q: %w", pred.Field, err)
		}
		return "json_extract(value, ?) = ?", []any{"$." + pred.Field, param}, nil
	case And:
		var parts []string
		var params []any
		for _, c := range pred.Predicates {
			sql, p, err := compilePredicate(component, c)
			if err != nil {
				return "", nil, err
			}
			if sql == "" {
				continue
			}
			parts = append(parts, sql)
			params = append(params, p...)
		}
		return strings.Join(parts, " AND "), params, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// literalParam maps a literal to the value json_extract yields for it.
// JSON booleans come back as 1/0 and felt members are stored canonically.
func literalParam(v ir.IRValue, felt bool) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		s := string(val)
		if felt && ir.IsFelt(s) {
			s = ir.NormalizeFelt(s)
		}
		return s, nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, fmt.Errorf("unsupported literal %T", v)
	}
}
