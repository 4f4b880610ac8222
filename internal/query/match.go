package query

import (
	"github.com/roach88/rlchess/internal/ir"
	"github.com/roach88/rlchess/internal/model"
)

// Matches evaluates q against one component value in memory.
func (q Query) Matches(component, entityID string, value ir.IRObject) bool {
	if component != q.Component {
		return false
	}
	if q.Entity != "" && q.Entity != entityID {
		return false
	}
	if q.Filter == nil {
		return true
	}
	return evaluate(q.Component, q.Filter, value)
}

func evaluate(component string, p Predicate, value ir.IRObject) bool {
	switch pred := p.(type) {
	case Equals:
		got, ok := value[pred.Field]
		if !ok {
			return false
		}
		return fieldEqual(component, pred.Field, got, pred.Value)
	case And:
		for _, c := range pred.Predicates {
			if !evaluate(component, c, value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// fieldEqual compares strings of non-felt members exactly; everything else
// goes through ir.Equal.
func fieldEqual(component, field string, got, want ir.IRValue) bool {
	gs, gok := got.(ir.IRString)
	ws, wok := want.(ir.IRString)
	if gok && wok && !model.IsFeltField(component, field) {
		return gs == ws
	}
	return ir.Equal(got, want)
}
