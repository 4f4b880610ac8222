// Package query provides the predicate IR used to select components from the
// local entity store, both for continuous subscriptions and for one-shot
// "wait until" confirmations.
//
// A Query names one component kind and an optional Predicate over its fields.
// The same Query is evaluated two ways:
//
//	[Query] -> Matches (in memory, for updates flowing through the sync loop)
//	        -> Compile (parameterized SQLite over json_extract, for store reads)
//
// Both paths must agree. Literal values are ir.IRValue scalars; felt strings
// are compared in canonical form.
//
// Predicate is a sealed interface: only Equals and And implement it, so
// backends can switch exhaustively.
package query
