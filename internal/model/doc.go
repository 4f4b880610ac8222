// Package model defines the on-chain components the client mirrors locally:
// Player, Game, GameState and GameFormat, plus the enums they carry.
//
// Components travel as ir.IRObject values. The Decode* functions turn those
// objects into typed structs and Object methods turn them back. Enum fields are
// stored by option name ("Awaiting"); decoders also accept the variant index.
package model
