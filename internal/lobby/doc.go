// Package lobby submits player and game actions to the chess contracts.
//
// Every action follows the same flow:
//
//  1. Encode the calldata and the predicate the resulting state must satisfy.
//  2. Register a watch on the sync service for that predicate.
//  3. Sign and submit the transaction, then journal it.
//  4. Wait for the receipt, then for the watch.
//
// The watch is registered before submission, so the confirming update cannot
// slip past between submit and wait. Actions never return an error value or
// panic: every outcome, including a recovered panic, is reported as a Result
// with a Status and the Stage it reached.
package lobby
