// Package entitysync mirrors on-chain component state into the local store.
//
// The Service is a single-writer event loop. Indexer feeds call Apply from
// any goroutine; Run dequeues updates in FIFO order, stamps each with a
// strictly increasing seq, writes it to the store and then notifies:
//
//   - Subscriptions: continuous streams of matching updates (UI binding).
//   - Watches: one-shot "wait until" confirmations used after a transaction.
//
// CRITICAL: All store writes happen in the Run goroutine. Nothing else in
// the client writes components, so readers never race a second writer.
//
// A Watch resolves exactly once. Subscriptions never block the loop: an
// update that does not fit in a subscriber's buffer is dropped and counted.
package entitysync
