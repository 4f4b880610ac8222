// Package store provides SQLite-backed storage for locally synced entity
// state and the journal of submitted transactions.
//
// Tables:
//   - entities: one row per entity id with the felt keys it was derived from
//   - components: latest value of each (entity, component) pair
//   - transactions: every action submitted by this client and its outcome
//
// # Invariants
//
// Single writer for components:
//   - Only the sync apply loop calls UpsertComponent. Everything else reads.
//   - There is no delete path; a component changes only when overwritten.
//
// Sequence ordering:
//   - Every component row carries the apply-loop seq that wrote it.
//   - An upsert with a seq not greater than the stored one is ignored, so a
//     replayed or reordered update can never roll state back.
//   - All reads order by seq ASC, entity_id COLLATE BINARY ASC.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: components must reference a known entity
package store
