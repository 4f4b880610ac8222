package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/rlchess/internal/ir"
)

// UpsertComponent writes the latest value of a component.
//
// The entity row is created on first sight (ON CONFLICT DO NOTHING). The
// component row is replaced only when c.Seq is greater than the stored seq;
// stale writes are ignored. Returns true when the row changed.
//
// Both writes happen in one transaction.
func (s *Store) UpsertComponent(ctx context.Context, c Component) (bool, error) {
	if c.EntityID == "" || c.Component == "" {
		return false, fmt.Errorf("upsert component: entity id and component are required")
	}

	keysJSON, err := marshalKeys(c.Keys)
	if err != nil {
		return false, fmt.Errorf("upsert component: %w", err)
	}
	valueJSON, err := marshalValue(c.Value)
	if err != nil {
		return false, fmt.Errorf("upsert component: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("upsert component: begin: %w", err)
	}
	defer tx.Rollback() // No-op after Commit

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO entities (entity_id, keys, first_seq)
		VALUES (?, ?, ?)
		ON CONFLICT(entity_id) DO NOTHING
	`, c.EntityID, keysJSON, c.Seq); err != nil {
		return false, fmt.Errorf("upsert component: entity: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO components (entity_id, component, value, seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entity_id, component) DO UPDATE
		SET value = excluded.value, seq = excluded.seq
		WHERE excluded.seq > components.seq
	`, c.EntityID, c.Component, valueJSON, c.Seq)
	if err != nil {
		return false, fmt.Errorf("upsert component: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert component: rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("upsert component: commit: %w", err)
	}
	return n > 0, nil
}

// RecordTransaction journals a submitted transaction.
// Duplicate hashes are ignored for idempotency.
func (s *Store) RecordTransaction(ctx context.Context, r TxRecord) error {
	calldata, err := json.Marshal(nonNil(r.Calldata))
	if err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions
		(tx_hash, action, sender, contract, entrypoint, calldata, status, detail, correlation_id, submitted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_hash) DO NOTHING
	`,
		r.TxHash,
		r.Action,
		r.Sender,
		r.Contract,
		r.Entrypoint,
		string(calldata),
		string(r.Status),
		r.Detail,
		r.CorrelationID,
		r.SubmittedAt,
		r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}
	return nil
}

// UpdateTransactionStatus sets the final status of a journaled transaction.
// Returns an error if the hash is unknown.
func (s *Store) UpdateTransactionStatus(ctx context.Context, txHash string, status TxStatus, detail string, updatedAt int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET status = ?, detail = ?, updated_at = ?
		WHERE tx_hash = ?
	`, string(status), detail, updatedAt, txHash)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", txHash, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", txHash, err)
	}
	if n == 0 {
		return fmt.Errorf("update transaction %s: not found", txHash)
	}
	return nil
}

func marshalKeys(keys ir.IRArray) (string, error) {
	if keys == nil {
		keys = ir.IRArray{}
	}
	b, err := ir.MarshalCanonical(keys)
	if err != nil {
		return "", fmt.Errorf("marshal keys: %w", err)
	}
	return string(b), nil
}

func marshalValue(v ir.IRObject) (string, error) {
	if v == nil {
		v = ir.IRObject{}
	}
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(b), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
