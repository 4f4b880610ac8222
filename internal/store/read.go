package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/rlchess/internal/query"
)

// GetComponent returns one component value. The bool is false when the
// entity has no such component yet.
func (s *Store) GetComponent(ctx context.Context, entityID, component string) (Component, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT c.entity_id, c.component, c.value, c.seq, e.keys
		FROM components c
		JOIN entities e ON e.entity_id = c.entity_id
		WHERE c.entity_id = ? AND c.component = ?
	`, entityID, component)

	var c Component
	var valueJSON, keysJSON string
	if err := row.Scan(&c.EntityID, &c.Component, &valueJSON, &c.Seq, &keysJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Component{}, false, nil
		}
		return Component{}, false, fmt.Errorf("get component: %w", err)
	}
	if err := c.decode(valueJSON, keysJSON); err != nil {
		return Component{}, false, fmt.Errorf("get component: %w", err)
	}
	return c, true, nil
}

// QueryComponents returns every component matching q.
// Results are ordered by seq ASC, entity_id COLLATE BINARY ASC.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) QueryComponents(ctx context.Context, q query.Query) ([]Component, error) {
	stmt, params, err := query.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("query components: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, stmt, params...)
	if err != nil {
		return nil, fmt.Errorf("query components: %w", err)
	}
	defer rows.Close()

	out := []Component{}
	for rows.Next() {
		var c Component
		var valueJSON string
		if err := rows.Scan(&c.EntityID, &c.Component, &valueJSON, &c.Seq); err != nil {
			return nil, fmt.Errorf("scan component: %w", err)
		}
		if err := c.decode(valueJSON, ""); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate components: %w", err)
	}
	return out, nil
}

// ListComponents returns every stored component of one kind.
func (s *Store) ListComponents(ctx context.Context, component string) ([]Component, error) {
	return s.QueryComponents(ctx, query.Has(component))
}

// MaxSeq returns the highest applied seq, or 0 for an empty store.
// The sync loop resumes its clock from here.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM components`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq.Int64, nil
}

// GetTransaction returns one journal row.
func (s *Store) GetTransaction(ctx context.Context, txHash string) (TxRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tx_hash, action, sender, contract, entrypoint, calldata, status, detail, correlation_id, submitted_at, updated_at
		FROM transactions
		WHERE tx_hash = ?
	`, txHash)

	r, err := scanTx(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TxRecord{}, false, nil
		}
		return TxRecord{}, false, fmt.Errorf("get transaction: %w", err)
	}
	return r, true, nil
}

// ListTransactions returns journal rows oldest first. limit <= 0 means all.
func (s *Store) ListTransactions(ctx context.Context, limit int) ([]TxRecord, error) {
	stmt := `
		SELECT tx_hash, action, sender, contract, entrypoint, calldata, status, detail, correlation_id, submitted_at, updated_at
		FROM transactions
		ORDER BY submitted_at ASC, tx_hash COLLATE BINARY ASC
	`
	var args []any
	if limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []TxRecord{}
	for rows.Next() {
		r, err := scanTx(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTx(row scanner) (TxRecord, error) {
	var r TxRecord
	var calldata, status string
	if err := row.Scan(&r.TxHash, &r.Action, &r.Sender, &r.Contract, &r.Entrypoint,
		&calldata, &status, &r.Detail, &r.CorrelationID, &r.SubmittedAt, &r.UpdatedAt); err != nil {
		return TxRecord{}, err
	}
	if err := json.Unmarshal([]byte(calldata), &r.Calldata); err != nil {
		return TxRecord{}, fmt.Errorf("decode calldata: %w", err)
	}
	r.Status = TxStatus(status)
	return r, nil
}

func (c *Component) decode(valueJSON, keysJSON string) error {
	if err := json.Unmarshal([]byte(valueJSON), &c.Value); err != nil {
		return fmt.Errorf("decode value of %s/%s: %w", c.EntityID, c.Component, err)
	}
	if keysJSON != "" {
		if err := json.Unmarshal([]byte(keysJSON), &c.Keys); err != nil {
			return fmt.Errorf("decode keys of %s: %w", c.EntityID, err)
		}
	}
	return nil
}
