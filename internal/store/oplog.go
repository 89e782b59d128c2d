package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/starmatch/internal/batcher"
)

// RecordTransition upserts op's latest state and appends t.
// Implements batcher.Recorder.
//
// Appending a transition with an existing seq is a no-op, so a replayed
// record cannot duplicate log entries.
func (s *Store) RecordTransition(ctx context.Context, op batcher.Operation, t batcher.Transition) error {
	levelsJSON, err := marshalInts(op.Levels)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	starsJSON, err := marshalInts(op.Stars)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO write_operations
		(id, content_id, seq, player_id, levels, stars, sponsored, state, error_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sponsored = excluded.sponsored,
			state = excluded.state,
			error_reason = excluded.error_reason
	`,
		op.ID,
		op.ContentID,
		op.Seq,
		op.PlayerID,
		levelsJSON,
		starsJSON,
		op.Sponsored,
		string(op.State),
		op.ErrorReason,
	)
	if err != nil {
		return fmt.Errorf("record operation %s: %w", op.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO operation_transitions (seq, operation_id, from_state, to_state, reason)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`, t.Seq, t.OperationID, string(t.From), string(t.To), t.Reason)
	if err != nil {
		return fmt.Errorf("record transition %d: %w", t.Seq, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// Operations returns the logged operations for playerID in log order.
// An empty playerID lists every player.
func (s *Store) Operations(ctx context.Context, playerID string) ([]batcher.Operation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content_id, seq, player_id, levels, stars, sponsored, state, error_reason
		FROM write_operations
		WHERE ? = '' OR player_id = ?
		ORDER BY seq ASC, id ASC COLLATE BINARY
	`, playerID, playerID)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	var ops []batcher.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return ops, nil
}

// Transitions returns the lifecycle log of one operation in order.
func (s *Store) Transitions(ctx context.Context, operationID string) ([]batcher.Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, operation_id, from_state, to_state, reason
		FROM operation_transitions
		WHERE operation_id = ?
		ORDER BY seq ASC
	`, operationID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var ts []batcher.Transition
	for rows.Next() {
		var t batcher.Transition
		var from, to string
		if err := rows.Scan(&t.Seq, &t.OperationID, &from, &to, &t.Reason); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.From, t.To = batcher.State(from), batcher.State(to)
		ts = append(ts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return ts, nil
}

// LastSeq returns the highest sequence number in the log, 0 if empty.
// Used to resume the batcher's clock across restarts.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM (
			SELECT seq FROM operation_transitions
			UNION ALL
			SELECT seq FROM write_operations
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

func scanOperation(rows *sql.Rows) (batcher.Operation, error) {
	var (
		op                    batcher.Operation
		levelsJSON, starsJSON string
		state                 string
	)
	err := rows.Scan(
		&op.ID,
		&op.ContentID,
		&op.Seq,
		&op.PlayerID,
		&levelsJSON,
		&starsJSON,
		&op.Sponsored,
		&state,
		&op.ErrorReason,
	)
	if err != nil {
		return batcher.Operation{}, fmt.Errorf("scan operation: %w", err)
	}
	op.State = batcher.State(state)
	if op.Levels, err = unmarshalInts(levelsJSON); err != nil {
		return batcher.Operation{}, fmt.Errorf("operation %s levels: %w", op.ID, err)
	}
	if op.Stars, err = unmarshalInts(starsJSON); err != nil {
		return batcher.Operation{}, fmt.Errorf("operation %s stars: %w", op.ID, err)
	}
	return op, nil
}
