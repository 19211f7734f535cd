package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/fintrack/internal/bus"
	"github.com/roach88/fintrack/internal/ir"
)

// WriteExecution inserts an execution. Duplicate IDs are ignored.
func (j *Journal) WriteExecution(ctx context.Context, ex ir.Execution) error {
	return writeExecution(ctx, j.db, ex)
}

func writeExecution(ctx context.Context, db execer, ex ir.Execution) error {
	query, err := marshalQuery(ex.Query)
	if err != nil {
		return fmt.Errorf("write execution: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO executions
		(id, flow_token, store, method, path, query, forced, seq, cause_execution_id, cause_source, cause_topic)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		ex.ID,
		ex.FlowToken,
		ex.Store,
		string(ex.Method),
		ex.Path,
		query,
		ex.Forced,
		ex.Seq,
		ex.Cause.ExecutionID,
		ex.Cause.Source,
		string(ex.Cause.Topic),
	)
	if err != nil {
		return fmt.Errorf("write execution: %w", err)
	}
	return nil
}

// WriteSettlement records an execution's outcome. The execution must
// exist. A second settlement for the same execution is ignored.
func (j *Journal) WriteSettlement(ctx context.Context, s ir.Settlement, durationMS int64) error {
	return writeSettlement(ctx, j.db, s, durationMS)
}

func writeSettlement(ctx context.Context, db execer, s ir.Settlement, durationMS int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO settlements
		(execution_id, outcome, status, message, duration_ms, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		s.ExecutionID,
		string(s.Outcome),
		s.Status,
		s.Message,
		durationMS,
		s.Seq,
	)
	if err != nil {
		return fmt.Errorf("write settlement: %w", err)
	}
	return nil
}

// WriteSkip records a cache-skipped execution and its settlement in one
// transaction.
func (j *Journal) WriteSkip(ctx context.Context, ex ir.Execution) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write skip: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := writeExecution(ctx, tx, ex); err != nil {
		return err
	}
	if err := writeSettlement(ctx, tx, ir.Settlement{
		ExecutionID: ex.ID,
		Outcome:     ir.OutcomeSkipped,
		Seq:         ex.Seq,
	}, 0); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write skip: commit: %w", err)
	}
	return nil
}

// WriteFiring records an invalidation refresh. It reports whether a new
// row was inserted; a repeated firing is ignored.
func (j *Journal) WriteFiring(ctx context.Context, f bus.Firing) (bool, error) {
	res, err := j.db.ExecContext(ctx, `
		INSERT INTO firings
		(flow_token, cause_execution_id, source, topic, subscriber, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(flow_token, cause_execution_id, topic, subscriber) DO NOTHING
	`,
		f.FlowToken,
		f.Cause.ExecutionID,
		f.Cause.Source,
		string(f.Cause.Topic),
		f.Subscriber,
		f.Seq,
	)
	if err != nil {
		return false, fmt.Errorf("write firing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write firing: rows affected: %w", err)
	}
	return n > 0, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func marshalQuery(q ir.IRObject) (string, error) {
	if q == nil {
		q = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(q)
	if err != nil {
		return "", fmt.Errorf("marshal query: %w", err)
	}
	return string(data), nil
}

func unmarshalQuery(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var q ir.IRObject
	if err := q.UnmarshalJSON([]byte(data)); err != nil {
		return nil, fmt.Errorf("unmarshal query: %w", err)
	}
	return q, nil
}
