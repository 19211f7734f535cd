package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/fintrack/internal/bus"
	"github.com/roach88/fintrack/internal/ir"
)

// Trace is everything journaled for one flow.
type Trace struct {
	FlowToken   string          `json:"flow_token"`
	Executions  []ir.Execution  `json:"executions"`
	Settlements []ir.Settlement `json:"settlements"`
	Firings     []bus.Firing    `json:"firings"`
}

// Outcome returns the settlement of execution id, if any.
func (t Trace) Outcome(id string) (ir.Settlement, bool) {
	for _, s := range t.Settlements {
		if s.ExecutionID == id {
			return s, true
		}
	}
	return ir.Settlement{}, false
}

// ReadFlow returns the executions, settlements and firings of a flow.
// Slices are empty, not nil, when nothing was journaled.
func (j *Journal) ReadFlow(ctx context.Context, flowToken string) (Trace, error) {
	t := Trace{FlowToken: flowToken}

	var err error
	if t.Executions, err = j.readExecutions(ctx, flowToken); err != nil {
		return Trace{}, err
	}
	if t.Settlements, err = j.readSettlements(ctx, flowToken); err != nil {
		return Trace{}, err
	}
	if t.Firings, err = j.readFirings(ctx, flowToken); err != nil {
		return Trace{}, err
	}
	return t, nil
}

func (j *Journal) readExecutions(ctx context.Context, flowToken string) ([]ir.Execution, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, flow_token, store, method, path, query, forced, seq, cause_execution_id, cause_source, cause_topic
		FROM executions
		WHERE flow_token = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, flowToken)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	executions := []ir.Execution{}
	for rows.Next() {
		var (
			ex     ir.Execution
			method string
			query  string
			topic  string
		)
		if err := rows.Scan(&ex.ID, &ex.FlowToken, &ex.Store, &method, &ex.Path, &query, &ex.Forced, &ex.Seq,
			&ex.Cause.ExecutionID, &ex.Cause.Source, &topic); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		ex.Method = ir.Method(method)
		ex.Cause.Topic = ir.Topic(topic)
		if ex.Query, err = unmarshalQuery(query); err != nil {
			return nil, err
		}
		executions = append(executions, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return executions, nil
}

func (j *Journal) readSettlements(ctx context.Context, flowToken string) ([]ir.Settlement, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT s.execution_id, s.outcome, s.status, s.message, s.seq
		FROM settlements s
		JOIN executions e ON s.execution_id = e.id
		WHERE e.flow_token = ?
		ORDER BY s.seq ASC, s.execution_id COLLATE BINARY ASC
	`, flowToken)
	if err != nil {
		return nil, fmt.Errorf("query settlements: %w", err)
	}
	defer rows.Close()

	settlements := []ir.Settlement{}
	for rows.Next() {
		var (
			s       ir.Settlement
			outcome string
		)
		if err := rows.Scan(&s.ExecutionID, &outcome, &s.Status, &s.Message, &s.Seq); err != nil {
			return nil, fmt.Errorf("scan settlement: %w", err)
		}
		s.Outcome = ir.Outcome(outcome)
		settlements = append(settlements, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlements: %w", err)
	}
	return settlements, nil
}

func (j *Journal) readFirings(ctx context.Context, flowToken string) ([]bus.Firing, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT flow_token, cause_execution_id, source, topic, subscriber, seq
		FROM firings
		WHERE flow_token = ?
		ORDER BY seq ASC, id ASC
	`, flowToken)
	if err != nil {
		return nil, fmt.Errorf("query firings: %w", err)
	}
	defer rows.Close()

	firings := []bus.Firing{}
	for rows.Next() {
		var (
			f     bus.Firing
			topic string
		)
		if err := rows.Scan(&f.FlowToken, &f.Cause.ExecutionID, &f.Cause.Source, &topic, &f.Subscriber, &f.Seq); err != nil {
			return nil, fmt.Errorf("scan firing: %w", err)
		}
		f.Cause.Topic = ir.Topic(topic)
		firings = append(firings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate firings: %w", err)
	}
	return firings, nil
}

// FlowSummary describes one journaled flow.
type FlowSummary struct {
	FlowToken  string `json:"flow_token"`
	Root       string `json:"root"` // store of the first execution
	Executions int    `json:"executions"`
	Failures   int    `json:"failures"`
}

// Flows lists the most recent flows, newest first. UUIDv7 flow tokens sort
// by creation time.
func (j *Journal) Flows(ctx context.Context, limit int) ([]FlowSummary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT e.flow_token,
		       (SELECT store FROM executions r WHERE r.flow_token = e.flow_token ORDER BY r.seq ASC, r.id COLLATE BINARY ASC LIMIT 1),
		       COUNT(*),
		       COALESCE(SUM(CASE WHEN s.outcome = 'error' THEN 1 ELSE 0 END), 0)
		FROM executions e
		LEFT JOIN settlements s ON s.execution_id = e.id
		GROUP BY e.flow_token
		ORDER BY e.flow_token COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query flows: %w", err)
	}
	defer rows.Close()

	flows := []FlowSummary{}
	for rows.Next() {
		var (
			f    FlowSummary
			root sql.NullString
		)
		if err := rows.Scan(&f.FlowToken, &root, &f.Executions, &f.Failures); err != nil {
			return nil, fmt.Errorf("scan flow: %w", err)
		}
		f.Root = root.String
		flows = append(flows, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flows: %w", err)
	}
	return flows, nil
}
