package postgres

import (
	"context"
	"fmt"

	"github.com/optischema/optischema/analysis"
)

/*
Session runs statements against the sandbox database. Exec applies DDL and
configuration changes; Time measures a statement's server-side execution
time in milliseconds.
*/
type Session struct {
	conn *Conn
}

/*
NewSession creates a sandbox session over the given connection.
*/
func NewSession(conn *Conn) *Session {
	return &Session{conn: conn}
}

/*
Exec runs a statement and discards its result.
*/
func (s *Session) Exec(ctx context.Context, sql string) error {
	if _, err := s.conn.Pool().Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to execute statement: %w", err)
	}
	return nil
}

/*
Time runs the statement under EXPLAIN ANALYZE and returns the server-side
execution time in milliseconds. Timing on the server keeps network latency
out of the benchmark.
*/
func (s *Session) Time(ctx context.Context, sql string) (float64, error) {
	var raw []byte
	stmt := "EXPLAIN (ANALYZE, FORMAT JSON) " + sql
	if err := s.conn.Pool().QueryRow(ctx, stmt).Scan(&raw); err != nil {
		return 0, fmt.Errorf("failed to time statement: %w", err)
	}

	plan, err := analysis.ParsePlan(raw)
	if err != nil {
		return 0, err
	}
	return plan.ExecutionTime, nil
}
