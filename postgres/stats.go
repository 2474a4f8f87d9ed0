package postgres

import (
	"context"
	"fmt"

	"github.com/optischema/optischema/metrics"
)

// statStatementsQuery reads the cumulative counters the collector deltas
// against. Column names follow PostgreSQL 13+; times are milliseconds.
const statStatementsQuery = `
SELECT
    query,
    calls,
    total_exec_time,
    mean_exec_time,
    min_exec_time,
    max_exec_time,
    rows,
    shared_blks_hit,
    shared_blks_read,
    shared_blks_written,
    blk_read_time
FROM pg_stat_statements
WHERE query NOT ILIKE 'EXPLAIN%'
  AND query NOT ILIKE 'DEALLOCATE%'
ORDER BY total_exec_time DESC
LIMIT $1`

/*
StatReader implements the collector's statistics source against the
pg_stat_statements view of the monitored database.
*/
type StatReader struct {
	conn  *Conn
	limit int
}

type StatReaderOptionFn func(*StatReader)

/*
NewStatReader creates a reader over the given connection.
*/
func NewStatReader(conn *Conn, opts ...StatReaderOptionFn) *StatReader {
	reader := &StatReader{
		conn:  conn,
		limit: 500,
	}

	for _, fn := range opts {
		fn(reader)
	}

	return reader
}

/*
WithRowLimit caps how many statement rows a snapshot reads.
*/
func WithRowLimit(n int) StatReaderOptionFn {
	return func(r *StatReader) {
		if n > 0 {
			r.limit = n
		}
	}
}

/*
Snapshot returns the current cumulative statistics rows, most expensive
first.
*/
func (r *StatReader) Snapshot(ctx context.Context) ([]metrics.StatementStats, error) {
	rows, err := r.conn.Pool().Query(ctx, statStatementsQuery, r.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read pg_stat_statements: %w", err)
	}
	defer rows.Close()

	var out []metrics.StatementStats
	for rows.Next() {
		var s metrics.StatementStats
		if err := rows.Scan(
			&s.QueryText,
			&s.Calls,
			&s.TotalTime,
			&s.MeanTime,
			&s.MinTime,
			&s.MaxTime,
			&s.Rows,
			&s.SharedBlksHit,
			&s.SharedBlksRead,
			&s.SharedBlksWritten,
			&s.BlkReadTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan statistics row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed while iterating statistics rows: %w", err)
	}

	return out, nil
}
