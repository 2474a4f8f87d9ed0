package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/optischema/optischema/analysis"
	"github.com/optischema/optischema/logger"
)

/*
Explainer acquires execution plans without leaving side effects: the
statement runs inside a transaction that is always rolled back, so even
data-modifying statements can be analyzed safely.
*/
type Explainer struct {
	conn *Conn
}

/*
NewExplainer creates an explainer over the given connection.
*/
func NewExplainer(conn *Conn) *Explainer {
	return &Explainer{conn: conn}
}

/*
Explain runs EXPLAIN (ANALYZE, BUFFERS, FORMAT JSON) for the statement and
parses the result. Statements whose text still carries bind-parameter
placeholders cannot be executed and are rejected before touching the
database.
*/
func (e *Explainer) Explain(ctx context.Context, queryText string) (*analysis.Plan, error) {
	if strings.Contains(queryText, "$1") {
		return nil, fmt.Errorf("statement carries unbound parameters")
	}

	tx, err := e.conn.Pool().Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin explain transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			logger.Debug("Explain transaction rollback", "error", err)
		}
	}()

	var raw []byte
	stmt := "EXPLAIN (ANALYZE, BUFFERS, FORMAT JSON) " + queryText
	if err := tx.QueryRow(ctx, stmt).Scan(&raw); err != nil {
		return nil, fmt.Errorf("failed to explain statement: %w", err)
	}

	return analysis.ParsePlan(raw)
}
