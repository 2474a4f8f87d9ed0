package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/optischema/optischema/logger"
)

/*
Conn wraps a pgx connection pool for one database. The same type serves both
the monitored database and the sandbox database; which one it points at is
purely a matter of the URL it was built with.
*/
type Conn struct {
	url  string
	pool *pgxpool.Pool
}

type ConnOptionFn func(*Conn)

/*
NewConn creates an unconnected handle with the given options. Call Connect
before use.
*/
func NewConn(opts ...ConnOptionFn) *Conn {
	conn := &Conn{}

	for _, fn := range opts {
		fn(conn)
	}

	return conn
}

/*
WithURL sets the connection string.
*/
func WithURL(url string) ConnOptionFn {
	return func(c *Conn) {
		c.url = url
	}
}

/*
Connect establishes the pool and verifies the server is reachable.
*/
func (c *Conn) Connect(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, c.url)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	c.pool = pool
	logger.Info("Connected to database")
	return nil
}

/*
Pool exposes the underlying pool for collaborators that need raw access.
*/
func (c *Conn) Pool() *pgxpool.Pool {
	return c.pool
}

/*
HasStatStatements reports whether the pg_stat_statements extension is
installed in the connected database.
*/
func (c *Conn) HasStatStatements(ctx context.Context) (bool, error) {
	var installed bool
	err := c.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'pg_stat_statements')`,
	).Scan(&installed)
	if err != nil {
		return false, fmt.Errorf("failed to check pg_stat_statements: %w", err)
	}
	return installed, nil
}

/*
Close releases the pool.
*/
func (c *Conn) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}
