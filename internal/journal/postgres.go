package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/internal/config"
)

// DBPool abstracts pgxpool.Pool so tests can mock it.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Postgres stores entries in a table, creating it if needed.
type Postgres struct {
	pool   DBPool
	table  string
	logger *zap.Logger
}

// NewPostgres connects to cfg.URL and prepares the journal table.
func NewPostgres(ctx context.Context, cfg config.JournalConfig, logger *zap.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	p, err := newPostgres(ctx, pool, cfg.Table, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func newPostgres(ctx context.Context, pool DBPool, table string, logger *zap.Logger) (*Postgres, error) {
	if table == "" {
		table = "command_journal"
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	p := &Postgres{
		pool:   pool,
		table:  pgx.Identifier{table}.Sanitize(),
		logger: logger.Named("journal.postgres"),
	}
	if _, err := pool.Exec(ctx, p.createSQL()); err != nil {
		return nil, fmt.Errorf("failed to create journal table: %w", err)
	}
	return p, nil
}

func (p *Postgres) createSQL() string {
	return fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id UUID PRIMARY KEY,
            recorded_at TIMESTAMPTZ NOT NULL,
            page_id TEXT NOT NULL,
            command TEXT NOT NULL,
            plan_id TEXT,
            action TEXT,
            status TEXT,
            success BOOLEAN NOT NULL,
            error_code TEXT,
            message TEXT,
            duration_ms BIGINT NOT NULL,
            steps INTEGER NOT NULL,
            attempted_selectors TEXT[]
        )`, p.table)
}

func (p *Postgres) insertSQL() string {
	return fmt.Sprintf(`
        INSERT INTO %s (id, recorded_at, page_id, command, plan_id, action, status, success,
            error_code, message, duration_ms, steps, attempted_selectors)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`, p.table)
}

// Record inserts one row.
func (p *Postgres) Record(ctx context.Context, e Entry) error {
	_, err := p.pool.Exec(ctx, p.insertSQL(),
		e.ID, e.Time, e.PageID, e.Command, e.PlanID, e.Action, string(e.Status), e.Success,
		string(e.Error), e.Message, e.DurationMs, e.Steps, e.AttemptedSelectors,
	)
	if err != nil {
		p.logger.Error("Failed to insert journal entry.", zap.String("entry_id", e.ID), zap.Error(err))
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
