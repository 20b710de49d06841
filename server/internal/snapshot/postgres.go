package snapshot

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the embedded schema migrations to databaseURL.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("snapshot: open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("snapshot: connect for migrations: %w", err)
	}
	defer m.Close() //nolint:errcheck

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("snapshot: read migration version: %w", err)
	}
	slog.Info("snapshot: postgres schema", "version", version, "dirty", dirty)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("snapshot: apply migrations: %w", err)
	}
	return nil
}

// Postgres stores the record set in the uid_expiry table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens a connection pool to databaseURL.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("snapshot: pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("snapshot: postgres ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Load(ctx context.Context) (map[string]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT uid, expires_at FROM public.uid_expiry`)
	if err != nil {
		return nil, fmt.Errorf("query uid_expiry: %w", err)
	}
	defer rows.Close()

	records := make(map[string]string)
	for rows.Next() {
		var uid, rec string
		if err := rows.Scan(&uid, &rec); err != nil {
			return nil, fmt.Errorf("scan uid_expiry: %w", err)
		}
		records[uid] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate uid_expiry: %w", err)
	}
	return records, nil
}

// Save replaces the table contents in one transaction.
func (p *Postgres) Save(ctx context.Context, records map[string]string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgxPool.Begin() error: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM public.uid_expiry`); err != nil {
		return fmt.Errorf("clear uid_expiry: %w", err)
	}

	rows := make([][]any, 0, len(records))
	for uid, rec := range records {
		rows = append(rows, []any{uid, rec})
	}
	if len(rows) > 0 {
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"public", "uid_expiry"},
			[]string{"uid", "expires_at"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("copy uid_expiry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit uid_expiry: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
