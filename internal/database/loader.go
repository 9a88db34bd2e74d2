package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/chartflow/internal/consolidate"
	"github.com/rickgao/chartflow/internal/export"
	"github.com/rickgao/chartflow/internal/model"
)

// DB is the subset of *pgxpool.Pool used by Loader.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Columns in COPY order.
var Columns = []string{
	"run_id", "day", "bucket_t", "t", "sym", "type", "disc", "i", "chart", "payload",
}

// Loader replaces a day's unified rows in one table.
type Loader struct {
	db     DB
	table  string
	logger *slog.Logger
}

// NewLoader creates a Loader. table must be a plain identifier.
func NewLoader(db DB, table string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{db: db, table: table, logger: logger}
}

// Name implements consolidate.Exporter.
func (l *Loader) Name() string { return "database" }

// EnsureSchema creates the table and its day index if missing.
func (l *Loader) EnsureSchema(ctx context.Context) error {
	ident := pgx.Identifier{l.table}.Sanitize()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + ident + ` (
			run_id   uuid             NOT NULL,
			day      text             NOT NULL,
			bucket_t double precision NOT NULL,
			t        double precision NOT NULL,
			sym      text             NOT NULL,
			type     text             NOT NULL,
			disc     text             NOT NULL DEFAULT '',
			i        bigint           NOT NULL,
			chart    text             NOT NULL,
			payload  jsonb            NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ` + pgx.Identifier{l.table + "_day_idx"}.Sanitize() +
			` ON ` + ident + ` (day, sym, bucket_t)`,
	}
	for _, s := range stmts {
		if _, err := l.db.Exec(ctx, s); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Export implements consolidate.Exporter.
func (l *Loader) Export(ctx context.Context, run consolidate.Report, events []model.Event) error {
	rows, err := export.Rows(run.RunID, run.Day, events)
	if err != nil {
		return err
	}
	values, err := copyValues(rows)
	if err != nil {
		return err
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM `+pgx.Identifier{l.table}.Sanitize()+` WHERE day = $1`, run.Day)
	if err != nil {
		return fmt.Errorf("delete day %s: %w", run.Day, err)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{l.table}, Columns, pgx.CopyFromRows(values))
	if err != nil {
		return fmt.Errorf("copy rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	l.logger.Info("database export loaded",
		"table", l.table,
		"day", run.Day,
		"replaced", tag.RowsAffected(),
		"rows", n,
	)
	return nil
}

func copyValues(rows []export.Row) ([][]any, error) {
	out := make([][]any, len(rows))
	for i, r := range rows {
		id, err := uuid.Parse(r.RunID)
		if err != nil {
			return nil, fmt.Errorf("run id %q: %w", r.RunID, err)
		}
		out[i] = []any{
			[16]byte(id), r.Day, r.BucketT, r.T, r.Symbol, r.Type,
			r.Discriminator, r.BarIndex, r.Source, []byte(r.Payload),
		}
	}
	return out, nil
}
