package out

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	ledgerout "prostop/internal/modules/ledger/port/out"

	_ "modernc.org/sqlite"
)

// SQLiteUsageProjector mirrors day buckets into a usage table for reporting
// queries. The projection is rebuildable from the JSON collection.
type SQLiteUsageProjector struct {
	db *sql.DB
}

func NewSQLiteUsageProjector(dbPath string) (ledgerout.UsageProjector, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	projector := &SQLiteUsageProjector{db: db}
	if err := projector.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return projector, nil
}

func (s *SQLiteUsageProjector) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS usage (
  domain TEXT NOT NULL,
  day TEXT NOT NULL,
  seconds INTEGER NOT NULL,
  PRIMARY KEY (domain, day)
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create usage table: %w", err)
	}
	return nil
}

func (s *SQLiteUsageProjector) UpsertUsage(ctx context.Context, domainKey, day string, seconds int64) error {
	const stmt = `
INSERT INTO usage (domain, day, seconds) VALUES (?, ?, ?)
ON CONFLICT(domain, day) DO UPDATE SET seconds=excluded.seconds;
`
	if _, err := s.db.ExecContext(ctx, stmt, domainKey, day, seconds); err != nil {
		return fmt.Errorf("upsert usage: %w", err)
	}
	return nil
}

func (s *SQLiteUsageProjector) PruneBefore(ctx context.Context, day string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM usage WHERE day < ?`, day); err != nil {
		return fmt.Errorf("prune usage: %w", err)
	}
	return nil
}

func (s *SQLiteUsageProjector) UsageBetween(ctx context.Context, domainKey, from, to string) (int64, error) {
	const query = `SELECT COALESCE(SUM(seconds), 0) FROM usage WHERE domain = ? AND day BETWEEN ? AND ?`
	var total int64
	if err := s.db.QueryRowContext(ctx, query, domainKey, from, to).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum usage: %w", err)
	}
	return total, nil
}

func (s *SQLiteUsageProjector) DaysWithUsage(ctx context.Context, domainKey, from, to string) (int, error) {
	const query = `SELECT COUNT(*) FROM usage WHERE domain = ? AND day BETWEEN ? AND ? AND seconds > 0`
	var days int
	if err := s.db.QueryRowContext(ctx, query, domainKey, from, to).Scan(&days); err != nil {
		return 0, fmt.Errorf("count usage days: %w", err)
	}
	return days, nil
}

// Close releases the underlying database handle.
func (s *SQLiteUsageProjector) Close() error {
	return s.db.Close()
}
