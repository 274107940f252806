package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/logging"
)

const (
	migrationMaxRetries  = 3
	migrationBaseBackoff = 100 * time.Millisecond
	migrationMaxBackoff  = 3 * time.Second
)

var retryablePgErrorCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

// runMaintenance executes the migrate and seed commands on one pooled connection.
func runMaintenance(ctx context.Context, command string, args []string) error {
	if command == "seed" && len(args) == 0 {
		return errors.New("expected seed name (e.g. dev)")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stdout, cfg.Server.LogLevel)

	pool, err := db.Connect(ctx, cfg.Database.URL, cfg.Database.Name)
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if command == "seed" {
		return applySeed(ctx, conn, cfg.Database.SeedsDir, args[0], logger)
	}

	sub := "up"
	if len(args) > 0 {
		sub = args[0]
	}
	m := migrator{conn: conn, dir: cfg.Database.MigrationsDir, logger: logger}
	switch sub {
	case "up", "":
		return m.up(ctx)
	case "status":
		return m.status(ctx, os.Stdout)
	case "down":
		return errors.New("down migrations are not supported")
	default:
		return fmt.Errorf("unknown migrate command %q", sub)
	}
}

type migrator struct {
	conn   *pgxpool.Conn
	dir    string
	logger *slog.Logger
}

// files lists the .sql migrations in lexical order.
func (m migrator) files() ([]string, error) {
	dir, err := resolveDir(m.dir)
	if err != nil {
		return nil, err
	}
	return sqlFiles(dir)
}

func sqlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		names = append(names, filepath.Join(dir, entry.Name()))
	}
	slices.Sort(names)
	return names, nil
}

func (m migrator) applied(ctx context.Context) (map[string]struct{}, error) {
	if _, err := m.conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	rows, err := m.conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("fetch applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan applied migrations: %w", err)
	}

	applied := make(map[string]struct{}, len(versions))
	for _, v := range versions {
		applied[v] = struct{}{}
	}
	return applied, nil
}

func (m migrator) status(ctx context.Context, w io.Writer) error {
	files, err := m.files()
	if err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}
	for _, path := range files {
		mark := " "
		if _, ok := applied[filepath.Base(path)]; ok {
			mark = "x"
		}
		fmt.Fprintf(w, "[%s] %s\n", mark, filepath.Base(path))
	}
	return nil
}

func (m migrator) up(ctx context.Context) error {
	files, err := m.files()
	if err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	pending := 0
	for _, path := range files {
		name := filepath.Base(path)
		if _, ok := applied[name]; ok {
			continue
		}
		contents, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := m.applyWithRetry(ctx, name, string(contents)); err != nil {
			return err
		}
		m.logger.Info("applied migration", "version", name)
		pending++
	}
	if pending == 0 {
		m.logger.Info("no migrations to apply")
	}
	return nil
}

// applyWithRetry runs a migration and records it in one serializable
// transaction, backing off on transient errors.
func (m migrator) applyWithRetry(ctx context.Context, name, contents string) error {
	var err error
	for attempt := 0; attempt < migrationMaxRetries; attempt++ {
		if attempt > 0 {
			if werr := sleepContext(ctx, migrationBackoff(attempt)); werr != nil {
				return werr
			}
		}

		err = m.applyOnce(ctx, name, contents)
		if err == nil {
			return nil
		}
		if !shouldRetryMigration(err) {
			return err
		}
		m.logger.Warn("transient migration error", "version", name, "attempt", attempt+1, "maxAttempts", migrationMaxRetries, "error", err)
	}
	return fmt.Errorf("apply migration %s: exceeded max retries (%d): %w", name, migrationMaxRetries, err)
}

func (m migrator) applyOnce(ctx context.Context, name, contents string) error {
	tx, err := m.conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin migration transaction for %s: %w", name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, contents); err != nil {
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}

// migrationBackoff doubles from the base delay, capped at the max.
func migrationBackoff(attempt int) time.Duration {
	backoff := migrationBaseBackoff << (attempt - 1)
	if backoff <= 0 || backoff > migrationMaxBackoff {
		return migrationMaxBackoff
	}
	return backoff
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func shouldRetryMigration(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, pgx.ErrTxClosed) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := retryablePgErrorCodes[pgErr.Code]
		return ok
	}
	return false
}

// applySeed executes <dir>/<name>_seed.sql, or <dir>/<name> when it already
// carries the .sql suffix.
func applySeed(ctx context.Context, conn *pgxpool.Conn, dir, name string, logger *slog.Logger) error {
	seedDir, err := resolveDir(dir)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(name, ".sql") {
		name += "_seed.sql"
	}

	contents, err := os.ReadFile(filepath.Join(seedDir, name))
	if err != nil {
		return fmt.Errorf("read seed %s: %w", name, err)
	}
	if _, err := conn.Exec(ctx, string(contents)); err != nil {
		return fmt.Errorf("apply seed %s: %w", name, err)
	}

	logger.Info("applied seed", "seed", name)
	return nil
}

// resolveDir anchors a relative directory at the working directory.
func resolveDir(dir string) (string, error) {
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determine working directory: %w", err)
	}
	return filepath.Join(wd, dir), nil
}
