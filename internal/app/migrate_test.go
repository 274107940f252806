package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestSQLFilesSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_likes.sql", "0001_init.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "0003_dir.sql"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := sqlFiles(dir)
	if err != nil {
		t.Fatalf("sqlFiles: %v", err)
	}
	got := make([]string, 0, len(files))
	for _, f := range files {
		got = append(got, filepath.Base(f))
	}
	want := []string{"0001_init.sql", "0002_likes.sql"}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestMigrationFilesShipWithRepo(t *testing.T) {
	files, err := sqlFiles(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("sqlFiles: %v", err)
	}
	if len(files) == 0 || filepath.Base(files[0]) != "0001_init.sql" {
		t.Fatalf("expected 0001_init.sql first, got %v", files)
	}
}

func TestMigrationBackoff(t *testing.T) {
	cases := map[int]time.Duration{
		1:  migrationBaseBackoff,
		2:  2 * migrationBaseBackoff,
		3:  4 * migrationBaseBackoff,
		10: migrationMaxBackoff,
		70: migrationMaxBackoff,
	}
	for attempt, want := range cases {
		if got := migrationBackoff(attempt); got != want {
			t.Errorf("migrationBackoff(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestShouldRetryMigration(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"nil":           {err: nil, want: false},
		"deadline":      {err: context.DeadlineExceeded, want: true},
		"serialization": {err: fmt.Errorf("apply: %w", &pgconn.PgError{Code: "40001"}), want: true},
		"syntax":        {err: &pgconn.PgError{Code: "42601"}, want: false},
		"other":         {err: errors.New("boom"), want: false},
	}
	for name, tc := range cases {
		if got := shouldRetryMigration(tc.err); got != tc.want {
			t.Errorf("%s: shouldRetryMigration = %v, want %v", name, got, tc.want)
		}
	}
}

func TestSleepContextHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestResolveDir(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "seeds")
	if got, err := resolveDir(abs); err != nil || got != abs {
		t.Fatalf("resolveDir(%q) = %q, %v", abs, got, err)
	}
	got, err := resolveDir("seeds")
	if err != nil {
		t.Fatalf("resolveDir: %v", err)
	}
	if !filepath.IsAbs(got) || filepath.Base(got) != "seeds" {
		t.Fatalf("expected absolute path ending in seeds, got %q", got)
	}
}
