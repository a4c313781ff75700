package sqldriver

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
)

// Migration is one versioned, additive schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// LoadMigrations reads "NNNN_description.sql" files from dir in fsys,
// sorted by version. Duplicate versions are rejected.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	seen := make(map[int]string, len(entries))
	migrations := make([]Migration, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		version, description, ok := parseMigrationName(name)
		if !ok {
			continue
		}
		if prev, exists := seen[version]; exists {
			return nil, fmt.Errorf("duplicate migration version %04d: %q and %q", version, prev, name)
		}
		seen[version] = name

		content, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", name, err)
		}

		migrations = append(migrations, Migration{
			Version:     version,
			Description: description,
			SQL:         string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// Migrate applies every migration newer than the recorded schema version,
// each in its own transaction. Re-running it against an up-to-date
// database is a no-op. Returns the number of migrations applied.
func (d *Driver) Migrate(ctx context.Context, migrations []Migration, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	_, err := d.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at BIGINT NOT NULL,
			description TEXT NOT NULL
		)`)
	if err != nil {
		return 0, fmt.Errorf("creating migrations table: %w", err)
	}

	var current int
	err = d.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}

	applied := 0
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := d.DB.BeginTx(ctx, nil)
		if err != nil {
			return applied, fmt.Errorf("beginning migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("executing migration %d: %w", m.Version, err)
		}

		_, err = tx.ExecContext(ctx,
			d.rebind(`INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)`),
			m.Version, d.now().UnixNano(), m.Description,
		)
		if err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("recording migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("committing migration %d: %w", m.Version, err)
		}

		applied++
		logger.Info("applied migration",
			"version", fmt.Sprintf("%04d", m.Version),
			"description", m.Description,
		)
	}

	return applied, nil
}

// parseMigrationName splits "0001_init.sql" into (1, "init").
func parseMigrationName(name string) (int, string, bool) {
	parts := strings.SplitN(name, "_", 2)
	if len(parts) < 2 {
		return 0, "", false
	}

	var version int
	if _, err := fmt.Sscanf(parts[0], "%d", &version); err != nil {
		return 0, "", false
	}

	return version, strings.TrimSuffix(parts[1], ".sql"), true
}
