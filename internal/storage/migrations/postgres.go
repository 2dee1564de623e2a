// Package migrations applies the embedded schema for the checkpoint store
// (PostgreSQL) and the sale archive (ClickHouse). Migration files run in
// lexical order and must be idempotent.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"solana-nft-tracker/internal/storage/postgres"
)

// PostgresFS embeds the checkpoint schema migrations.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// RunPostgresMigrations applies the checkpoint schema.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := migrationFiles(PostgresFS, "postgres")
	if err != nil {
		return err
	}

	for _, file := range files {
		data, err := fs.ReadFile(PostgresFS, "postgres/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		sql := strings.TrimSpace(string(data))
		if sql == "" {
			continue
		}
		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}

	return nil
}

// migrationFiles lists *.sql entries of dir in lexical order.
func migrationFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
