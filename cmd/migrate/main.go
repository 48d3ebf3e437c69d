package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
)

func main() {
	var (
		dir    string
		dbURL  string
		dryRun bool
	)

	rootCmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Apply SQL migrations to the Postgres database",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbURL == "" {
				dbURL = os.Getenv("DATABASE_URL")
			}
			if dbURL == "" && !dryRun {
				return errors.New("DATABASE_URL is not set")
			}
			files, err := migrationFiles(dir)
			if err != nil {
				return err
			}
			if dryRun {
				for _, f := range files {
					fmt.Fprintln(cmd.OutOrStdout(), f)
				}
				return nil
			}
			return migrate(cmd.Context(), dbURL, files)
		},
	}
	rootCmd.Flags().StringVar(&dir, "dir", "migrations", "directory holding *.up.sql files")
	rootCmd.Flags().StringVar(&dbURL, "database-url", "", "Postgres connection string (defaults to $DATABASE_URL)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "list the migrations that would run and exit")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// migrationFiles returns the up migrations in dir in lexical order.
func migrationFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no migrations found in %s", dir)
	}
	sort.Strings(files)
	return files, nil
}

func migrationVersion(file string) string {
	return strings.TrimSuffix(filepath.Base(file), ".up.sql")
}

func migrate(ctx context.Context, dbURL string, files []string) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	for _, file := range files {
		version := migrationVersion(file)
		var applied bool
		err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, version).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration %s: %w", version, err)
		}
		if applied {
			slog.Info("migration already applied", "version", version)
			continue
		}

		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		slog.Info("applying migration", "file", file)
		err = pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(content)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", file, err)
		}
	}

	slog.Info("migrations applied", "count", len(files))
	return nil
}
