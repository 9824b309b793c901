package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ignite/event-etl/internal/config"
	"github.com/ignite/event-etl/internal/migrations"
	"github.com/ignite/event-etl/internal/pkg/logger"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

func main() {
	defer logger.Sync()
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var dsn string

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the event-etl database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dsn, "database-url", "", "PostgreSQL URL (defaults to DATABASE_URL or the config file)")

	withDB := func(fn func(ctx context.Context, db *sql.DB) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			db, err := connect(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			defer db.Close()
			return fn(cmd.Context(), db)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE:  withDB(migrations.Up),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE:  withDB(migrations.Down),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the applied state of every migration",
			RunE:  withDB(migrations.Status),
		},
		&cobra.Command{
			Use:   "tables",
			Short: "List the tables in the public schema",
			RunE: withDB(func(ctx context.Context, db *sql.DB) error {
				tables, err := migrations.Tables(ctx, db)
				if err != nil {
					return err
				}
				for _, t := range tables {
					fmt.Println(" ", t)
				}
				fmt.Printf("Total: %d tables\n", len(tables))
				return nil
			}),
		},
	)
	return root
}

func connect(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		cfg, err := config.Load(config.DefaultPath())
		if err != nil {
			return nil, err
		}
		dsn = cfg.Database.URL
	}
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	logger.Info("[Migrate] connected to database")
	return db, nil
}
