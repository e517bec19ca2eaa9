package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"hearthside/pkg/bus"
	"hearthside/pkg/db"
	gos3 "hearthside/pkg/s3"
	"hearthside/seed"
	"hearthside/services/api"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hearthctl",
		Short:         "Operations utility for the hearthside answer engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newSeedCommand())
	cmd.AddCommand(newRemindCommand())
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func dsnFromEnv() (string, error) {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		return "", fmt.Errorf("DB_DSN is required")
	}
	return dsn, nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			dsn, err := dsnFromEnv()
			if err != nil {
				return err
			}

			pool, err := db.Open(ctx, dsn)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Migrate(ctx, pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newSeedCommand() *cobra.Command {
	var (
		file    string
		ownerID string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load starter question sets from a YAML catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			dsn, err := dsnFromEnv()
			if err != nil {
				return err
			}

			owner, err := uuid.Parse(ownerID)
			if err != nil {
				return fmt.Errorf("invalid owner identity id: %w", err)
			}

			var f io.ReadCloser
			if file != "" {
				f, err = os.Open(file)
			} else {
				f, err = seed.Files.Open(seed.DefaultCatalog)
			}
			if err != nil {
				return err
			}
			defer f.Close()

			orm, err := db.ConnectORM(ctx, dsn)
			if err != nil {
				return err
			}
			defer func() { _ = db.CloseORM(orm) }()

			created, err := api.SeedStarterSets(ctx, orm, owner, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d starter sets\n", created)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to a YAML seed catalog (defaults to the embedded starter catalog)")
	cmd.Flags().StringVar(&ownerID, "owner", "", "Identity that will own the seeded sets")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newRemindCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Run one reminder sweep over stale unanswered recipients",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			dsn, err := dsnFromEnv()
			if err != nil {
				return err
			}

			logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).With().
				Timestamp().Str("service", "hearthctl").Logger()

			pool, err := db.Open(ctx, dsn)
			if err != nil {
				return err
			}
			defer pool.Close()

			orm, err := db.ConnectORM(ctx, dsn)
			if err != nil {
				return err
			}
			defer func() { _ = db.CloseORM(orm) }()

			s3Client, err := gos3.NewClientFromEnv()
			if err != nil {
				return fmt.Errorf("s3 client: %w", err)
			}

			var eventBus *bus.Bus
			if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
				eventBus, err = bus.New(natsURL)
				if err != nil {
					return fmt.Errorf("connect nats: %w", err)
				}
				defer eventBus.Close()
			}

			app, err := api.New(&api.Store{DB: pool, ORM: orm, S3: s3Client, Bus: eventBus}, api.Config{}, logger)
			if err != nil {
				return err
			}

			sent, err := app.Sweeper().Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d reminders\n", sent)
			return nil
		},
	}
}
