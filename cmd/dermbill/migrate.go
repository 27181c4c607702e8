package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/dermbill/internal/exitcode"
	"github.com/gyeh/dermbill/internal/refdata"
	"github.com/gyeh/dermbill/internal/refstore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE:  runMigrate,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Apply migrations and seed the reference tables from the embedded copies",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log := setupLogger()
	ctx := context.Background()

	if err := cfg.ValidateWithDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	pool, err := refstore.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	if err := refstore.ApplyMigrations(ctx, pool, log); err != nil {
		log.Error().Err(err).Msg("migration failed")
		os.Exit(exitcode.ValidationError)
	}

	log.Info().Msg("all migrations applied successfully")
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	log := setupLogger()
	ctx := context.Background()

	if err := cfg.ValidateWithDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	store, err := refdata.Load()
	if err != nil {
		log.Error().Err(err).Msg("embedded reference tables failed to load")
		os.Exit(exitcode.ValidationError)
	}

	pool, err := refstore.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	if err := refstore.ApplyMigrations(ctx, pool, log); err != nil {
		log.Error().Err(err).Msg("migration failed")
		os.Exit(exitcode.ValidationError)
	}
	if err := refstore.Seed(ctx, pool, store.Tables(), log); err != nil {
		log.Error().Err(err).Msg("seed failed")
		os.Exit(exitcode.ValidationError)
	}

	log.Info().Msg("reference tables seeded")
	return nil
}
