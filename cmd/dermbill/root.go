package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gyeh/dermbill/internal/config"
	"github.com/gyeh/dermbill/internal/engine"
	"github.com/gyeh/dermbill/internal/exitcode"
	"github.com/gyeh/dermbill/internal/logging"
	"github.com/gyeh/dermbill/internal/refdata"
	"github.com/gyeh/dermbill/internal/refstore"
	"github.com/gyeh/dermbill/internal/scenario"
)

var (
	cfg        config.Config
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "dermbill",
	Short: "Dermatology billing-code analysis engine",
	Long: "Turns dermatology encounter notes into CPT/HCPCS billing codes with " +
		"modifiers, documentation gaps, and wRVU totals, plus documentation " +
		"enhancements and future visit opportunities.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			return cfg.LoadFromFile(configFile)
		}
		return cfg.Validate()
	},
}

func init() {
	// .env is optional; a real environment always wins.
	_ = godotenv.Load()

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.DSN, "dsn", os.Getenv("DATABASE_URL"), "Postgres connection string (or set DATABASE_URL)")
	pf.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text or json")
	pf.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&configFile, "config", "", "Path to YAML config file")
	pf.BoolVar(&cfg.UseDatabase, "use-db", false, "Load reference tables from Postgres instead of the embedded copies")
	pf.BoolVar(&cfg.AggressiveUnbundling, "aggressive-unbundling", false, "Attach distinct-service modifiers to separable pairs without documented distinct sites")
	pf.IntVar(&cfg.MaxScenarioMatches, "max-scenarios", 0, "Max condition playbooks consulted per note (0 = default)")
}

func setupLogger() zerolog.Logger {
	return logging.WithLevel(logging.Setup(cfg.LogFormat), cfg.LogLevel)
}

// buildEngine loads the reference tables and playbooks and wires an
// engine. The returned cleanup closes the database pool when one was
// opened.
func buildEngine(ctx context.Context, log zerolog.Logger) (*engine.Engine, *refdata.Store, *scenario.Library, func()) {
	cleanup := func() {}
	var store *refdata.Store

	if cfg.UseDatabase {
		if err := cfg.ValidateWithDSN(); err != nil {
			log.Error().Err(err).Msg("config validation failed")
			os.Exit(exitcode.UsageError)
		}
		pool, err := refstore.NewPool(ctx, cfg.DSN)
		if err != nil {
			log.Error().Err(err).Msg("database connection failed")
			os.Exit(exitcode.DBConnError)
		}
		cleanup = pool.Close
		store, err = refstore.Load(ctx, pool)
		if err != nil {
			log.Error().Err(err).Msg("reference tables failed to load from database")
			cleanup()
			os.Exit(exitcode.ValidationError)
		}
	} else {
		var err error
		store, err = refdata.Load()
		if err != nil {
			log.Error().Err(err).Msg("embedded reference tables failed to load")
			os.Exit(exitcode.ValidationError)
		}
	}

	if len(cfg.ChronicConditions) > 0 {
		t := store.Tables()
		t.ChronicConditions = cfg.ChronicConditions
		rebuilt, err := refdata.FromTables(t)
		if err != nil {
			log.Error().Err(err).Msg("chronic-condition override failed")
			cleanup()
			os.Exit(exitcode.ValidationError)
		}
		store = rebuilt
	}

	lib, err := scenario.Load()
	if err != nil {
		log.Error().Err(err).Msg("playbooks failed to load")
		cleanup()
		os.Exit(exitcode.ValidationError)
	}

	eng := engine.New(store, lib, nil, engine.Options{
		AggressiveUnbundling: cfg.AggressiveUnbundling,
		MaxScenarioMatches:   cfg.MaxScenarioMatches,
	}, log)
	return eng, store, lib, cleanup
}
