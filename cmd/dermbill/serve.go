package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/dermbill/internal/exitcode"
	"github.com/gyeh/dermbill/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&cfg.ListenAddr, "listen", ":8080", "HTTP bind address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := setupLogger()
	ctx := context.Background()

	eng, store, lib, cleanup := buildEngine(ctx, log)
	defer cleanup()

	e := httpapi.NewServer(httpapi.NewHandler(eng, store, lib, log))
	log.Info().Str("addr", cfg.ListenAddr).Msg("serving analysis API")
	if err := e.Start(cfg.ListenAddr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(exitcode.AnalysisError)
	}
	return nil
}
