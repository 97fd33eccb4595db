package main

import (
	"github.com/spf13/cobra"

	"github.com/christopherklint97/travelpal/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the planner as a JSON API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	logger := newLogger(cfg)

	calOpts, err := calendarOptions(cfg)
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	p, err := newPlanner(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv := server.New(p, db, server.Options{
		PublicURL:      cfg.Server.PublicURL,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RatePerSecond:  cfg.Server.RatePerSecond,
		Burst:          cfg.Server.Burst,
		SessionTTL:     cfg.SessionTTL(),
		HistoryLimit:   cfg.Planner.HistoryLimit,
		Calendar:       calOpts,
	}, logger)
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
