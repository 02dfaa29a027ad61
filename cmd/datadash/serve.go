package main

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/spektr-org/datadash/server"
	"github.com/spektr-org/datadash/session"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Starts the session API with /health and /metrics endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = cfg.Server.Addr
			}
			store := session.NewStore(cfg.EngineOptions()...)
			srv := server.New(store, server.Options{
				MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
				RankBy:         cfg.RankMetric(),
			})

			log.Info().Str("addr", addr).Str("version", version).Msg("starting datadash server")
			err := srv.ListenAndServe(cmd.Context(), addr)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}
