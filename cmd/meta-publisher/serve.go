package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/meta-publisher/internal/api"
)

var addrFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the publish HTTP API locally",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", ":8080", "Listen address")
	mustBind(v.BindPFlag("api.addr", serveCmd.Flags().Lookup("addr")))
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildPipeline(ctx, "meta-publisher serve", nil)
	if err != nil {
		return err
	}
	cfg := a.Config

	opts := []api.Option{
		api.ContinueOnFailDefault(cfg.Publish.ContinueOnFail),
		api.WithOriginSecret(cfg.API.OriginSecret),
		api.WithWebhook(a.WebhookHandler()),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, api.WithMetrics(cfg.Metrics.Namespace, nil))
	}
	srv := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           api.NewServer(a.NewBatch, a.Store, opts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
