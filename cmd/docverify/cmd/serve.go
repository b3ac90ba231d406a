package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/docverify/internal/engine"
	"github.com/MeKo-Tech/docverify/internal/server"
	"github.com/MeKo-Tech/docverify/internal/version"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP document extraction API",
	Long: `Start an HTTP server that extracts document fields from uploads.

The server provides the following endpoints:
  POST /noc/nicop-front         - NICOP front side
  POST /noc/nicop-back          - NICOP back side
  POST /noc/passport-front      - Passport data page
  POST /noc/iqama-front         - Iqama front side
  GET  /documents/requirements  - Required documents per nationality
  GET  /ws                      - WebSocket extraction
  GET  /health                  - Health check endpoint
  GET  /metrics                 - Prometheus metrics

Examples:
  docverify serve
  docverify serve --port 8080
  docverify serve --host 0.0.0.0 --rate-limit 2 --rate-burst 5`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := GetConfig()
		sc := cfg.Server

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		p, err := buildPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := engine.ShutdownShared(); err != nil {
				slog.Error("OCR engine shutdown error", "error", err)
			}
		}()

		srv, err := server.NewServer(server.Config{
			Host:        sc.Host,
			Port:        sc.Port,
			CORSOrigin:  sc.CORSOrigin,
			MaxUploadMB: int64(sc.MaxUploadMB),
			TimeoutSec:  sc.TimeoutSec,
			RateLimit:   sc.RateLimit,
			RateBurst:   sc.RateBurst,
			Version:     version.Get().Version,
		}, p)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}
		defer func() { _ = srv.Close() }()

		httpServer := &http.Server{
			Addr:              net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port)),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(sc.TimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(sc.TimeoutSec+5) * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("Starting docverify server", "addr", httpServer.Addr, "backend", p.Engine().Name())
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ctx.Done():
			slog.Info("Received shutdown signal")
		}

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", sc.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(sc.ShutdownTimeout)*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
			return err
		}
		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 10, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 60, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Float64("rate-limit", 5, "requests per second per client (0 disables)")
	serveCmd.Flags().Int("rate-burst", 10, "burst size per client")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.cors_origin", serveCmd.Flags().Lookup("cors-origin"))
	_ = viper.BindPFlag("server.max_upload_mb", serveCmd.Flags().Lookup("max-upload-size"))
	_ = viper.BindPFlag("server.timeout_sec", serveCmd.Flags().Lookup("timeout"))
	_ = viper.BindPFlag("server.shutdown_timeout", serveCmd.Flags().Lookup("shutdown-timeout"))
	_ = viper.BindPFlag("server.rate_limit", serveCmd.Flags().Lookup("rate-limit"))
	_ = viper.BindPFlag("server.rate_burst", serveCmd.Flags().Lookup("rate-burst"))
}
