package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/headless-pm/cloudtask/internal/api"
	tokens "github.com/headless-pm/cloudtask/pkg/auth"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server. This is the default command.

Examples:
  cloudtask serve
  cloudtask serve --config ./cloudtask.toml`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if a.cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	jwt := tokens.NewJWTManager(a.cfg.Auth.JWTSecret, a.cfg.Auth.TokenTTL())
	handler := api.NewHandler(a.svc, jwt, a.logger)
	server := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           api.SetupRouter(handler, a.cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("starting server", "addr", server.Addr, "version", Version)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen and serve: %w", err)
	case <-ctx.Done():
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	}
}
