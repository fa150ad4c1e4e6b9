package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"redraft/internal/config"
	"redraft/internal/logger"
	"redraft/internal/server"
)

// NewServeCmd creates the serve command for starting the HTTP API.
func NewServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the redraft API server.

The server accepts article submissions, reports task progress, and
serves article and detection history.

Examples:
  # Start on the configured address (default :8080)
  redraft serve

  # Start on a custom address
  redraft serve --addr :3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config: :8080)")

	return cmd
}

func runServe(ctx context.Context, addr string) error {
	cfg := config.Get()
	serverCfg := cfg.Server
	if addr != "" {
		serverCfg.Addr = addr
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := buildPipeline(ctx, st)
	if err != nil {
		return err
	}

	srv := server.New(st, p, serverCfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("signal received, shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	p.Wait()
	return nil
}
