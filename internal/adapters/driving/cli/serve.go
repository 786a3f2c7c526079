package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/intake-cli/internal/adapters/driving/api"
	"github.com/custodia-labs/intake-cli/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server, scheduler, and worker",
	Long: `Starts the long-running process: the REST API, the periodic source
scheduler, and the background task worker. Stops gracefully on SIGINT
or SIGTERM.`,
	RunE: runServe,
}

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "API listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if sourceService == nil || uploadService == nil || workerRunner == nil || schedulerLoop == nil {
		return errors.New("services not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(&api.Ports{
		Sources:   sourceService,
		Backends:  backendRegistry,
		Uploads:   uploadService,
		Wizard:    wizardService,
		Scheduler: sourceScheduler,
		Documents: documentStore,
	})

	httpServer := &http.Server{
		Addr:              serveAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 3)

	go func() {
		logger.Info("scheduler started")
		if err := schedulerLoop.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("scheduler: %w", err)
		}
	}()

	go func() {
		logger.Info("worker started")
		if err := workerRunner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("worker: %w", err)
		}
	}()

	go func() {
		cmd.Printf("API listening on %s\n", serveAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		stop()
		shutdownHTTP(httpServer)
		return err
	}

	cmd.Println("Shutting down...")
	shutdownHTTP(httpServer)
	return nil
}

func shutdownHTTP(server *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown: %v", err)
	}
}
