package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/techtag/internal/api"
	"github.com/ppiankov/techtag/internal/rules"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve exposes analysis, batch runs, resets and the review queue over
HTTP, plus /health and /metrics. With rules.watch enabled, edits to the
rule or ontology file invalidate the caches; the next request re-validates.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	// Fail fast on an invalid configuration.
	if _, err := a.engine.Reload(); err != nil {
		return fmt.Errorf("rule configuration rejected: %w", err)
	}

	if a.cfg.Rules.Watch {
		w, err := rules.NewWatcher(
			[]string{a.cfg.Rules.Path, a.cfg.Ontology.Path},
			[]rules.Invalidator{a.ontology, a.rules},
			a.logger,
		)
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()
		go func() {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("rule watcher stopped", zap.Error(err))
			}
		}()
	}

	srv, err := api.NewServer(a.engine, a.batch, a.reviewer, a.logger, a.cfg.API)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
