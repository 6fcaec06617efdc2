package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/api"
	"github.com/sells-group/lead-engine/internal/dedupe"
	"github.com/sells-group/lead-engine/internal/importer"
	"github.com/sells-group/lead-engine/internal/jobs"
	"github.com/sells-group/lead-engine/internal/scorer"
	"github.com/sells-group/lead-engine/internal/similarity"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Serves the lead engine over HTTP: job submission and polling, CSV/XLSX import, duplicate scanning, and merges.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		enricher, err := initEnricher()
		if err != nil {
			return err
		}

		orch := jobs.New(st, enricher, scorer.New(cfg.Scoring.ScorerWeights()), jobs.Options{
			DefaultBatchSize: cfg.Jobs.DefaultBatchSize,
			InterChunkDelay:  cfg.Jobs.InterChunkDelay(),
		})

		server := &api.Server{
			Store:            st,
			Orchestrator:     orch,
			Detector:         dedupe.NewDetector(st, st, similarity.NewEngine(cfg.Similarity.EngineWeights())),
			Importer:         importer.New(st, st),
			DefaultThreshold: cfg.Similarity.Threshold,
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           server.NewRouter(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown: stop accepting requests, then let running
		// jobs reach a chunk boundary or finish.
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		zap.L().Info("waiting for running jobs")
		orch.Wait()
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
