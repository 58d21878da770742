package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/numerai/scoring-engine/internal/blobcache"
	"github.com/numerai/scoring-engine/internal/config"
	"github.com/numerai/scoring-engine/internal/httpapi"
	"github.com/numerai/scoring-engine/internal/logging"
	"github.com/numerai/scoring-engine/internal/metadata"
	"github.com/numerai/scoring-engine/internal/pipeline"
	"github.com/numerai/scoring-engine/internal/queue"
	"github.com/numerai/scoring-engine/internal/roundfeatures"
)

// shutdownGrace is how long in-flight work gets to finish after a signal
// before the process returns.
const shutdownGrace = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scoring pipeline and HTTP ingestion endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := blobcache.NewS3Store(ctx, cfg.SubmissionsBucket, cfg.DatasetsBucket)
	if err != nil {
		return err
	}
	blobs, err := blobcache.New(cfg.BlobCacheDir, store)
	if err != nil {
		return err
	}

	gateway, err := metadata.Open(cfg.MetadataDSN)
	if err != nil {
		return err
	}
	defer gateway.Close()

	triad, err := queue.OpenTriad(cfg.QueueDir)
	if err != nil {
		return err
	}
	defer triad.Close()
	if err := triad.Recover(); err != nil {
		return err
	}

	engine, err := roundfeatures.New(blobs)
	if err != nil {
		return err
	}
	subs, err := pipeline.NewSubmissionCache(blobs)
	if err != nil {
		return err
	}

	p := pipeline.New(gateway, blobs, triad, engine, subs, log)

	server := httpapi.NewServer(cfg.APIKey, triad.Ingress, logging.Stage(log, "http"))
	httpServer := &http.Server{Addr: ":" + cfg.Port, Handler: server.Handler()}

	errCh := make(chan error, 4)
	go func() { errCh <- p.RunIngress(ctx) }()
	go func() { errCh <- p.RunConcordance(ctx) }()
	for i := 0; i < cfg.OriginalityPoolSize(); i++ {
		go func() { errCh <- p.RunOriginalityWorker(ctx) }()
	}
	go func() {
		log.WithField("port", cfg.Port).Info("http ingestion listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("worker exited with error")
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown did not complete cleanly")
	}

	return nil
}
