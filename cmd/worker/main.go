package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signatlas/signrag/internal/bootstrap"
	"github.com/signatlas/signrag/internal/config"
	"github.com/signatlas/signrag/internal/core/domain"
	"github.com/signatlas/signrag/internal/observability/logging"
	"github.com/signatlas/signrag/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	queue, err := app.ConnectQueue()
	if err != nil {
		log.Fatalf("connect queue error: %v", err)
	}

	indexerMetrics := metrics.NewIndexerMetrics("worker")
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", indexerMetrics.Handler())
		if err := http.ListenAndServe(":"+cfg.WorkerMetricsPort, mux); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = queue.SubscribeCorpusBuilt(ctx, func(handlerCtx context.Context, corpusRef string) error {
		rebuildCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Minute)
		defer cancel()

		corpus, err := app.Catalog.LoadCorpus(rebuildCtx)
		if err != nil {
			return err
		}
		indexerMetrics.ObserveQueueLag("worker", time.Since(corpus.BuiltAt))

		indexerMetrics.StartRebuild()
		start := time.Now()
		report, err := app.RebuildIndex(rebuildCtx, corpus)
		indexerMetrics.FinishRebuild("worker", time.Since(start), err)
		if err != nil {
			logger.Error("index rebuild failed", "corpus_ref", corpusRef, "error", err)
			return err
		}

		recordIndexReport(indexerMetrics, report)
		logger.Info("index rebuilt",
			"corpus_ref", corpusRef,
			"indexed", report.Indexed,
			"skipped_dimension", report.SkippedDimension,
			"skipped_embed_errors", report.SkippedEmbedErrors,
			"model_version", report.ModelVersion,
		)
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

func recordIndexReport(m *metrics.IndexerMetrics, report *domain.IndexReport) {
	m.RecordIndexedItems("worker", "all", report.Indexed)
	m.RecordSkippedItems("worker", "dimension_mismatch", report.SkippedDimension)
	m.RecordSkippedItems("worker", "embed_error", report.SkippedEmbedErrors)
}
