package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/signatlas/signrag/internal/config"
	"github.com/signatlas/signrag/internal/core/domain"
	"github.com/signatlas/signrag/internal/core/ports"
	"github.com/signatlas/signrag/internal/core/usecase"
	"github.com/signatlas/signrag/internal/infrastructure/catalog/csvfile"
	catalogpg "github.com/signatlas/signrag/internal/infrastructure/catalog/postgres"
	"github.com/signatlas/signrag/internal/infrastructure/chunking"
	"github.com/signatlas/signrag/internal/infrastructure/embed/clipserver"
	"github.com/signatlas/signrag/internal/infrastructure/extractor/pdftext"
	"github.com/signatlas/signrag/internal/infrastructure/llm/ollama"
	natsqueue "github.com/signatlas/signrag/internal/infrastructure/queue/nats"
	"github.com/signatlas/signrag/internal/infrastructure/resilience"
	"github.com/signatlas/signrag/internal/infrastructure/storage/localfs"
	vectorlocal "github.com/signatlas/signrag/internal/infrastructure/vector/local"
	"github.com/signatlas/signrag/internal/infrastructure/vector/qdrant"
)

// App wires the full dependency graph once per process. cmd binaries pick
// the pieces they need.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Catalog   ports.CatalogRepository
	Storage   ports.AssetStorage
	Embedder  ports.Embedder
	Generator ports.AnswerGenerator

	Validator  ports.CorpusValidator
	Generation *usecase.IndexGeneration
	Queries    ports.QueryService
	Evaluator  *usecase.EvaluateUseCase

	embedLimiter *rate.Limiter
	db           *sql.DB
	queue        *natsqueue.Queue
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	app := &App{
		Config:     cfg,
		Logger:     logger,
		Generation: usecase.NewIndexGeneration(),
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init asset storage: %w", err)
	}
	app.Storage = storage

	switch cfg.CatalogBackend {
	case "postgres":
		db, err := catalogpg.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		catalog := catalogpg.NewCatalog(db)
		if err := catalog.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure catalog schema: %w", err)
		}
		app.db = db
		app.Catalog = catalog
	default:
		app.Catalog = csvfile.New(cfg.CatalogPath)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	app.Embedder = clipserver.New(cfg.CLIPURL, cfg.CLIPModel, cfg.EmbedDimension, executor)
	app.Generator = ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, executor)
	app.embedLimiter = rate.NewLimiter(rate.Limit(cfg.EmbedRateRPS), cfg.EmbedRateBurst)

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	extractor := pdftext.New(cfg.RegulatoryPDFDir)
	app.Validator = usecase.NewValidateCorpusUseCase(storage, chunker, extractor, logger)

	retriever := usecase.NewRetrieveUseCase(app.Embedder, app.Generation, cfg.MergeEpsilon)
	grounder := usecase.NewGroundUseCase(app.Generator)
	app.Queries = usecase.NewQueryOrchestrator(
		retriever,
		grounder,
		app.Generation,
		cfg.RetrieveTimeout,
		cfg.GenerateTimeout,
		logger,
	)
	app.Evaluator = usecase.NewEvaluateUseCase(retriever, grounder, cfg.TopK, logger)

	return app, nil
}

// NewVectorStore returns a fresh store instance for the configured backend.
// Index rebuilds write into a fresh instance and swap it in afterwards, so
// readers never see a half-written generation.
func (a *App) NewVectorStore() (ports.VectorStore, error) {
	switch a.Config.StoreBackend {
	case "qdrant":
		return qdrant.New(a.Config.QdrantURL, a.Config.QdrantCollection, a.Config.EmbedDimension), nil
	default:
		return vectorlocal.New(a.Config.SnapshotPath, a.Config.EmbedDimension)
	}
}

// RebuildIndex embeds the corpus into a fresh store, persists it and swaps
// the live generation.
func (a *App) RebuildIndex(ctx context.Context, corpus *domain.Corpus) (*domain.IndexReport, error) {
	store, err := a.NewVectorStore()
	if err != nil {
		return nil, fmt.Errorf("new vector store: %w", err)
	}
	indexer := usecase.NewBuildIndexUseCase(
		a.Embedder,
		store,
		a.Storage,
		a.embedLimiter,
		a.Config.IndexWorkers,
		a.Logger,
	)
	report, err := indexer.BuildIndex(ctx, corpus)
	if err != nil {
		return nil, err
	}
	a.Generation.Swap(store, corpus, time.Now().UTC())
	return report, nil
}

// RestoreIndex loads the persisted store and catalog into the live
// generation. A missing catalog leaves the generation empty, which queries
// treat as the no-evidence case.
func (a *App) RestoreIndex(ctx context.Context) error {
	corpus, err := a.Catalog.LoadCorpus(ctx)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			a.Logger.Info("no catalog found, starting with empty index")
			return nil
		}
		return fmt.Errorf("load catalog: %w", err)
	}

	store, err := a.NewVectorStore()
	if err != nil {
		return fmt.Errorf("new vector store: %w", err)
	}
	if err := store.Load(ctx); err != nil {
		return fmt.Errorf("load vector store: %w", err)
	}
	a.Generation.Swap(store, corpus, corpus.BuiltAt)
	return nil
}

// ConnectQueue dials NATS on demand: only ingest publishers and the index
// worker need it.
func (a *App) ConnectQueue() (ports.MessageQueue, error) {
	if a.queue != nil {
		return a.queue, nil
	}
	queue, err := natsqueue.New(a.Config.NATSURL, a.Config.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("connect message queue: %w", err)
	}
	a.queue = queue
	return queue, nil
}

func (a *App) Close() {
	if a.queue != nil {
		a.queue.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
