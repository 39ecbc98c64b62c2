package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/signatlas/signrag/internal/core/domain"
	"github.com/signatlas/signrag/internal/core/ports"
)

const defaultIndexWorkers = 4

type BuildIndexUseCase struct {
	embedder ports.Embedder
	store    ports.VectorStore
	storage  ports.AssetStorage
	limiter  *rate.Limiter
	workers  int
	logger   *slog.Logger
}

func NewBuildIndexUseCase(
	embedder ports.Embedder,
	store ports.VectorStore,
	storage ports.AssetStorage,
	limiter *rate.Limiter,
	workers int,
	logger *slog.Logger,
) *BuildIndexUseCase {
	if workers <= 0 {
		workers = defaultIndexWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BuildIndexUseCase{
		embedder: embedder,
		store:    store,
		storage:  storage,
		limiter:  limiter,
		workers:  workers,
		logger:   logger,
	}
}

type indexJob struct {
	modality  domain.Modality
	id        string
	classID   string
	sourceRef string
	chunkIdx  int
	text      string
	assetPath string
}

// BuildIndex embeds every asset and chunk of a validated corpus and writes
// the entries to the vector store. Item failures are isolated: a skipped
// item is counted in the report and never corrupts the batch.
func (uc *BuildIndexUseCase) BuildIndex(ctx context.Context, corpus *domain.Corpus) (*domain.IndexReport, error) {
	if uc.embedder == nil {
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "build index",
			fmt.Errorf("no embedder configured"))
	}
	if corpus == nil || corpus.Size() == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "build index",
			fmt.Errorf("empty corpus"))
	}

	jobs := uc.collectJobs(corpus)
	report := &domain.IndexReport{ModelVersion: uc.embedder.ModelVersion()}

	jobCh := make(chan indexJob)
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		entries []domain.IndexEntry
	)

	for i := 0; i < uc.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				entry, err := uc.embedJob(ctx, corpus, job)
				mu.Lock()
				switch {
				case err == nil:
					entries = append(entries, entry)
					report.Indexed++
				case domain.IsKind(err, domain.ErrDimensionMismatch):
					report.SkippedDimension++
					report.FailedItems = append(report.FailedItems, job.key())
				default:
					report.SkippedEmbedErrors++
					report.FailedItems = append(report.FailedItems, job.key())
					uc.logger.Warn("embedding failed", "item", job.key(), "error", err)
				}
				mu.Unlock()
			}
		}()
	}

	for _, job := range jobs {
		select {
		case <-ctx.Done():
			close(jobCh)
			wg.Wait()
			return nil, ctx.Err()
		case jobCh <- job:
		}
	}
	close(jobCh)
	wg.Wait()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Metadata.SourceRef < entries[j].Metadata.SourceRef
	})
	sort.Strings(report.FailedItems)

	if err := uc.store.Put(ctx, entries); err != nil {
		return nil, domain.WrapError(domain.ErrVectorStoreIO, "write index entries", err)
	}
	if err := uc.store.Persist(ctx); err != nil {
		return nil, domain.WrapError(domain.ErrVectorStoreIO, "persist index", err)
	}

	uc.logger.Info("index built",
		"indexed", report.Indexed,
		"skipped_dimension", report.SkippedDimension,
		"skipped_embed_errors", report.SkippedEmbedErrors,
		"model_version", report.ModelVersion,
	)
	return report, nil
}

func (uc *BuildIndexUseCase) collectJobs(corpus *domain.Corpus) []indexJob {
	jobs := make([]indexJob, 0, len(corpus.Assets)+len(corpus.Chunks))
	for _, asset := range corpus.Assets {
		jobs = append(jobs, indexJob{
			modality:  domain.ModalityImage,
			id:        asset.ID,
			classID:   asset.ClassID,
			sourceRef: asset.Path,
			assetPath: asset.Path,
		})
	}
	for _, chunk := range corpus.Chunks {
		jobs = append(jobs, indexJob{
			modality:  domain.ModalityText,
			id:        chunk.ID,
			classID:   chunk.ClassID,
			sourceRef: chunk.SourceRef,
			chunkIdx:  chunk.ChunkIndex,
			text:      chunk.Text,
		})
	}
	return jobs
}

func (uc *BuildIndexUseCase) embedJob(ctx context.Context, corpus *domain.Corpus, job indexJob) (domain.IndexEntry, error) {
	if uc.limiter != nil {
		if err := uc.limiter.Wait(ctx); err != nil {
			return domain.IndexEntry{}, err
		}
	}

	var (
		vector []float32
		err    error
		text   = job.text
	)
	switch job.modality {
	case domain.ModalityImage:
		data, openErr := uc.storage.Open(ctx, job.assetPath)
		if openErr != nil {
			return domain.IndexEntry{}, fmt.Errorf("open asset %s: %w", job.assetPath, openErr)
		}
		vector, err = uc.embedder.EmbedImage(ctx, data)
		text = imageSurrogateText(corpus.Records[job.classID])
	default:
		vector, err = uc.embedder.EmbedText(ctx, job.text)
	}
	if err != nil {
		return domain.IndexEntry{}, fmt.Errorf("embed %s: %w", job.key(), err)
	}

	if dim := uc.embedder.Dimension(); len(vector) != dim {
		return domain.IndexEntry{}, domain.WrapError(domain.ErrDimensionMismatch, "embed item",
			fmt.Errorf("%s: got %d, store expects %d", job.key(), len(vector), dim))
	}

	return domain.IndexEntry{
		ID:     job.id,
		Vector: l2Normalize(vector),
		Metadata: domain.EntryMetadata{
			ClassID:      job.classID,
			Modality:     job.modality,
			SourceRef:    job.sourceRef,
			ChunkIndex:   job.chunkIdx,
			Text:         text,
			Partial:      corpus.IsPartial(job.classID),
			ModelVersion: uc.embedder.ModelVersion(),
		},
	}, nil
}

func (j indexJob) key() string {
	return string(j.modality) + ":" + j.sourceRef
}

// imageSurrogateText is the textual surrogate stored with an image vector
// so grounding can quote the linked description instead of pixels.
func imageSurrogateText(record domain.SignRecord) string {
	if record.OfficialName == "" {
		return fmt.Sprintf("Traffic sign of class %s. Category: %s.", record.ClassID, record.Category)
	}
	return fmt.Sprintf("Traffic sign: %s. Category: %s.", record.OfficialName, record.Category)
}

func l2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
