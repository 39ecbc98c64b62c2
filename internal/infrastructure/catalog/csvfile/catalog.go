package csvfile

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/signatlas/signrag/internal/core/domain"
)

// Catalog persists the validated corpus as the tabular bridge artifact
// between ingestion and indexing: a CSV with one row per image asset,
// plus a JSON sidecar for records, chunks, and the partial-class set.
type Catalog struct {
	csvPath     string
	sidecarPath string
}

func New(csvPath string) *Catalog {
	return &Catalog{
		csvPath:     csvPath,
		sidecarPath: csvPath + ".meta.json",
	}
}

var header = []string{"class_id", "image_path", "checksum", "slot", "asset_id"}

func (c *Catalog) SaveCorpus(_ context.Context, corpus *domain.Corpus) error {
	if err := os.MkdirAll(filepath.Dir(c.csvPath), 0o755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}

	f, err := os.Create(c.csvPath)
	if err != nil {
		return fmt.Errorf("create catalog file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write catalog header: %w", err)
	}

	assets := make([]domain.ImageAsset, len(corpus.Assets))
	copy(assets, corpus.Assets)
	sort.Slice(assets, func(i, j int) bool { return assets[i].Path < assets[j].Path })

	for _, asset := range assets {
		row := []string{asset.ClassID, asset.Path, asset.Checksum, fmt.Sprintf("%d", asset.Slot), asset.ID}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write catalog row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush catalog: %w", err)
	}

	return c.saveSidecar(corpus)
}

func (c *Catalog) LoadCorpus(_ context.Context) (*domain.Corpus, error) {
	corpus, err := c.loadSidecar()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(c.csvPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read catalog rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("catalog file is empty")
	}

	corpus.Assets = make([]domain.ImageAsset, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("catalog row %d has %d columns, want %d", i+1, len(row), len(header))
		}
		var slot int
		if _, err := fmt.Sscanf(row[3], "%d", &slot); err != nil {
			return nil, fmt.Errorf("catalog row %d slot: %w", i+1, err)
		}
		corpus.Assets = append(corpus.Assets, domain.ImageAsset{
			ClassID:  row[0],
			Path:     row[1],
			Checksum: row[2],
			Slot:     slot,
			ID:       row[4],
		})
	}
	return corpus, nil
}

type sidecar struct {
	Records map[string]domain.SignRecord `json:"records"`
	Chunks  []domain.TextChunk           `json:"chunks"`
	Partial []string                     `json:"partial"`
	BuiltAt string                       `json:"built_at"`
}

func (c *Catalog) saveSidecar(corpus *domain.Corpus) error {
	meta := sidecar{
		Records: corpus.Records,
		Chunks:  corpus.Chunks,
		BuiltAt: corpus.BuiltAt.Format(time.RFC3339),
	}
	for id, partial := range corpus.Partial {
		if partial {
			meta.Partial = append(meta.Partial, id)
		}
	}
	sort.Strings(meta.Partial)

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal catalog sidecar: %w", err)
	}
	if err := os.WriteFile(c.sidecarPath, data, 0o644); err != nil {
		return fmt.Errorf("write catalog sidecar: %w", err)
	}
	return nil
}

func (c *Catalog) loadSidecar() (*domain.Corpus, error) {
	data, err := os.ReadFile(c.sidecarPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.WrapError(domain.ErrNotFound, "load catalog sidecar", err)
		}
		return nil, fmt.Errorf("read catalog sidecar: %w", err)
	}
	var meta sidecar
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode catalog sidecar: %w", err)
	}

	corpus := &domain.Corpus{
		Records: meta.Records,
		Chunks:  meta.Chunks,
		Partial: make(map[string]bool, len(meta.Partial)),
	}
	for _, id := range meta.Partial {
		corpus.Partial[id] = true
	}
	if meta.BuiltAt != "" {
		corpus.BuiltAt, _ = time.Parse(time.RFC3339, meta.BuiltAt)
	}
	return corpus, nil
}
