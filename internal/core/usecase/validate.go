package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/signatlas/signrag/internal/core/domain"
	"github.com/signatlas/signrag/internal/core/ports"
)

type ValidateCorpusUseCase struct {
	storage   ports.AssetStorage
	chunker   ports.Chunker
	extractor ports.RegulatoryTextExtractor
	logger    *slog.Logger
}

func NewValidateCorpusUseCase(
	storage ports.AssetStorage,
	chunker ports.Chunker,
	extractor ports.RegulatoryTextExtractor,
	logger *slog.Logger,
) *ValidateCorpusUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ValidateCorpusUseCase{
		storage:   storage,
		chunker:   chunker,
		extractor: extractor,
		logger:    logger,
	}
}

// Validate builds a consistent corpus from raw ingestion tuples. It is the
// sole writer of class-id linkage: ids are normalized exactly once here.
func (uc *ValidateCorpusUseCase) Validate(
	ctx context.Context,
	images []ports.RawImage,
	descriptions map[string]ports.RawDescription,
) (*domain.Corpus, *domain.ValidationReport, error) {
	report := &domain.ValidationReport{}

	records, malformedDesc := uc.buildRecords(descriptions)
	report.MalformedSkipped = append(report.MalformedSkipped, malformedDesc...)

	assets, imageClasses, err := uc.storeAssets(ctx, images, report)
	if err != nil {
		return nil, nil, err
	}

	descClasses := make(map[string]bool, len(records))
	for id := range records {
		descClasses[id] = true
	}

	partial := linkageGaps(imageClasses, descClasses, report)

	// Image-only classes still need a resolvable record so the linkage
	// invariant holds; they stay flagged partial.
	for id := range imageClasses {
		if _, ok := records[id]; !ok {
			records[id] = domain.SignRecord{
				ClassID:  id,
				Category: domain.CategoryOther,
			}
		}
	}

	chunks := uc.buildChunks(ctx, records, descClasses)

	report.ClassesFound = len(records)
	sort.Strings(report.PartialClasses)

	if report.ClassesFound == 0 {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "validate corpus",
			fmt.Errorf("no valid classes in %d images and %d descriptions", len(images), len(descriptions)))
	}

	corpus := &domain.Corpus{
		Records: records,
		Assets:  assets,
		Chunks:  chunks,
		Partial: partial,
		BuiltAt: time.Now().UTC(),
	}

	uc.logger.Info("corpus validated",
		"classes", report.ClassesFound,
		"assets", len(assets),
		"chunks", len(chunks),
		"partial", len(partial),
		"collisions_renamed", report.CollisionsRenamed,
	)
	return corpus, report, nil
}

func (uc *ValidateCorpusUseCase) buildRecords(descriptions map[string]ports.RawDescription) (map[string]domain.SignRecord, []string) {
	records := make(map[string]domain.SignRecord, len(descriptions))
	var malformed []string

	for rawID, desc := range descriptions {
		classID, err := domain.NormalizeClassID(rawID)
		if err != nil {
			malformed = append(malformed, rawID)
			continue
		}
		records[classID] = domain.SignRecord{
			ClassID:      classID,
			OfficialName: strings.TrimSpace(desc.OfficialName),
			Description:  strings.TrimSpace(desc.Description),
			Category:     domain.ParseCategory(desc.Category),
		}
	}
	sort.Strings(malformed)
	return records, malformed
}

func (uc *ValidateCorpusUseCase) storeAssets(
	ctx context.Context,
	images []ports.RawImage,
	report *domain.ValidationReport,
) ([]domain.ImageAsset, map[string]bool, error) {
	assets := make([]domain.ImageAsset, 0, len(images))
	imageClasses := make(map[string]bool)
	taken := make(map[string]bool)

	for _, raw := range images {
		classID, err := domain.NormalizeClassID(raw.ClassDirName)
		if err != nil {
			report.MalformedSkipped = append(report.MalformedSkipped, raw.ClassDirName)
			continue
		}

		slot := preferredSlot(raw.Filename)
		key := assetKey(classID, slot, raw.Filename)
		if collides, err := uc.slotTaken(ctx, taken, key); err != nil {
			return nil, nil, err
		} else if collides {
			// Append-only catalog: a second write to an occupied slot is
			// renamed to the next free slot, never overwritten.
			for {
				slot++
				key = assetKey(classID, slot, raw.Filename)
				collides, err := uc.slotTaken(ctx, taken, key)
				if err != nil {
					return nil, nil, err
				}
				if !collides {
					break
				}
			}
			report.CollisionsRenamed++
		}

		if err := uc.storage.Save(ctx, key, raw.Data); err != nil {
			return nil, nil, domain.WrapError(domain.ErrAssetStorageIO, "store image asset", err)
		}
		taken[key] = true

		sum := sha256.Sum256(raw.Data)
		assets = append(assets, domain.ImageAsset{
			ID:       uuid.NewString(),
			ClassID:  classID,
			Path:     key,
			Checksum: hex.EncodeToString(sum[:]),
			Slot:     slot,
		})
		imageClasses[classID] = true
	}
	return assets, imageClasses, nil
}

func (uc *ValidateCorpusUseCase) slotTaken(ctx context.Context, taken map[string]bool, key string) (bool, error) {
	if taken[key] {
		return true, nil
	}
	exists, err := uc.storage.Exists(ctx, key)
	if err != nil {
		return false, domain.WrapError(domain.ErrAssetStorageIO, "check asset slot", err)
	}
	return exists, nil
}

func (uc *ValidateCorpusUseCase) buildChunks(
	ctx context.Context,
	records map[string]domain.SignRecord,
	descClasses map[string]bool,
) []domain.TextChunk {
	ids := make([]string, 0, len(records))
	for id := range records {
		if descClasses[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var chunks []domain.TextChunk
	for _, id := range ids {
		record := records[id]
		text := record.Description
		if uc.extractor != nil {
			supplement, err := uc.extractor.ExtractForClass(ctx, id)
			if err != nil {
				uc.logger.Warn("regulatory text extraction failed", "class_id", id, "error", err)
			} else if supplement != "" {
				text = text + "\n\n" + supplement
			}
		}

		for i, passage := range uc.chunker.Split(text) {
			chunks = append(chunks, domain.TextChunk{
				ID:         uuid.NewString(),
				ClassID:    id,
				Text:       passage,
				ChunkIndex: i,
				SourceRef:  fmt.Sprintf("desc/%s#%d", id, i),
			})
		}
	}
	return chunks
}

func linkageGaps(imageClasses, descClasses map[string]bool, report *domain.ValidationReport) map[string]bool {
	partial := make(map[string]bool)
	for id := range imageClasses {
		if !descClasses[id] {
			report.MissingInDescriptions = append(report.MissingInDescriptions, id)
			report.PartialClasses = append(report.PartialClasses, id)
			partial[id] = true
		}
	}
	for id := range descClasses {
		if !imageClasses[id] {
			report.MissingInImages = append(report.MissingInImages, id)
			report.PartialClasses = append(report.PartialClasses, id)
			partial[id] = true
		}
	}
	sort.Strings(report.MissingInDescriptions)
	sort.Strings(report.MissingInImages)
	return partial
}

func preferredSlot(filename string) int {
	stem := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	if idx := strings.LastIndexByte(stem, '_'); idx >= 0 {
		stem = stem[idx+1:]
	}
	if n, err := strconv.Atoi(stem); err == nil && n >= 0 {
		return n
	}
	return 0
}

func assetKey(classID string, slot int, filename string) string {
	ext := path.Ext(filename)
	if ext == "" {
		ext = ".png"
	}
	return fmt.Sprintf("class_%s/img_%05d%s", classID, slot, ext)
}
