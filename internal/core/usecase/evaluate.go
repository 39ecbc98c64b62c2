package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/signatlas/signrag/internal/core/domain"
	"github.com/signatlas/signrag/internal/core/ports"
)

var overlapStrip = regexp.MustCompile(`[^a-z0-9 ]`)

// EvaluateUseCase scores the live pipeline against a labeled sample set.
// Retrieval quality is recall@k over the expected class ids and source
// refs; answer quality is token overlap with the reference answer. The two
// are equal-weighted into a per-sample quality score.
type EvaluateUseCase struct {
	retriever ports.Retriever
	grounder  ports.Grounder
	topK      int
	logger    *slog.Logger
}

func NewEvaluateUseCase(retriever ports.Retriever, grounder ports.Grounder, topK int, logger *slog.Logger) *EvaluateUseCase {
	if topK <= 0 {
		topK = defaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EvaluateUseCase{
		retriever: retriever,
		grounder:  grounder,
		topK:      topK,
		logger:    logger,
	}
}

// Evaluate runs every sample through the retrieve and ground stages and
// aggregates the scores. A stage failure aborts the run: a broken pipeline
// would poison every following score anyway.
func (uc *EvaluateUseCase) Evaluate(ctx context.Context, samples []domain.EvalSample) (*domain.EvalReport, error) {
	if uc.retriever == nil || uc.grounder == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "evaluate",
			fmt.Errorf("pipeline not configured"))
	}
	if len(samples) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "evaluate",
			fmt.Errorf("empty sample set"))
	}

	report := &domain.EvalReport{TopK: uc.topK}
	var recallSum, answerSum, qualitySum float64

	for i, sample := range samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id := sample.ID
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		question := strings.TrimSpace(sample.Question)
		if question == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "evaluate",
				fmt.Errorf("sample %s has no question", id))
		}

		query := domain.Query{Text: question, Preference: sample.Preference, TopK: uc.topK}
		if query.Preference == "" {
			query.Preference = domain.PreferAny
		}

		retrieval, err := uc.retriever.Retrieve(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("retrieve sample %s: %w", id, err)
		}
		answer, err := uc.grounder.Ground(ctx, query, retrieval)
		if err != nil {
			return nil, fmt.Errorf("ground sample %s: %w", id, err)
		}

		recall := recallAtK(retrieval, sample)
		overlap := answerOverlap(answer.Text, sample.ExpectedAnswer)
		quality := round3(0.5*recall + 0.5*overlap)

		report.Samples = append(report.Samples, domain.EvalSampleResult{
			ID:                id,
			Question:          question,
			Answer:            answer.Text,
			Retrieved:         len(retrieval.Entries),
			RecallAtK:         recall,
			AnswerOverlap:     overlap,
			QualityScore:      quality,
			UnsupportedClaims: answer.UnsupportedClaimCount,
		})
		recallSum += recall
		answerSum += overlap
		qualitySum += quality

		uc.logger.Debug("sample evaluated",
			"id", id, "recall_at_k", recall, "answer_overlap", overlap, "quality", quality)
	}

	n := float64(len(report.Samples))
	report.MeanRecallAtK = round3(recallSum / n)
	report.MeanAnswerScore = round3(answerSum / n)
	report.MeanQualityScore = round3(qualitySum / n)
	return report, nil
}

// recallAtK is the fraction of expected references present in the
// retrieval. Expected class ids match the retrieved class id set; expected
// source refs match by substring so a dataset can name either a full ref
// or just its file stem. No ground truth means a neutral 1.0.
func recallAtK(retrieval domain.RetrievalResult, sample domain.EvalSample) float64 {
	expected := len(sample.ExpectedClassIDs) + len(sample.ExpectedSourceRefs)
	if expected == 0 {
		return 1
	}

	classes := retrieval.ClassIDSet()
	hits := 0
	for _, raw := range sample.ExpectedClassIDs {
		id, err := domain.NormalizeClassID(raw)
		if err != nil {
			id = raw
		}
		if classes[id] {
			hits++
		}
	}
	for _, ref := range sample.ExpectedSourceRefs {
		for _, entry := range retrieval.Entries {
			if strings.Contains(entry.Entry.Metadata.SourceRef, ref) {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(expected)
}

// answerOverlap is the fraction of reference-answer tokens the generated
// answer covers, after lowercasing and stripping punctuation. A sample
// without a reference answer scores a neutral 1.0.
func answerOverlap(answer, expected string) float64 {
	if strings.TrimSpace(expected) == "" {
		return 1
	}
	expectedTokens := overlapTokens(expected)
	if len(expectedTokens) == 0 {
		return 0
	}
	answerTokens := overlapTokens(answer)
	hits := 0
	for token := range expectedTokens {
		if answerTokens[token] {
			hits++
		}
	}
	return float64(hits) / float64(len(expectedTokens))
}

func overlapTokens(text string) map[string]bool {
	cleaned := overlapStrip.ReplaceAllString(strings.ToLower(text), "")
	out := make(map[string]bool)
	for _, token := range strings.Fields(cleaned) {
		out[token] = true
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
