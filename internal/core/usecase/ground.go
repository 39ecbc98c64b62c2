package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/signatlas/signrag/internal/core/domain"
	"github.com/signatlas/signrag/internal/core/ports"
)

const noEvidenceAnswer = "No evidence found in the indexed corpus for this query."

var citationMarker = regexp.MustCompile(`\[class\s+(\d+)\]`)

type GroundUseCase struct {
	generator ports.AnswerGenerator
}

func NewGroundUseCase(generator ports.AnswerGenerator) *GroundUseCase {
	return &GroundUseCase{generator: generator}
}

// Ground builds the evidence-only prompt, invokes generation, and verifies
// post-hoc that every claim sentence cites retrieved evidence. Unsupported
// claims are counted and flagged, never deleted.
func (uc *GroundUseCase) Ground(
	ctx context.Context,
	query domain.Query,
	retrieval domain.RetrievalResult,
) (domain.GroundedAnswer, error) {
	if retrieval.Empty() {
		return domain.GroundedAnswer{Text: noEvidenceAnswer}, nil
	}
	if uc.generator == nil {
		return domain.GroundedAnswer{}, domain.WrapError(domain.ErrGenerationUnavailable, "ground answer",
			fmt.Errorf("no generator configured"))
	}
	// Cancellation after retrieval must not reach the generator.
	if err := ctx.Err(); err != nil {
		return domain.GroundedAnswer{}, err
	}

	answer, err := uc.generator.Generate(ctx, buildEvidencePrompt(query.Text, retrieval))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.GroundedAnswer{}, domain.WrapError(domain.ErrGenerationTimeout, "ground answer", err)
		}
		return domain.GroundedAnswer{}, domain.WrapError(domain.ErrGenerationUnavailable, "ground answer", err)
	}

	known := retrieval.ClassIDSet()
	citedClasses, unsupported := auditClaims(answer, known)

	return domain.GroundedAnswer{
		Text:                  answer,
		Citations:             citationsFor(retrieval, citedClasses),
		UnsupportedClaimCount: unsupported,
	}, nil
}

// buildEvidencePrompt contains only retrieved content. Image entries are
// represented via their linked description text plus the citation marker;
// the generator never needs to see pixels.
func buildEvidencePrompt(question string, retrieval domain.RetrievalResult) string {
	var b strings.Builder
	b.WriteString("You are an expert assistant on traffic signs and road rules.\n")
	b.WriteString("Answer the question using ONLY the evidence blocks below.\n")
	b.WriteString("Cite the evidence for every statement with its marker, e.g. [class 7].\n")
	b.WriteString("If the evidence is insufficient, say so instead of guessing.\n\nEvidence:\n")

	for _, entry := range retrieval.Entries {
		meta := entry.Entry.Metadata
		fmt.Fprintf(&b, "[class %s] (%s, %s)\n%s\n\n", meta.ClassID, meta.Modality, meta.SourceRef, meta.Text)
	}

	fmt.Fprintf(&b, "Question:\n%s\n", question)
	return b.String()
}

// auditClaims splits the answer into claim sentences and checks each one
// cites at least one retrieved class. Returns the set of validly cited
// classes and the count of unsupported claim sentences.
func auditClaims(answer string, known map[string]bool) (map[string]bool, int) {
	cited := make(map[string]bool)
	unsupported := 0

	for _, sentence := range splitSentences(answer) {
		if !isClaimSentence(sentence) {
			continue
		}
		supported := false
		for _, match := range citationMarker.FindAllStringSubmatch(sentence, -1) {
			if known[match[1]] {
				cited[match[1]] = true
				supported = true
			} else {
				unsupported++
				supported = true // counted above; do not double-count as uncited
			}
		}
		if !supported {
			unsupported++
		}
	}
	return cited, unsupported
}

func citationsFor(retrieval domain.RetrievalResult, citedClasses map[string]bool) []domain.Citation {
	var out []domain.Citation
	for _, entry := range retrieval.Entries {
		meta := entry.Entry.Metadata
		if !citedClasses[meta.ClassID] {
			continue
		}
		out = append(out, domain.Citation{
			ClassID:   meta.ClassID,
			Modality:  meta.Modality,
			SourceRef: meta.SourceRef,
		})
	}
	return out
}

func splitSentences(text string) []string {
	var (
		out []string
		b   strings.Builder
	)
	flush := func() {
		s := strings.TrimSpace(b.String())
		if s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			flush()
		}
	}
	flush()
	return out
}

// isClaimSentence filters out fragments too short to assert anything
// (headings, markers, single words).
func isClaimSentence(s string) bool {
	stripped := strings.TrimSpace(citationMarker.ReplaceAllString(s, ""))
	return len(strings.Fields(stripped)) >= 4
}
