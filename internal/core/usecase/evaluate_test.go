package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/signatlas/signrag/internal/core/domain"
)

func TestEvaluateScoresRetrievalAndAnswer(t *testing.T) {
	retriever := &fakeRetriever{result: retrievalWith(
		scoredEntry("14", domain.ModalityText, "desc/14#0", 0.92),
		scoredEntry("14", domain.ModalityImage, "class_14/img_00000.png", 0.90),
	)}
	grounder := &fakeGrounder{answer: domain.GroundedAnswer{
		Text: "Drivers must come to a full stop at the line [class 14].",
	}}
	uc := NewEvaluateUseCase(retriever, grounder, 5, nil)

	report, err := uc.Evaluate(context.Background(), []domain.EvalSample{{
		ID:                 "stop-1",
		Question:           "what does the stop sign require",
		ExpectedAnswer:     "come to a full stop",
		ExpectedClassIDs:   []string{"014"},
		ExpectedSourceRefs: []string{"desc/14"},
	}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(report.Samples) != 1 {
		t.Fatalf("expected 1 sample result, got %d", len(report.Samples))
	}
	result := report.Samples[0]
	if result.RecallAtK != 1 {
		t.Fatalf("variant class id and ref stem must both hit, got recall %v", result.RecallAtK)
	}
	// Reference tokens: come, to, a, full, stop — all present in the answer.
	if result.AnswerOverlap != 1 {
		t.Fatalf("expected full answer overlap, got %v", result.AnswerOverlap)
	}
	if result.QualityScore != 1 || report.MeanQualityScore != 1 {
		t.Fatalf("expected quality 1, got sample %v mean %v", result.QualityScore, report.MeanQualityScore)
	}
	if result.Retrieved != 2 {
		t.Fatalf("expected 2 retrieved entries, got %d", result.Retrieved)
	}
}

func TestEvaluateCountsRetrievalMisses(t *testing.T) {
	retriever := &fakeRetriever{result: retrievalWith(
		scoredEntry("5", domain.ModalityText, "desc/5#0", 0.4),
	)}
	grounder := &fakeGrounder{answer: domain.GroundedAnswer{Text: "Parking is forbidden along the marked kerb."}}
	uc := NewEvaluateUseCase(retriever, grounder, 5, nil)

	report, err := uc.Evaluate(context.Background(), []domain.EvalSample{{
		Question:         "where is parking forbidden",
		ExpectedClassIDs: []string{"0", "5"},
		ExpectedAnswer:   "parking forbidden near hydrants",
	}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	result := report.Samples[0]
	if result.RecallAtK != 0.5 {
		t.Fatalf("one of two expected classes retrieved, got recall %v", result.RecallAtK)
	}
	// Reference tokens: parking, forbidden, near, hydrants; the answer
	// covers two of four.
	if result.AnswerOverlap != 0.5 {
		t.Fatalf("expected overlap 0.5, got %v", result.AnswerOverlap)
	}
	if result.QualityScore != 0.5 {
		t.Fatalf("expected quality 0.5, got %v", result.QualityScore)
	}
	if result.ID != "1" {
		t.Fatalf("unlabeled sample gets its ordinal as id, got %q", result.ID)
	}
}

func TestEvaluateNeutralScoresWithoutGroundTruth(t *testing.T) {
	retriever := &fakeRetriever{}
	grounder := &fakeGrounder{answer: domain.GroundedAnswer{Text: "whatever came out"}}
	uc := NewEvaluateUseCase(retriever, grounder, 3, nil)

	report, err := uc.Evaluate(context.Background(), []domain.EvalSample{{Question: "anything"}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	result := report.Samples[0]
	if result.RecallAtK != 1 || result.AnswerOverlap != 1 {
		t.Fatalf("no ground truth must score neutral, got %v/%v", result.RecallAtK, result.AnswerOverlap)
	}
}

func TestEvaluateRejectsEmptyInput(t *testing.T) {
	uc := NewEvaluateUseCase(&fakeRetriever{}, &fakeGrounder{}, 5, nil)

	if _, err := uc.Evaluate(context.Background(), nil); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty sample set, got %v", err)
	}
	_, err := uc.Evaluate(context.Background(), []domain.EvalSample{{ID: "blank", Question: "  "}})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank question, got %v", err)
	}
}

func TestEvaluateAbortsOnStageFailure(t *testing.T) {
	retriever := &fakeRetriever{err: fmt.Errorf("store offline")}
	uc := NewEvaluateUseCase(retriever, &fakeGrounder{}, 5, nil)

	_, err := uc.Evaluate(context.Background(), []domain.EvalSample{{Question: "q"}})
	if err == nil {
		t.Fatalf("expected retrieval failure to abort the run")
	}
}

func TestAnswerOverlapIgnoresCaseAndPunctuation(t *testing.T) {
	if got := answerOverlap("STOP, then proceed!", "stop then proceed"); got != 1 {
		t.Fatalf("expected overlap 1, got %v", got)
	}
	if got := answerOverlap("unrelated words here", "stop then proceed"); got != 0 {
		t.Fatalf("expected overlap 0, got %v", got)
	}
	if got := answerOverlap("anything", "!!!"); got != 0 {
		t.Fatalf("punctuation-only reference has no tokens to cover, got %v", got)
	}
}
