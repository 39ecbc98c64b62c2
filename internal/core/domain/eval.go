package domain

// EvalSample is one labeled example from the evaluation dataset: a
// question with the class ids and source refs a correct retrieval should
// surface and, optionally, a reference answer.
type EvalSample struct {
	ID                 string             `json:"id"`
	Question           string             `json:"question"`
	Preference         ModalityPreference `json:"modality_preference,omitempty"`
	ExpectedAnswer     string             `json:"expected_answer,omitempty"`
	ExpectedClassIDs   []string           `json:"expected_class_ids,omitempty"`
	ExpectedSourceRefs []string           `json:"expected_source_refs,omitempty"`
}

// EvalSampleResult scores one sample. RecallAtK covers retrieval quality,
// AnswerOverlap the generated answer, QualityScore their equal-weight mix.
type EvalSampleResult struct {
	ID                string  `json:"id"`
	Question          string  `json:"question"`
	Answer            string  `json:"answer"`
	Retrieved         int     `json:"retrieved"`
	RecallAtK         float64 `json:"recall_at_k"`
	AnswerOverlap     float64 `json:"answer_overlap"`
	QualityScore      float64 `json:"quality_score"`
	UnsupportedClaims int     `json:"unsupported_claims"`
}

// EvalReport aggregates a full evaluation run.
type EvalReport struct {
	TopK             int                `json:"top_k"`
	Samples          []EvalSampleResult `json:"samples"`
	MeanRecallAtK    float64            `json:"mean_recall_at_k"`
	MeanAnswerScore  float64            `json:"mean_answer_score"`
	MeanQualityScore float64            `json:"mean_quality_score"`
}
