package domain

type ModalityPreference string

const (
	PreferAny   ModalityPreference = "any"
	PreferImage ModalityPreference = "image"
	PreferText  ModalityPreference = "text"
)

type Query struct {
	Text       string             `json:"text"`
	Preference ModalityPreference `json:"modality_preference"`
	TopK       int                `json:"top_k"`
	Filter     SearchFilter       `json:"-"`
}

type RetrievedEntry struct {
	Entry IndexEntry `json:"entry"`
	Score float64    `json:"score"`
	Rank  int        `json:"rank"`
}

// RetrievalResult is ordered by rank and holds at most TopK entries,
// deduplicated per (class_id, modality).
type RetrievalResult struct {
	Entries []RetrievedEntry `json:"entries"`
}

func (r RetrievalResult) Empty() bool {
	return len(r.Entries) == 0
}

// ClassIDSet returns the distinct class ids present in the result.
func (r RetrievalResult) ClassIDSet() map[string]bool {
	out := make(map[string]bool, len(r.Entries))
	for _, e := range r.Entries {
		out[e.Entry.Metadata.ClassID] = true
	}
	return out
}

// Citation is the minimal provenance unit a generated claim references.
type Citation struct {
	ClassID   string   `json:"class_id"`
	Modality  Modality `json:"modality"`
	SourceRef string   `json:"source_ref"`
}

type GroundedAnswer struct {
	Text                  string     `json:"text"`
	Citations             []Citation `json:"citations"`
	UnsupportedClaimCount int        `json:"unsupported_claim_count"`
}
