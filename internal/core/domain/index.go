package domain

type Modality string

const (
	ModalityImage Modality = "image"
	ModalityText  Modality = "text"
)

// EntryMetadata travels with every stored vector and is the unit the
// search filter predicate evaluates against.
type EntryMetadata struct {
	ClassID      string   `json:"class_id"`
	Modality     Modality `json:"modality"`
	SourceRef    string   `json:"source_ref"`
	ChunkIndex   int      `json:"chunk_index,omitempty"`
	Text         string   `json:"text,omitempty"`
	Partial      bool     `json:"partial,omitempty"`
	ModelVersion string   `json:"model_version"`
}

// IndexEntry is the persisted unit: one vector plus its metadata, keyed
// by (modality, id).
type IndexEntry struct {
	ID       string        `json:"id"`
	Vector   []float32     `json:"vector"`
	Metadata EntryMetadata `json:"metadata"`
}

func (e IndexEntry) Key() string {
	return string(e.Metadata.Modality) + ":" + e.ID
}

// SearchFilter is a hard predicate over entry metadata, applied before
// ranking. Zero value matches everything.
type SearchFilter struct {
	Modality Modality
	ClassIDs []string
}

func (f SearchFilter) Matches(meta EntryMetadata) bool {
	if f.Modality != "" && meta.Modality != f.Modality {
		return false
	}
	if len(f.ClassIDs) > 0 {
		found := false
		for _, id := range f.ClassIDs {
			if id == meta.ClassID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

type ScoredEntry struct {
	Entry IndexEntry `json:"entry"`
	Score float64    `json:"score"`
}
