package domain

import "time"

type Category string

const (
	CategoryProhibitory Category = "prohibitory"
	CategoryMandatory   Category = "mandatory"
	CategoryWarning     Category = "warning"
	CategoryOther       Category = "other"
)

func ParseCategory(raw string) Category {
	switch Category(normalizeLower(raw)) {
	case CategoryProhibitory:
		return CategoryProhibitory
	case CategoryMandatory:
		return CategoryMandatory
	case CategoryWarning:
		return CategoryWarning
	default:
		return CategoryOther
	}
}

// SignRecord is the canonical description of one traffic-sign class.
// Immutable once the corpus has been validated.
type SignRecord struct {
	ClassID      string   `json:"class_id"`
	OfficialName string   `json:"official_name"`
	Description  string   `json:"description"`
	Category     Category `json:"category"`
}

type ImageAsset struct {
	ID       string `json:"id"`
	ClassID  string `json:"class_id"`
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
	Slot     int    `json:"slot"`
}

type TextChunk struct {
	ID         string `json:"id"`
	ClassID    string `json:"class_id"`
	Text       string `json:"text"`
	ChunkIndex int    `json:"chunk_index"`
	SourceRef  string `json:"source_ref"`
}

// Corpus is the validated output of ingestion. The validator is the only
// writer; downstream components treat it as read-only.
type Corpus struct {
	Records map[string]SignRecord `json:"records"`
	Assets  []ImageAsset          `json:"assets"`
	Chunks  []TextChunk           `json:"chunks"`

	// Partial holds class ids present in only one modality.
	Partial map[string]bool `json:"partial"`

	BuiltAt time.Time `json:"built_at"`
}

func (c *Corpus) IsPartial(classID string) bool {
	return c.Partial[classID]
}

func (c *Corpus) Size() int {
	if c == nil {
		return 0
	}
	return len(c.Records)
}

func (c *Corpus) PartialCount() int {
	if c == nil {
		return 0
	}
	return len(c.Partial)
}

type CorpusStats struct {
	Classes      int       `json:"classes"`
	PartialCount int       `json:"partial_count"`
	IndexedItems int       `json:"indexed_items"`
	IndexedAt    time.Time `json:"indexed_at"`
}

func normalizeLower(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch >= 'A' && ch <= 'Z' {
			ch += 'a' - 'A'
		}
		if ch == ' ' || ch == '\t' {
			continue
		}
		b = append(b, ch)
	}
	return string(b)
}
