package domain

// ValidationReport summarizes one ingestion pass. It is informational:
// only zero valid classes (or a hard I/O failure) aborts ingestion.
type ValidationReport struct {
	ClassesFound          int      `json:"classes_found"`
	PartialClasses        []string `json:"partial_classes,omitempty"`
	MissingInDescriptions []string `json:"missing_in_descriptions,omitempty"`
	MissingInImages       []string `json:"missing_in_images,omitempty"`
	MalformedSkipped      []string `json:"malformed_skipped,omitempty"`
	CollisionsRenamed     int      `json:"collisions_renamed"`
}

// IndexReport summarizes one index build. Per-item failures are isolated
// here instead of failing the batch.
type IndexReport struct {
	Indexed            int      `json:"indexed"`
	SkippedDimension   int      `json:"skipped_dimension"`
	SkippedEmbedErrors int      `json:"skipped_embed_errors"`
	FailedItems        []string `json:"failed_items,omitempty"`
	ModelVersion       string   `json:"model_version"`
}
