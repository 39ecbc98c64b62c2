package usecase

import (
	"sort"

	"github.com/signatlas/signrag/internal/core/domain"
)

// sortScored orders candidates by score descending with deterministic
// ties: ascending source_ref.
func sortScored(hits []domain.ScoredEntry) []domain.ScoredEntry {
	out := make([]domain.ScoredEntry, len(hits))
	copy(out, hits)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Entry.Metadata.SourceRef < out[j].Entry.Metadata.SourceRef
	})
	return out
}

// dedupByClassModality keeps only the best-scoring representative per
// (class_id, modality) pair so near-identical image variants of one class
// do not crowd out other classes. Input must already be score-sorted.
func dedupByClassModality(hits []domain.ScoredEntry) []domain.ScoredEntry {
	seen := make(map[string]bool, len(hits))
	out := hits[:0:0]
	for _, hit := range hits {
		key := hit.Entry.Metadata.ClassID + "|" + string(hit.Entry.Metadata.Modality)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, hit)
	}
	return out
}

// interleaveBands walks a score-sorted list and reorders entries
// round-robin by modality inside every epsilon-wide score band, so one
// modality's score distribution cannot crowd out the other on near-ties.
func interleaveBands(hits []domain.ScoredEntry, epsilon float64) {
	for start := 0; start < len(hits); {
		end := start + 1
		for end < len(hits) && hits[start].Score-hits[end].Score <= epsilon {
			end++
		}
		if end-start > 1 {
			interleaveBand(hits[start:end])
		}
		start = end
	}
}

// interleaveBand reorders one tie band round-robin by modality, keeping
// the within-modality order produced by the caller's sort.
func interleaveBand(band []domain.ScoredEntry) {
	byModality := make(map[domain.Modality][]domain.ScoredEntry, 2)
	order := make([]domain.Modality, 0, 2)
	for _, hit := range band {
		m := hit.Entry.Metadata.Modality
		if _, seen := byModality[m]; !seen {
			order = append(order, m)
		}
		byModality[m] = append(byModality[m], hit)
	}
	if len(order) < 2 {
		return
	}

	idx := 0
	for round := 0; idx < len(band); round++ {
		for _, m := range order {
			queue := byModality[m]
			if round < len(queue) {
				band[idx] = queue[round]
				idx++
			}
		}
	}
}
