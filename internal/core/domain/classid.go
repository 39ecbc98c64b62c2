package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeClassID canonicalizes a raw class directory name ("00007",
// "7 ", "007") into its integer round-trip form ("7"). Normalization
// happens once at ingestion; downstream code never re-derives it.
func NormalizeClassID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", WrapError(ErrMalformedClassID, "normalize class id", fmt.Errorf("empty class id"))
	}
	n, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return "", WrapError(ErrMalformedClassID, "normalize class id", fmt.Errorf("%q is not a non-negative integer", raw))
	}
	return strconv.FormatUint(n, 10), nil
}
