package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedClassID      = errors.New("malformed class id")
	ErrEmbeddingUnavailable  = errors.New("embedding capability unavailable")
	ErrDimensionMismatch     = errors.New("embedding dimension mismatch")
	ErrVectorStoreIO         = errors.New("vector store io failure")
	ErrAssetStorageIO        = errors.New("asset storage io failure")
	ErrModelVersionMismatch  = errors.New("model version mismatch")
	ErrGenerationUnavailable = errors.New("generation capability unavailable")
	ErrGenerationTimeout     = errors.New("generation timed out")
	ErrNotFound              = errors.New("not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrTemporary             = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
