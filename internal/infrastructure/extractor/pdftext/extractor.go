package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor pulls long-form regulatory text for a class from a per-class
// PDF placed beside the descriptions file (e.g. regulations/7.pdf for
// class "7"). A missing file is not an error: the class simply has no
// supplement.
type Extractor struct {
	baseDir string
}

func New(baseDir string) *Extractor {
	return &Extractor{baseDir: baseDir}
}

func (e *Extractor) ExtractForClass(_ context.Context, classID string) (string, error) {
	if e.baseDir == "" {
		return "", nil
	}
	path := filepath.Join(e.baseDir, classID+".pdf")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("stat regulation pdf: %w", err)
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open regulation pdf %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text %s: %w", path, err)
	}
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text %s: %w", path, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
