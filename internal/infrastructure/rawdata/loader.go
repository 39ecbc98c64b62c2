package rawdata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/signatlas/signrag/internal/core/ports"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".ppm":  true,
	".svg":  true,
}

// LoadImages walks a directory of raw class folders (one folder per class,
// image files inside) and returns the flat ingestion tuples. The folder
// names are passed through untouched; normalization belongs to the
// validator.
func LoadImages(dir string) ([]ports.RawImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read image dir: %w", err)
	}

	var out []ports.RawImage
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		classDir := filepath.Join(dir, entry.Name())
		files, err := os.ReadDir(classDir)
		if err != nil {
			return nil, fmt.Errorf("read class dir %s: %w", entry.Name(), err)
		}

		names := make([]string, 0, len(files))
		for _, file := range files {
			if file.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(file.Name()))] {
				continue
			}
			names = append(names, file.Name())
		}
		sort.Strings(names)

		for _, name := range names {
			data, err := os.ReadFile(filepath.Join(classDir, name))
			if err != nil {
				return nil, fmt.Errorf("read image %s/%s: %w", entry.Name(), name, err)
			}
			out = append(out, ports.RawImage{
				ClassDirName: entry.Name(),
				Filename:     name,
				Data:         data,
			})
		}
	}
	return out, nil
}

// LoadDescriptions reads the JSON mapping of class id to sign description.
func LoadDescriptions(path string) (map[string]ports.RawDescription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptions file: %w", err)
	}
	var out map[string]ports.RawDescription
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode descriptions json: %w", err)
	}
	return out, nil
}
