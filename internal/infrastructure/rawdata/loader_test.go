package rawdata

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadImagesKeepsFolderNamesAndSortsFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "0007", "zz_last.png"), []byte("z"))
	writeFile(t, filepath.Join(dir, "0007", "aa_first.ppm"), []byte("a"))
	writeFile(t, filepath.Join(dir, "14", "img_00000.jpg"), []byte("j"))

	images, err := LoadImages(dir)
	if err != nil {
		t.Fatalf("load images: %v", err)
	}
	if len(images) != 3 {
		t.Fatalf("expected 3 images, got %d", len(images))
	}
	if images[0].ClassDirName != "0007" || images[0].Filename != "aa_first.ppm" {
		t.Fatalf("expected sorted files within folder, got %+v", images[0])
	}
	if images[1].Filename != "zz_last.png" {
		t.Fatalf("expected zz_last.png second, got %q", images[1].Filename)
	}
	if images[2].ClassDirName != "14" {
		t.Fatalf("folder name must pass through untouched, got %q", images[2].ClassDirName)
	}
	if string(images[0].Data) != "a" {
		t.Fatalf("image bytes not loaded: %q", images[0].Data)
	}
}

func TestLoadImagesIgnoresNonImageEntries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "3", "img_00000.png"), []byte("ok"))
	writeFile(t, filepath.Join(dir, "3", "labels.csv"), []byte("not an image"))
	writeFile(t, filepath.Join(dir, "3", "notes.txt"), []byte("skip"))
	writeFile(t, filepath.Join(dir, "3", "UPPER.JPG"), []byte("case"))
	writeFile(t, filepath.Join(dir, "stray.png"), []byte("not in a class folder"))

	images, err := LoadImages(dir)
	if err != nil {
		t.Fatalf("load images: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(images))
	}
	for _, image := range images {
		if image.Filename == "labels.csv" || image.Filename == "notes.txt" || image.Filename == "stray.png" {
			t.Fatalf("non-image entry leaked: %q", image.Filename)
		}
	}
}

func TestLoadImagesFailsOnMissingDir(t *testing.T) {
	if _, err := LoadImages(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestLoadDescriptionsDecodesMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "descriptions.json")
	writeFile(t, path, []byte(`{
		"14": {"official_name": "Stop", "description": "Come to a full stop.", "category": "mandatory"},
		"007": {"official_name": "Speed limit 100", "description": "Limit.", "category": "prohibitory"}
	}`))

	descriptions, err := LoadDescriptions(path)
	if err != nil {
		t.Fatalf("load descriptions: %v", err)
	}
	if len(descriptions) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(descriptions))
	}
	stop := descriptions["14"]
	if stop.OfficialName != "Stop" || stop.Category != "mandatory" {
		t.Fatalf("unexpected entry %+v", stop)
	}
	// Keys are raw; the validator owns class id normalization.
	if _, ok := descriptions["007"]; !ok {
		t.Fatalf("raw key must survive decoding: %v", descriptions)
	}
}

func TestLoadDescriptionsRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	writeFile(t, path, []byte(`{"14": `))
	if _, err := LoadDescriptions(path); err == nil {
		t.Fatalf("expected decode error")
	}
}
