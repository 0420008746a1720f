package faces

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Archive keeps enrollment snapshots on disk as <dir>/id_<n>/<k>.jpg.
// A zero Archive (empty dir) discards everything.
type Archive struct {
	dir string
}

// NewArchive creates an archive rooted at dir.
func NewArchive(dir string) *Archive {
	return &Archive{dir: dir}
}

// Enabled reports whether snapshots are written at all.
func (a *Archive) Enabled() bool {
	return a != nil && a.dir != ""
}

// Save stores the face inside box for identity id and returns the file path.
// Files are numbered after the ones already present in the identity folder.
func (a *Archive) Save(id int, img image.Image, box image.Rectangle) (string, error) {
	if !a.Enabled() {
		return "", nil
	}

	data, err := CropFaceJPEG(img, box)
	if err != nil {
		return "", err
	}

	folder := filepath.Join(a.dir, fmt.Sprintf("id_%d", id))
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("failed to create face folder: %w", err)
	}

	n, err := nextSnapshotNumber(folder)
	if err != nil {
		return "", err
	}

	path := filepath.Join(folder, strconv.Itoa(n)+".jpg")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write face snapshot: %w", err)
	}
	return path, nil
}

func nextSnapshotNumber(folder string) (int, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return 0, fmt.Errorf("failed to list face folder: %w", err)
	}
	highest := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jpg") {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSuffix(e.Name(), ".jpg")); err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}
