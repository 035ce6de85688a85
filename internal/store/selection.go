package store

import (
	"os"
	"path/filepath"
	"strings"
)

// selectionFileName is the sidecar pointer recording which store file is
// active. Plain text, a single path.
const selectionFileName = ".selected_db_path"

// LoadSelectedDBPath returns the persisted active-store path, or fallback when
// the pointer file is absent or empty.
func LoadSelectedDBPath(dataDir string, fallback string) string {
	raw, err := os.ReadFile(filepath.Join(dataDir, selectionFileName))
	if err != nil {
		return fallback
	}
	path := strings.TrimSpace(string(raw))
	if path == "" {
		return fallback
	}
	return path
}

// SaveSelectedDBPath persists the active-store pointer, creating the data
// directory if needed.
func SaveSelectedDBPath(dataDir string, path string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dataDir, selectionFileName), []byte(path), 0o644)
}
