package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveJSON writes the raw listing payloads of one category to
// <dir>/<category>.json as an indented array, replacing any earlier dump.
func SaveJSON(dir, category string, payloads []json.RawMessage) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create json directory: %w", err)
	}
	if payloads == nil {
		payloads = []json.RawMessage{}
	}

	data, err := json.MarshalIndent(payloads, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to encode %s payloads: %w", category, err)
	}

	path := filepath.Join(dir, SanitizeFilename(category)+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
