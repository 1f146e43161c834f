package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ignite/smartlead-export/internal/pkg/logger"
)

// trackingPayload is the JSON structure persisted on disk or in S3.
type trackingPayload struct {
	UpdatedAt    time.Time `json:"updated_at"`
	Fingerprints []string  `json:"fingerprints"`
}

// FileStore persists the fingerprint set as a single JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the persisted set. A missing or corrupt file starts an empty
// set; an operator losing tracking data only costs duplicate re-uploads,
// which downstream dedup makes harmless.
func (fs *FileStore) Load(_ context.Context) ([]string, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		logger.Warn("tracking file unreadable, starting with empty set",
			"path", fs.path, "error", err)
		return nil, nil
	}

	var payload trackingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		logger.Warn("tracking file corrupt, starting with empty set",
			"path", fs.path, "error", err)
		return nil, nil
	}
	return payload.Fingerprints, nil
}

// Save writes the set via a temp file and rename so a crash mid-write
// cannot corrupt the previous snapshot.
func (fs *FileStore) Save(_ context.Context, fingerprints []string) error {
	if dir := filepath.Dir(fs.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating tracking directory: %w", err)
		}
	}

	payload := trackingPayload{
		UpdatedAt:    time.Now().UTC(),
		Fingerprints: fingerprints,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling tracking payload: %w", err)
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing tracking file: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("replacing tracking file: %w", err)
	}
	return nil
}

// Description identifies the backing file for status output.
func (fs *FileStore) Description() string { return fs.path }
