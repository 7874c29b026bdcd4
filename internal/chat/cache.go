package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoHistory is returned by Cache.Load when nothing has been saved yet.
var ErrNoHistory = errors.New("no cached history")

// Cache persists a session's full message history. Save is fire-and-forget
// from the session's point of view: failures are logged, never surfaced.
type Cache interface {
	Load() ([]Message, error)
	Save(messages []Message) error
}

// FileCache stores the history as a JSON file under the data directory,
// one file per chat session.
type FileCache struct {
	path string
}

// NewFileCache creates a cache for the given session id rooted at dataDir.
func NewFileCache(dataDir, sessionID string) *FileCache {
	return &FileCache{path: filepath.Join(dataDir, "chat", sessionID+".json")}
}

func (c *FileCache) Load() ([]Message, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoHistory
		}
		return nil, fmt.Errorf("reading history: %w", err)
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("parsing history: %w", err)
	}
	return messages, nil
}

func (c *FileCache) Save(messages []Message) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("creating history dir: %w", err)
	}
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o600)
}
