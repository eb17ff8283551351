// Package history records every assistant request made through kx.
// History is stored as a JSON file in the user's config directory.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kodescruxx/kx-cli/internal/config"
)

const (
	fileName     = "history.json"
	maxEntries   = 500
	maxInputLen  = 200
	maxOutputLen = 4000
)

// fileMu guards concurrent access to the history file.
var fileMu sync.Mutex

// Entry represents a single history record.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation"`
	Language  string    `json:"language,omitempty"`
	// Input is the start of the code or topic that was sent.
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
	// Outcome is an api.OutcomeKind string, e.g. "completed".
	Outcome    string `json:"outcome"`
	Chunks     int    `json:"chunks"`
	DurationMs int64  `json:"duration_ms"`
}

// Success reports whether the request completed.
func (e Entry) Success() bool {
	return e.Outcome == "completed"
}

func historyPath() string {
	return filepath.Join(config.Dir(), fileName)
}

// Save appends a new entry to the history file and returns it with its
// ID and timestamp filled in.
func Save(entry Entry) (Entry, error) {
	fileMu.Lock()
	defer fileMu.Unlock()

	entry.ID = uuid.NewString()
	entry.Timestamp = time.Now()
	entry.Input = clip(entry.Input, maxInputLen)
	entry.Output = clip(entry.Output, maxOutputLen)

	entries, _ := loadAll()
	entries = append(entries, entry)

	// Trim to max entries, keeping the most recent.
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}

	if err := write(entries); err != nil {
		return entry, err
	}
	return entry, nil
}

// Load returns the most recent n history entries.
func Load(limit int) ([]Entry, error) {
	entries, err := loadAll()
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	return entries, nil
}

// Find returns the entry whose ID starts with prefix. The prefix must
// match exactly one entry.
func Find(prefix string) (Entry, bool) {
	if prefix == "" {
		return Entry{}, false
	}
	entries, _ := loadAll()
	var found []Entry
	for _, e := range entries {
		if strings.HasPrefix(e.ID, prefix) {
			found = append(found, e)
		}
	}
	if len(found) != 1 {
		return Entry{}, false
	}
	return found[0], true
}

// Clear removes all history.
func Clear() error {
	fileMu.Lock()
	defer fileMu.Unlock()

	err := os.Remove(historyPath())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func write(entries []Entry) error {
	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(historyPath(), data, 0o600)
}

func loadAll() ([]Entry, error) {
	data, err := os.ReadFile(historyPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
