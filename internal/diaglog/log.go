// Package diaglog keeps a small local log of remote-call outcomes for
// debugging. It is bounded to the most recent entries and never transmitted.
package diaglog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Entries beyond this are dropped, oldest first.
const maxEntries = 10

// Entry is one logged outcome.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
}

// Log is a bounded append-only log persisted as a single JSON file.
type Log struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Log {
	return &Log{path: path}
}

// Append adds an entry, trimming to the retention bound, and rewrites the
// file.
func (l *Log) Append(kind string, data map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.readLocked()
	if err != nil {
		return err
	}
	entries = append(entries, Entry{
		Timestamp: time.Now().UTC(),
		Type:      kind,
		Data:      data,
	})
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}

	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode log: %w", err)
	}
	if err := os.WriteFile(l.path, raw, 0o644); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// Entries returns the retained entries, oldest first.
func (l *Log) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readLocked()
}

func (l *Log) readLocked() ([]Entry, error) {
	raw, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		// A corrupt debug log is not worth failing over; start fresh.
		return nil, nil
	}
	return entries, nil
}
