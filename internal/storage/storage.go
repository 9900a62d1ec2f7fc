// Package storage provides a thread-safe directory of monitored sources with
// file-based persistence. It remembers the display name and kind of every
// channel, group and user a message arrived from, together with simple
// activity counters, so notifications can name a source even when the update
// itself carries no title.
//
// Writes are atomic (temp file plus rename) and the directory is bounded: when
// it grows past its limit the least recently seen sources are dropped.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rewired-gh/ca-monitor/internal/models"
)

// Source is what the directory knows about one chat
type Source struct {
	ID         string            `json:"id"`
	Kind       models.SourceKind `json:"kind"`
	Title      string            `json:"title,omitempty"`
	FirstSeen  time.Time         `json:"first_seen"`
	LastSeen   time.Time         `json:"last_seen"`
	Messages   uint64            `json:"messages"`
	Detections uint64            `json:"detections"`
}

// Storage provides thread-safe in-memory storage with file-based persistence
type Storage struct {
	sources map[string]*Source
	mu      sync.RWMutex

	// Configuration
	maxSources      int
	filePath        string
	filePermissions os.FileMode
	dirPermissions  os.FileMode
}

// PersistenceFile represents the file structure for JSON persistence
type PersistenceFile struct {
	Version string             `json:"version"`
	SavedAt time.Time          `json:"saved_at"`
	Sources map[string]*Source `json:"sources"`
}

// New creates a new Storage instance. If filePath is empty, an OS-appropriate
// tmp directory is used; maxSources <= 0 means unbounded.
func New(maxSources int, filePath string) *Storage {
	if filePath == "" {
		filePath = filepath.Join(os.TempDir(), "ca-monitor", "sources.json")
	}

	return &Storage{
		sources:         make(map[string]*Source),
		maxSources:      maxSources,
		filePath:        filePath,
		filePermissions: 0644,
		dirPermissions:  0755,
	}
}

// Observe records a message from a source, creating the entry on first sight.
// A non-empty title in the message replaces the stored one.
func (s *Storage) Observe(msg *models.IncomingMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := msg.ReceivedAt
	if seen.IsZero() {
		seen = time.Now()
	}

	src, exists := s.sources[msg.SourceID]
	if !exists {
		src = &Source{ID: msg.SourceID, FirstSeen: seen}
		s.sources[msg.SourceID] = src
	}
	src.Kind = msg.SourceKind
	if msg.SourceTitle != "" {
		src.Title = msg.SourceTitle
	}
	if seen.After(src.LastSeen) {
		src.LastSeen = seen
	}
	src.Messages++
	return nil
}

// RecordDetections adds n to the detection counter of a known source
func (s *Storage) RecordDetections(id string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, exists := s.sources[id]
	if !exists {
		return fmt.Errorf("source %s not found", id)
	}
	src.Detections += uint64(n)
	return nil
}

// GetSource retrieves a copy of a source by ID
func (s *Storage) GetSource(id string) (*Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src, exists := s.sources[id]
	if !exists {
		return nil, fmt.Errorf("source %s not found", id)
	}
	cp := *src
	return &cp, nil
}

// Title returns the stored display name of a source, or "" when unknown
func (s *Storage) Title(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if src, exists := s.sources[id]; exists {
		return src.Title
	}
	return ""
}

// GetAllSources returns copies of all sources, most recently seen first
func (s *Storage) GetAllSources() []Source {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sources := make([]Source, 0, len(s.sources))
	for _, src := range s.sources {
		sources = append(sources, *src)
	}
	sort.Slice(sources, func(i, j int) bool {
		if !sources[i].LastSeen.Equal(sources[j].LastSeen) {
			return sources[i].LastSeen.After(sources[j].LastSeen)
		}
		return sources[i].ID < sources[j].ID
	})
	return sources
}

// Len returns the number of known sources
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sources)
}

// RotateSources drops the least recently seen sources beyond maxSources
func (s *Storage) RotateSources() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxSources <= 0 || len(s.sources) <= s.maxSources {
		return nil
	}

	type entry struct {
		id       string
		lastSeen time.Time
	}
	entries := make([]entry, 0, len(s.sources))
	for id, src := range s.sources {
		entries = append(entries, entry{id: id, lastSeen: src.LastSeen})
	}

	// Oldest first
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].lastSeen.Equal(entries[j].lastSeen) {
			return entries[i].lastSeen.Before(entries[j].lastSeen)
		}
		return entries[i].id < entries[j].id
	})

	for _, e := range entries[:len(entries)-s.maxSources] {
		delete(s.sources, e.id)
	}
	return nil
}

// Save persists storage state to file
func (s *Storage) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Create data directory if needed
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, s.dirPermissions); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data := PersistenceFile{
		Version: "1.0",
		SavedAt: time.Now(),
		Sources: s.sources,
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Write to temporary file first (atomic write)
	tempPath := s.filePath + ".tmp"
	if err := os.WriteFile(tempPath, jsonData, s.filePermissions); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(tempPath, s.filePath); err != nil {
		_ = os.Remove(tempPath) // Clean up temp file on rename failure
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}

// Load restores storage state from file. A missing file is not an error.
func (s *Storage) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Clean up any stale temp files from previous crashes
	tempPath := s.filePath + ".tmp"
	if _, err := os.Stat(tempPath); err == nil {
		_ = os.Remove(tempPath)
	}

	jsonData, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var data PersistenceFile
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	s.sources = make(map[string]*Source, len(data.Sources))
	for id, src := range data.Sources {
		if src == nil {
			continue
		}
		src.ID = id
		s.sources[id] = src
	}
	return nil
}

// FilePath returns the persistence file location
func (s *Storage) FilePath() string {
	return s.filePath
}
