package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mallarb20000/ScorespokenC-sub001/internal/codec"
)

const (
	dataSuffix = ".bin"
	metaSuffix = ".json"
)

// Record describes one stored artifact.
type Record struct {
	ID        string         `json:"id"`
	TestType  string         `json:"testType"`
	Path      string         `json:"-"`
	Size      int64          `json:"size"`
	CreatedAt time.Time      `json:"createdAt"`
	Codec     codec.Metadata `json:"codec"`
}

// Store is a directory-backed artifact store with an in-memory index.
type Store struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	records map[string]*Record
}

// NewStore opens (creating if needed) the store directory and rebuilds
// the index from existing sidecar files.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	s := &Store{
		dir:     dir,
		logger:  logger,
		records: make(map[string]*Record),
	}
	if err := s.rebuildIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) rebuildIndex() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read storage directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, metaSuffix) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			s.logger.Warn("Skipping unreadable sidecar", slog.String("file", name))
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil || rec.ID == "" {
			s.logger.Warn("Skipping malformed sidecar", slog.String("file", name))
			continue
		}
		rec.Path = filepath.Join(s.dir, rec.ID+dataSuffix)
		s.records[rec.ID] = &rec
	}
	if len(s.records) > 0 {
		s.logger.Info("Rebuilt artifact index",
			slog.Int("artifacts", len(s.records)))
	}
	return nil
}

// Save writes an artifact and its metadata sidecar and returns the new
// artifact ID.
func (s *Store) Save(testType string, data []byte, meta codec.Metadata) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("refusing to store empty artifact")
	}

	id := uuid.NewString()
	dataPath := filepath.Join(s.dir, id+dataSuffix)
	metaPath := filepath.Join(s.dir, id+metaSuffix)

	rec := &Record{
		ID:        id,
		TestType:  testType,
		Path:      dataPath,
		Size:      int64(len(data)),
		CreatedAt: time.Now().UTC(),
		Codec:     meta,
	}

	if err := os.WriteFile(dataPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	sidecar, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode sidecar: %w", err)
	}
	if err := os.WriteFile(metaPath, sidecar, 0644); err != nil {
		_ = os.Remove(dataPath)
		return "", fmt.Errorf("failed to write sidecar: %w", err)
	}

	s.mu.Lock()
	s.records[id] = rec
	s.mu.Unlock()

	s.logger.Info("Stored artifact",
		slog.String("artifact_id", id),
		slog.String("test_type", testType),
		slog.Int("size", len(data)))
	return id, nil
}

// Get returns a copy of the record for id.
func (s *Store) Get(id string) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, false
	}
	out := *rec
	return &out, true
}

// Load reads the stored bytes for id along with its codec metadata. The
// bytes are returned as stored; callers decompress via the codec.
func (s *Store) Load(id string) ([]byte, codec.Metadata, error) {
	rec, ok := s.Get(id)
	if !ok {
		return nil, codec.Metadata{}, fmt.Errorf("artifact %s not found", id)
	}
	data, err := os.ReadFile(rec.Path)
	if err != nil {
		return nil, codec.Metadata{}, fmt.Errorf("failed to read artifact %s: %w", id, err)
	}
	return data, rec.Codec, nil
}

// Delete removes an artifact and its sidecar. Deleting an unknown id is
// not an error.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	rec, ok := s.records[id]
	if ok {
		delete(s.records, id)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if err := os.Remove(rec.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove artifact %s: %w", id, err)
	}
	metaPath := filepath.Join(s.dir, id+metaSuffix)
	if err := os.Remove(metaPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove sidecar for %s: %w", id, err)
	}
	return nil
}

// List returns copies of all records, newest first.
func (s *Store) List() []*Record {
	s.mu.Lock()
	out := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		out = append(out, &cp)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Len reports the number of indexed artifacts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
