package filestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/phrazzld/chunkgen/internal/store"
	"github.com/phrazzld/chunkgen/internal/task"
	"gopkg.in/yaml.v3"
)

// document is the on-disk layout of the progress file.
type document struct {
	Progress map[string]task.Progress `yaml:"progress"`
}

// ProgressStore keeps every record in memory and rewrites the whole file
// on each change. Writes go to a temporary file that is renamed over the
// old one, so a crash never leaves a truncated file behind.
type ProgressStore struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	records map[string]task.Progress
}

// ProgressStore implements task.ProgressStore
var _ task.ProgressStore = (*ProgressStore)(nil)

// Open loads the progress file at path. A missing file is treated as an
// empty store and is created on the first write.
func Open(path string, logger *slog.Logger) (*ProgressStore, error) {
	if path == "" {
		return nil, errors.New("progress file path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &ProgressStore{
		path:    path,
		logger:  logger.With("component", "file_progress_store", "path", path),
		records: make(map[string]task.Progress),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("progress file does not exist yet")
			return s, nil
		}
		return nil, fmt.Errorf("failed to read progress file: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse progress file: %w", err)
	}
	for region, p := range doc.Progress {
		p.Region = region
		s.records[region] = p
	}

	s.logger.Debug("loaded progress file", "records", len(s.records))
	return s, nil
}

// Path returns the location of the progress file.
func (s *ProgressStore) Path() string {
	return s.path
}

// Save replaces the record for p.Region.
func (s *ProgressStore) Save(ctx context.Context, p task.Progress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.Region == "" {
		return store.NewStoreError("progress", "save", "region is required", store.ErrInvalidEntity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.copyLocked()
	next[p.Region] = p
	if err := s.write(next); err != nil {
		return store.NewStoreError("progress", "save", "failed to write progress file", err)
	}
	s.records = next
	return nil
}

// Load returns the record for region.
func (s *ProgressStore) Load(ctx context.Context, region string) (task.Progress, error) {
	if err := ctx.Err(); err != nil {
		return task.Progress{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.records[region]
	if !ok {
		return task.Progress{}, fmt.Errorf("%w: %s", store.ErrProgressNotFound, region)
	}
	return p, nil
}

// Delete removes the record for region. Missing records are ignored.
func (s *ProgressStore) Delete(ctx context.Context, region string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[region]; !ok {
		return nil
	}

	next := s.copyLocked()
	delete(next, region)
	if err := s.write(next); err != nil {
		return store.NewStoreError("progress", "delete", "failed to write progress file", err)
	}
	s.records = next
	return nil
}

// LoadAll returns every record ordered by region.
func (s *ProgressStore) LoadAll(ctx context.Context) ([]task.Progress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	records := make([]task.Progress, 0, len(s.records))
	for _, p := range s.records {
		records = append(records, p)
	}
	s.mu.Unlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].Region < records[j].Region
	})
	return records, nil
}

func (s *ProgressStore) copyLocked() map[string]task.Progress {
	next := make(map[string]task.Progress, len(s.records)+1)
	for region, p := range s.records {
		next[region] = p
	}
	return next
}

// write atomically replaces the progress file with records.
func (s *ProgressStore) write(records map[string]task.Progress) error {
	data, err := yaml.Marshal(document{Progress: records})
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create progress directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary progress file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temporary progress file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temporary progress file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temporary progress file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace progress file: %w", err)
	}

	s.logger.Debug("progress file written", "records", len(records))
	return nil
}
