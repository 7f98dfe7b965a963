// Package persistence provides the MonitorStore implementations: a SQLite
// database (default) and a directory of JSON files.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sipeed/picomon/pkg/domain"
	"github.com/sipeed/picomon/pkg/domain/monitor"
)

// ---------------------------------------------------------------------------
// Generic JSON file store
// ---------------------------------------------------------------------------

// JSONStore provides generic JSON file-based persistence for any serializable type.
// It keeps an in-memory cache and persists to disk on every Put/Remove.
type JSONStore[T any] struct {
	baseDir string
	items   map[domain.EntityID]*T
	mu      sync.RWMutex
}

// NewJSONStore creates a new file-backed store rooted at baseDir.
func NewJSONStore[T any](baseDir string) (*JSONStore[T], error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir %s: %w", baseDir, err)
	}
	return &JSONStore[T]{
		baseDir: baseDir,
		items:   make(map[domain.EntityID]*T),
	}, nil
}

// Load reads all JSON files from the base directory into memory.
// Unreadable or malformed files are reported, not skipped silently.
func (s *JSONStore[T]) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read dir %s: %w", s.baseDir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}

		var item T
		if err := json.Unmarshal(data, &item); err != nil {
			return fmt.Errorf("decode %s: %w", entry.Name(), err)
		}

		// Use filename (without .json) as ID
		id := domain.EntityID(entry.Name()[:len(entry.Name())-5])
		s.items[id] = &item
	}

	return nil
}

// Put saves an item to disk, then to memory. The file is written to a
// temporary name and renamed so a crash never leaves a half-written record.
func (s *JSONStore[T]) Put(id domain.EntityID, item *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	path := filepath.Join(s.baseDir, string(id)+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}

	s.items[id] = item
	return nil
}

// Remove deletes an item from disk and memory. It reports whether the item existed.
func (s *JSONStore[T]) Remove(id domain.EntityID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return false, nil
	}

	if err := os.Remove(filepath.Join(s.baseDir, string(id)+".json")); err != nil && !os.IsNotExist(err) {
		return true, fmt.Errorf("remove %s: %w", id, err)
	}
	delete(s.items, id)
	return true, nil
}

// All returns all items.
func (s *JSONStore[T]) All() []*T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*T, 0, len(s.items))
	for _, item := range s.items {
		result = append(result, item)
	}
	return result
}

// ---------------------------------------------------------------------------
// Monitor repository implementation (JSON files)
// ---------------------------------------------------------------------------

// JSONMonitorRepository is the filesystem-backed implementation of
// monitor.Repository. One file per task under <dataDir>/monitors.
type JSONMonitorRepository struct {
	store *JSONStore[monitor.Task]
	// write serializes the uniqueness check with the write it guards.
	write sync.Mutex
	clock domain.Clock
}

// NewJSONMonitorRepository opens (and loads) the store under dataDir.
func NewJSONMonitorRepository(dataDir string) (*JSONMonitorRepository, error) {
	store, err := NewJSONStore[monitor.Task](filepath.Join(dataDir, "monitors"))
	if err != nil {
		return nil, err
	}
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("load monitors: %w", err)
	}
	return &JSONMonitorRepository{store: store}, nil
}

func (r *JSONMonitorRepository) Insert(ctx context.Context, task *monitor.Task) (domain.EntityID, error) {
	r.write.Lock()
	defer r.write.Unlock()

	taken := monitor.AtHandles(task.ChannelID, task.MessageID)
	for _, existing := range r.store.All() {
		if taken.IsSatisfiedBy(existing) {
			return "", monitor.ErrDuplicateHandle
		}
	}

	saved := *task
	saved.ID = domain.NewID()
	saved.CreatedAt = r.clock.Now().Truncate(time.Second)
	if err := r.store.Put(saved.ID, &saved); err != nil {
		return "", fmt.Errorf("save monitor: %w", err)
	}

	task.ID = saved.ID
	task.CreatedAt = saved.CreatedAt
	return saved.ID, nil
}

func (r *JSONMonitorRepository) ListAll(ctx context.Context) ([]*monitor.Task, error) {
	return sortTasks(copyTasks(r.store.All(), domain.All[monitor.Task]())), nil
}

func (r *JSONMonitorRepository) ListByScope(ctx context.Context, scopeID string) ([]*monitor.Task, error) {
	return sortTasks(copyTasks(r.store.All(), monitor.InScope(scopeID))), nil
}

func (r *JSONMonitorRepository) CountByScope(ctx context.Context, scopeID string) (int, error) {
	tasks, err := r.ListByScope(ctx, scopeID)
	return len(tasks), err
}

func (r *JSONMonitorRepository) DeleteByID(ctx context.Context, id domain.EntityID) error {
	r.write.Lock()
	defer r.write.Unlock()

	if _, err := r.store.Remove(id); err != nil {
		return fmt.Errorf("delete monitor: %w", err)
	}
	return nil
}

func (r *JSONMonitorRepository) DeleteByHandles(ctx context.Context, channelID, messageID string) error {
	r.write.Lock()
	defer r.write.Unlock()

	match := monitor.AtHandles(channelID, messageID)
	for _, t := range r.store.All() {
		if match.IsSatisfiedBy(t) {
			if _, err := r.store.Remove(t.ID); err != nil {
				return fmt.Errorf("delete monitor: %w", err)
			}
		}
	}
	return nil
}

// Close is a no-op; every write is already on disk.
func (r *JSONMonitorRepository) Close() error { return nil }

// copyTasks returns copies so callers cannot mutate the cached records.
func copyTasks(all []*monitor.Task, match domain.Specification[monitor.Task]) []*monitor.Task {
	out := make([]*monitor.Task, 0, len(all))
	for _, t := range all {
		if match.IsSatisfiedBy(t) {
			c := *t
			out = append(out, &c)
		}
	}
	return out
}

func sortTasks(tasks []*monitor.Task) []*monitor.Task {
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks
}

// Verify interface compliance at compile time.
var _ monitor.Repository = (*JSONMonitorRepository)(nil)
