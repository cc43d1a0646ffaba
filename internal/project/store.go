// Package project persists named crawl configurations and drives their
// runs through the idle, running, completed, failed lifecycle.
package project

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/adrg/xdg"

	"github.com/MacphersonDesigns/site-scraper/internal/config"
	"github.com/MacphersonDesigns/site-scraper/pkg/types"
)

// ErrNotFound is returned when a project id does not exist in the store.
var ErrNotFound = errors.New("project not found")

// DefaultStorePath resolves the projects file under the user data
// directory.
func DefaultStorePath() (string, error) {
	path, err := xdg.DataFile(filepath.Join("site-scraper", "projects.json"))
	if err != nil {
		return "", fmt.Errorf("resolve store path: %w", err)
	}
	return path, nil
}

// Store holds every project and mirrors the full set to disk after each
// mutation. The file is rewritten wholesale; there is no partial update.
type Store struct {
	mu       sync.Mutex
	path     string
	projects map[string]*types.Project
	logger   *slog.Logger
}

// OpenStore loads the projects file, creating it lazily on first save.
// Projects found in the running state were interrupted by a crash; they
// are reset to idle with zero progress.
func OpenStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		path:     path,
		projects: make(map[string]*types.Project),
		logger:   logger,
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read project store: %w", err)
	}

	var loaded map[string]*types.Project
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("decode project store: %w", err)
	}

	recovered := 0
	for id, p := range loaded {
		if p == nil || id == "" {
			continue
		}
		if p.ID == "" {
			p.ID = id
		}
		if p.Status == types.StatusRunning {
			p.Status = types.StatusIdle
			p.Progress = 0
			recovered++
		}
		s.projects[p.ID] = p
	}
	if recovered > 0 {
		logger.Warn("reset interrupted projects to idle", "count", recovered)
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Create validates the config, assigns an id, and persists the new
// project in the idle state.
func (s *Store) Create(name string, cfg types.ProjectConfig) (types.Project, error) {
	if name == "" {
		return types.Project{}, fmt.Errorf("project name is required")
	}
	if len(cfg.SeedURLs) == 0 {
		return types.Project{}, fmt.Errorf("at least one seed url is required")
	}
	for _, seed := range cfg.SeedURLs {
		if err := config.ValidateSeedURL(seed); err != nil {
			return types.Project{}, err
		}
	}

	p := &types.Project{
		ID:        newProjectID(),
		Name:      name,
		Config:    cfg,
		Status:    types.StatusIdle,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
	if err := s.persistLocked(); err != nil {
		delete(s.projects, p.ID)
		return types.Project{}, err
	}
	return *p, nil
}

// Get returns a copy of the project.
func (s *Store) Get(id string) (types.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return types.Project{}, ErrNotFound
	}
	return *p, nil
}

// List returns all projects ordered by creation time.
func (s *Store) List() []types.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Update applies mutate to the stored project under the store lock and
// persists the result. If mutate returns an error the project is left
// untouched.
func (s *Store) Update(id string, mutate func(*types.Project) error) (types.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return types.Project{}, ErrNotFound
	}

	working := *p
	if err := mutate(&working); err != nil {
		return types.Project{}, err
	}
	working.ID = p.ID
	working.CreatedAt = p.CreatedAt

	s.projects[id] = &working
	if err := s.persistLocked(); err != nil {
		s.projects[id] = p
		return types.Project{}, err
	}
	return working, nil
}

// Delete removes a project and persists the remaining set.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.projects, id)
	if err := s.persistLocked(); err != nil {
		s.projects[id] = p
		return err
	}
	return nil
}

func (s *Store) persistLocked() error {
	// Map keys marshal sorted, so the file is stable across rewrites.
	data, err := json.MarshalIndent(s.projects, "", "  ")
	if err != nil {
		return fmt.Errorf("encode project store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write project store: %w", err)
	}
	return nil
}

func newProjectID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("p%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
