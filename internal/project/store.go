/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package project

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("project not found")

// Store persists projects per user.
type Store interface {
	Get(ctx context.Context, userID, projectID string) (*Project, error)
	List(ctx context.Context, userID string) ([]*Project, error)
	// Create assigns an id when p has none and stamps the timestamps.
	Create(ctx context.Context, p *Project) (*Project, error)
	// Update reads the stored project, applies fn and saves the result while
	// holding the store lock. Nothing is saved when fn fails.
	Update(ctx context.Context, userID, projectID string, fn func(p *Project) error) (*Project, error)
}

func checkID(kind, id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return errors.Errorf("invalid %s id %q", kind, id)
	}
	return nil
}

func prepareCreate(p *Project, now time.Time) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := checkID("user", p.UserID); err != nil {
		return err
	}
	if err := checkID("project", p.ID); err != nil {
		return err
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func clone(p *Project) (*Project, error) {
	bs, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "clone project")
	}
	var out Project
	if err := json.Unmarshal(bs, &out); err != nil {
		return nil, errors.Wrap(err, "clone project")
	}
	return &out, nil
}

// FileStore keeps one JSON file per project under {root}/users/{user}/projects.
type FileStore struct {
	root string
	mu   sync.RWMutex
	now  func() time.Time
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}
	return &FileStore{root: root, now: time.Now}, nil
}

func (s *FileStore) dir(userID string) string {
	return filepath.Join(s.root, "users", userID, "projects")
}

func (s *FileStore) path(userID, projectID string) string {
	return filepath.Join(s.dir(userID), projectID+".json")
}

func (s *FileStore) Get(_ context.Context, userID, projectID string) (*Project, error) {
	if err := checkID("user", userID); err != nil {
		return nil, err
	}
	if err := checkID("project", projectID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(s.path(userID, projectID))
}

func (s *FileStore) read(path string) (*Project, error) {
	bs, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "read project")
	}
	var p Project
	if err := json.Unmarshal(bs, &p); err != nil {
		return nil, errors.Wrapf(err, "decode %s", filepath.Base(path))
	}
	return &p, nil
}

func (s *FileStore) List(_ context.Context, userID string) ([]*Project, error) {
	if err := checkID("user", userID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := os.ReadDir(s.dir(userID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "list projects")
	}
	var out []*Project
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		p, err := s.read(filepath.Join(s.dir(userID), e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *FileStore) Create(ctx context.Context, p *Project) (*Project, error) {
	cp, err := clone(p)
	if err != nil {
		return nil, err
	}
	if err := prepareCreate(cp, s.now()); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.path(cp.UserID, cp.ID)); err == nil {
		return nil, errors.Errorf("project %s already exists", cp.ID)
	}
	return cp, s.write(cp)
}

func (s *FileStore) Update(_ context.Context, userID, projectID string, fn func(p *Project) error) (*Project, error) {
	if err := checkID("user", userID); err != nil {
		return nil, err
	}
	if err := checkID("project", projectID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.read(s.path(userID, projectID))
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	p.UserID, p.ID = userID, projectID
	p.UpdatedAt = s.now()
	return p, s.write(p)
}

// write replaces the project file atomically.
func (s *FileStore) write(p *Project) error {
	if err := os.MkdirAll(s.dir(p.UserID), 0o755); err != nil {
		return errors.Wrap(err, "create project dir")
	}
	bs, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode project")
	}
	target := s.path(p.UserID, p.ID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, bs, 0o644); err != nil {
		return errors.Wrap(err, "write project")
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "rename project file")
	}
	return nil
}

// MemoryStore keeps projects in memory. Returned projects are copies.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]map[string]*Project
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{projects: make(map[string]map[string]*Project), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, userID, projectID string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[userID][projectID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(p)
}

func (s *MemoryStore) List(_ context.Context, userID string) ([]*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.projects[userID]))
	for id := range s.projects[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Project, 0, len(ids))
	for _, id := range ids {
		p, err := clone(s.projects[userID][id])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *MemoryStore) Create(_ context.Context, p *Project) (*Project, error) {
	cp, err := clone(p)
	if err != nil {
		return nil, err
	}
	if err := prepareCreate(cp, s.now()); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[cp.UserID][cp.ID]; ok {
		return nil, errors.Errorf("project %s already exists", cp.ID)
	}
	if s.projects[cp.UserID] == nil {
		s.projects[cp.UserID] = make(map[string]*Project)
	}
	stored, err := clone(cp)
	if err != nil {
		return nil, err
	}
	s.projects[cp.UserID][cp.ID] = stored
	return cp, nil
}

func (s *MemoryStore) Update(_ context.Context, userID, projectID string, fn func(p *Project) error) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.projects[userID][projectID]
	if !ok {
		return nil, ErrNotFound
	}
	p, err := clone(stored)
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	p.UserID, p.ID = userID, projectID
	p.UpdatedAt = s.now()
	next, err := clone(p)
	if err != nil {
		return nil, err
	}
	s.projects[userID][projectID] = next
	return p, nil
}
