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

package templates

import (
	"context"
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cloudwego/abdoc/llm/log"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

var ErrUnknownTemplate = errors.New("unknown template")

//go:embed builtin/*.yaml
var builtinFS embed.FS

const (
	SourceBuiltin = "builtin"
	templateExt   = ".yaml"
)

// Registry holds the built-in templates, overridden by same-named templates
// from an optional local directory.
type Registry struct {
	dir string

	mu        sync.RWMutex
	templates map[string]*Template
}

// NewRegistry loads the built-in templates and, when dir is set, every
// *.yaml file in it.
func NewRegistry(dir string) (*Registry, error) {
	r := &Registry{dir: dir}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload rebuilds the registry. On error the previous templates stay active.
func (r *Registry) Reload() error {
	loaded := make(map[string]*Template)
	if err := loadFS(builtinFS, "builtin", SourceBuiltin, loaded); err != nil {
		return err
	}
	if r.dir != "" {
		if _, err := os.Stat(r.dir); err == nil {
			if err := loadFS(os.DirFS(r.dir), ".", r.dir, loaded); err != nil {
				return err
			}
		} else if !os.IsNotExist(err) {
			return errors.Wrap(err, "templates dir")
		}
	}
	r.mu.Lock()
	r.templates = loaded
	r.mu.Unlock()
	log.Info("loaded %d templates", len(loaded))
	return nil
}

func loadFS(fsys fs.FS, root, source string, into map[string]*Template) error {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return errors.Wrapf(err, "read templates from %s", source)
	}
	seen := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != templateExt {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(root, e.Name()))
		if err != nil {
			return errors.Wrapf(err, "read %s", e.Name())
		}
		t, err := Parse(data, source+"/"+e.Name())
		if err != nil {
			return err
		}
		if prev, ok := seen[t.Name]; ok {
			return errors.Errorf("template %q defined twice (%s, %s)", t.Name, prev, t.Source)
		}
		seen[t.Name] = t.Source
		into[t.Name] = t
	}
	return nil
}

func (r *Registry) Get(name string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTemplate, "%q", name)
	}
	return t, nil
}

// List returns the templates sorted by name.
func (r *Registry) List() []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Template, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Watch reloads the registry whenever a template file in the local directory
// changes, until ctx is done. Reload failures are logged and the previous
// templates are kept.
func (r *Registry) Watch(ctx context.Context) error {
	if r.dir == "" {
		return errors.New("no templates dir to watch")
	}
	if _, err := os.Stat(r.dir); os.IsNotExist(err) {
		log.Warn("templates dir %s does not exist, creating it", r.dir)
		if err := os.MkdirAll(r.dir, 0o755); err != nil {
			return errors.Wrap(err, "create templates dir")
		}
	}
	return watchDir(ctx, r.dir, func(op fsnotify.Op, file string) {
		if filepath.Ext(file) != templateExt {
			return
		}
		log.Debug("template %s changed (%s)", file, op)
		if err := r.Reload(); err != nil {
			log.Error("reload templates: %v", err)
		}
	})
}

func watchDir(ctx context.Context, dir string, onEvent func(op fsnotify.Op, file string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return errors.Wrapf(err, "watch %s", dir)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				onEvent(ev.Op, ev.Name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error("watch %s: %v", dir, err)
		}
	}
}
