// Package yamlfs saves sessions as YAML files in a directory per session.
package yamlfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tatianab/lesson-game/internal/models"
	"github.com/tatianab/lesson-game/internal/storage"
)

const DefaultDir = ".saves"

const (
	specFile    = "spec.yaml"
	stateFile   = "state.yaml"
	playersFile = "players.yaml"
)

// Store keeps each session under <dir>/<id>/.
type Store struct {
	dir string
}

var _ storage.Store = (*Store)(nil)

// New returns a store rooted at dir, or DefaultDir if dir is empty.
func New(dir string) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{dir: dir}
}

func (s *Store) path(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("invalid session id %q", id)
	}
	return filepath.Join(s.dir, id), nil
}

func (s *Store) Save(ctx context.Context, rec storage.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := s.path(rec.ID)
	if err != nil {
		return err
	}
	if rec.Spec == nil {
		return fmt.Errorf("session %s: specification is required", rec.ID)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// The spec file goes last: List treats it as the marker of a complete save.
	if err := writeYAML(filepath.Join(dir, stateFile), rec.State); err != nil {
		return err
	}
	if err := writeYAML(filepath.Join(dir, playersFile), rec.Players); err != nil {
		return err
	}
	return writeYAML(filepath.Join(dir, specFile), rec.Spec)
}

func (s *Store) Load(ctx context.Context, id string) (storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return storage.Record{}, err
	}
	dir, err := s.path(id)
	if err != nil {
		return storage.Record{}, err
	}
	info, err := os.Stat(filepath.Join(dir, specFile))
	if errors.Is(err, fs.ErrNotExist) {
		return storage.Record{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Record{}, err
	}

	rec := storage.Record{ID: id, UpdatedAt: info.ModTime()}
	var spec models.GameSpecification
	if err := readYAML(filepath.Join(dir, specFile), &spec); err != nil {
		return storage.Record{}, err
	}
	rec.Spec = &spec
	if err := readYAML(filepath.Join(dir, stateFile), &rec.State); err != nil {
		return storage.Record{}, err
	}
	if err := readYAML(filepath.Join(dir, playersFile), &rec.Players); err != nil {
		return storage.Record{}, err
	}
	if rec.Players == nil {
		rec.Players = map[string]models.PlayerState{}
	}
	return rec, nil
}

// List returns saved sessions, most recently saved first.
func (s *Store) List(ctx context.Context) ([]storage.Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []storage.Summary{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := []storage.Summary{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(s.dir, entry.Name())
		info, err := os.Stat(filepath.Join(dir, specFile))
		if err != nil {
			continue
		}
		var head struct {
			Title string `yaml:"title"`
		}
		var phase struct {
			Phase models.Phase `yaml:"phase"`
		}
		if err := readYAML(filepath.Join(dir, specFile), &head); err != nil {
			return nil, err
		}
		if err := readYAML(filepath.Join(dir, stateFile), &phase); err != nil {
			return nil, err
		}
		out = append(out, storage.Summary{
			ID:        entry.Name(),
			Title:     head.Title,
			Phase:     phase.Phase,
			UpdatedAt: info.ModTime(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	dir, err := s.path(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return storage.ErrNotFound
	}
	return os.RemoveAll(dir)
}

func (s *Store) Close() error { return nil }

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
