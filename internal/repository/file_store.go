package repository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ilinovom/feedbot/internal/model"
)

// FileStore keeps every dialogue in a single JSON file.
type FileStore struct {
	path string
	mu   sync.Mutex
	data map[string]json.RawMessage
}

// NewFileStore loads dialogues from path or starts empty if it is missing.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, data: map[string]json.RawMessage{}}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer file.Close()
	return json.NewDecoder(file).Decode(&s.data)
}

// saveLocked writes to a temp file and renames it over the old one.
func (s *FileStore) saveLocked() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return err
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Keys lists the stored conversation keys in lexical order.
func (s *FileStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Get returns ErrNotFound for unknown keys.
func (s *FileStore) Get(ctx context.Context, key string) (model.Dialogue, error) {
	s.mu.Lock()
	raw, ok := s.data[key]
	s.mu.Unlock()
	if !ok {
		return model.Dialogue{}, ErrNotFound
	}
	return decode(key, raw)
}

func (s *FileStore) Save(ctx context.Context, key string, d model.Dialogue) error {
	b, err := model.Encode(d)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.data[key]
	s.data[key] = b
	if err := s.saveLocked(); err != nil {
		if existed {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
