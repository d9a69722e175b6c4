package notes

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultColor is returned for trades that were never tagged.
const DefaultColor = "none"

// Store is a flat JSON object of string values kept in a single file.
// Every read goes to disk so edits made by other processes are seen.
type Store struct {
	mu     sync.Mutex
	path   string
	indent bool
}

func NewStore(path string) *Store {
	return &Store{path: path, indent: true}
}

// Get returns the value for key, or fallback when the key or file is absent.
func (s *Store) Get(key, fallback string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return fallback, err
	}
	if v, ok := all[key]; ok {
		return v, nil
	}
	return fallback, nil
}

// WithPrefix returns all entries whose key starts with prefix. An empty prefix
// returns everything.
func (s *Store) WithPrefix(prefix string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for k, v := range all {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	all[key] = value
	return s.write(all)
}

// Delete removes key. Deleting an absent key does not touch the file.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := all[key]; !ok {
		return nil
	}
	delete(all, key)
	return s.write(all)
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() ([]string, error) {
	all, err := s.WithPrefix("")
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	all := map[string]string{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.path, err)
	}
	return all, nil
}

func (s *Store) write(all map[string]string) error {
	var (
		data []byte
		err  error
	)
	if s.indent {
		data, err = json.MarshalIndent(all, "", "  ")
	} else {
		data, err = json.Marshal(all)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.path, err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}

	log.Debug().Str("file", s.path).Int("entries", len(all)).Msg("Notes saved")
	return nil
}
