// Package file implements store.KV on a plain directory, one file per key.
// This is the default backend for single-operator scanner installs.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// KV stores each key as a file under dir. Writes go through a temp file and
// rename so a crash mid-write never leaves a torn value behind.
type KV struct {
	dir string
	mu  sync.Mutex
}

// Open creates dir if needed and returns a file-backed store.
func Open(dir string) (*KV, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}
	return &KV{dir: dir}, nil
}

func (s *KV) path(key string) string {
	// Keys are internal identifiers (e.g. "offline_scan_queue"); replace
	// anything that could escape the directory.
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '.':
			return '_'
		}
		return r
	}, key)
	return filepath.Join(s.dir, safe+".json")
}

func (s *KV) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: read %s: %w", key, err)
	}
	return string(data), true, nil
}

func (s *KV) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0644); err != nil {
		return fmt.Errorf("store: write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: rename %s: %w", key, err)
	}
	return nil
}

func (s *KV) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: delete %s: %w", key, err)
	}
	return nil
}

func (s *KV) Close() error { return nil }
