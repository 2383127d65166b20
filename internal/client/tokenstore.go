package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// TokenStore persists the session token between runs.
type TokenStore interface {
	// Load returns "" with a nil error when nothing is stored.
	Load() (string, error)
	Save(token string) error
	Clear() error
}

type fileContents struct {
	Token string `json:"token"`
}

// FileTokenStore keeps the token in a JSON file readable only by its owner.
type FileTokenStore struct {
	Path string
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{Path: path}
}

func (s *FileTokenStore) Load() (string, error) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("token store: read: %w", err)
	}

	var c fileContents
	if err := json.Unmarshal(b, &c); err != nil {
		return "", fmt.Errorf("token store: decode %s: %w", s.Path, err)
	}
	return c.Token, nil
}

func (s *FileTokenStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("token store: mkdir: %w", err)
	}
	b, err := json.Marshal(fileContents{Token: token})
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.Path, b, 0o600); err != nil {
		return fmt.Errorf("token store: write: %w", err)
	}
	return nil
}

func (s *FileTokenStore) Clear() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("token store: remove: %w", err)
	}
	return nil
}

type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

func (s *MemoryTokenStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *MemoryTokenStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	return s.Save("")
}
