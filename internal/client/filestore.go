package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/aicompanion/companion/internal/core/ports"
)

// FileStore keeps the session token and this install's device ID in a
// JSON file readable only by the current user.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type fileState struct {
	Token    string `json:"token,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
}

var _ ports.SessionStore = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Save(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	if err != nil {
		return err
	}
	st.Token = token
	return s.write(st)
}

func (s *FileStore) Restore(_ context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	if err != nil {
		return "", false, err
	}
	return st.Token, st.Token != "", nil
}

// Clear forgets the token. The device ID survives so the anonymous chat
// allowance is not reset by signing out.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	if err != nil {
		return err
	}
	if st.Token == "" {
		return nil
	}
	st.Token = ""
	return s.write(st)
}

// DeviceID returns the stored device ID, creating one on first use.
func (s *FileStore) DeviceID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	if err != nil {
		return "", err
	}
	if st.DeviceID != "" {
		return st.DeviceID, nil
	}
	st.DeviceID = uuid.NewString()
	if err := s.write(st); err != nil {
		return "", err
	}
	return st.DeviceID, nil
}

func (s *FileStore) read() (fileState, error) {
	var st fileState
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("read session file: %w", err)
	}
	if len(b) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return st, fmt.Errorf("decode session file: %w", err)
	}
	return st, nil
}

func (s *FileStore) write(st fileState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}
