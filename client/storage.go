package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	identitydomain "postgrad-portal/backend/internal/identity/domain"
)

// PersistedState is what survives a client restart: the last known principal
// and the session record needed for a silent resume.
type PersistedState struct {
	Principal *identitydomain.Principal `json:"principal"`
	Meta      SessionMeta               `json:"meta"`
}

// StateStore persists client session state keyed by portal origin, so two
// portals on different hosts or ports never see each other's state.
type StateStore interface {
	Save(origin string, state *PersistedState) error
	Load(origin string) (*PersistedState, error)
	Clear(origin string) error
	// ClearAll wipes every origin's state. Logout calls this so no sibling
	// portal keeps a principal the user just signed out of.
	ClearAll() error
}

// MemoryStore is an in-process StateStore for tests and short-lived tools.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]*PersistedState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*PersistedState)}
}

func (m *MemoryStore) Save(origin string, state *PersistedState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.states[origin] = &cp
	return nil
}

func (m *MemoryStore) Load(origin string) (*PersistedState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[origin]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (m *MemoryStore) Clear(origin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, origin)
	return nil
}

func (m *MemoryStore) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = make(map[string]*PersistedState)
	return nil
}

const stateFileSuffix = ".session.json"

// FileStore persists state as one JSON file per origin under dir.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("client: state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) Save(origin string, state *PersistedState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path(origin), data, 0o600)
}

func (f *FileStore) Load(origin string) (*PersistedState, error) {
	data, err := os.ReadFile(f.path(origin))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var st PersistedState
	if err := json.Unmarshal(data, &st); err != nil {
		// A corrupt state file means no resumable session, not a hard error.
		return nil, nil
	}
	return &st, nil
}

func (f *FileStore) Clear(origin string) error {
	err := os.Remove(f.path(origin))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (f *FileStore) ClearAll() error {
	matches, err := filepath.Glob(filepath.Join(f.dir, "*"+stateFileSuffix))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (f *FileStore) path(origin string) string {
	return filepath.Join(f.dir, sanitizeOrigin(origin)+stateFileSuffix)
}

// sanitizeOrigin turns an origin into a filename-safe key, e.g.
// "https://portal.example.edu:8443" -> "https_portal.example.edu_8443".
func sanitizeOrigin(origin string) string {
	r := strings.NewReplacer("://", "_", ":", "_", "/", "_")
	return r.Replace(origin)
}
