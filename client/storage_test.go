package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identitydomain "postgrad-portal/backend/internal/identity/domain"
)

func sampleState() *PersistedState {
	now := time.Now().UTC().Truncate(time.Second)
	return &PersistedState{
		Principal: &identitydomain.Principal{
			ID:          "p-1",
			Role:        identitydomain.RoleStudent,
			Email:       "student@example.edu",
			DisplayName: "Sample Student",
		},
		Meta: SessionMeta{
			Start:        now,
			ExpiresAt:    now.Add(SoftWindow),
			MaxExpiresAt: now.Add(HardCap),
			LastActivity: now,
		},
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Save("https://a.example.edu", sampleState()))

	got, err := s.Load("https://a.example.edu")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "p-1", got.Principal.ID)

	missing, err := s.Load("https://b.example.edu")
	require.NoError(t, err)
	assert.Nil(t, missing, "origins must not share state")

	require.NoError(t, s.Clear("https://a.example.edu"))
	got, err = s.Load("https://a.example.edu")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreClearAll(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Save("https://a.example.edu", sampleState()))
	require.NoError(t, s.Save("https://b.example.edu", sampleState()))
	require.NoError(t, s.ClearAll())

	for _, origin := range []string{"https://a.example.edu", "https://b.example.edu"} {
		got, err := s.Load(origin)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	origin := "https://portal.example.edu:8443"
	require.NoError(t, s.Save(origin, sampleState()))

	got, err := s.Load(origin)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "student@example.edu", got.Principal.Email)
	assert.Equal(t, sampleState().Meta.Start, got.Meta.Start)

	require.NoError(t, s.Clear(origin))
	got, err = s.Load(origin)
	require.NoError(t, err)
	assert.Nil(t, got)
	// Clearing an already-missing origin is fine.
	require.NoError(t, s.Clear(origin))
}

func TestFileStoreIsolatesOrigins(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Save("https://a.example.edu", sampleState()))
	got, err := s.Load("https://a.example.edu:9999")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStoreCorruptFileMeansNoSession(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	origin := "https://portal.example.edu"
	path := filepath.Join(dir, sanitizeOrigin(origin)+stateFileSuffix)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	got, err := s.Load(origin)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStoreClearAll(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Save("https://a.example.edu", sampleState()))
	require.NoError(t, s.Save("https://b.example.edu", sampleState()))
	// An unrelated file in the directory survives the wipe.
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("keep"), 0o600))

	require.NoError(t, s.ClearAll())

	for _, origin := range []string{"https://a.example.edu", "https://b.example.edu"} {
		got, err := s.Load(origin)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	_, err = os.Stat(other)
	assert.NoError(t, err)
}

func TestSanitizeOrigin(t *testing.T) {
	assert.Equal(t, "https_portal.example.edu_8443", sanitizeOrigin("https://portal.example.edu:8443"))
	assert.Equal(t, "http_localhost_8080", sanitizeOrigin("http://localhost:8080"))
}
