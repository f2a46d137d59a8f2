package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/LilyAva000/office-work/internal/profile"
)

var (
	// ErrBadCredentials is returned when a login attempt fails.
	ErrBadCredentials = errors.New("invalid username or password")

	// ErrPersonNotFound is returned when no record exists for a person id.
	ErrPersonNotFound = errors.New("person not found")
)

// FileStore serves person records from a data directory:
//
//	<dataDir>/login/user_password.json   username -> password
//	<dataDir>/persons/<id>.json          profile document per person
//
// The person id is the login username. Writes go through a mutex so
// concurrent PUTs to the same person cannot interleave.
type FileStore struct {
	dataDir string
	mu      sync.Mutex
}

// NewFileStore opens a person store rooted at dataDir.
func NewFileStore(dataDir string) *FileStore {
	return &FileStore{dataDir: dataDir}
}

// Authenticate checks a username/password pair against the credential file.
func (s *FileStore) Authenticate(username, password string) error {
	data, err := os.ReadFile(filepath.Join(s.dataDir, "login", "user_password.json"))
	if err != nil {
		return fmt.Errorf("reading credential file: %w", err)
	}

	var users map[string]string
	if err := json.Unmarshal(data, &users); err != nil {
		return fmt.Errorf("parsing credential file: %w", err)
	}

	want, ok := users[username]
	if !ok || want != password {
		return ErrBadCredentials
	}
	return nil
}

func (s *FileStore) personPath(id string) string {
	return filepath.Join(s.dataDir, "persons", id+".json")
}

// LoadPerson reads a person's profile document.
func (s *FileStore) LoadPerson(id string) (profile.Document, error) {
	data, err := os.ReadFile(s.personPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return profile.Document{}, fmt.Errorf("%w: %s", ErrPersonNotFound, id)
	}
	if err != nil {
		return profile.Document{}, fmt.Errorf("reading person %s: %w", id, err)
	}

	var doc profile.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return profile.Document{}, fmt.Errorf("parsing person %s: %w", id, err)
	}
	return doc, nil
}

// SavePerson overwrites a person's profile document. The person must already
// exist; this API does not create new people.
func (s *FileStore) SavePerson(id string, doc profile.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.personPath(id)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrPersonNotFound, id)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding person %s: %w", id, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing person %s: %w", id, err)
	}
	return nil
}

// PersonIDs lists the ids of all stored people, sorted.
func (s *FileStore) PersonIDs() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dataDir, "persons"))
	if err != nil {
		return nil, fmt.Errorf("listing persons: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}
