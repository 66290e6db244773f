package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const credentialsVersion = 1

// SavedToken is a token remembered for one server URL together with the
// auth type it was used with, so an api_key token is not replayed as bearer.
type SavedToken struct {
	Type    string    `json:"type"`
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at,omitzero"`
}

// Store is the credentials file, by default ~/.mcprobe/credentials.json.
type Store struct {
	Version int                   `json:"version"`
	Servers map[string]SavedToken `json:"servers"`

	path string
}

// CredentialsPath is $MCPROBE_CREDENTIALS_FILE, or ~/.mcprobe/credentials.json.
func CredentialsPath() string {
	if p := os.Getenv("MCPROBE_CREDENTIALS_FILE"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".mcprobe", "credentials.json")
}

// OpenStore reads the store at path. A missing file yields an empty store
// that Save will create.
func OpenStore(path string) (*Store, error) {
	s := &Store{Version: credentialsVersion, path: path}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	if s.Servers == nil {
		s.Servers = make(map[string]SavedToken)
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

// Lookup returns the token saved for serverURL.
func (s *Store) Lookup(serverURL string) (SavedToken, bool) {
	saved, ok := s.Servers[serverURL]
	return saved, ok && saved.Token != ""
}

// Put records token for serverURL. An empty or "none" type is stored as bearer.
func (s *Store) Put(serverURL, authType, token string) {
	authType = NormalizeType(authType)
	if authType == TypeNone {
		authType = TypeBearer
	}
	s.Servers[serverURL] = SavedToken{Type: authType, Token: token, SavedAt: time.Now().UTC()}
}

// Save writes the store with owner-only permissions.
func (s *Store) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

// ResolveToken picks the token for serverURL: an explicit one (flag or
// config) first, then $MCPROBE_AUTH_TOKEN, then the credentials file. The
// auth type is only known for tokens read from the file.
func ResolveToken(explicit, serverURL string) (token, authType string) {
	if explicit != "" {
		return explicit, ""
	}
	if t := os.Getenv("MCPROBE_AUTH_TOKEN"); t != "" {
		return t, ""
	}
	path := CredentialsPath()
	if path == "" {
		return "", ""
	}
	store, err := OpenStore(path)
	if err != nil {
		return "", ""
	}
	saved, _ := store.Lookup(serverURL)
	return saved.Token, saved.Type
}

// RememberToken saves token for serverURL in the default credentials file
// and returns the file's path.
func RememberToken(serverURL, authType, token string) (string, error) {
	store, err := OpenStore(CredentialsPath())
	if err != nil {
		return "", err
	}
	store.Put(serverURL, authType, token)
	return store.Path(), store.Save()
}
