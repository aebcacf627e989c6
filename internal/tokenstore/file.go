package tokenstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const credentialsFileName = "credentials.yaml"

// tokenPair is the on-disk shape of one server's tokens
type tokenPair struct {
	AccessToken  string `yaml:"accessToken,omitempty"`
	RefreshToken string `yaml:"refreshToken,omitempty"`
}

type credentialsFile struct {
	Servers map[string]tokenPair `yaml:"servers"`
}

// FileStore keeps tokens in a YAML file readable only by the current user.
// It is meant for hosts without a keychain (CI runners, containers).
type FileStore struct {
	mu     sync.Mutex
	path   string
	server string
}

// NewFileStore returns a store writing to <dir>/credentials.yaml under the server's entry.
func NewFileStore(dir, server string) *FileStore {
	return &FileStore{
		path:   filepath.Join(dir, credentialsFileName),
		server: server,
	}
}

// Path returns the credentials file location
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) load() (*credentialsFile, error) {
	creds := &credentialsFile{Servers: map[string]tokenPair{}}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return creds, nil
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	if err := yaml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if creds.Servers == nil {
		creds.Servers = map[string]tokenPair{}
	}
	return creds, nil
}

func (f *FileStore) save(creds *credentialsFile) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	data, err := yaml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	// Write then rename so readers never see a half-written file
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}

func (f *FileStore) read() (tokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds, err := f.load()
	if err != nil {
		return tokenPair{}, err
	}
	return creds.Servers[f.server], nil
}

func (f *FileStore) update(mutate func(*tokenPair)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds, err := f.load()
	if err != nil {
		return err
	}

	pair := creds.Servers[f.server]
	mutate(&pair)
	if pair == (tokenPair{}) {
		delete(creds.Servers, f.server)
	} else {
		creds.Servers[f.server] = pair
	}
	return f.save(creds)
}

func (f *FileStore) AccessToken() (string, error) {
	pair, err := f.read()
	return pair.AccessToken, err
}

func (f *FileStore) RefreshToken() (string, error) {
	pair, err := f.read()
	return pair.RefreshToken, err
}

func (f *FileStore) SetTokens(access, refresh string) error {
	return f.update(func(p *tokenPair) {
		p.AccessToken = access
		p.RefreshToken = refresh
	})
}

func (f *FileStore) SetAccessToken(access string) error {
	return f.update(func(p *tokenPair) {
		p.AccessToken = access
	})
}

func (f *FileStore) Clear() error {
	return f.update(func(p *tokenPair) {
		*p = tokenPair{}
	})
}
