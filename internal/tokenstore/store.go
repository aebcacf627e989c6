// Package tokenstore persists the access/refresh token pair used by the API client.
package tokenstore

import (
	"fmt"
	"strings"
)

// Fixed key names for the token pair.
const (
	AccessTokenKey  = "accessToken"
	RefreshTokenKey = "refreshToken"
)

// Store holds the token pair for a single server.
//
// Absent tokens are reported as "" with a nil error. Either both tokens are
// present or both are absent; a store holding only one of them is only valid
// while a refresh is in flight.
type Store interface {
	AccessToken() (string, error)
	RefreshToken() (string, error)
	SetTokens(access, refresh string) error
	SetAccessToken(access string) error
	Clear() error
}

// Store kinds accepted by Open
const (
	KindKeyring = "keyring"
	KindFile    = "file"
	KindMemory  = "memory"
)

// Open returns the store implementation named by kind for the given server URL.
// dir is only used by the file store.
func Open(kind, server, dir string) (Store, error) {
	switch strings.ToLower(kind) {
	case "", KindKeyring:
		return NewKeyringStore(server), nil
	case KindFile:
		return NewFileStore(dir, server), nil
	case KindMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown token store %q (want keyring, file or memory)", kind)
	}
}

// HasSession reports whether an access token is stored.
func HasSession(s Store) bool {
	token, err := s.AccessToken()
	return err == nil && token != ""
}
