package tokenstore

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const service = "taskdeck-cli"

// KeyringStore keeps tokens in the OS keychain/credential manager.
type KeyringStore struct {
	server string
}

// NewKeyringStore returns a keyring-backed store scoped to server.
func NewKeyringStore(server string) *KeyringStore {
	return &KeyringStore{server: server}
}

// keyFor returns a unique keyring user per token and server
func (k *KeyringStore) keyFor(name string) string {
	return fmt.Sprintf("%s@%s", name, k.server)
}

func (k *KeyringStore) get(name string) (string, error) {
	token, err := keyring.Get(service, k.keyFor(name))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load %s: %w", name, err)
	}
	return token, nil
}

func (k *KeyringStore) set(name, value string) error {
	if err := keyring.Set(service, k.keyFor(name), value); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}

func (k *KeyringStore) delete(name string) error {
	if err := keyring.Delete(service, k.keyFor(name)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

func (k *KeyringStore) AccessToken() (string, error) {
	return k.get(AccessTokenKey)
}

func (k *KeyringStore) RefreshToken() (string, error) {
	return k.get(RefreshTokenKey)
}

// SetTokens writes the refresh token first so a crash between the two writes
// never leaves an access token without a way to renew it.
func (k *KeyringStore) SetTokens(access, refresh string) error {
	if err := k.set(RefreshTokenKey, refresh); err != nil {
		return err
	}
	return k.set(AccessTokenKey, access)
}

func (k *KeyringStore) SetAccessToken(access string) error {
	return k.set(AccessTokenKey, access)
}

func (k *KeyringStore) Clear() error {
	accessErr := k.delete(AccessTokenKey)
	refreshErr := k.delete(RefreshTokenKey)
	return errors.Join(accessErr, refreshErr)
}
