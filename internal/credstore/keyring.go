package credstore

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// OSStore keeps secrets in the platform keychain (Secret Service, macOS
// Keychain, Windows Credential Manager).
type OSStore struct{}

// NewOSStore returns a Store backed by the OS keyring.
func NewOSStore() *OSStore {
	return &OSStore{}
}

// Get reads a secret from the keyring.
func (OSStore) Get(service, account string) (string, error) {
	secret, err := keyring.Get(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keyring get: %w", err)
	}
	return secret, nil
}

// Set writes a secret to the keyring, replacing any existing value.
func (OSStore) Set(service, account, secret string) error {
	if err := keyring.Set(service, account, secret); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}
