// Package auth stores the xeno-canto API key. The system keychain is the
// primary backend with an environment variable fallback, so the key never
// has to live in a config file.
package auth

import (
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "chirpnet"
	keyringKey     = "xeno_canto_api_key"

	// EnvAPIKey is the environment fallback for the API key
	EnvAPIKey = "CHIRPNET_API_KEY"
)

var (
	// ErrKeyNotFound indicates no API key is stored in any backend
	ErrKeyNotFound = errors.New("no API key stored")

	// ErrStoreUnavailable indicates the backend cannot store keys
	ErrStoreUnavailable = errors.New("store does not support writing")
)

// KeyStore is the interface for storing and retrieving the API key
type KeyStore interface {
	// Store saves the API key
	Store(apiKey string) error

	// Retrieve returns the stored API key
	Retrieve() (string, error)

	// Delete removes the stored API key
	Delete() error

	// Name identifies the backend in user-facing messages
	Name() string
}

// KeyringStore keeps the API key in the system keychain
type KeyringStore struct{}

// NewKeyringStore creates a keychain-backed store, verifying the keychain
// is usable on this system.
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

func (k *KeyringStore) Store(apiKey string) error {
	if apiKey == "" {
		return errors.New("API key is empty")
	}
	if err := keyring.Set(keyringService, keyringKey, apiKey); err != nil {
		return fmt.Errorf("failed to store API key in keyring: %w", err)
	}
	return nil
}

func (k *KeyringStore) Retrieve() (string, error) {
	value, err := keyring.Get(keyringService, keyringKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to read API key from keyring: %w", err)
	}
	return value, nil
}

func (k *KeyringStore) Delete() error {
	err := keyring.Delete(keyringService, keyringKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("failed to delete API key from keyring: %w", err)
	}
	return nil
}

func (k *KeyringStore) Name() string { return "system keychain" }

// EnvironmentStore reads the API key from the environment. It is
// read-only and exists for shells and CI where no keychain is available.
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Store(apiKey string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Retrieve() (string, error) {
	value := os.Getenv(EnvAPIKey)
	if value == "" {
		return "", ErrKeyNotFound
	}
	return value, nil
}

func (e *EnvironmentStore) Delete() error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Name() string { return "environment variable " + EnvAPIKey }

// Manager resolves the API key across backends in priority order
type Manager struct {
	stores []KeyStore
}

// NewManager creates a key manager. The keychain is preferred when
// available; the environment variable always works as a fallback.
func NewManager() *Manager {
	var stores []KeyStore
	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}
	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}
}

// Store saves the API key in the first writable backend
func (m *Manager) Store(apiKey string) error {
	var lastErr error
	for _, store := range m.stores {
		err := store.Store(apiKey)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return errors.New("no writable key store available; set " + EnvAPIKey + " instead")
}

// Retrieve returns the API key from the first backend that has one
func (m *Manager) Retrieve() (string, error) {
	for _, store := range m.stores {
		value, err := store.Retrieve()
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, ErrKeyNotFound) {
			return "", err
		}
	}
	return "", ErrKeyNotFound
}

// Source reports which backend currently holds the API key
func (m *Manager) Source() (string, error) {
	for _, store := range m.stores {
		if _, err := store.Retrieve(); err == nil {
			return store.Name(), nil
		}
	}
	return "", ErrKeyNotFound
}

// Delete removes the API key from every backend that holds one
func (m *Manager) Delete() error {
	deleted := false
	for _, store := range m.stores {
		err := store.Delete()
		if err == nil {
			deleted = true
			continue
		}
		if errors.Is(err, ErrKeyNotFound) || errors.Is(err, ErrStoreUnavailable) {
			continue
		}
		return err
	}
	if !deleted {
		return ErrKeyNotFound
	}
	return nil
}
