// Package secrets keeps the database DSN and the model API key in the OS
// keychain so they do not have to live in config files.
package secrets

import (
	"sync"

	"github.com/99designs/keyring"
	"github.com/pkg/errors"
)

const ServiceName = "datachat"

const (
	KeyDBDSN  = "db_dsn"
	KeyAPIKey = "openai_api_key"
)

var ErrNotFound = errors.New("secret not found")

// Store is a thread-safe view on one keyring.
type Store struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Open opens the platform keyring. Backends that need a password prompt are
// left out.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: ServiceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.WinCredBackend,
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.PassBackend,
		},
		KeychainTrustApplication: true,
		PassPrefix:               ServiceName,
		WinCredPrefix:            ServiceName,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open keyring")
	}
	return NewStore(ring), nil
}

func (s *Store) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, err := s.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", errors.Wrapf(err, "read %s from keyring", key)
	}
	return string(item.Data), nil
}

func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(value),
		Label:       ServiceName + " " + key,
		Description: "datachat credential",
	})
	return errors.Wrapf(err, "write %s to keyring", key)
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return errors.Wrapf(err, "remove %s from keyring", key)
	}
	return nil
}

// Fallback returns value unless it is empty, in which case the stored secret
// is used. A missing secret is not an error.
func (s *Store) Fallback(key, value string) (string, error) {
	if value != "" || s == nil {
		return value, nil
	}
	v, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}
