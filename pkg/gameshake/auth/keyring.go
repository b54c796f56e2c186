package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name credentials are stored under.
const KeyringService = "gameshake"

// KeyringStore keeps the credential in the OS keychain under
// (Service, Profile).
type KeyringStore struct {
	Service  string
	Profile  string
	LockPath string
}

func (s *KeyringStore) service() string {
	if s.Service == "" {
		return KeyringService
	}
	return s.Service
}

func (s *KeyringStore) Load(ctx context.Context) (*Credential, error) {
	var out *Credential
	err := withFileLock(ctx, s.LockPath, func() error {
		secret, err := keyring.Get(s.service(), s.Profile)
		if err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("failed to read keychain: %w", err)
		}
		var cred Credential
		if err := json.Unmarshal([]byte(secret), &cred); err != nil {
			// treated like a missing entry
			return nil
		}
		out = &cred
		return nil
	})
	return out, err
}

func (s *KeyringStore) Save(ctx context.Context, cred Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}
	return withFileLock(ctx, s.LockPath, func() error {
		if err := keyring.Set(s.service(), s.Profile, string(data)); err != nil {
			return fmt.Errorf("failed to write keychain: %w", err)
		}
		return nil
	})
}

func (s *KeyringStore) Clear(ctx context.Context) error {
	return withFileLock(ctx, s.LockPath, func() error {
		if err := keyring.Delete(s.service(), s.Profile); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to delete keychain entry: %w", err)
		}
		return nil
	})
}
