package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gameshake/gameshake/pkg/system"
)

// Store persists at most one credential per profile.
//
// Load returns (nil, nil) when no credential is stored. Implementations
// serialise access across processes sharing the same backing location.
type Store interface {
	Load(ctx context.Context) (*Credential, error)
	Save(ctx context.Context, cred Credential) error
	Clear(ctx context.Context) error
}

const (
	StorageFile     = "file"
	StorageKeychain = "keychain"

	lockRetryDelay = 50 * time.Millisecond
)

// NewStore returns the store for the configured storage mode. path is the
// credentials file; the keychain mode still uses it for its lock file.
func NewStore(mode, path, profile string, log *zap.SugaredLogger) (Store, error) {
	if profile == "" {
		return nil, errors.New("profile is required")
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", StorageFile:
		if path == "" {
			return nil, errors.New("credential file path is required")
		}
		return &FileStore{Path: path, Profile: profile, Log: log}, nil
	case StorageKeychain, "keyring":
		lockPath := ""
		if path != "" {
			lockPath = path + ".lock"
		}
		return &KeyringStore{Service: KeyringService, Profile: profile, LockPath: lockPath}, nil
	default:
		return nil, fmt.Errorf("unsupported token storage %q", mode)
	}
}

type credentialFile struct {
	Credentials map[string]Credential `json:"credentials"`
}

// FileStore keeps credentials for all profiles in a single JSON document.
// Writes replace the file atomically and every operation holds an
// exclusive lock on Path+".lock".
type FileStore struct {
	Path    string
	Profile string
	Log     *zap.SugaredLogger
}

func (s *FileStore) Load(ctx context.Context) (*Credential, error) {
	var out *Credential
	err := withFileLock(ctx, s.Path+".lock", func() error {
		file, err := s.read()
		if err != nil {
			return err
		}
		if cred, ok := file.Credentials[s.Profile]; ok {
			out = &cred
		}
		return nil
	})
	return out, err
}

func (s *FileStore) Save(ctx context.Context, cred Credential) error {
	return withFileLock(ctx, s.Path+".lock", func() error {
		file, err := s.read()
		if err != nil {
			return err
		}
		file.Credentials[s.Profile] = cred
		return s.write(file)
	})
}

func (s *FileStore) Clear(ctx context.Context) error {
	return withFileLock(ctx, s.Path+".lock", func() error {
		file, err := s.read()
		if err != nil {
			return err
		}
		if _, ok := file.Credentials[s.Profile]; !ok {
			return nil
		}
		delete(file.Credentials, s.Profile)
		return s.write(file)
	})
}

// read returns an empty document when the file is missing or cannot be
// parsed. A corrupt file is overwritten by the next Save.
func (s *FileStore) read() (*credentialFile, error) {
	empty := &credentialFile{Credentials: map[string]Credential{}}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return empty, nil
		}
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	var file credentialFile
	if err := json.Unmarshal(data, &file); err != nil {
		system.OrNop(s.Log).Warnw("Ignoring unreadable credentials file", "path", s.Path, "error", err)
		return empty, nil
	}
	if file.Credentials == nil {
		file.Credentials = map[string]Credential{}
	}
	return &file, nil
}

func (s *FileStore) write(file *credentialFile) (err error) {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if err := tmp.Chmod(0o600); err != nil {
		return multierr.Append(fmt.Errorf("failed to write credentials: %w", err), tmp.Close())
	}
	if _, err := tmp.Write(data); err != nil {
		return multierr.Append(fmt.Errorf("failed to write credentials: %w", err), tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("failed to replace credentials: %w", err)
	}
	return nil
}

// withFileLock runs fn while holding an exclusive advisory lock.
// An empty lockPath runs fn unlocked.
func withFileLock(ctx context.Context, lockPath string, fn func() error) (err error) {
	if lockPath == "" {
		return fn()
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o700); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}
	lock := flock.New(lockPath)
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock credential store: %w", err)
	}
	if !locked {
		return fmt.Errorf("credential store %s is locked", lockPath)
	}
	defer func() {
		err = multierr.Append(err, lock.Unlock())
	}()
	return fn()
}
