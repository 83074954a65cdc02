// Package credentials stores the bearer tokens used to talk to the chat
// backend and exposes them to the client through TokenSource.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/chatstream/pkg/dotdir"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0
)

// Manager manages reading and writing credentials.toml in the .chatstream/
// directory.
type Manager struct {
	ddm        *dotdir.Manager
	targetPath string
}

// NewManager creates a new credentials Manager. If override is non-empty it is
// used as the .chatstream/ directory; otherwise the standard dotdir resolution
// applies.
func NewManager(override string) (*Manager, error) {
	mgr := &Manager{}
	mgr.ddm = dotdir.NewManager()

	target, err := mgr.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	mgr.targetPath = filepath.Join(target, credentialsFile)

	return mgr, nil
}

// Load reads credentials.toml from the target directory.
// Returns an empty Credentials if the file does not exist.
func (m *Manager) Load() (*Credentials, error) {
	return loadFile(m.targetPath)
}

func loadFile(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Credentials{
				Version:  currentVersion,
				Profiles: make(map[string]Profile),
			}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	creds := &Credentials{}
	if err := toml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	if creds.Profiles == nil {
		creds.Profiles = make(map[string]Profile)
	}

	return creds, nil
}

// Save writes credentials to credentials.toml with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// SetProfile stores p under name, replacing any existing profile.
func (m *Manager) SetProfile(name string, p Profile) error {
	if name == "" {
		name = DefaultProfile
	}

	creds, err := m.Load()
	if err != nil {
		return err
	}

	creds.Profiles[name] = p

	return m.Save(creds)
}

// GetProfile returns the named profile. ok is false if it is not stored.
func (m *Manager) GetProfile(name string) (Profile, bool, error) {
	if name == "" {
		name = DefaultProfile
	}

	creds, err := m.Load()
	if err != nil {
		return Profile{}, false, err
	}

	p, ok := creds.Profiles[name]
	return p, ok, nil
}

// RemoveProfile deletes the named profile. Removing a missing profile is a
// no-op.
func (m *Manager) RemoveProfile(name string) error {
	if name == "" {
		name = DefaultProfile
	}

	creds, err := m.Load()
	if err != nil {
		return err
	}

	delete(creds.Profiles, name)

	return m.Save(creds)
}

// ListProfiles returns the names of stored profiles in sorted order.
func (m *Manager) ListProfiles() ([]string, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(creds.Profiles))
	for name := range creds.Profiles {
		names = append(names, name)
	}

	sort.Strings(names)

	return names, nil
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}
