package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	sessionFile = "session.json"
)

// SessionState remembers the last chat opened in each project.
type SessionState struct {
	// LastChats maps a project id to the id of the chat last used in it.
	LastChats map[string]string `json:"last_chats"`
}

// LoadSessionState loads .chatstream/session.json. A missing file yields an
// empty state.
// If overrideDir is non-empty, it is used instead of the default location.
func (m *Manager) LoadSessionState(overrideDir string) (*SessionState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	state := &SessionState{}

	data, err := os.ReadFile(filepath.Join(dir, sessionFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			state.LastChats = map[string]string{}
			return state, nil
		}
		return nil, fmt.Errorf("reading session state: %w", err)
	}

	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing session state: %w", err)
	}
	if state.LastChats == nil {
		state.LastChats = map[string]string{}
	}

	return state, nil
}

// SaveSessionState persists state to .chatstream/session.json.
func (m *Manager) SaveSessionState(state *SessionState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil session state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session state: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, sessionFile), data, 0o600); err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}

	return nil
}

// LastChat returns the chat last used in projectID, or "" if none.
func (m *Manager) LastChat(projectID, overrideDir string) (string, error) {
	state, err := m.LoadSessionState(overrideDir)
	if err != nil {
		return "", err
	}
	return state.LastChats[projectID], nil
}

// RememberChat records chatID as the last chat used in projectID.
func (m *Manager) RememberChat(projectID, chatID, overrideDir string) error {
	state, err := m.LoadSessionState(overrideDir)
	if err != nil {
		return err
	}

	state.LastChats[projectID] = chatID
	return m.SaveSessionState(state, overrideDir)
}

// ForgetChat drops the remembered chat for projectID. It is a no-op when
// nothing is remembered.
func (m *Manager) ForgetChat(projectID, overrideDir string) error {
	state, err := m.LoadSessionState(overrideDir)
	if err != nil {
		return err
	}

	if _, ok := state.LastChats[projectID]; !ok {
		return nil
	}
	delete(state.LastChats, projectID)
	return m.SaveSessionState(state, overrideDir)
}
