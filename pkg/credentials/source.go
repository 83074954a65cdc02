package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/papercomputeco/chatstream/pkg/logger"
)

// ErrNoToken is returned by a TokenSource that has no token to offer.
var ErrNoToken = errors.New("no bearer token configured")

// TokenSource supplies the bearer token for each backend request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticSource is a fixed token.
type StaticSource string

// Token returns the token, or ErrNoToken when it is empty.
func (s StaticSource) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// WatchedSource serves a profile from credentials.toml and reloads it whenever
// the file is written, created, or renamed into place.
type WatchedSource struct {
	path    string
	profile string
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup

	closeOnce sync.Once
	closeErr  error

	// mu guards current and loadErr
	mu      sync.RWMutex
	current Profile
	loadErr error
}

// NewWatchedSource loads profile from the manager's credentials file and
// starts watching it for changes. Close must be called to stop the watcher.
func NewWatchedSource(mgr *Manager, profile string, l *slog.Logger) (*WatchedSource, error) {
	if profile == "" {
		profile = DefaultProfile
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating credentials watcher: %w", err)
	}

	// Watch the directory: editors and atomic writers replace the file, which
	// drops a watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(mgr.GetTarget())); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching credentials dir: %w", err)
	}

	s := &WatchedSource{
		path:    filepath.Clean(mgr.GetTarget()),
		profile: profile,
		logger:  logger.OrNop(l).With("profile", profile),
		watcher: watcher,
		done:    make(chan struct{}),
	}
	s.reload()

	s.wg.Add(1)
	go s.watch()

	return s, nil
}

// Token returns the current token of the watched profile.
func (s *WatchedSource) Token(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.loadErr != nil {
		return "", s.loadErr
	}
	if s.current.Token == "" {
		return "", ErrNoToken
	}
	return s.current.Token, nil
}

// Profile returns the last successfully loaded profile.
func (s *WatchedSource) Profile() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Close stops watching. It is safe to call more than once, including
// concurrently; every call returns the result of the first.
func (s *WatchedSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.watcher.Close()
		s.wg.Wait()
	})
	return s.closeErr
}

func (s *WatchedSource) watch() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return

		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
				s.reload()
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("credentials watcher error", "error", err)
		}
	}
}

func (s *WatchedSource) reload() {
	creds, err := loadFile(s.path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		// A half-written file keeps the previous token.
		s.logger.Warn("reloading credentials", "error", err)
		if s.current.Token == "" {
			s.loadErr = err
		}
		return
	}

	s.loadErr = nil
	s.current = creds.Profiles[s.profile]
	s.logger.Debug("credentials reloaded", "has_token", s.current.Token != "")
}
