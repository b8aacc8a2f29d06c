package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/thebtf/faqlearn/internal/db"
)

// reloadDebounce coalesces the burst of events an editor save produces.
const reloadDebounce = 250 * time.Millisecond

// FileStore is a SettingsStore backed by one JSON object file keyed by section name.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store for path. The file need not exist yet.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the settings file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	sections := map[string]json.RawMessage{}
	if len(data) == 0 {
		return sections, nil
	}
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return sections, nil
}

// GetSetting returns the raw JSON of one section, or db.ErrNotFound.
func (s *FileStore) GetSetting(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sections, err := s.read()
	if err != nil {
		return nil, err
	}
	raw, ok := sections[key]
	if !ok {
		return nil, db.ErrNotFound
	}
	return []byte(raw), nil
}

// PutSetting rewrites the file with the section replaced.
func (s *FileStore) PutSetting(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sections, err := s.read()
	if err != nil {
		return err
	}
	sections[key] = json.RawMessage(append([]byte(nil), value...))

	data, err := json.MarshalIndent(sections, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Watch calls onChange whenever the settings file is written, created or renamed into place.
// It blocks until ctx is done.
func (s *FileStore) Watch(ctx context.Context, logger zerolog.Logger, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so atomic replaces are seen.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(s.path)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, onChange)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Str("path", s.path).Msg("Settings watcher error")
		}
	}
}

// WatchFile reloads the loader whenever the file store changes. It blocks until ctx is done.
func (l *Loader) WatchFile(ctx context.Context, store *FileStore) error {
	return store.Watch(ctx, l.logger, func() {
		if _, err := l.Load(ctx); err != nil {
			l.logger.Error().Err(err).Msg("Failed to reload settings")
			return
		}
		l.logger.Info().Str("path", store.Path()).Msg("Settings reloaded")
	})
}
