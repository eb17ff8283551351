package quota

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/kodescruxx/kx-cli/internal/api"
	"github.com/kodescruxx/kx-cli/internal/config"
	"github.com/rs/zerolog"
)

const fileName = "quota.json"

// FileBroadcaster shares quota through a file in the config directory.
// Every kx process watching the file sees each write.
type FileBroadcaster struct {
	path   string
	logger zerolog.Logger
}

// NewFileBroadcaster uses ~/.kx/quota.json.
func NewFileBroadcaster(logger zerolog.Logger) *FileBroadcaster {
	return NewFileBroadcasterAt(filepath.Join(config.Dir(), fileName), logger)
}

// NewFileBroadcasterAt uses path.
func NewFileBroadcasterAt(path string, logger zerolog.Logger) *FileBroadcaster {
	return &FileBroadcaster{path: filepath.Clean(path), logger: logger}
}

// Publish replaces the file atomically so watchers never read a partial write.
func (b *FileBroadcaster) Publish(_ context.Context, info api.QuotaInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, fileName+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// Load returns the last published quota, or nil if none was published.
func (b *FileBroadcaster) Load() (*api.QuotaInfo, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var info api.QuotaInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("corrupt quota file: %w", err)
	}
	return &info, nil
}

// Subscribe watches the directory rather than the file, because Publish
// replaces the file and a watch on the old inode would go quiet.
func (b *FileBroadcaster) Subscribe(ctx context.Context, fn func(api.QuotaInfo)) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}
	b.logger.Debug().Str("path", b.path).Msg("quota file watcher started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Debug().Msg("quota file watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != b.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			info, err := b.Load()
			if err != nil {
				b.logger.Warn().Err(err).Msg("ignoring unreadable quota update")
				continue
			}
			if info != nil {
				fn(*info)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			b.logger.Error().Err(err).Msg("quota file watcher error")
		}
	}
}
