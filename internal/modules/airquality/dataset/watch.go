package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher reports changes to a single local source file. It watches the
// parent directory so that editors replacing the file by rename are seen.
type FileWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

func NewFileWatcher(path string, logger *slog.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	return &FileWatcher{path: abs, watcher: w, logger: logger}, nil
}

// Run calls onChange for every write, create, rename or remove of the file
// until ctx is done. It closes the watcher before returning.
func (fw *FileWatcher) Run(ctx context.Context, onChange func()) error {
	defer func() {
		if err := fw.watcher.Close(); err != nil {
			fw.logger.Warn("close file watcher", "path", fw.path, "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != fw.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			fw.logger.Debug("source file changed", "path", fw.path, "op", ev.Op.String())
			onChange()
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			fw.logger.Warn("file watcher error", "path", fw.path, "error", err)
		}
	}
}
