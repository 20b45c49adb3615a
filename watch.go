package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/phobologic/remotefn/internal/config"
	"github.com/phobologic/remotefn/internal/discover"
)

// watch calls onChange with the changed documents each time the source
// directory has been quiet for debounce after a change to a document.
func watch(ctx context.Context, cfg *config.Config, debounce time.Duration, onChange func(changed []string)) error {
	w, err := newSourceWatcher(cfg)
	if err != nil {
		return err
	}
	defer w.Close()
	return w.run(ctx, debounce, onChange)
}

// sourceWatcher watches every directory under the source root that the
// configuration does not exclude.
type sourceWatcher struct {
	fs  *fsnotify.Watcher
	cfg *config.Config
}

// newSourceWatcher registers the source tree. Changes made after it returns
// are reported by run.
func newSourceWatcher(cfg *config.Config) (*sourceWatcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &sourceWatcher{fs: fs, cfg: cfg}
	if _, err := w.addRecursive(cfg.SourcePath()); err != nil {
		fs.Close()
		return nil, err
	}
	return w, nil
}

func (w *sourceWatcher) Close() error { return w.fs.Close() }

func (w *sourceWatcher) run(ctx context.Context, debounce time.Duration, onChange func(changed []string)) error {
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	pending := map[string]bool{}
	queue := func(path string) {
		if len(pending) > 0 && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		pending[path] = true
		timer.Reset(debounce)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			path := filepath.Clean(event.Name)

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(path); err == nil && info.IsDir() {
					if skipWatchDir(w.cfg, filepath.Base(path)) {
						continue
					}
					// Documents written before the watch was added raise no
					// event of their own.
					docs, _ := w.addRecursive(path)
					for _, doc := range docs {
						queue(doc)
					}
					continue
				}
			}
			if !w.cfg.Supported(path) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			queue(path)
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for path := range pending {
				changed = append(changed, path)
			}
			sort.Strings(changed)
			pending = map[string]bool{}
			onChange(changed)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// addRecursive watches root and every directory below it that is not
// skipped. It returns the supported documents it passed.
func (w *sourceWatcher) addRecursive(root string) ([]string, error) {
	root = filepath.Clean(root)
	var docs []string
	err := filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			if w.cfg.Supported(path) {
				docs = append(docs, path)
			}
			return nil
		}
		if path != root && skipWatchDir(w.cfg, entry.Name()) {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
	return docs, err
}

func skipWatchDir(cfg *config.Config, name string) bool {
	if discover.SkipDir(name) {
		return true
	}
	for _, ex := range cfg.Exclude {
		if name == ex {
			return true
		}
	}
	return false
}
