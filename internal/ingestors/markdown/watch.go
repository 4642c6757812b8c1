package markdown

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/laws-africa/peachjam/internal/ingestors/upstream"
	"github.com/laws-africa/peachjam/internal/logger"
)

// Watch enqueues an update when a matching file is written and a delete when
// one is removed. Directories are watched with fsnotify; repositories are
// polled. It blocks until ctx is done.
func (a *Adapter) Watch(ctx context.Context) error {
	if a.mirror != nil {
		return a.pollRepo(ctx)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("markdown: creating watcher: %w", err)
	}
	defer w.Close()

	if err := addRecursive(w, a.root); err != nil {
		return err
	}
	if files, err := a.scan(ctx); err == nil {
		a.remember(files)
	} else {
		logger.Warn("markdown: initial scan: %v", err)
	}
	logger.Info("markdown: %s: watching %s", a.ing.Name, a.root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if err := a.handleEvent(ctx, w, ev); err != nil {
				logger.Warn("markdown: %s: %v", ev.Name, err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("markdown: watcher: %v", err)
		}
	}
}

func (a *Adapter) handleEvent(ctx context.Context, w *fsnotify.Watcher, ev fsnotify.Event) error {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			return addRecursive(w, ev.Name)
		}
	}

	rel, ok := a.relative(ev.Name)
	if !ok {
		return nil
	}

	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		return a.fileRemoved(ctx, rel)
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		return a.fileChanged(ctx, rel)
	}
	return nil
}

// fileRemoved enqueues a delete for the document last built from rel.
func (a *Adapter) fileRemoved(ctx context.Context, rel string) error {
	a.mu.Lock()
	uri, known := a.uris[rel]
	delete(a.uris, rel)
	a.mu.Unlock()
	if !known {
		return nil
	}
	return upstream.EnqueueDelete(ctx, a.deps.Tasks, a.ing.ID, uri)
}

// fileChanged enqueues an update for rel. When the file's identifier
// changed, the old document is deleted.
func (a *Adapter) fileChanged(ctx context.Context, rel string) error {
	f, err := a.load(rel)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	a.mu.Lock()
	old, known := a.uris[rel]
	a.uris[rel] = f.ExpressionURI
	a.mu.Unlock()
	if known && old != f.ExpressionURI {
		if err := upstream.EnqueueDelete(ctx, a.deps.Tasks, a.ing.ID, old); err != nil {
			return err
		}
	}
	return upstream.EnqueueUpdate(ctx, a.deps.Tasks, a.ing.ID, f.ExpressionURI)
}

// pull syncs the mirrored repository and enqueues what changed.
func (a *Adapter) pull(ctx context.Context) error {
	changed, removed, err := a.mirror.sync(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, rel := range removed {
		errs = append(errs, a.fileRemoved(ctx, rel))
	}
	for _, rel := range changed {
		errs = append(errs, a.fileChanged(ctx, rel))
	}
	logger.Info("markdown: %s: %d changed, %d removed in %s", a.ing.Name, len(changed), len(removed), a.root)
	return errors.Join(errs...)
}

// pollRepo pulls the repository every poll interval. The first pull only
// records what is there.
func (a *Adapter) pollRepo(ctx context.Context) error {
	if files, err := a.scan(ctx); err == nil {
		a.remember(files)
	} else {
		logger.Warn("markdown: initial sync: %v", err)
	}
	logger.Info("markdown: %s: polling %s every %s", a.ing.Name, a.root, a.poll)

	ticker := time.NewTicker(a.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.pull(ctx); err != nil {
				logger.Warn("markdown: %s: %v", a.ing.Name, err)
			}
		}
	}
}

// relative maps an event path to a slash-separated path under the root and
// reports whether it matches the pattern.
func (a *Adapter) relative(name string) (string, bool) {
	rel, err := filepath.Rel(a.root, name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	ok, err := doublestar.Match(a.pattern, rel)
	return rel, err == nil && ok
}

// addRecursive watches dir and every directory below it. Hidden directories
// are skipped.
func addRecursive(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(p); err != nil {
			return fmt.Errorf("markdown: watching %s: %w", p, err)
		}
		return nil
	})
}
