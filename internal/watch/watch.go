// Package watch turns raw file-system events into the engine's rename and
// delete notifications.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"linktidy/internal/engine"
	"linktidy/internal/vault"
)

// Dispatcher watches the vault root and drives the engine. fsnotify reports a
// move as a Rename event on the old path followed by a Create on the new one;
// the dispatcher pairs them within a short window, and a Rename that never
// gets its Create is treated as a delete.
type Dispatcher struct {
	Engine *engine.Engine
	Logger *slog.Logger

	// Debounce is the pairing window for Rename/Create. Zero means 200ms.
	Debounce time.Duration
}

type pendingRename struct {
	oldPath  string
	deadline time.Time
}

// Run processes events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := d.Engine.Vault.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	d.Logger.Info("watcher: started", slog.String("root", root))

	debounce := d.Debounce
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	var pending []pendingRename
	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			d.Logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			// Unpaired renames are deletes.
			now := time.Now()
			var keep []pendingRename
			for _, p := range pending {
				if now.Before(p.deadline) {
					keep = append(keep, p)
					continue
				}
				d.notifyDelete(p.oldPath)
			}
			pending = keep
			if len(pending) > 0 {
				schedule()
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if hidden(rel) || d.Engine.Ignored(rel) {
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						d.Logger.Warn("watcher: add new dir failed",
							slog.String("path", rel), slog.String("error", addErr.Error()))
					}
					continue
				}
				if old, ok := takePending(&pending, rel); ok {
					d.notifyRename(ctx, old, rel)
					continue
				}
				d.indexNew(rel)

			case ev.Op&fsnotify.Rename != 0:
				pending = append(pending, pendingRename{
					oldPath:  rel,
					deadline: time.Now().Add(debounce),
				})
				schedule()

			case ev.Op&fsnotify.Remove != 0:
				d.notifyDelete(rel)

			case ev.Op&fsnotify.Write != 0:
				if vault.KindOf(rel).IsNote() {
					if err := d.Engine.Index.ReindexFile(d.Engine.Vault, rel); err != nil {
						d.Logger.Warn("watcher: reindex failed",
							slog.String("path", rel), slog.String("error", err.Error()))
					}
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			d.Logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// takePending pops the pending rename that best matches a newly created path:
// same basename first, otherwise the oldest entry.
func takePending(pending *[]pendingRename, newPath string) (string, bool) {
	ps := *pending
	if len(ps) == 0 {
		return "", false
	}
	idx := 0
	for i, p := range ps {
		if path.Base(p.oldPath) == path.Base(newPath) {
			idx = i
			break
		}
	}
	old := ps[idx].oldPath
	*pending = append(ps[:idx], ps[idx+1:]...)
	return old, true
}

func (d *Dispatcher) notifyRename(ctx context.Context, oldPath, newPath string) {
	if d.Engine.Cascade().SelfIssued(oldPath, newPath) {
		d.Logger.Debug("watcher: self-issued move",
			slog.String("old", oldPath), slog.String("new", newPath))
		return
	}
	if _, err := d.Engine.RenameNotify(ctx, oldPath, newPath); err != nil {
		d.Logger.Warn("watcher: rename cascade failed",
			slog.String("old", oldPath), slog.String("new", newPath),
			slog.String("error", err.Error()))
	}
}

func (d *Dispatcher) notifyDelete(relPath string) {
	if d.Engine.Cascade().Active() {
		// Collection and cascades delete files themselves; their events need
		// no second pass.
		return
	}
	if _, err := d.Engine.DeleteNotify(relPath); err != nil {
		d.Logger.Warn("watcher: delete cascade failed",
			slog.String("path", relPath), slog.String("error", err.Error()))
	}
}

// indexNew registers a file that appeared without a matching rename.
func (d *Dispatcher) indexNew(relPath string) {
	var err error
	if vault.KindOf(relPath).IsNote() {
		err = d.Engine.Index.ReindexFile(d.Engine.Vault, relPath)
	} else {
		err = d.Engine.Index.AddFile(relPath)
	}
	if err != nil {
		d.Logger.Warn("watcher: index new file failed",
			slog.String("path", relPath), slog.String("error", err.Error()))
	}
}

func hidden(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the
// watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && p != root {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
