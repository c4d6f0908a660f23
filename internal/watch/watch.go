// Package watch turns file system notifications into change events.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leapstack-labs/sqgen/pkg/core"
)

// DefaultRenameWindow is how long a rename waits for its matching create
// before it is reported as a deletion.
const DefaultRenameWindow = 100 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Extension limits file events to one extension. Empty reports all files.
	Extension string

	// SkipDirs are directories that are never watched, such as the output dir.
	SkipDirs []string

	RenameWindow time.Duration
	Logger       *slog.Logger
}

// Watcher reports changes under a root directory, recursively.
type Watcher struct {
	root   string
	opts   Options
	skip   map[string]bool
	logger *slog.Logger
}

// New creates a Watcher for root. Nothing is watched until Subscribe.
func New(root string, opts Options) *Watcher {
	if opts.RenameWindow <= 0 {
		opts.RenameWindow = DefaultRenameWindow
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	skip := make(map[string]bool, len(opts.SkipDirs))
	for _, dir := range opts.SkipDirs {
		skip[core.CleanPath(dir)] = true
	}
	return &Watcher{root: core.CleanPath(root), opts: opts, skip: skip, logger: logger}
}

// Subscribe starts watching and returns the event stream. The stream is
// closed when ctx is done or the underlying watcher fails.
func (w *Watcher) Subscribe(ctx context.Context) (<-chan core.Event, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	s := &session{
		w:     w,
		fw:    fw,
		dirs:  make(map[string]bool),
		known: make(map[string]bool),
	}
	if err := s.watchDir(w.root, nil); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", w.root, err)
	}

	events := make(chan core.Event, 64)
	go s.loop(ctx, events)
	w.logger.Debug("watching", "root", w.root, "files", len(s.known))
	return events, nil
}

func (w *Watcher) skipDir(path, name string) bool {
	return strings.HasPrefix(name, ".") || w.skip[path]
}

// relevant reports whether a file event for path should be reported.
func (w *Watcher) relevant(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	for dir := range w.skip {
		if strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return false
		}
	}
	return w.opts.Extension == "" || core.HasExtension(path, w.opts.Extension)
}

// session is one subscription. Its maps are only touched by Subscribe before
// the loop starts and by the loop afterwards.
type session struct {
	w  *Watcher
	fw *fsnotify.Watcher

	// dirs holds the watched directories.
	dirs map[string]bool
	// known holds the reported files that still exist as far as the watcher
	// knows. A renamed or removed directory sends no event per file, so its
	// files are reported deleted from here.
	known map[string]bool
}

// watchDir adds dir and its subdirectories. Files already present are passed
// to found, which covers files written before the directory was watched.
func (s *session) watchDir(dir string, found func(path string)) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && s.w.skipDir(path, d.Name()) {
				return filepath.SkipDir
			}
			if err := s.fw.Add(path); err != nil {
				return err
			}
			s.dirs[path] = true
			return nil
		}
		if !s.w.relevant(path) {
			return nil
		}
		s.known[path] = true
		if found != nil {
			found(path)
		}
		return nil
	})
}

// under returns the known files below dir, sorted.
func (s *session) under(dir string) []string {
	prefix := dir + string(filepath.Separator)
	var out []string
	for path := range s.known {
		if strings.HasPrefix(path, prefix) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// isDir reports whether path was a watched directory or held known files.
func (s *session) isDir(path string) bool {
	return s.dirs[path] || len(s.under(path)) > 0
}

// dropDir forgets dir and reports every known file below it as deleted.
// Watches on a renamed directory are removed too; the inode keeps its watch
// descriptor, so a late self-move event would otherwise cancel the watch
// added for the new location.
func (s *session) dropDir(dir string, emit func(core.Event) bool) bool {
	prefix := dir + string(filepath.Separator)
	for d := range s.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			delete(s.dirs, d)
			// Fails for directories the kernel already unwatched.
			_ = s.fw.Remove(d)
		}
	}
	for _, path := range s.under(dir) {
		if !emit(core.Event{Kind: core.EventDeleted, Path: path}) {
			return false
		}
	}
	return true
}

// track updates the known files after ev is reported.
func (s *session) track(ev core.Event) {
	switch ev.Kind {
	case core.EventCreated, core.EventModified:
		s.known[ev.Path] = true
	case core.EventDeleted:
		delete(s.known, ev.Path)
	case core.EventMoved:
		delete(s.known, ev.OldPath)
		if s.w.relevant(ev.Path) {
			s.known[ev.Path] = true
		}
	}
}

func (s *session) loop(ctx context.Context, out chan<- core.Event) {
	defer close(out)
	defer s.fw.Close()

	w := s.w

	// A rename is held until the matching create arrives or the window ends.
	var pending string
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	var timerC <-chan time.Time

	emit := func(ev core.Event) bool {
		if !w.relevant(ev.Path) && (ev.OldPath == "" || !w.relevant(ev.OldPath)) {
			return true
		}
		s.track(ev)
		w.logger.Debug("change detected", "event", ev.String())
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	flush := func() bool {
		if pending == "" {
			return true
		}
		old := pending
		pending = ""
		timer.Stop()
		timerC = nil
		return emit(core.Event{Kind: core.EventDeleted, Path: old})
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-timerC:
			timerC = nil
			if !flush() {
				return
			}

		case event, ok := <-s.fw.Events:
			if !ok {
				return
			}
			path := core.CleanPath(event.Name)

			switch {
			case event.Has(fsnotify.Create):
				if info, err := os.Stat(path); err == nil && info.IsDir() {
					if !w.skipDir(path, info.Name()) {
						if !s.addDir(ctx, path, emit) {
							return
						}
					}
					continue
				}
				if pending != "" {
					old := pending
					pending = ""
					timer.Stop()
					timerC = nil
					if !emit(core.Event{Kind: core.EventMoved, Path: path, OldPath: old}) {
						return
					}
					continue
				}
				if !emit(core.Event{Kind: core.EventCreated, Path: path}) {
					return
				}

			case event.Has(fsnotify.Write):
				if !emit(core.Event{Kind: core.EventModified, Path: path}) {
					return
				}

			case event.Has(fsnotify.Remove):
				if s.isDir(path) {
					if !s.dropDir(path, emit) {
						return
					}
					continue
				}
				if !emit(core.Event{Kind: core.EventDeleted, Path: path}) {
					return
				}

			case event.Has(fsnotify.Rename):
				if !flush() {
					return
				}
				if s.isDir(path) {
					// The new location, if inside the root, arrives as a
					// directory create and is scanned then.
					if !s.dropDir(path, emit) {
						return
					}
					continue
				}
				pending = path
				timer.Reset(w.opts.RenameWindow)
				timerC = timer.C
			}

		case err, ok := <-s.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// addDir starts watching a new directory and reports the files it already
// contains as created.
func (s *session) addDir(ctx context.Context, dir string, emit func(core.Event) bool) bool {
	var found []string
	if err := s.watchDir(dir, func(path string) { found = append(found, path) }); err != nil {
		s.w.logger.Warn("failed to watch directory", "path", dir, "error", err)
	}
	for _, path := range found {
		if ctx.Err() != nil || !emit(core.Event{Kind: core.EventCreated, Path: path}) {
			return false
		}
	}
	return true
}
