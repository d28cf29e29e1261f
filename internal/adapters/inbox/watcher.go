// Package inbox imports delimited survey files dropped into a directory.
// Imported files move to processed/, files that fail to import move to
// failed/ next to a .error file holding the reason.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"surveycore/internal/core"
	"surveycore/internal/importer"
)

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"

	// DefaultSettle is how long a file must stay unchanged before it is read.
	DefaultSettle = 500 * time.Millisecond
)

// Extensions lists the file suffixes picked up by the watcher.
var Extensions = []string{".csv", ".tsv", ".txt"}

// Result describes one processed file.
type Result struct {
	Path   string
	Dest   string
	Report importer.Report
	Err    error
}

// Watcher feeds files from a directory through the import pipeline.
type Watcher struct {
	dir     string
	target  importer.Target
	opts    importer.Options
	logger  core.Logger
	settle  time.Duration
	onDone  func(Result)
	now     func() time.Time

	mu      sync.Mutex
	pending map[string]time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithImportOptions sets the source and commit options for every file.
func WithImportOptions(opts importer.Options) Option { return func(w *Watcher) { w.opts = opts } }

// WithLogger sets the watcher logger.
func WithLogger(l core.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithSettle overrides DefaultSettle.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// WithResultHook is called after every processed file.
func WithResultHook(fn func(Result)) Option { return func(w *Watcher) { w.onDone = fn } }

// New prepares dir and its processed/ and failed/ subdirectories.
func New(dir string, target importer.Target, opts ...Option) (*Watcher, error) {
	if dir == "" {
		return nil, errors.New("inbox: directory required")
	}
	w := &Watcher{
		dir:     dir,
		target:  target,
		opts:    importer.Options{Source: importer.SourceOptions{HasHeader: true}},
		logger:  nopLogger{},
		settle:  DefaultSettle,
		now:     time.Now,
		pending: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	for _, sub := range []string{"", ProcessedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("inbox: %w", err)
		}
	}
	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string { return w.dir }

// Run imports the files already present, then watches for new ones until ctx
// is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("inbox: watch %s: %w", w.dir, err)
	}
	w.logger.Info("inbox watching", "dir", w.dir)

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && accepted(e.Name()) {
			w.mark(filepath.Join(w.dir, e.Name()))
		}
	}

	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && accepted(ev.Name) && filepath.Dir(ev.Name) == filepath.Clean(w.dir) {
				w.mark(ev.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("inbox watch error", "error", err)
		case <-ticker.C:
			for _, path := range w.due() {
				w.ProcessFile(ctx, path)
			}
		}
	}
}

func (w *Watcher) mark(path string) {
	w.mu.Lock()
	w.pending[path] = w.now()
	w.mu.Unlock()
}

// due pops the pending files that have settled.
func (w *Watcher) due() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	cutoff := w.now().Add(-w.settle)
	for path, seen := range w.pending {
		if !seen.After(cutoff) {
			out = append(out, path)
			delete(w.pending, path)
		}
	}
	return out
}

// ProcessFile imports one file and moves it to processed/ or failed/.
func (w *Watcher) ProcessFile(ctx context.Context, path string) Result {
	res := Result{Path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		// moved away before it settled
		return res
	}
	if err == nil {
		res.Report, err = importer.ImportText(ctx, w.target, string(data), w.opts, importer.WithLogger(w.logger))
	}
	if err == nil && res.Report.Result.Summary.Imported == 0 && res.Report.Result.Rejected > 0 {
		err = fmt.Errorf("no valid rows: %d rejected", res.Report.Result.Rejected)
	}
	res.Err = err

	sub := ProcessedDir
	if err != nil {
		sub = FailedDir
	}
	dest, moveErr := w.move(path, sub)
	res.Dest = dest
	switch {
	case moveErr != nil:
		w.logger.Error("inbox move failed", "file", path, "error", moveErr)
		res.Err = errors.Join(res.Err, moveErr)
	case err != nil:
		_ = os.WriteFile(dest+".error", []byte(err.Error()+"\n"), 0o644)
		w.logger.Warn("inbox import failed", "file", filepath.Base(path), "error", err)
	default:
		sum := res.Report.Result.Summary
		w.logger.Info("inbox import done", "file", filepath.Base(path), "imported", sum.Imported, "skipped", sum.Skipped, "rejected", res.Report.Result.Rejected)
	}
	if w.onDone != nil {
		w.onDone(res)
	}
	return res
}

// move renames path into sub, adding a timestamp when the name is taken.
func (w *Watcher) move(path, sub string) (string, error) {
	name := filepath.Base(path)
	dest := filepath.Join(w.dir, sub, name)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(name)
		dest = filepath.Join(w.dir, sub, fmt.Sprintf("%s-%s%s", strings.TrimSuffix(name, ext), w.now().UTC().Format("20060102T150405.000"), ext))
	}
	return dest, os.Rename(path, dest)
}

func accepted(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
