// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package watch reloads a config store when its backing file is edited
// outside the process.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	DefaultDebounce     = 250 * time.Millisecond
	DefaultPollInterval = 2 * time.Second

	tickInterval = 50 * time.Millisecond
)

// =============================================================================
// INTERFACES
// =============================================================================

// Target is the store a watcher keeps in sync with its file.
type Target interface {
	Path() string
	// Reload re-reads the file and reports whether anything was applied.
	Reload() (bool, error)
}

// Watcher is implemented by every watching strategy.
type Watcher interface {
	// Watch starts watching in the background.
	Watch() error

	// Close stops watching and releases resources.
	Close() error
}

// Options configures a watcher.
type Options struct {
	Debounce     time.Duration
	PollInterval time.Duration
	Logger       *slog.Logger

	// OnReload is called after an external edit has been applied.
	OnReload func()
}

func (o *Options) setDefaults() {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// reload is shared by both strategies.
func reload(target Target, opts Options) {
	changed, err := target.Reload()
	switch {
	case err != nil:
		opts.Logger.Warn("config file changed but could not be reloaded", "path", target.Path(), "error", err)
	case changed:
		opts.Logger.Info("config reloaded from disk", "path", target.Path())
		if opts.OnReload != nil {
			opts.OnReload()
		}
	}
}

// =============================================================================
// FSNOTIFY WATCHER
// =============================================================================

// FsnotifyWatcher watches the directory holding the file, so it keeps
// working when an editor or the store itself replaces the file by rename.
type FsnotifyWatcher struct {
	target  Target
	opts    Options
	path    string
	watcher *fsnotify.Watcher

	mu         sync.Mutex
	lastChange time.Time // zero when nothing is pending

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFsnotifyWatcher creates a watcher for target's file.
func NewFsnotifyWatcher(target Target, opts Options) (*FsnotifyWatcher, error) {
	opts.setDefaults()

	path, err := filepath.Abs(target.Path())
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", target.Path(), err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &FsnotifyWatcher{
		target:  target,
		opts:    opts,
		path:    path,
		watcher: w,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Watch starts watching. The file's directory must exist.
func (fw *FsnotifyWatcher) Watch() error {
	if err := fw.watcher.Add(filepath.Dir(fw.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(fw.path), err)
	}

	fw.wg.Add(2)
	go fw.processEvents()
	go fw.processPending()
	return nil
}

func (fw *FsnotifyWatcher) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				fw.mu.Lock()
				fw.lastChange = time.Now()
				fw.mu.Unlock()
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.opts.Logger.Warn("file watcher error", "path", fw.path, "error", err)
		}
	}
}

// processPending reloads once no event has arrived for the debounce period.
func (fw *FsnotifyWatcher) processPending() {
	defer fw.wg.Done()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case now := <-ticker.C:
			fw.mu.Lock()
			due := !fw.lastChange.IsZero() && now.Sub(fw.lastChange) >= fw.opts.Debounce
			if due {
				fw.lastChange = time.Time{}
			}
			fw.mu.Unlock()

			if due {
				reload(fw.target, fw.opts)
			}
		}
	}
}

// Close stops watching and waits for the background goroutines.
func (fw *FsnotifyWatcher) Close() error {
	fw.cancel()
	err := fw.watcher.Close()
	fw.wg.Wait()
	return err
}

// =============================================================================
// POLLING WATCHER (FALLBACK)
// =============================================================================

// PollingWatcher checks the file's size and modification time on an
// interval.
type PollingWatcher struct {
	target Target
	opts   Options

	modTime time.Time
	size    int64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPollingWatcher creates a polling watcher for target's file.
func NewPollingWatcher(target Target, opts Options) *PollingWatcher {
	opts.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &PollingWatcher{
		target: target,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Watch records the current state of the file and starts polling.
func (pw *PollingWatcher) Watch() error {
	pw.modTime, pw.size = pw.stat()
	go pw.poll()
	return nil
}

func (pw *PollingWatcher) stat() (time.Time, int64) {
	info, err := os.Stat(pw.target.Path())
	if err != nil {
		return time.Time{}, -1
	}
	return info.ModTime(), info.Size()
}

func (pw *PollingWatcher) poll() {
	defer close(pw.done)

	ticker := time.NewTicker(pw.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pw.ctx.Done():
			return

		case <-ticker.C:
			modTime, size := pw.stat()
			if size < 0 || (modTime.Equal(pw.modTime) && size == pw.size) {
				continue
			}
			pw.modTime, pw.size = modTime, size
			reload(pw.target, pw.opts)
		}
	}
}

// Close stops polling.
func (pw *PollingWatcher) Close() error {
	pw.cancel()
	<-pw.done
	return nil
}

// =============================================================================
// WATCHER FACTORY
// =============================================================================

// Start watches target with fsnotify, falling back to polling when the
// platform or the directory does not allow it.
func Start(target Target, opts Options) (Watcher, error) {
	opts.setDefaults()

	fw, err := NewFsnotifyWatcher(target, opts)
	if err == nil {
		if err = fw.Watch(); err == nil {
			return fw, nil
		}
		_ = fw.Close()
	}
	opts.Logger.Debug("fsnotify unavailable, polling config file", "path", target.Path(), "error", err)

	pw := NewPollingWatcher(target, opts)
	if err := pw.Watch(); err != nil {
		return nil, err
	}
	return pw, nil
}
