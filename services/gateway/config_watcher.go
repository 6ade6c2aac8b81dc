// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gateway

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher watches the dillema config file for edits.
//
// # Description
//
// The gateway reads its settings once at startup. When the operator
// edits ~/.dillema/dillema.yaml while the gateway runs, the running
// process keeps its old settings, which is easy to miss. The watcher
// logs a notice so the operator knows a restart is needed.
//
// Editors replace the file rather than write in place, so the watch is
// on the containing directory and filtered to the config file's name.
//
// # Thread Safety
//
// Safe for concurrent use. Start should only be called once.
type ConfigWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	onEdit  func()
}

// NewConfigWatcher creates a watcher for the given config file.
//
// # Inputs
//
//   - path: Absolute path of the config file.
//   - onEdit: Optional callback on each detected edit.
//
// # Outputs
//
//   - *ConfigWatcher: Ready-to-start watcher.
//   - error: Non-nil if watcher creation fails.
func NewConfigWatcher(path string, onEdit func()) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &ConfigWatcher{
		path:    path,
		watcher: watcher,
		onEdit:  onEdit,
	}, nil
}

// Start begins watching for config edits. Blocks until the context is
// cancelled; run it in a goroutine.
func (w *ConfigWatcher) Start(ctx context.Context) {
	defer w.watcher.Close()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		slog.Warn("Failed to watch the config directory",
			"path", w.path,
			"error", err)
		return
	}

	slog.Debug("Started watching the config file", "path", w.path)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", "error", err)

		case <-ctx.Done():
			slog.Debug("Config watcher stopping")
			return
		}
	}
}

// handleEvent filters directory events down to writes of the config
// file itself.
func (w *ConfigWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Base(event.Name) != filepath.Base(w.path) {
		return
	}
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	slog.Info("Config file changed; restart the gateway to apply it",
		"path", w.path)
	if w.onEdit != nil {
		w.onEdit()
	}
}
