// Package relay ingests game commands from the shared filesystem: a
// drop directory of one-command json files and a marker line embedded
// in the game's log. Both sources poll on an interval because the
// directory usually sits on a network mount where inotify events do
// not fire reliably.
package relay

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/starveil/economy/internal/command"
	"github.com/starveil/economy/internal/domain"
)

// CommandHandler receives validated commands. Delivery is at-least-once
// across restarts; handlers are responsible for idempotency.
type CommandHandler interface {
	Handle(ctx context.Context, cmd *domain.Command) error
}

// Bridge directory layout.
const (
	commandsSubdir = "commands"
	stateSubdir    = "state"
	cacheSubdir    = "cache"
)

// FileWatcher polls <dir>/commands for *.json drops. Every file is
// removed after one processing attempt, valid or not; a command the
// handler fails on is logged and lost, never retried.
type FileWatcher struct {
	dir      string
	interval time.Duration
	handler  CommandHandler
	logger   *slog.Logger
}

func NewFileWatcher(bridgeDir string, interval time.Duration, handler CommandHandler, logger *slog.Logger) *FileWatcher {
	return &FileWatcher{
		dir:      filepath.Join(bridgeDir, commandsSubdir),
		interval: interval,
		handler:  handler,
		logger:   logger.With("component", "filewatcher"),
	}
}

// EnsureBridgeDirs creates the bridge directory tree the watcher and
// the state projection share with the game.
func EnsureBridgeDirs(bridgeDir string) error {
	for _, sub := range []string{commandsSubdir, stateSubdir, cacheSubdir} {
		if err := os.MkdirAll(filepath.Join(bridgeDir, sub), 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Run polls until ctx is cancelled.
func (w *FileWatcher) Run(ctx context.Context) {
	w.logger.Info("watching command directory", "dir", w.dir, "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *FileWatcher) sweep(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Error("command directory read failed", "error", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		w.process(ctx, filepath.Join(w.dir, entry.Name()))
	}
}

func (w *FileWatcher) process(ctx context.Context, path string) {
	// Remove regardless of outcome so a poison file cannot wedge the
	// relay loop.
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			w.logger.Error("command file remove failed", "path", path, "error", err)
		}
	}()

	raw, err := os.ReadFile(path)
	if err != nil {
		w.logger.Error("command file read failed", "path", path, "error", err)
		return
	}

	cmd, appErr := command.Validate(raw)
	if appErr != nil {
		w.logger.Warn("invalid command dropped",
			"path", path, "code", appErr.Code, "reason", appErr.Message)
		return
	}

	if err := w.handler.Handle(ctx, cmd); err != nil {
		w.logger.Error("command handling failed",
			"command_id", cmd.ID, "type", cmd.Type, "error", err)
		return
	}
	w.logger.Debug("command relayed", "command_id", cmd.ID, "type", cmd.Type)
}
