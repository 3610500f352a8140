package relay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/starveil/economy/internal/command"
	"github.com/starveil/economy/internal/guard"
)

// CommandMarker prefixes command payloads the game writes into its own
// log when it cannot reach the drop directory.
const CommandMarker = "[MMO_CMD]"

// LogTailer polls the game log for marker lines. It starts at the
// current end of file so commands from before this process are never
// replayed, and it keeps a dedup window because the game may emit the
// same command to both the log and the drop directory.
type LogTailer struct {
	path     string
	interval time.Duration
	handler  CommandHandler
	seen     *guard.SeenSet
	logger   *slog.Logger

	offset int64
}

func NewLogTailer(path string, interval time.Duration, handler CommandHandler, seen *guard.SeenSet, logger *slog.Logger) *LogTailer {
	return &LogTailer{
		path:     path,
		interval: interval,
		handler:  handler,
		seen:     seen,
		logger:   logger.With("component", "logtail"),
	}
}

// Run polls until ctx is cancelled.
func (t *LogTailer) Run(ctx context.Context) {
	if info, err := os.Stat(t.path); err == nil {
		t.offset = info.Size()
	}
	t.logger.Info("tailing game log", "path", t.path, "offset", t.offset)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.poll(ctx)
		}
	}
}

func (t *LogTailer) poll(ctx context.Context) {
	info, err := os.Stat(t.path)
	if err != nil {
		// The game creates the log lazily; silence until it appears.
		if !os.IsNotExist(err) {
			t.logger.Error("log stat failed", "error", err)
		}
		return
	}

	if info.Size() < t.offset {
		t.logger.Info("log rotated, restarting from top", "size", info.Size())
		t.offset = 0
	}
	if info.Size() == t.offset {
		return
	}

	f, err := os.Open(t.path)
	if err != nil {
		t.logger.Error("log open failed", "error", err)
		return
	}
	defer f.Close()

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		t.logger.Error("log seek failed", "offset", t.offset, "error", err)
		return
	}
	chunk, err := io.ReadAll(f)
	if err != nil {
		t.logger.Error("log read failed", "error", err)
		return
	}

	// Only consume through the last newline; a partially written final
	// line stays for the next poll.
	last := strings.LastIndexByte(string(chunk), '\n')
	if last < 0 {
		return
	}
	t.offset += int64(last + 1)

	for _, line := range strings.Split(string(chunk[:last]), "\n") {
		t.handleLine(ctx, line)
	}
}

func (t *LogTailer) handleLine(ctx context.Context, line string) {
	idx := strings.Index(line, CommandMarker)
	if idx < 0 {
		return
	}
	payload := strings.TrimSpace(line[idx+len(CommandMarker):])
	if payload == "" {
		return
	}

	var envelope struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		t.logger.Warn("malformed marker line dropped", "error", err)
		return
	}

	// Validate before touching the dedup window so junk lines cannot
	// evict ids of real commands.
	cmd, appErr := command.Validate([]byte(payload))
	if appErr != nil {
		t.logger.Warn("invalid command dropped",
			"command_id", envelope.ID, "code", appErr.Code, "reason", appErr.Message)
		return
	}
	if !t.seen.Add(cmd.ID) {
		t.logger.Debug("duplicate command skipped", "command_id", cmd.ID)
		return
	}
	if err := t.handler.Handle(ctx, cmd); err != nil {
		t.logger.Error("command handling failed",
			"command_id", cmd.ID, "type", cmd.Type, "error", err)
		return
	}
	t.logger.Debug("command relayed", "command_id", cmd.ID, "type", cmd.Type)
}
