package relay

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starveil/economy/internal/guard"
)

func commandLine(id string) string {
	return fmt.Sprintf(`[Info] %s {"id": %q, "type": "player_leave", "playerId": "sb-1", "timestamp": 1}`,
		CommandMarker, id)
}

func newTestTailer(t *testing.T, handler *capturingHandler) (*LogTailer, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "game.log")
	tailer := NewLogTailer(path, time.Second, handler, guard.NewSeenSet(10), testLogger)
	return tailer, path
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(content)
	require.NoError(t, err)
}

func TestLogTailer_ParsesMarkerLines(t *testing.T) {
	handler := &capturingHandler{}
	tailer, path := newTestTailer(t, handler)

	appendLog(t, path, "[Info] server started\n"+commandLine("cmd-1")+"\n[Info] noise\n")
	tailer.poll(context.Background())

	require.Len(t, handler.commands, 1)
	assert.Equal(t, "cmd-1", handler.commands[0].ID)
}

func TestLogTailer_MissingFileIsSilent(t *testing.T) {
	handler := &capturingHandler{}
	tailer, _ := newTestTailer(t, handler)

	tailer.poll(context.Background())
	assert.Empty(t, handler.commands)
}

func TestLogTailer_DeduplicatesAcrossPolls(t *testing.T) {
	handler := &capturingHandler{}
	tailer, path := newTestTailer(t, handler)

	appendLog(t, path, commandLine("cmd-1")+"\n")
	tailer.poll(context.Background())
	appendLog(t, path, commandLine("cmd-1")+"\n"+commandLine("cmd-2")+"\n")
	tailer.poll(context.Background())

	require.Len(t, handler.commands, 2)
	assert.Equal(t, "cmd-1", handler.commands[0].ID)
	assert.Equal(t, "cmd-2", handler.commands[1].ID)
}

func TestLogTailer_PartialLineCarriesOver(t *testing.T) {
	handler := &capturingHandler{}
	tailer, path := newTestTailer(t, handler)

	full := commandLine("cmd-1")
	appendLog(t, path, full[:20])
	tailer.poll(context.Background())
	assert.Empty(t, handler.commands)

	appendLog(t, path, full[20:]+"\n")
	tailer.poll(context.Background())

	require.Len(t, handler.commands, 1)
	assert.Equal(t, "cmd-1", handler.commands[0].ID)
}

func TestLogTailer_RotationResetsOffset(t *testing.T) {
	handler := &capturingHandler{}
	tailer, path := newTestTailer(t, handler)

	appendLog(t, path, "[Info] lots of old content before rotation\n"+commandLine("cmd-1")+"\n")
	tailer.poll(context.Background())
	require.Len(t, handler.commands, 1)

	// Rotate: replace with a shorter file.
	require.NoError(t, os.WriteFile(path, []byte(commandLine("cmd-2")+"\n"), 0o644))
	tailer.poll(context.Background())

	require.Len(t, handler.commands, 2)
	assert.Equal(t, "cmd-2", handler.commands[1].ID)
}

func TestLogTailer_StartsAtEndOfFile(t *testing.T) {
	handler := &capturingHandler{}
	tailer, path := newTestTailer(t, handler)

	appendLog(t, path, commandLine("cmd-old")+"\n")
	info, err := os.Stat(path)
	require.NoError(t, err)
	tailer.offset = info.Size()

	appendLog(t, path, commandLine("cmd-new")+"\n")
	tailer.poll(context.Background())

	require.Len(t, handler.commands, 1)
	assert.Equal(t, "cmd-new", handler.commands[0].ID)
}

func TestLogTailer_InvalidCommandDropped(t *testing.T) {
	handler := &capturingHandler{}
	tailer, path := newTestTailer(t, handler)

	appendLog(t, path, fmt.Sprintf("[Info] %s {\"id\": \"cmd-1\", \"type\": \"teleport\", \"playerId\": \"sb-1\", \"timestamp\": 1}\n", CommandMarker))
	tailer.poll(context.Background())

	assert.Empty(t, handler.commands)
}

// Junk lines must not claim their ids in the dedup window; a later
// well-formed command reusing the id still goes through.
func TestLogTailer_InvalidLineDoesNotConsumeDedup(t *testing.T) {
	handler := &capturingHandler{}
	tailer, path := newTestTailer(t, handler)

	appendLog(t, path, fmt.Sprintf("[Info] %s {\"id\": \"cmd-1\", \"type\": \"teleport\", \"playerId\": \"sb-1\", \"timestamp\": 1}\n", CommandMarker))
	tailer.poll(context.Background())
	require.Empty(t, handler.commands)

	appendLog(t, path, commandLine("cmd-1")+"\n")
	tailer.poll(context.Background())

	require.Len(t, handler.commands, 1)
	assert.Equal(t, "cmd-1", handler.commands[0].ID)
}
