package room

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPresenceFixture(t *testing.T) (*PresenceRoom, *Room) {
	t.Helper()
	p := NewPresenceRoom(testLogger)
	r := NewRoom(p, testLogger)
	require.NoError(t, p.OnStart(context.Background()))
	return p, r
}

func sendPresence(t *testing.T, p *PresenceRoom, v *Viewer, msg map[string]any) {
	t.Helper()
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	p.OnMessage(context.Background(), Message{Viewer: v, Data: raw})
}

func TestPresenceRoom_JoinAndSync(t *testing.T) {
	p, r := newPresenceFixture(t)
	v := attachViewer(r)

	sendPresence(t, p, v, map[string]any{
		"type": "join", "playerId": "p1", "name": "Nova", "zone": "alpha-3",
	})
	online := lastOfType(drain(t, v), "player_online")
	require.NotNil(t, online)
	assert.Equal(t, "Nova", online["name"])

	// Rejoin does not re-announce.
	sendPresence(t, p, v, map[string]any{"type": "join", "playerId": "p1", "name": "Nova"})
	assert.Nil(t, lastOfType(drain(t, v), "player_online"))

	late := attachViewer(r)
	p.OnConnect(late)
	sync := lastOfType(drain(t, late), "presence_sync")
	require.NotNil(t, sync)
	assert.Len(t, sync["players"].([]any), 1)
}

func TestPresenceRoom_ZoneChange(t *testing.T) {
	p, r := newPresenceFixture(t)
	v := attachViewer(r)

	sendPresence(t, p, v, map[string]any{"type": "join", "playerId": "p1", "name": "Nova"})
	drain(t, v)

	sendPresence(t, p, v, map[string]any{"type": "zone_change", "playerId": "p1", "zone": "beta-7"})
	changed := lastOfType(drain(t, v), "zone_changed")
	require.NotNil(t, changed)
	assert.Equal(t, "beta-7", changed["zone"])

	// Unknown player changes are dropped.
	sendPresence(t, p, v, map[string]any{"type": "zone_change", "playerId": "ghost", "zone": "x"})
	assert.Nil(t, lastOfType(drain(t, v), "zone_changed"))
}

func TestPresenceRoom_LeaveAndStaleSweep(t *testing.T) {
	p, r := newPresenceFixture(t)
	v := attachViewer(r)

	sendPresence(t, p, v, map[string]any{"type": "join", "playerId": "p1", "name": "Nova"})
	sendPresence(t, p, v, map[string]any{"type": "join", "playerId": "p2", "name": "Rex"})
	drain(t, v)

	sendPresence(t, p, v, map[string]any{"type": "leave", "playerId": "p1"})
	offline := lastOfType(drain(t, v), "player_offline")
	require.NotNil(t, offline)
	assert.Equal(t, "p1", offline["playerId"])

	// Stale heartbeats drop on the tick.
	p.players["p2"].SeenAt = time.Now().Add(-10 * time.Minute).UnixMilli()
	p.OnTick(context.Background())
	offline = lastOfType(drain(t, v), "player_offline")
	require.NotNil(t, offline)
	assert.Equal(t, "p2", offline["playerId"])
}

func TestPresenceRoom_HeartbeatRefreshes(t *testing.T) {
	p, r := newPresenceFixture(t)
	v := attachViewer(r)

	sendPresence(t, p, v, map[string]any{"type": "join", "playerId": "p1", "name": "Nova"})
	p.players["p1"].SeenAt = time.Now().Add(-10 * time.Minute).UnixMilli()

	sendPresence(t, p, v, map[string]any{"type": "heartbeat", "playerId": "p1"})
	p.OnTick(context.Background())

	_, stillHere := p.players["p1"]
	assert.True(t, stillHere)
}
