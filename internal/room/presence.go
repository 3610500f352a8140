package room

import (
	"context"
	"log/slog"
	"time"
)

// Presence entries not refreshed within this window drop off the list.
const presenceStaleAfter = 5 * time.Minute

// PresenceRoom keeps the server-wide online roster in memory only.
// Nothing here touches the store; presence resets on restart.
type PresenceRoom struct {
	logger *slog.Logger
	room   *Room

	players map[string]*presenceEntry
}

func NewPresenceRoom(logger *slog.Logger) *PresenceRoom {
	return &PresenceRoom{
		logger:  logger.With("component", "presence"),
		players: make(map[string]*presenceEntry),
	}
}

func (p *PresenceRoom) ID() string { return "global" }

func (p *PresenceRoom) bind(r *Room) { p.room = r }

func (p *PresenceRoom) OnStart(ctx context.Context) error { return nil }

func (p *PresenceRoom) OnConnect(v *Viewer) {
	v.Send(presenceSyncMessage{Type: "presence_sync", Players: p.roster()})
}

func (p *PresenceRoom) OnMessage(ctx context.Context, msg Message) {
	in, ok := decodeInbound(msg, p.logger)
	if !ok {
		return
	}
	switch in.Type {
	case "join":
		p.handleJoin(in)
	case "leave":
		p.handleLeave(in)
	case "zone_change":
		p.handleZoneChange(in)
	case "heartbeat":
		p.handleHeartbeat(in)
	default:
		msg.Viewer.Send(newError(in.CommandID, "unknown message type: "+in.Type))
	}
}

// OnTick drops entries whose heartbeat went stale.
func (p *PresenceRoom) OnTick(ctx context.Context) {
	cutoff := time.Now().Add(-presenceStaleAfter).UnixMilli()
	for id, entry := range p.players {
		if entry.SeenAt < cutoff {
			delete(p.players, id)
			p.room.Broadcast(playerOnlineMessage{Type: "player_offline", PlayerID: id})
		}
	}
}

func (p *PresenceRoom) handleJoin(in *inboundMessage) {
	if in.PlayerID == "" {
		return
	}
	_, rejoin := p.players[in.PlayerID]
	p.players[in.PlayerID] = &presenceEntry{
		PlayerID: in.PlayerID,
		Name:     in.Name,
		Zone:     in.Zone,
		SeenAt:   time.Now().UnixMilli(),
	}
	if !rejoin {
		p.room.Broadcast(playerOnlineMessage{
			Type: "player_online", PlayerID: in.PlayerID, Name: in.Name,
		})
	}
}

func (p *PresenceRoom) handleLeave(in *inboundMessage) {
	if _, ok := p.players[in.PlayerID]; !ok {
		return
	}
	delete(p.players, in.PlayerID)
	p.room.Broadcast(playerOnlineMessage{Type: "player_offline", PlayerID: in.PlayerID})
}

func (p *PresenceRoom) handleZoneChange(in *inboundMessage) {
	entry, ok := p.players[in.PlayerID]
	if !ok {
		return
	}
	entry.Zone = in.Zone
	entry.SeenAt = time.Now().UnixMilli()
	p.room.Broadcast(zoneChangedMessage{
		Type: "zone_changed", PlayerID: in.PlayerID, Zone: in.Zone,
	})
}

func (p *PresenceRoom) handleHeartbeat(in *inboundMessage) {
	if entry, ok := p.players[in.PlayerID]; ok {
		entry.SeenAt = time.Now().UnixMilli()
	}
}

func (p *PresenceRoom) roster() []presenceEntry {
	out := make([]presenceEntry, 0, len(p.players))
	for _, entry := range p.players {
		out = append(out, *entry)
	}
	return out
}
