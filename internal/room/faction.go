package room

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starveil/economy/internal/domain"
	"github.com/starveil/economy/internal/infra"
	"github.com/starveil/economy/internal/repository"
)

const maxChatBacklog = 100

// FactionRoom serves one faction each, identified by the faction's
// uuid, plus the special "lobby" instance where factions are created.
// Per-faction state (roster, chat backlog, online set) lives only in
// the actor; the store holds the durable rows.
type FactionRoom struct {
	roomID string
	store  *repository.Store
	db     repository.DBTX
	events *infra.EventPublisher
	logger *slog.Logger
	room   *Room

	faction *domain.Faction
	members []domain.MemberWithPlayer
	online  map[string]struct{}
	chat    []chatEntry
}

func NewFactionRoom(roomID string, store *repository.Store, db repository.DBTX, events *infra.EventPublisher, logger *slog.Logger) *FactionRoom {
	return &FactionRoom{
		roomID: roomID,
		store:  store,
		db:     db,
		events: events,
		logger: logger.With("component", "faction", "room", roomID),
		online: make(map[string]struct{}),
	}
}

func (f *FactionRoom) ID() string { return f.roomID }

func (f *FactionRoom) bind(r *Room) { f.room = r }

func (f *FactionRoom) isLobby() bool { return f.roomID == "lobby" }

func (f *FactionRoom) OnStart(ctx context.Context) error {
	if f.isLobby() {
		return nil
	}
	factionID, err := uuid.Parse(f.roomID)
	if err != nil {
		f.logger.Warn("room id is not a faction id, serving empty room")
		return nil
	}
	faction, err := f.store.Factions.FindByID(ctx, f.db, factionID)
	if err != nil {
		return err
	}
	f.faction = faction
	if faction == nil {
		f.logger.Warn("faction not found")
		return nil
	}
	members, err := f.store.Members.ListWithPlayers(ctx, f.db, factionID)
	if err != nil {
		return err
	}
	f.members = members
	return nil
}

func (f *FactionRoom) OnConnect(v *Viewer) {
	if f.isLobby() {
		return
	}
	v.Send(factionSyncMessage{
		Type:          "faction_sync",
		Faction:       f.faction,
		Members:       f.members,
		OnlineMembers: f.onlineList(),
		Chat:          f.chatBacklog(50),
	})
}

func (f *FactionRoom) OnMessage(ctx context.Context, msg Message) {
	in, ok := decodeInbound(msg, f.logger)
	if !ok {
		return
	}

	if f.isLobby() {
		if in.Type == "create_faction" {
			f.handleCreate(ctx, msg.Viewer, in)
		} else {
			msg.Viewer.Send(newError(in.CommandID, "unknown message type: "+in.Type))
		}
		return
	}

	switch in.Type {
	case "join_room":
		f.handleJoinRoom(msg.Viewer, in)
	case "leave_room":
		f.handleLeaveRoom(in)
	case "chat":
		f.handleChat(in, msg.Viewer)
	case "update_motd":
		f.handleMotd(ctx, msg.Viewer, in)
	case "deposit":
		f.handleDeposit(ctx, msg.Viewer, in)
	case "join_request":
		f.handleJoinRequest(ctx, msg.Viewer, in)
	case "leave":
		f.handleLeave(ctx, msg.Viewer, in)
	case "kick":
		f.handleKick(ctx, msg.Viewer, in)
	case "promote":
		f.handlePromote(ctx, msg.Viewer, in)
	case "invite":
		f.handleInvite(ctx, msg.Viewer, in)
	default:
		msg.Viewer.Send(newError(in.CommandID, "unknown message type: "+in.Type))
	}
}

func (f *FactionRoom) handleCreate(ctx context.Context, v *Viewer, in *inboundMessage) {
	founder, ok := f.requirePlayer(ctx, v, in)
	if !ok {
		return
	}
	if err := domain.ValidateFactionName(in.Name); err != nil {
		v.Send(newError(in.CommandID, err.Error()))
		return
	}
	if err := domain.ValidateFactionTag(in.Tag); err != nil {
		v.Send(newError(in.CommandID, err.Error()))
		return
	}
	if founder.FactionID != nil {
		v.Send(newError(in.CommandID, "already in a faction"))
		return
	}
	if founder.Currency < domain.FactionCreationCost {
		v.Send(newError(in.CommandID, "insufficient funds to create a faction"))
		return
	}
	if f.isDuplicate(ctx, v, in.CommandID) {
		return
	}

	if existing, err := f.store.Factions.FindByName(ctx, f.db, in.Name); err != nil {
		f.fail(v, in.CommandID, "check faction name", err)
		return
	} else if existing != nil {
		v.Send(newError(in.CommandID, "faction name is taken"))
		return
	}
	if existing, err := f.store.Factions.FindByTag(ctx, f.db, in.Tag); err != nil {
		f.fail(v, in.CommandID, "check faction tag", err)
		return
	} else if existing != nil {
		v.Send(newError(in.CommandID, "faction tag is taken"))
		return
	}

	debited, err := f.store.Players.AdjustCurrency(ctx, f.db, founder.ID, -domain.FactionCreationCost)
	if err != nil {
		f.fail(v, in.CommandID, "charge creation cost", err)
		return
	}
	if debited == nil {
		v.Send(newError(in.CommandID, "insufficient funds to create a faction"))
		return
	}

	faction := &domain.Faction{
		ID:        uuid.New(),
		Name:      in.Name,
		Tag:       in.Tag,
		LeaderID:  founder.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.store.Factions.Insert(ctx, f.db, faction); err != nil {
		f.logger.Error("faction insert failed after cost debit",
			"player_id", founder.ID, "cost", domain.FactionCreationCost, "error", err)
		f.fail(v, in.CommandID, "insert faction", err)
		return
	}
	if err := f.store.Members.Insert(ctx, f.db, &domain.FactionMember{
		FactionID: faction.ID,
		PlayerID:  founder.ID,
		Role:      domain.RoleLeader,
		JoinedAt:  time.Now().UTC(),
	}); err != nil {
		f.logger.Error("leader membership insert failed",
			"faction_id", faction.ID, "player_id", founder.ID, "error", err)
	}
	if err := f.store.Players.SetFaction(ctx, f.db, founder.ID, &faction.ID); err != nil {
		f.logger.Error("player faction pointer update failed",
			"faction_id", faction.ID, "player_id", founder.ID, "error", err)
	}

	f.recordTransaction(ctx, domain.NewTransaction(
		domain.TxFactionDeposit, founder.ID, -domain.FactionCreationCost, in.CommandID,
		metaJSON(map[string]any{"factionId": faction.ID.String(), "reason": "creation_cost"}),
	))

	v.Send(factionCreatedMessage{
		Type: "faction_created", FactionID: faction.ID,
		Name: faction.Name, Tag: faction.Tag, CommandID: in.CommandID,
	})
	f.events.Publish(ctx, domain.NewFactionChangedEvent(faction.ID, "created", faction))
}

func (f *FactionRoom) handleJoinRoom(v *Viewer, in *inboundMessage) {
	if in.PlayerID == "" {
		v.Send(newError(in.CommandID, "missing player id"))
		return
	}
	if _, already := f.online[in.PlayerID]; !already {
		f.online[in.PlayerID] = struct{}{}
		f.room.Broadcast(memberPresenceMessage{Type: "member_online", PlayerID: in.PlayerID})
	}
	v.Send(joinConfirmedMessage{Type: "join_confirmed", PlayerID: in.PlayerID})
}

func (f *FactionRoom) handleLeaveRoom(in *inboundMessage) {
	if _, ok := f.online[in.PlayerID]; ok {
		delete(f.online, in.PlayerID)
		f.room.Broadcast(memberPresenceMessage{Type: "member_offline", PlayerID: in.PlayerID})
	}
}

func (f *FactionRoom) handleChat(in *inboundMessage, v *Viewer) {
	if in.Text == "" {
		v.Send(newError(in.CommandID, "empty chat message"))
		return
	}
	name := in.PlayerID
	for _, m := range f.members {
		if m.PlayerID.String() == in.PlayerID {
			name = m.DisplayName
			break
		}
	}
	entry := chatEntry{
		PlayerID: in.PlayerID,
		Name:     name,
		Text:     in.Text,
		SentAt:   time.Now().UnixMilli(),
	}
	f.chat = append(f.chat, entry)
	if len(f.chat) > maxChatBacklog {
		f.chat = f.chat[len(f.chat)-maxChatBacklog:]
	}
	f.room.Broadcast(chatMessage{Type: "chat_message", chatEntry: entry})
}

func (f *FactionRoom) handleMotd(ctx context.Context, v *Viewer, in *inboundMessage) {
	_, member, ok := f.requireMember(ctx, v, in)
	if !ok {
		return
	}
	if member.Role != domain.RoleLeader && member.Role != domain.RoleOfficer {
		v.Send(newError(in.CommandID, "only leaders and officers can update the motd"))
		return
	}
	if err := f.store.Factions.UpdateMotd(ctx, f.db, f.faction.ID, in.Motd); err != nil {
		f.fail(v, in.CommandID, "update motd", err)
		return
	}
	motd := in.Motd
	f.faction.Motd = &motd
	f.room.Broadcast(motdUpdatedMessage{Type: "motd_updated", Motd: motd})
}

func (f *FactionRoom) handleDeposit(ctx context.Context, v *Viewer, in *inboundMessage) {
	player, _, ok := f.requireMember(ctx, v, in)
	if !ok {
		return
	}
	if in.Amount <= 0 {
		v.Send(newError(in.CommandID, "deposit amount must be positive"))
		return
	}
	if player.Currency < in.Amount {
		v.Send(newError(in.CommandID, "insufficient funds"))
		return
	}
	if f.isDuplicate(ctx, v, in.CommandID) {
		return
	}

	debited, err := f.store.Players.AdjustCurrency(ctx, f.db, player.ID, -in.Amount)
	if err != nil {
		f.fail(v, in.CommandID, "debit player", err)
		return
	}
	if debited == nil {
		v.Send(newError(in.CommandID, "insufficient funds"))
		return
	}

	faction, err := f.store.Factions.AdjustBank(ctx, f.db, f.faction.ID, in.Amount)
	if err != nil || faction == nil {
		// Player debited, bank not credited. Log the full context for
		// manual repair; there is no transaction to roll back.
		f.logger.Error("bank credit failed after player debit",
			"faction_id", f.faction.ID, "player_id", player.ID,
			"amount", in.Amount, "error", err)
		f.fail(v, in.CommandID, "credit bank", err)
		return
	}
	f.faction = faction

	f.recordTransaction(ctx, domain.NewTransaction(
		domain.TxFactionDeposit, player.ID, -in.Amount, in.CommandID,
		metaJSON(map[string]any{"factionId": f.faction.ID.String()}),
	))

	f.room.Broadcast(bankUpdatedMessage{Type: "bank_updated", Balance: faction.BankCurrency})
	v.Send(depositCompleteMessage{
		Type: "deposit_complete", PlayerID: player.ID, Amount: in.Amount,
		NewBalance: debited.Currency, CommandID: in.CommandID,
	})
	f.events.Publish(ctx, domain.NewFactionChangedEvent(f.faction.ID, "deposit", faction))
}

func (f *FactionRoom) handleJoinRequest(ctx context.Context, v *Viewer, in *inboundMessage) {
	if f.faction == nil {
		v.Send(newError(in.CommandID, "faction not found"))
		return
	}
	player, ok := f.requirePlayer(ctx, v, in)
	if !ok {
		return
	}
	if player.FactionID != nil {
		v.Send(newError(in.CommandID, "already in a faction"))
		return
	}
	if err := f.store.Members.Insert(ctx, f.db, &domain.FactionMember{
		FactionID: f.faction.ID,
		PlayerID:  player.ID,
		Role:      domain.RoleMember,
		JoinedAt:  time.Now().UTC(),
	}); err != nil {
		f.fail(v, in.CommandID, "insert member", err)
		return
	}
	if err := f.store.Players.SetFaction(ctx, f.db, player.ID, &f.faction.ID); err != nil {
		f.logger.Error("player faction pointer update failed",
			"faction_id", f.faction.ID, "player_id", player.ID, "error", err)
	}
	f.members = append(f.members, domain.MemberWithPlayer{
		PlayerID: player.ID, DisplayName: player.DisplayName, Role: domain.RoleMember,
	})
	f.room.Broadcast(memberJoinedMessage{
		Type: "member_joined", PlayerID: player.ID, Name: player.DisplayName,
	})
	f.events.Publish(ctx, domain.NewFactionChangedEvent(f.faction.ID, "member_joined", player.ID))
}

func (f *FactionRoom) handleLeave(ctx context.Context, v *Viewer, in *inboundMessage) {
	player, member, ok := f.requireMember(ctx, v, in)
	if !ok {
		return
	}
	if member.Role == domain.RoleLeader {
		v.Send(newError(in.CommandID, "leader must promote a replacement before leaving"))
		return
	}
	f.removeMember(ctx, v, in, player.ID)
}

func (f *FactionRoom) handleKick(ctx context.Context, v *Viewer, in *inboundMessage) {
	actor, member, ok := f.requireMember(ctx, v, in)
	if !ok {
		return
	}
	if member.Role != domain.RoleLeader {
		v.Send(newError(in.CommandID, "only the leader can kick members"))
		return
	}
	targetID, err := uuid.Parse(in.TargetPlayerID)
	if err != nil {
		v.Send(newError(in.CommandID, "invalid target player id"))
		return
	}
	if targetID == actor.ID {
		v.Send(newError(in.CommandID, "cannot kick yourself"))
		return
	}
	f.removeMember(ctx, v, in, targetID)
}

func (f *FactionRoom) removeMember(ctx context.Context, v *Viewer, in *inboundMessage, playerID uuid.UUID) {
	removed, err := f.store.Members.Delete(ctx, f.db, f.faction.ID, playerID)
	if err != nil {
		f.fail(v, in.CommandID, "remove member", err)
		return
	}
	if !removed {
		v.Send(newError(in.CommandID, "not a member of this faction"))
		return
	}
	if err := f.store.Players.SetFaction(ctx, f.db, playerID, nil); err != nil {
		f.logger.Error("player faction pointer clear failed",
			"faction_id", f.faction.ID, "player_id", playerID, "error", err)
	}
	for i, m := range f.members {
		if m.PlayerID == playerID {
			f.members = append(f.members[:i], f.members[i+1:]...)
			break
		}
	}
	delete(f.online, playerID.String())
	if in.Type == "kick" {
		f.room.Broadcast(memberKickedMessage{Type: "member_kicked", PlayerID: playerID})
	} else {
		f.room.Broadcast(memberLeftMessage{Type: "member_left", PlayerID: playerID})
	}
	f.events.Publish(ctx, domain.NewFactionChangedEvent(f.faction.ID, "member_removed", playerID))
}

func (f *FactionRoom) handlePromote(ctx context.Context, v *Viewer, in *inboundMessage) {
	actor, member, ok := f.requireMember(ctx, v, in)
	if !ok {
		return
	}
	if member.Role != domain.RoleLeader {
		v.Send(newError(in.CommandID, "only the leader can change roles"))
		return
	}
	targetID, err := uuid.Parse(in.TargetPlayerID)
	if err != nil {
		v.Send(newError(in.CommandID, "invalid target player id"))
		return
	}
	role := domain.FactionRole(in.Role)
	if role == domain.RoleLeader {
		f.transferLeadership(ctx, v, in, actor, targetID)
		return
	}
	if err := domain.ValidateFactionRole(role); err != nil {
		v.Send(newError(in.CommandID, err.Error()))
		return
	}
	if targetID == actor.ID {
		v.Send(newError(in.CommandID, "transfer leadership before changing your own role"))
		return
	}
	target, err := f.store.Members.Find(ctx, f.db, f.faction.ID, targetID)
	if err != nil {
		f.fail(v, in.CommandID, "load target member", err)
		return
	}
	if target == nil {
		v.Send(newError(in.CommandID, "not a member of this faction"))
		return
	}
	if err := f.store.Members.UpdateRole(ctx, f.db, f.faction.ID, targetID, role); err != nil {
		f.fail(v, in.CommandID, "update role", err)
		return
	}
	f.setMemberRole(targetID, role)
	f.room.Broadcast(memberRoleChangedMessage{
		Type: "member_role_changed", PlayerID: targetID, Role: string(role),
	})
}

// transferLeadership moves the leader seat to another member. The seat
// pointer is updated first, then both member roles; a failure between the
// steps is logged loudly and left for an operator to reconcile.
func (f *FactionRoom) transferLeadership(ctx context.Context, v *Viewer, in *inboundMessage, actor *domain.Player, targetID uuid.UUID) {
	if targetID == actor.ID {
		v.Send(newError(in.CommandID, "already the leader"))
		return
	}
	target, err := f.store.Members.Find(ctx, f.db, f.faction.ID, targetID)
	if err != nil {
		f.fail(v, in.CommandID, "load target member", err)
		return
	}
	if target == nil {
		v.Send(newError(in.CommandID, "not a member of this faction"))
		return
	}
	if err := f.store.Factions.UpdateLeader(ctx, f.db, f.faction.ID, targetID); err != nil {
		f.fail(v, in.CommandID, "update leader", err)
		return
	}
	if err := f.store.Members.UpdateRole(ctx, f.db, f.faction.ID, targetID, domain.RoleLeader); err != nil {
		f.logger.Error("leader role update failed after seat transfer",
			"faction_id", f.faction.ID, "new_leader_id", targetID, "error", err)
	}
	if err := f.store.Members.UpdateRole(ctx, f.db, f.faction.ID, actor.ID, domain.RoleOfficer); err != nil {
		f.logger.Error("old leader demotion failed after seat transfer",
			"faction_id", f.faction.ID, "old_leader_id", actor.ID, "error", err)
	}
	f.faction.LeaderID = targetID
	f.setMemberRole(targetID, domain.RoleLeader)
	f.setMemberRole(actor.ID, domain.RoleOfficer)
	f.room.Broadcast(memberRoleChangedMessage{
		Type: "member_role_changed", PlayerID: targetID, Role: string(domain.RoleLeader),
	})
	f.room.Broadcast(memberRoleChangedMessage{
		Type: "member_role_changed", PlayerID: actor.ID, Role: string(domain.RoleOfficer),
	})
	f.events.Publish(ctx, domain.NewFactionChangedEvent(f.faction.ID, "leader_changed", targetID))
}

func (f *FactionRoom) setMemberRole(playerID uuid.UUID, role domain.FactionRole) {
	for i := range f.members {
		if f.members[i].PlayerID == playerID {
			f.members[i].Role = role
			return
		}
	}
}

func (f *FactionRoom) handleInvite(ctx context.Context, v *Viewer, in *inboundMessage) {
	actor, member, ok := f.requireMember(ctx, v, in)
	if !ok {
		return
	}
	if member.Role != domain.RoleLeader && member.Role != domain.RoleOfficer {
		v.Send(newError(in.CommandID, "only leaders and officers can invite"))
		return
	}
	targetID, err := uuid.Parse(in.TargetPlayerID)
	if err != nil {
		v.Send(newError(in.CommandID, "invalid target player id"))
		return
	}
	f.room.Broadcast(memberInvitedMessage{
		Type: "member_invited", TargetPlayerID: targetID,
		InvitedBy: actor.ID, FactionID: f.faction.ID,
	})
}

// requirePlayer resolves the acting player or replies with an error.
func (f *FactionRoom) requirePlayer(ctx context.Context, v *Viewer, in *inboundMessage) (*domain.Player, bool) {
	id, err := uuid.Parse(in.PlayerID)
	if err != nil {
		v.Send(newError(in.CommandID, "invalid player id"))
		return nil, false
	}
	player, err := f.store.Players.FindByID(ctx, f.db, id)
	if err != nil {
		f.fail(v, in.CommandID, "load player", err)
		return nil, false
	}
	if player == nil {
		v.Send(newError(in.CommandID, "player not found"))
		return nil, false
	}
	if player.IsBanned {
		v.Send(newError(in.CommandID, "player is banned"))
		return nil, false
	}
	return player, true
}

// requireMember resolves the acting player and their membership row.
func (f *FactionRoom) requireMember(ctx context.Context, v *Viewer, in *inboundMessage) (*domain.Player, *domain.FactionMember, bool) {
	if f.faction == nil {
		v.Send(newError(in.CommandID, "faction not found"))
		return nil, nil, false
	}
	player, ok := f.requirePlayer(ctx, v, in)
	if !ok {
		return nil, nil, false
	}
	member, err := f.store.Members.Find(ctx, f.db, f.faction.ID, player.ID)
	if err != nil {
		f.fail(v, in.CommandID, "load membership", err)
		return nil, nil, false
	}
	if member == nil {
		v.Send(newError(in.CommandID, "not a member of this faction"))
		return nil, nil, false
	}
	return player, member, true
}

func (f *FactionRoom) isDuplicate(ctx context.Context, v *Viewer, commandID string) bool {
	if commandID == "" {
		return false
	}
	existing, err := f.store.Transactions.FindByCommandID(ctx, f.db, commandID)
	if err != nil {
		f.logger.Error("command id lookup failed", "command_id", commandID, "error", err)
		return false
	}
	if existing == nil {
		return false
	}
	v.Send(newError(commandID, "command already applied"))
	return true
}

func (f *FactionRoom) recordTransaction(ctx context.Context, tx *domain.Transaction) {
	if err := f.store.Transactions.Insert(ctx, f.db, tx); err != nil {
		f.logger.Error("transaction insert failed",
			"type", tx.Type, "player_id", tx.PlayerID, "amount", tx.Amount, "error", err)
		return
	}
	f.events.Publish(ctx, domain.NewTransactionPostedEvent(f.ID(), tx))
}

func (f *FactionRoom) onlineList() []string {
	out := make([]string, 0, len(f.online))
	for id := range f.online {
		out = append(out, id)
	}
	return out
}

func (f *FactionRoom) chatBacklog(n int) []chatEntry {
	if len(f.chat) <= n {
		out := make([]chatEntry, len(f.chat))
		copy(out, f.chat)
		return out
	}
	out := make([]chatEntry, n)
	copy(out, f.chat[len(f.chat)-n:])
	return out
}

func (f *FactionRoom) fail(v *Viewer, commandID, op string, err error) {
	f.logger.Error(op+" failed", "error", err)
	v.Send(newError(commandID, "internal error"))
}
