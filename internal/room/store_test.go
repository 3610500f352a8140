package room

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/starveil/economy/internal/domain"
	"github.com/starveil/economy/internal/infra"
	"github.com/starveil/economy/internal/repository"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// memData is shared backing state for the in-memory repositories used
// by the room tests. Rooms serialize access, so no locking here.
type memData struct {
	players      map[uuid.UUID]*domain.Player
	listings     map[uuid.UUID]*domain.MarketListing
	factions     map[uuid.UUID]*domain.Faction
	members      []domain.FactionMember
	transactions []*domain.Transaction
	pending      map[uuid.UUID]*domain.PendingItem
}

func newMemStore() (*repository.Store, *memData) {
	d := &memData{
		players:  make(map[uuid.UUID]*domain.Player),
		listings: make(map[uuid.UUID]*domain.MarketListing),
		factions: make(map[uuid.UUID]*domain.Faction),
		pending:  make(map[uuid.UUID]*domain.PendingItem),
	}
	store := &repository.Store{
		Players:      &memPlayers{d},
		Listings:     &memListings{d},
		Factions:     &memFactions{d},
		Members:      &memMembers{d},
		Transactions: &memTransactions{d},
		Pending:      &memPending{d},
	}
	return store, d
}

type memPlayers struct{ d *memData }

func (m *memPlayers) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Player, error) {
	if p, ok := m.d.players[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memPlayers) FindByExternalID(_ context.Context, _ repository.DBTX, externalID string) (*domain.Player, error) {
	for _, p := range m.d.players {
		if p.ExternalID == externalID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memPlayers) Create(_ context.Context, _ repository.DBTX, player *domain.Player) error {
	cp := *player
	m.d.players[player.ID] = &cp
	return nil
}

func (m *memPlayers) Touch(_ context.Context, _ repository.DBTX, id uuid.UUID, displayName string, seenAt time.Time) error {
	if p, ok := m.d.players[id]; ok {
		p.DisplayName = displayName
		p.LastSeenAt = seenAt
	}
	return nil
}

func (m *memPlayers) AdjustCurrency(_ context.Context, _ repository.DBTX, id uuid.UUID, delta int64) (*domain.Player, error) {
	p, ok := m.d.players[id]
	if !ok || p.Currency+delta < 0 {
		return nil, nil
	}
	p.Currency += delta
	cp := *p
	return &cp, nil
}

func (m *memPlayers) SetFaction(_ context.Context, _ repository.DBTX, id uuid.UUID, factionID *uuid.UUID) error {
	if p, ok := m.d.players[id]; ok {
		p.FactionID = factionID
	}
	return nil
}

type memListings struct{ d *memData }

func (m *memListings) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.MarketListing, error) {
	if l, ok := m.d.listings[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (m *memListings) FindActiveWithSellers(_ context.Context, _ repository.DBTX) ([]domain.ListingWithSeller, error) {
	var out []domain.ListingWithSeller
	for _, l := range m.d.listings {
		if l.Status != domain.ListingActive {
			continue
		}
		seller := domain.PlayerRef{ID: l.SellerID}
		if p, ok := m.d.players[l.SellerID]; ok {
			seller.DisplayName = p.DisplayName
		}
		out = append(out, domain.ListingWithSeller{MarketListing: *l, Seller: seller})
	}
	return out, nil
}

func (m *memListings) CountActiveBySeller(_ context.Context, _ repository.DBTX, sellerID uuid.UUID) (int, error) {
	n := 0
	for _, l := range m.d.listings {
		if l.SellerID == sellerID && l.Status == domain.ListingActive {
			n++
		}
	}
	return n, nil
}

func (m *memListings) Insert(_ context.Context, _ repository.DBTX, listing *domain.MarketListing) error {
	cp := *listing
	m.d.listings[listing.ID] = &cp
	return nil
}

func (m *memListings) MarkStatus(_ context.Context, _ repository.DBTX, id uuid.UUID, from, to domain.ListingStatus) (bool, error) {
	l, ok := m.d.listings[id]
	if !ok || l.Status != from {
		return false, nil
	}
	l.Status = to
	return true, nil
}

func (m *memListings) ExpireOlderThan(_ context.Context, _ repository.DBTX, now time.Time) (int64, error) {
	var n int64
	for _, l := range m.d.listings {
		if l.Status == domain.ListingActive && l.ExpiresAt.Before(now) {
			l.Status = domain.ListingExpired
			n++
		}
	}
	return n, nil
}

type memFactions struct{ d *memData }

func (m *memFactions) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Faction, error) {
	if f, ok := m.d.factions[id]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, nil
}

func (m *memFactions) FindByName(_ context.Context, _ repository.DBTX, name string) (*domain.Faction, error) {
	for _, f := range m.d.factions {
		if f.Name == name {
			cp := *f
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memFactions) FindByTag(_ context.Context, _ repository.DBTX, tag string) (*domain.Faction, error) {
	for _, f := range m.d.factions {
		if f.Tag == tag {
			cp := *f
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memFactions) Insert(_ context.Context, _ repository.DBTX, faction *domain.Faction) error {
	cp := *faction
	m.d.factions[faction.ID] = &cp
	return nil
}

func (m *memFactions) UpdateMotd(_ context.Context, _ repository.DBTX, id uuid.UUID, motd string) error {
	if f, ok := m.d.factions[id]; ok {
		f.Motd = &motd
	}
	return nil
}

func (m *memFactions) UpdateLeader(_ context.Context, _ repository.DBTX, id, leaderID uuid.UUID) error {
	if f, ok := m.d.factions[id]; ok {
		f.LeaderID = leaderID
	}
	return nil
}

func (m *memFactions) AdjustBank(_ context.Context, _ repository.DBTX, id uuid.UUID, delta int64) (*domain.Faction, error) {
	f, ok := m.d.factions[id]
	if !ok || f.BankCurrency+delta < 0 {
		return nil, nil
	}
	f.BankCurrency += delta
	cp := *f
	return &cp, nil
}

type memMembers struct{ d *memData }

func (m *memMembers) Find(_ context.Context, _ repository.DBTX, factionID, playerID uuid.UUID) (*domain.FactionMember, error) {
	for _, member := range m.d.members {
		if member.FactionID == factionID && member.PlayerID == playerID {
			cp := member
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memMembers) ListWithPlayers(_ context.Context, _ repository.DBTX, factionID uuid.UUID) ([]domain.MemberWithPlayer, error) {
	var out []domain.MemberWithPlayer
	for _, member := range m.d.members {
		if member.FactionID != factionID {
			continue
		}
		row := domain.MemberWithPlayer{PlayerID: member.PlayerID, Role: member.Role}
		if p, ok := m.d.players[member.PlayerID]; ok {
			row.DisplayName = p.DisplayName
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *memMembers) Insert(_ context.Context, _ repository.DBTX, member *domain.FactionMember) error {
	m.d.members = append(m.d.members, *member)
	return nil
}

func (m *memMembers) Delete(_ context.Context, _ repository.DBTX, factionID, playerID uuid.UUID) (bool, error) {
	for i, member := range m.d.members {
		if member.FactionID == factionID && member.PlayerID == playerID {
			m.d.members = append(m.d.members[:i], m.d.members[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memMembers) UpdateRole(_ context.Context, _ repository.DBTX, factionID, playerID uuid.UUID, role domain.FactionRole) error {
	for i := range m.d.members {
		if m.d.members[i].FactionID == factionID && m.d.members[i].PlayerID == playerID {
			m.d.members[i].Role = role
		}
	}
	return nil
}

type memTransactions struct{ d *memData }

func (m *memTransactions) Insert(_ context.Context, _ repository.DBTX, tx *domain.Transaction) error {
	cp := *tx
	m.d.transactions = append(m.d.transactions, &cp)
	return nil
}

func (m *memTransactions) FindByCommandID(_ context.Context, _ repository.DBTX, commandID string) (*domain.Transaction, error) {
	for _, tx := range m.d.transactions {
		if tx.CommandID != nil && *tx.CommandID == commandID {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memTransactions) ListByPlayer(_ context.Context, _ repository.DBTX, playerID uuid.UUID, limit int) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for i := len(m.d.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if m.d.transactions[i].PlayerID == playerID {
			out = append(out, *m.d.transactions[i])
		}
	}
	return out, nil
}

type memPending struct{ d *memData }

func (m *memPending) Insert(_ context.Context, _ repository.DBTX, item *domain.PendingItem) error {
	cp := *item
	m.d.pending[item.ID] = &cp
	return nil
}

func (m *memPending) ListByPlayer(_ context.Context, _ repository.DBTX, playerID uuid.UUID) ([]domain.PendingItem, error) {
	var out []domain.PendingItem
	for _, item := range m.d.pending {
		if item.PlayerID == playerID {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (m *memPending) Delete(_ context.Context, _ repository.DBTX, id uuid.UUID) (bool, error) {
	if _, ok := m.d.pending[id]; ok {
		delete(m.d.pending, id)
		return true, nil
	}
	return false, nil
}

// Test plumbing shared by the room tests.

func disabledEvents() *infra.EventPublisher {
	return infra.NewEventPublisher("", "", false, testLogger)
}

func addPlayer(d *memData, name string, currency int64) *domain.Player {
	p := &domain.Player{
		ID:          uuid.New(),
		ExternalID:  "sb-" + name,
		DisplayName: name,
		Currency:    currency,
		CreatedAt:   time.Now().UTC(),
		LastSeenAt:  time.Now().UTC(),
	}
	d.players[p.ID] = p
	return p
}

// attachViewer registers a sink viewer directly on the room so tests
// can observe broadcasts without running the actor loop.
func attachViewer(r *Room) *Viewer {
	v := NewViewer(nil, testLogger)
	r.viewers[v] = struct{}{}
	return v
}

// drain decodes every queued frame on a viewer.
func drain(t *testing.T, v *Viewer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for {
		select {
		case payload := <-v.Outbox():
			var m map[string]any
			require.NoError(t, json.Unmarshal(payload, &m))
			out = append(out, m)
		default:
			return out
		}
	}
}

// lastOfType returns the newest frame of the given type, or nil.
func lastOfType(frames []map[string]any, msgType string) map[string]any {
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i]["type"] == msgType {
			return frames[i]
		}
	}
	return nil
}
