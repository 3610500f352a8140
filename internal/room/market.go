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

// MarketRoom is the authoritative listing book. There is one instance
// per server; every listing mutation funnels through its actor loop.
type MarketRoom struct {
	store  *repository.Store
	db     repository.DBTX
	events *infra.EventPublisher
	logger *slog.Logger
	room   *Room

	// Newest first, mirrors the active rows.
	listings []domain.ListingWithSeller
}

func NewMarketRoom(store *repository.Store, db repository.DBTX, events *infra.EventPublisher, logger *slog.Logger) *MarketRoom {
	return &MarketRoom{
		store:  store,
		db:     db,
		events: events,
		logger: logger.With("component", "market"),
	}
}

func (m *MarketRoom) ID() string { return "market" }

func (m *MarketRoom) bind(r *Room) { m.room = r }

// OnStart expires stale rows, then loads the active book.
func (m *MarketRoom) OnStart(ctx context.Context) error {
	if n, err := m.store.Listings.ExpireOlderThan(ctx, m.db, time.Now().UTC()); err != nil {
		m.logger.Error("startup expiry sweep failed", "error", err)
	} else if n > 0 {
		m.logger.Info("expired stale listings", "count", n)
	}
	listings, err := m.store.Listings.FindActiveWithSellers(ctx, m.db)
	if err != nil {
		return err
	}
	m.listings = listings
	m.logger.Info("market loaded", "listings", len(listings))
	return nil
}

func (m *MarketRoom) OnConnect(v *Viewer) {
	v.Send(marketSyncMessage{Type: "sync", Listings: m.snapshot()})
}

func (m *MarketRoom) OnMessage(ctx context.Context, msg Message) {
	in, ok := decodeInbound(msg, m.logger)
	if !ok {
		return
	}
	switch in.Type {
	case "create_listing":
		m.handleCreate(ctx, msg.Viewer, in)
	case "purchase":
		m.handlePurchase(ctx, msg.Viewer, in)
	case "cancel_listing":
		m.handleCancel(ctx, msg.Viewer, in)
	case "refresh":
		m.handleRefresh(ctx, msg.Viewer)
	default:
		msg.Viewer.Send(newError(in.CommandID, "unknown message type: "+in.Type))
	}
}

// OnTick runs the periodic expiry sweep.
func (m *MarketRoom) OnTick(ctx context.Context) {
	n, err := m.store.Listings.ExpireOlderThan(ctx, m.db, time.Now().UTC())
	if err != nil {
		m.logger.Error("expiry sweep failed", "error", err)
		return
	}
	if n == 0 {
		return
	}
	m.logger.Info("expired listings", "count", n)
	m.reload(ctx)
	m.room.Broadcast(marketSyncMessage{Type: "sync", Listings: m.snapshot()})
}

func (m *MarketRoom) handleCreate(ctx context.Context, v *Viewer, in *inboundMessage) {
	seller, ok := m.requirePlayer(ctx, v, in)
	if !ok {
		return
	}
	if in.Item == nil || in.Item.Name == "" || in.Item.Count <= 0 {
		v.Send(newError(in.CommandID, "listing requires an item with a positive count"))
		return
	}
	if in.PricePerUnit <= 0 {
		v.Send(newError(in.CommandID, "pricePerUnit must be positive"))
		return
	}
	if m.isDuplicate(ctx, v, in.CommandID) {
		return
	}

	active, err := m.store.Listings.CountActiveBySeller(ctx, m.db, seller.ID)
	if err != nil {
		m.fail(v, in.CommandID, "count listings", err)
		return
	}
	if active >= domain.MaxListingsPerPlayer {
		v.Send(newError(in.CommandID, "listing limit reached"))
		return
	}

	total := domain.ListingTotal(in.PricePerUnit, in.Item.Count)
	fee := domain.ListingFee(total)
	if seller.Currency < fee {
		v.Send(newError(in.CommandID, "insufficient funds for listing fee"))
		return
	}

	updated, err := m.store.Players.AdjustCurrency(ctx, m.db, seller.ID, -fee)
	if err != nil {
		m.fail(v, in.CommandID, "charge listing fee", err)
		return
	}
	if updated == nil {
		v.Send(newError(in.CommandID, "insufficient funds for listing fee"))
		return
	}

	params := in.Item.Parameters
	if len(params) == 0 {
		params = []byte(`{}`)
	}

	now := time.Now().UTC()
	listing := &domain.MarketListing{
		ID:           uuid.New(),
		SellerID:     seller.ID,
		ItemName:     in.Item.Name,
		ItemCount:    in.Item.Count,
		ItemParams:   params,
		PricePerUnit: in.PricePerUnit,
		TotalPrice:   total,
		Status:       domain.ListingActive,
		CreatedAt:    now,
		ExpiresAt:    now.Add(domain.ListingDurationDays * 24 * time.Hour),
	}
	if err := m.store.Listings.Insert(ctx, m.db, listing); err != nil {
		// The fee is already gone; surface the inconsistency loudly.
		m.logger.Error("listing insert failed after fee debit",
			"seller_id", seller.ID, "fee", fee, "error", err)
		m.fail(v, in.CommandID, "insert listing", err)
		return
	}

	m.recordTransaction(ctx, domain.NewTransaction(
		domain.TxMarketListingFee, seller.ID, -fee, in.CommandID,
		metaJSON(map[string]any{"listingId": listing.ID.String(), "item": listing.ItemName}),
	))

	entry := domain.ListingWithSeller{
		MarketListing: *listing,
		Seller:        domain.PlayerRef{ID: seller.ID, DisplayName: seller.DisplayName},
	}
	m.listings = append([]domain.ListingWithSeller{entry}, m.listings...)

	m.room.Broadcast(listingAddedMessage{Type: "listing_added", Listing: entry})
	v.Send(listingCreatedMessage{
		Type: "listing_created", ListingID: listing.ID, Fee: fee, CommandID: in.CommandID,
	})
	m.publishListingEvent(ctx, listing)
}

func (m *MarketRoom) handlePurchase(ctx context.Context, v *Viewer, in *inboundMessage) {
	buyer, ok := m.requirePlayer(ctx, v, in)
	if !ok {
		return
	}
	listingID, err := uuid.Parse(in.ListingID)
	if err != nil {
		v.Send(newError(in.CommandID, "invalid listing id"))
		return
	}
	listing, err := m.store.Listings.FindByID(ctx, m.db, listingID)
	if err != nil {
		m.fail(v, in.CommandID, "load listing", err)
		return
	}
	if listing == nil || listing.Status != domain.ListingActive {
		v.Send(newError(in.CommandID, "listing is no longer available"))
		return
	}
	if listing.SellerID == buyer.ID {
		v.Send(newError(in.CommandID, "cannot purchase your own listing"))
		return
	}
	if buyer.Currency < listing.TotalPrice {
		v.Send(newError(in.CommandID, "insufficient funds"))
		return
	}
	if m.isDuplicate(ctx, v, in.CommandID) {
		return
	}

	// Claim the row first; a concurrent buyer loses here, not at the
	// currency update.
	claimed, err := m.store.Listings.MarkStatus(ctx, m.db, listingID,
		domain.ListingActive, domain.ListingSold)
	if err != nil {
		m.fail(v, in.CommandID, "mark listing sold", err)
		return
	}
	if !claimed {
		v.Send(newError(in.CommandID, "listing is no longer available"))
		return
	}

	debited, err := m.store.Players.AdjustCurrency(ctx, m.db, buyer.ID, -listing.TotalPrice)
	if err != nil || debited == nil {
		// Roll the claim back so the listing stays purchasable.
		if _, rbErr := m.store.Listings.MarkStatus(ctx, m.db, listingID,
			domain.ListingSold, domain.ListingActive); rbErr != nil {
			m.logger.Error("failed to reopen listing after debit failure",
				"listing_id", listingID, "error", rbErr)
		}
		if err != nil {
			m.fail(v, in.CommandID, "debit buyer", err)
		} else {
			v.Send(newError(in.CommandID, "insufficient funds"))
		}
		return
	}

	if _, err := m.store.Players.AdjustCurrency(ctx, m.db, listing.SellerID, listing.TotalPrice); err != nil {
		// Buyer paid, seller not credited. No rollback path without a
		// transaction; log everything needed to repair by hand.
		m.logger.Error("seller credit failed after buyer debit",
			"listing_id", listingID, "seller_id", listing.SellerID,
			"buyer_id", buyer.ID, "amount", listing.TotalPrice, "error", err)
	}

	pending := &domain.PendingItem{
		ID:         uuid.New(),
		PlayerID:   buyer.ID,
		ItemName:   listing.ItemName,
		ItemCount:  listing.ItemCount,
		ItemParams: listing.ItemParams,
		Source:     domain.PendingSourcePurchase,
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.store.Pending.Insert(ctx, m.db, pending); err != nil {
		m.logger.Error("pending item insert failed after purchase",
			"listing_id", listingID, "buyer_id", buyer.ID, "error", err)
	}

	meta := metaJSON(map[string]any{
		"listingId": listingID.String(), "item": listing.ItemName, "count": listing.ItemCount,
	})
	m.recordTransaction(ctx, domain.NewTransaction(
		domain.TxMarketPurchase, buyer.ID, -listing.TotalPrice, in.CommandID, meta))
	m.recordTransaction(ctx, domain.NewTransaction(
		domain.TxMarketSale, listing.SellerID, listing.TotalPrice, "", meta))

	m.removeListing(listingID)
	m.room.Broadcast(listingSoldMessage{
		Type: "listing_sold", ListingID: listingID,
		BuyerID: buyer.ID, SellerID: listing.SellerID, CommandID: in.CommandID,
	})
	v.Send(purchaseCompleteMessage{
		Type: "purchase_complete", ListingID: listingID, PlayerID: buyer.ID,
		NewBalance: debited.Currency, CommandID: in.CommandID,
	})
	listing.Status = domain.ListingSold
	m.publishListingEvent(ctx, listing)
}

func (m *MarketRoom) handleCancel(ctx context.Context, v *Viewer, in *inboundMessage) {
	player, ok := m.requirePlayer(ctx, v, in)
	if !ok {
		return
	}
	listingID, err := uuid.Parse(in.ListingID)
	if err != nil {
		v.Send(newError(in.CommandID, "invalid listing id"))
		return
	}
	listing, err := m.store.Listings.FindByID(ctx, m.db, listingID)
	if err != nil {
		m.fail(v, in.CommandID, "load listing", err)
		return
	}
	if listing == nil || listing.Status != domain.ListingActive {
		v.Send(newError(in.CommandID, "listing is no longer available"))
		return
	}
	if listing.SellerID != player.ID {
		v.Send(newError(in.CommandID, "only the seller can cancel a listing"))
		return
	}

	cancelled, err := m.store.Listings.MarkStatus(ctx, m.db, listingID,
		domain.ListingActive, domain.ListingCancelled)
	if err != nil {
		m.fail(v, in.CommandID, "cancel listing", err)
		return
	}
	if !cancelled {
		v.Send(newError(in.CommandID, "listing is no longer available"))
		return
	}

	// Items go back via the claim queue; the fee is not refunded.
	pending := &domain.PendingItem{
		ID:         uuid.New(),
		PlayerID:   player.ID,
		ItemName:   listing.ItemName,
		ItemCount:  listing.ItemCount,
		ItemParams: listing.ItemParams,
		Source:     domain.PendingSourceReturn,
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.store.Pending.Insert(ctx, m.db, pending); err != nil {
		m.logger.Error("pending item insert failed after cancel",
			"listing_id", listingID, "player_id", player.ID, "error", err)
	}

	m.removeListing(listingID)
	m.room.Broadcast(listingRemovedMessage{
		Type: "listing_removed", ListingID: listingID, CommandID: in.CommandID,
	})
	v.Send(cancelCompleteMessage{
		Type: "cancel_complete", ListingID: listingID, PlayerID: player.ID,
		CommandID: in.CommandID,
	})
	listing.Status = domain.ListingCancelled
	m.publishListingEvent(ctx, listing)
}

func (m *MarketRoom) handleRefresh(ctx context.Context, v *Viewer) {
	m.reload(ctx)
	v.Send(marketSyncMessage{Type: "sync", Listings: m.snapshot()})
}

func (m *MarketRoom) reload(ctx context.Context) {
	listings, err := m.store.Listings.FindActiveWithSellers(ctx, m.db)
	if err != nil {
		m.logger.Error("listing reload failed", "error", err)
		return
	}
	m.listings = listings
}

// requirePlayer resolves the acting player or replies with an error.
func (m *MarketRoom) requirePlayer(ctx context.Context, v *Viewer, in *inboundMessage) (*domain.Player, bool) {
	id, err := uuid.Parse(in.PlayerID)
	if err != nil {
		v.Send(newError(in.CommandID, "invalid player id"))
		return nil, false
	}
	player, err := m.store.Players.FindByID(ctx, m.db, id)
	if err != nil {
		m.fail(v, in.CommandID, "load player", err)
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

// isDuplicate replies with an error and reports true when the command
// id already produced a transaction.
func (m *MarketRoom) isDuplicate(ctx context.Context, v *Viewer, commandID string) bool {
	if commandID == "" {
		return false
	}
	existing, err := m.store.Transactions.FindByCommandID(ctx, m.db, commandID)
	if err != nil {
		m.logger.Error("command id lookup failed", "command_id", commandID, "error", err)
		return false
	}
	if existing == nil {
		return false
	}
	v.Send(newError(commandID, "command already applied"))
	return true
}

func (m *MarketRoom) recordTransaction(ctx context.Context, tx *domain.Transaction) {
	if err := m.store.Transactions.Insert(ctx, m.db, tx); err != nil {
		m.logger.Error("transaction insert failed",
			"type", tx.Type, "player_id", tx.PlayerID, "amount", tx.Amount, "error", err)
		return
	}
	m.events.Publish(ctx, domain.NewTransactionPostedEvent(m.ID(), tx))
}

func (m *MarketRoom) publishListingEvent(ctx context.Context, listing *domain.MarketListing) {
	m.events.Publish(ctx, domain.NewListingChangedEvent(listing))
}

func (m *MarketRoom) removeListing(id uuid.UUID) {
	for i, l := range m.listings {
		if l.ID == id {
			m.listings = append(m.listings[:i], m.listings[i+1:]...)
			return
		}
	}
}

func (m *MarketRoom) snapshot() []domain.ListingWithSeller {
	out := make([]domain.ListingWithSeller, len(m.listings))
	copy(out, m.listings)
	return out
}

func (m *MarketRoom) fail(v *Viewer, commandID, op string, err error) {
	m.logger.Error(op+" failed", "error", err)
	v.Send(newError(commandID, "internal error"))
}
