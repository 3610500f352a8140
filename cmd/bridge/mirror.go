package main

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/starveil/economy/internal/domain"
	"github.com/starveil/economy/internal/projection"
	"github.com/starveil/economy/internal/router"
)

// marketMirror follows market room broadcasts so the bridge can keep
// the market cache file current and rewrite player snapshots after an
// economic effect lands.
type marketMirror struct {
	router *router.Router
	states *projection.Writer
	logger *slog.Logger

	listings []domain.ListingWithSeller
}

func newMarketMirror(rt *router.Router, states *projection.Writer, logger *slog.Logger) *marketMirror {
	return &marketMirror{
		router: rt,
		states: states,
		logger: logger.With("component", "market-mirror"),
	}
}

// marketFrame is the union of the broadcast fields the mirror reads.
type marketFrame struct {
	Type      string                     `json:"type"`
	Listings  []domain.ListingWithSeller `json:"listings"`
	Listing   *domain.ListingWithSeller  `json:"listing"`
	ListingID string                     `json:"listingId"`
	BuyerID   string                     `json:"buyerId"`
	SellerID  string                     `json:"sellerId"`
	PlayerID  string                     `json:"playerId"`
}

func (m *marketMirror) handle(ctx context.Context, data []byte) {
	var frame marketFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		m.logger.Warn("unparseable market frame", "error", err)
		return
	}

	switch frame.Type {
	case "sync":
		m.listings = frame.Listings
		m.states.WriteMarketCache(m.listings)
	case "listing_added":
		if frame.Listing != nil {
			m.listings = append([]domain.ListingWithSeller{*frame.Listing}, m.listings...)
			m.states.WriteMarketCache(m.listings)
		}
	case "listing_sold":
		m.drop(frame.ListingID)
		m.states.WriteMarketCache(m.listings)
		m.refresh(ctx, frame.BuyerID)
		m.refresh(ctx, frame.SellerID)
	case "listing_removed":
		m.drop(frame.ListingID)
		m.states.WriteMarketCache(m.listings)
	case "purchase_complete", "cancel_complete":
		m.refresh(ctx, frame.PlayerID)
	}
}

func (m *marketMirror) drop(listingID string) {
	id, err := uuid.Parse(listingID)
	if err != nil {
		return
	}
	for i, l := range m.listings {
		if l.ID == id {
			m.listings = append(m.listings[:i], m.listings[i+1:]...)
			return
		}
	}
}

func (m *marketMirror) refresh(ctx context.Context, playerID string) {
	id, err := uuid.Parse(playerID)
	if err != nil {
		return
	}
	m.router.RefreshByID(ctx, id)
}
