package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// StartingCurrency is granted to every player on first join.
const StartingCurrency int64 = 1000

// Player represents a players row. Currency is mutated only by the
// economy engine and must never go negative as the result of any
// single operation.
type Player struct {
	ID          uuid.UUID  `json:"id"`
	ExternalID  string     `json:"externalId"`
	DisplayName string     `json:"displayName"`
	Currency    int64      `json:"currency"`
	FactionID   *uuid.UUID `json:"factionId"`
	Reputation  int        `json:"reputation"`
	IsBanned    bool       `json:"isBanned"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastSeenAt  time.Time  `json:"lastSeenAt"`
}

// PlayerRef is the seller/member projection embedded in room messages.
type PlayerRef struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName"`
}

// PendingItemSource tells the game client why an item is owed.
type PendingItemSource string

const (
	PendingSourcePurchase PendingItemSource = "market_purchase"
	PendingSourceReturn   PendingItemSource = "market_return"
	PendingSourceEvent    PendingItemSource = "event_reward"
)

// PendingItem is an item owed to a player, removed only by an explicit
// claim command.
type PendingItem struct {
	ID         uuid.UUID         `json:"id"`
	PlayerID   uuid.UUID         `json:"playerId"`
	ItemName   string            `json:"itemName"`
	ItemCount  int               `json:"itemCount"`
	ItemParams json.RawMessage   `json:"itemParams"`
	Source     PendingItemSource `json:"source"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Notification is a transient message surfaced to the game client via
// the state projection.
type Notification struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt"`
}

// PlayerState is the read-optimized snapshot written for the game
// client to poll. Not authoritative; rebuilt from the store.
type PlayerState struct {
	ID            uuid.UUID      `json:"id"`
	DisplayName   string         `json:"displayName"`
	Currency      int64          `json:"currency"`
	FactionID     *uuid.UUID     `json:"factionId"`
	FactionTag    *string        `json:"factionTag"`
	PendingItems  []PendingItem  `json:"pendingItems"`
	Notifications []Notification `json:"notifications"`
}
