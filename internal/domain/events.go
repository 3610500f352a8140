package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates economy events mirrored onto the event stream.
type EventType string

const (
	EventTransactionPosted EventType = "economy.transaction.posted"
	EventListingChanged    EventType = "economy.listing.changed"
	EventFactionChanged    EventType = "economy.faction.changed"
)

// EconomyEvent is the envelope published to the event stream. Room
// broadcasts are the source of truth for viewers; this stream is a
// best-effort mirror for downstream consumers.
type EconomyEvent struct {
	EventID      uuid.UUID       `json:"eventId"`
	EventType    EventType       `json:"eventType"`
	RoomID       string          `json:"roomId"`
	PartitionKey string          `json:"partitionKey"`
	Payload      json.RawMessage `json:"payload"`
	OccurredAt   time.Time       `json:"occurredAt"`
}

// NewTransactionPostedEvent mirrors a ledger row onto the stream.
func NewTransactionPostedEvent(roomID string, tx *Transaction) EconomyEvent {
	payload, _ := json.Marshal(tx)
	return EconomyEvent{
		EventID:      uuid.New(),
		EventType:    EventTransactionPosted,
		RoomID:       roomID,
		PartitionKey: tx.PlayerID.String(),
		Payload:      payload,
		OccurredAt:   time.Now().UTC(),
	}
}

// NewListingChangedEvent records a listing lifecycle transition.
func NewListingChangedEvent(listing *MarketListing) EconomyEvent {
	payload, _ := json.Marshal(listing)
	return EconomyEvent{
		EventID:      uuid.New(),
		EventType:    EventListingChanged,
		RoomID:       "market",
		PartitionKey: listing.ID.String(),
		Payload:      payload,
		OccurredAt:   time.Now().UTC(),
	}
}

// NewFactionChangedEvent records a faction state change.
func NewFactionChangedEvent(factionID uuid.UUID, change string, payload any) EconomyEvent {
	body, _ := json.Marshal(map[string]any{"change": change, "detail": payload})
	return EconomyEvent{
		EventID:      uuid.New(),
		EventType:    EventFactionChanged,
		RoomID:       factionID.String(),
		PartitionKey: factionID.String(),
		Payload:      body,
		OccurredAt:   time.Now().UTC(),
	}
}
