package room

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/starveil/economy/internal/domain"
)

// decodeInbound parses one frame, logging and dropping malformed input.
func decodeInbound(m Message, logger *slog.Logger) (*inboundMessage, bool) {
	var in inboundMessage
	if err := json.Unmarshal(m.Data, &in); err != nil {
		logger.Warn("malformed frame", "error", err)
		return nil, false
	}
	if in.Type == "" {
		m.Viewer.Send(newError(in.CommandID, "missing message type"))
		return nil, false
	}
	return &in, true
}

func metaJSON(m map[string]any) json.RawMessage {
	b, err := json.Marshal(m)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

// Inbound frame envelope. Type selects the action; the remaining
// fields are populated per action. Frames relayed by the bridge carry
// the originating command id and acting player id; frames from direct
// websocket clients carry whatever the client set.
type inboundMessage struct {
	Type      string `json:"type"`
	CommandID string `json:"commandId,omitempty"`
	PlayerID  string `json:"playerId,omitempty"`

	// create_listing
	Item         *domain.ItemDescriptor `json:"item,omitempty"`
	PricePerUnit int64                  `json:"pricePerUnit,omitempty"`

	// purchase, cancel_listing
	ListingID string `json:"listingId,omitempty"`

	// create_faction
	Name string `json:"name,omitempty"`
	Tag  string `json:"tag,omitempty"`

	// deposit
	Amount int64 `json:"amount,omitempty"`

	// update_motd
	Motd string `json:"motd,omitempty"`

	// kick, promote, invite
	TargetPlayerID string `json:"targetPlayerId,omitempty"`
	Role           string `json:"role,omitempty"`

	// chat
	Text string `json:"text,omitempty"`

	// presence: zone_change
	Zone string `json:"zone,omitempty"`
}

// errorMessage is the per-viewer failure reply.
type errorMessage struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	CommandID string `json:"commandId,omitempty"`
}

func newError(commandID, message string) errorMessage {
	return errorMessage{Type: "error", Message: message, CommandID: commandID}
}

// Market messages.

type marketSyncMessage struct {
	Type     string                     `json:"type"`
	Listings []domain.ListingWithSeller `json:"listings"`
}

type listingAddedMessage struct {
	Type    string                   `json:"type"`
	Listing domain.ListingWithSeller `json:"listing"`
}

type listingSoldMessage struct {
	Type      string    `json:"type"`
	ListingID uuid.UUID `json:"listingId"`
	BuyerID   uuid.UUID `json:"buyerId"`
	SellerID  uuid.UUID `json:"sellerId"`
	CommandID string    `json:"commandId,omitempty"`
}

type listingRemovedMessage struct {
	Type      string    `json:"type"`
	ListingID uuid.UUID `json:"listingId"`
	CommandID string    `json:"commandId,omitempty"`
}

type listingCreatedMessage struct {
	Type      string    `json:"type"`
	ListingID uuid.UUID `json:"listingId"`
	Fee       int64     `json:"fee"`
	CommandID string    `json:"commandId,omitempty"`
}

type purchaseCompleteMessage struct {
	Type       string    `json:"type"`
	ListingID  uuid.UUID `json:"listingId"`
	PlayerID   uuid.UUID `json:"playerId"`
	NewBalance int64     `json:"newBalance"`
	CommandID  string    `json:"commandId,omitempty"`
}

type cancelCompleteMessage struct {
	Type      string    `json:"type"`
	ListingID uuid.UUID `json:"listingId"`
	PlayerID  uuid.UUID `json:"playerId"`
	CommandID string    `json:"commandId,omitempty"`
}

// Faction messages.

type factionSyncMessage struct {
	Type          string                    `json:"type"`
	Faction       *domain.Faction           `json:"faction"`
	Members       []domain.MemberWithPlayer `json:"members"`
	OnlineMembers []string                  `json:"onlineMembers"`
	Chat          []chatEntry               `json:"chat"`
}

type factionCreatedMessage struct {
	Type      string    `json:"type"`
	FactionID uuid.UUID `json:"factionId"`
	Name      string    `json:"name"`
	Tag       string    `json:"tag"`
	CommandID string    `json:"commandId,omitempty"`
}

type motdUpdatedMessage struct {
	Type string `json:"type"`
	Motd string `json:"motd"`
}

type bankUpdatedMessage struct {
	Type    string `json:"type"`
	Balance int64  `json:"balance"`
}

type depositCompleteMessage struct {
	Type       string    `json:"type"`
	PlayerID   uuid.UUID `json:"playerId"`
	Amount     int64     `json:"amount"`
	NewBalance int64     `json:"newBalance"`
	CommandID  string    `json:"commandId,omitempty"`
}

type memberKickedMessage struct {
	Type     string    `json:"type"`
	PlayerID uuid.UUID `json:"playerId"`
}

type memberRoleChangedMessage struct {
	Type     string    `json:"type"`
	PlayerID uuid.UUID `json:"playerId"`
	Role     string    `json:"role"`
}

type memberInvitedMessage struct {
	Type           string    `json:"type"`
	TargetPlayerID uuid.UUID `json:"targetPlayerId"`
	InvitedBy      uuid.UUID `json:"invitedBy"`
	FactionID      uuid.UUID `json:"factionId"`
}

type memberJoinedMessage struct {
	Type     string    `json:"type"`
	PlayerID uuid.UUID `json:"playerId"`
	Name     string    `json:"name"`
}

type memberLeftMessage struct {
	Type     string    `json:"type"`
	PlayerID uuid.UUID `json:"playerId"`
}

type memberPresenceMessage struct {
	Type     string `json:"type"` // member_online | member_offline
	PlayerID string `json:"playerId"`
}

type chatEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Text     string `json:"text"`
	SentAt   int64  `json:"sentAt"`
}

type chatMessage struct {
	Type string `json:"type"`
	chatEntry
}

// Presence messages.

type presenceEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Zone     string `json:"zone,omitempty"`
	SeenAt   int64  `json:"seenAt"`
}

type presenceSyncMessage struct {
	Type    string          `json:"type"`
	Players []presenceEntry `json:"players"`
}

type playerOnlineMessage struct {
	Type     string `json:"type"` // player_online | player_offline
	PlayerID string `json:"playerId"`
	Name     string `json:"name,omitempty"`
}

type zoneChangedMessage struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	Zone     string `json:"zone"`
}

type joinConfirmedMessage struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}
