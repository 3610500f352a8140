package domain

import "github.com/google/uuid"

// CommandType enumerates the commands the game side may emit.
type CommandType string

const (
	CmdPlayerJoin     CommandType = "player_join"
	CmdPlayerLeave    CommandType = "player_leave"
	CmdMarketCreate   CommandType = "market_create"
	CmdMarketPurchase CommandType = "market_purchase"
	CmdMarketCancel   CommandType = "market_cancel"
	CmdClaimItem      CommandType = "claim_item"
	CmdFactionCreate  CommandType = "faction_create"
	CmdFactionJoin    CommandType = "faction_join"
	CmdFactionLeave   CommandType = "faction_leave"
	CmdFactionInvite  CommandType = "faction_invite"
	CmdFactionKick    CommandType = "faction_kick"
	CmdFactionDeposit CommandType = "faction_deposit"
)

// KnownCommandType reports whether t is in the command enum.
func KnownCommandType(t CommandType) bool {
	switch t {
	case CmdPlayerJoin, CmdPlayerLeave, CmdMarketCreate, CmdMarketPurchase,
		CmdMarketCancel, CmdClaimItem, CmdFactionCreate, CmdFactionJoin,
		CmdFactionLeave, CmdFactionInvite, CmdFactionKick, CmdFactionDeposit:
		return true
	}
	return false
}

// Command is a validated, uniquely-identified player instruction.
// Immutable once validated; Data holds the variant for Type and is
// constructed only by the command validator, so downstream code
// type-switches on it and never re-validates.
type Command struct {
	ID        string
	Type      CommandType
	PlayerID  string
	Timestamp int64
	Data      CommandData
}

// CommandData is the closed set of per-type payloads.
type CommandData interface{ commandData() }

type PlayerJoinData struct {
	ExternalID  string
	DisplayName string
}

type PlayerLeaveData struct{}

type MarketCreateData struct {
	Item         ItemDescriptor
	PricePerUnit int64
}

type MarketPurchaseData struct {
	ListingID uuid.UUID
}

type MarketCancelData struct {
	ListingID uuid.UUID
}

type ClaimItemData struct {
	PendingItemID uuid.UUID
}

type FactionCreateData struct {
	Name string
	Tag  string
}

type FactionJoinData struct {
	FactionID uuid.UUID
}

type FactionLeaveData struct{}

type FactionInviteData struct {
	TargetPlayerID uuid.UUID
}

type FactionKickData struct {
	TargetPlayerID uuid.UUID
}

type FactionDepositData struct {
	Amount int64
}

func (PlayerJoinData) commandData()     {}
func (PlayerLeaveData) commandData()    {}
func (MarketCreateData) commandData()   {}
func (MarketPurchaseData) commandData() {}
func (MarketCancelData) commandData()   {}
func (ClaimItemData) commandData()      {}
func (FactionCreateData) commandData()  {}
func (FactionJoinData) commandData()    {}
func (FactionLeaveData) commandData()   {}
func (FactionInviteData) commandData()  {}
func (FactionKickData) commandData()    {}
func (FactionDepositData) commandData() {}
