package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TransactionType enumerates all economy transaction types.
type TransactionType string

const (
	TxMarketPurchase    TransactionType = "market_purchase"
	TxMarketSale        TransactionType = "market_sale"
	TxMarketListingFee  TransactionType = "market_listing_fee"
	TxFactionDeposit    TransactionType = "faction_deposit"
	TxFactionWithdrawal TransactionType = "faction_withdrawal"
	TxEventReward       TransactionType = "event_reward"
	TxAdminAdjustment   TransactionType = "admin_adjustment"
)

// Transaction is an append-only audit record: one row per economic
// effect on one player, never updated or deleted. CommandID links the
// row to the bridge command that caused it and is the idempotency key
// for re-delivered commands.
type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	Type      TransactionType `json:"type"`
	PlayerID  uuid.UUID       `json:"playerId"`
	Amount    int64           `json:"amount"`
	Metadata  json.RawMessage `json:"metadata"`
	CommandID *string         `json:"commandId,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewTransaction builds an audit row. Metadata may be nil.
func NewTransaction(txType TransactionType, playerID uuid.UUID, amount int64, commandID string, metadata json.RawMessage) *Transaction {
	if metadata == nil {
		metadata = json.RawMessage(`{}`)
	}
	t := &Transaction{
		ID:        uuid.New(),
		Type:      txType,
		PlayerID:  playerID,
		Amount:    amount,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if commandID != "" {
		t.CommandID = &commandID
	}
	return t
}
