// Package command parses untrusted command envelopes into typed,
// schema-checked domain commands. It never mutates state and never
// panics on malformed input; every failure is a *domain.AppError
// naming the offending field.
package command

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/starveil/economy/internal/domain"
)

const maxDisplayNameLength = 32

type envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	PlayerID  string          `json:"playerId"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Validate parses raw bytes into a typed command. The returned
// command's Data is the variant matching its Type; callers may
// type-switch without re-validating.
func Validate(raw []byte) (*domain.Command, *domain.AppError) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, domain.ErrValidation(fmt.Sprintf("malformed command envelope: %v", err))
	}
	return validateEnvelope(env)
}

func validateEnvelope(env envelope) (*domain.Command, *domain.AppError) {
	if env.ID == "" {
		return nil, domain.ErrValidation("id is required")
	}
	cmdType := domain.CommandType(env.Type)
	if !domain.KnownCommandType(cmdType) {
		return nil, domain.ErrValidation(fmt.Sprintf("unknown command type %q", env.Type))
	}
	if env.PlayerID == "" {
		return nil, domain.ErrValidation("playerId is required")
	}
	if env.Timestamp <= 0 {
		return nil, domain.ErrValidation("timestamp must be a positive integer")
	}

	data, err := validateData(cmdType, env.Data)
	if err != nil {
		return nil, err
	}

	return &domain.Command{
		ID:        env.ID,
		Type:      cmdType,
		PlayerID:  env.PlayerID,
		Timestamp: env.Timestamp,
		Data:      data,
	}, nil
}

func validateData(t domain.CommandType, raw json.RawMessage) (domain.CommandData, *domain.AppError) {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}

	switch t {
	case domain.CmdPlayerJoin:
		var d struct {
			ExternalID  string `json:"externalId"`
			DisplayName string `json:"displayName"`
		}
		if err := decode(raw, &d); err != nil {
			return nil, err
		}
		if d.ExternalID == "" {
			return nil, domain.ErrValidation("data.externalId is required")
		}
		if d.DisplayName == "" || len(d.DisplayName) > maxDisplayNameLength {
			return nil, domain.ErrValidation(fmt.Sprintf("data.displayName must be 1-%d characters", maxDisplayNameLength))
		}
		return domain.PlayerJoinData{ExternalID: d.ExternalID, DisplayName: d.DisplayName}, nil

	case domain.CmdPlayerLeave:
		return domain.PlayerLeaveData{}, nil

	case domain.CmdMarketCreate:
		var d struct {
			Item struct {
				Name       string          `json:"name"`
				Count      int             `json:"count"`
				Parameters json.RawMessage `json:"parameters"`
			} `json:"item"`
			PricePerUnit int64 `json:"pricePerUnit"`
		}
		if err := decode(raw, &d); err != nil {
			return nil, err
		}
		if d.Item.Name == "" {
			return nil, domain.ErrValidation("data.item.name is required")
		}
		if d.Item.Count <= 0 {
			return nil, domain.ErrValidation("data.item.count must be positive")
		}
		if d.PricePerUnit <= 0 {
			return nil, domain.ErrValidation("data.pricePerUnit must be positive")
		}
		params := d.Item.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{}`)
		}
		return domain.MarketCreateData{
			Item:         domain.ItemDescriptor{Name: d.Item.Name, Count: d.Item.Count, Parameters: params},
			PricePerUnit: d.PricePerUnit,
		}, nil

	case domain.CmdMarketPurchase:
		id, err := decodeUUIDField(raw, "listingId")
		if err != nil {
			return nil, err
		}
		return domain.MarketPurchaseData{ListingID: id}, nil

	case domain.CmdMarketCancel:
		id, err := decodeUUIDField(raw, "listingId")
		if err != nil {
			return nil, err
		}
		return domain.MarketCancelData{ListingID: id}, nil

	case domain.CmdClaimItem:
		id, err := decodeUUIDField(raw, "pendingItemId")
		if err != nil {
			return nil, err
		}
		return domain.ClaimItemData{PendingItemID: id}, nil

	case domain.CmdFactionCreate:
		var d struct {
			Name string `json:"name"`
			Tag  string `json:"tag"`
		}
		if err := decode(raw, &d); err != nil {
			return nil, err
		}
		if err := domain.ValidateFactionName(d.Name); err != nil {
			return nil, domain.ErrValidation("data.name: " + err.Error())
		}
		if err := domain.ValidateFactionTag(d.Tag); err != nil {
			return nil, domain.ErrValidation("data.tag: " + err.Error())
		}
		return domain.FactionCreateData{Name: d.Name, Tag: d.Tag}, nil

	case domain.CmdFactionJoin:
		id, err := decodeUUIDField(raw, "factionId")
		if err != nil {
			return nil, err
		}
		return domain.FactionJoinData{FactionID: id}, nil

	case domain.CmdFactionLeave:
		return domain.FactionLeaveData{}, nil

	case domain.CmdFactionInvite:
		id, err := decodeUUIDField(raw, "targetPlayerId")
		if err != nil {
			return nil, err
		}
		return domain.FactionInviteData{TargetPlayerID: id}, nil

	case domain.CmdFactionKick:
		id, err := decodeUUIDField(raw, "targetPlayerId")
		if err != nil {
			return nil, err
		}
		return domain.FactionKickData{TargetPlayerID: id}, nil

	case domain.CmdFactionDeposit:
		var d struct {
			Amount int64 `json:"amount"`
		}
		if err := decode(raw, &d); err != nil {
			return nil, err
		}
		if d.Amount <= 0 {
			return nil, domain.ErrValidation("data.amount must be positive")
		}
		return domain.FactionDepositData{Amount: d.Amount}, nil
	}

	return nil, domain.ErrValidation(fmt.Sprintf("unknown command type %q", t))
}

func decode(raw json.RawMessage, v any) *domain.AppError {
	if err := json.Unmarshal(raw, v); err != nil {
		return domain.ErrValidation(fmt.Sprintf("malformed data payload: %v", err))
	}
	return nil
}

func decodeUUIDField(raw json.RawMessage, field string) (uuid.UUID, *domain.AppError) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return uuid.Nil, domain.ErrValidation(fmt.Sprintf("malformed data payload: %v", err))
	}
	var s string
	if err := json.Unmarshal(m[field], &s); err != nil {
		return uuid.Nil, domain.ErrValidation(fmt.Sprintf("data.%s is required", field))
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, domain.ErrValidation(fmt.Sprintf("data.%s must be a UUID", field))
	}
	return id, nil
}
