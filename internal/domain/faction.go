package domain

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Faction tuning constants.
const (
	FactionCreationCost  int64 = 5000
	FactionNameMinLength       = 3
	FactionNameMaxLength       = 32
	FactionTagMinLength        = 2
	FactionTagMaxLength        = 5
)

// FactionRole orders members within a faction. Exactly one leader at a
// time.
type FactionRole string

const (
	RoleLeader  FactionRole = "leader"
	RoleOfficer FactionRole = "officer"
	RoleMember  FactionRole = "member"
)

// Faction represents a factions row. Name and tag are unique.
type Faction struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Tag             string    `json:"tag"`
	LeaderID        uuid.UUID `json:"leaderId"`
	Motd            *string   `json:"motd"`
	BankCurrency    int64     `json:"bankCurrency"`
	HomeWorldCoords *string   `json:"homeWorldCoords"`
	CreatedAt       time.Time `json:"createdAt"`
}

// FactionMember is a faction_members row; composite identity
// (factionId, playerId). A player belongs to at most one faction.
type FactionMember struct {
	FactionID uuid.UUID   `json:"factionId"`
	PlayerID  uuid.UUID   `json:"playerId"`
	Role      FactionRole `json:"role"`
	JoinedAt  time.Time   `json:"joinedAt"`
}

// MemberWithPlayer joins the member's display name for room broadcasts.
type MemberWithPlayer struct {
	PlayerID    uuid.UUID   `json:"playerId"`
	DisplayName string      `json:"displayName"`
	Role        FactionRole `json:"role"`
}

var (
	factionNameRegex = regexp.MustCompile(`^[a-zA-Z0-9 ]+$`)
	factionTagRegex  = regexp.MustCompile(`^[A-Z0-9]+$`)
)

// ValidateFactionName checks length and the alphanumeric+space rule.
func ValidateFactionName(name string) error {
	if len(name) < FactionNameMinLength || len(name) > FactionNameMaxLength {
		return fmt.Errorf("faction name must be %d-%d characters", FactionNameMinLength, FactionNameMaxLength)
	}
	if !factionNameRegex.MatchString(name) {
		return fmt.Errorf("faction name must be alphanumeric")
	}
	return nil
}

// ValidateFactionTag checks length and the uppercase alphanumeric rule.
func ValidateFactionTag(tag string) error {
	if len(tag) < FactionTagMinLength || len(tag) > FactionTagMaxLength {
		return fmt.Errorf("faction tag must be %d-%d characters", FactionTagMinLength, FactionTagMaxLength)
	}
	if !factionTagRegex.MatchString(tag) {
		return fmt.Errorf("faction tag must be uppercase alphanumeric")
	}
	return nil
}

// ValidateFactionRole accepts only assignable roles (never leader; the
// leader seat moves by succession, not promotion).
func ValidateFactionRole(role FactionRole) error {
	if role != RoleOfficer && role != RoleMember {
		return fmt.Errorf("role must be officer or member, got %q", role)
	}
	return nil
}
