package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Market tuning constants.
const (
	ListingFeePercent    int64 = 5
	ListingDurationDays        = 7
	MaxListingsPerPlayer       = 20
)

// ListingStatus is terminal once non-active; no transition ever leaves
// a terminal state.
type ListingStatus string

const (
	ListingActive    ListingStatus = "active"
	ListingSold      ListingStatus = "sold"
	ListingCancelled ListingStatus = "cancelled"
	ListingExpired   ListingStatus = "expired"
)

// MarketListing represents a market_listings row.
type MarketListing struct {
	ID           uuid.UUID       `json:"id"`
	SellerID     uuid.UUID       `json:"sellerId"`
	ItemName     string          `json:"itemName"`
	ItemCount    int             `json:"itemCount"`
	ItemParams   json.RawMessage `json:"itemParams"`
	PricePerUnit int64           `json:"pricePerUnit"`
	TotalPrice   int64           `json:"totalPrice"`
	Status       ListingStatus   `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	ExpiresAt    time.Time       `json:"expiresAt"`
}

// ListingWithSeller joins the seller's public fields onto a listing for
// room broadcasts.
type ListingWithSeller struct {
	MarketListing
	Seller PlayerRef `json:"seller"`
}

// ItemDescriptor identifies a stack of items as the game describes them.
type ItemDescriptor struct {
	Name       string          `json:"name"`
	Count      int             `json:"count"`
	Parameters json.RawMessage `json:"parameters"`
}

// ListingTotal computes the fixed total price at creation.
func ListingTotal(pricePerUnit int64, count int) int64 {
	return pricePerUnit * int64(count)
}

// ListingFee is the non-refundable fee charged to the seller up front.
func ListingFee(totalPrice int64) int64 {
	return totalPrice * ListingFeePercent / 100
}
