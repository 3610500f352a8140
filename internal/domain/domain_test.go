package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestListingTotal(t *testing.T) {
	assert.Equal(t, int64(50), ListingTotal(5, 10))
	assert.Equal(t, int64(7), ListingTotal(7, 1))
	assert.Equal(t, int64(0), ListingTotal(100, 0))
}

func TestListingFee(t *testing.T) {
	// 5% with integer truncation.
	assert.Equal(t, int64(2), ListingFee(50))
	assert.Equal(t, int64(5), ListingFee(100))
	assert.Equal(t, int64(0), ListingFee(19))
	assert.Equal(t, int64(0), ListingFee(0))
}

func TestValidateFactionName(t *testing.T) {
	t.Run("accepts alphanumeric with spaces", func(t *testing.T) {
		assert.NoError(t, ValidateFactionName("Iron Vanguard"))
		assert.NoError(t, ValidateFactionName("abc"))
	})

	t.Run("rejects bad lengths", func(t *testing.T) {
		assert.Error(t, ValidateFactionName("ab"))
		assert.Error(t, ValidateFactionName("this faction name is way way too long ok"))
	})

	t.Run("rejects special characters", func(t *testing.T) {
		assert.Error(t, ValidateFactionName("iron<script>"))
		assert.Error(t, ValidateFactionName("bad_name"))
	})
}

func TestValidateFactionTag(t *testing.T) {
	t.Run("accepts uppercase alphanumeric", func(t *testing.T) {
		assert.NoError(t, ValidateFactionTag("IV"))
		assert.NoError(t, ValidateFactionTag("AB123"))
	})

	t.Run("rejects lowercase", func(t *testing.T) {
		assert.Error(t, ValidateFactionTag("iv"))
	})

	t.Run("rejects bad lengths", func(t *testing.T) {
		assert.Error(t, ValidateFactionTag("A"))
		assert.Error(t, ValidateFactionTag("TOOLONG"))
	})
}

func TestValidateFactionRole(t *testing.T) {
	assert.NoError(t, ValidateFactionRole(RoleOfficer))
	assert.NoError(t, ValidateFactionRole(RoleMember))
	assert.Error(t, ValidateFactionRole(RoleLeader))
	assert.Error(t, ValidateFactionRole(FactionRole("admiral")))
}

func TestNewTransaction(t *testing.T) {
	t.Run("keeps command id when present", func(t *testing.T) {
		tx := NewTransaction(TxMarketPurchase, uuid.New(), -50, "cmd-1", nil)
		if assert.NotNil(t, tx.CommandID) {
			assert.Equal(t, "cmd-1", *tx.CommandID)
		}
		assert.JSONEq(t, `{}`, string(tx.Metadata))
	})

	t.Run("empty command id stays null", func(t *testing.T) {
		tx := NewTransaction(TxMarketSale, uuid.New(), 50, "", nil)
		assert.Nil(t, tx.CommandID)
	})
}
