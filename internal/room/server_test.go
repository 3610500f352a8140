package room

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starveil/economy/internal/domain"
)

func TestServer_Transactions(t *testing.T) {
	store, data := newMemStore()
	player := addPlayer(data, "Ada", 1000)
	tx := domain.NewTransaction(domain.TxMarketPurchase, player.ID, -50, "cmd-1", nil)
	data.transactions = append(data.transactions, tx)

	hub := NewHub(store, nil, disabledEvents(), time.Minute, testLogger)
	srv := httptest.NewServer(NewServer(hub, testLogger).Routes())
	defer srv.Close()

	t.Run("lists player transactions", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/players/" + player.ID.String() + "/transactions")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var rows []domain.Transaction
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
		require.Len(t, rows, 1)
		assert.Equal(t, int64(-50), rows[0].Amount)
	})

	t.Run("empty ledger returns empty array", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/players/" + uuid.NewString() + "/transactions")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var rows []domain.Transaction
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
		assert.Empty(t, rows)
	})

	t.Run("bad player id rejected", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/players/not-a-uuid/transactions")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
