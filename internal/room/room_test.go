package room

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewer_SendAfterClose(t *testing.T) {
	v := NewViewer(nil, testLogger)
	v.Close()
	v.Close()

	v.Send(map[string]any{"type": "sync"})
	assert.Empty(t, drain(t, v))
}

// The run loop drains leaves, joins, and the mailbox in arbitrary
// order, so a handler may reply to a viewer whose leave was already
// processed. That reply must be dropped, not crash the room.
func TestRoom_ReplyAfterLeaveDropped(t *testing.T) {
	f := newMarketFixture(t)
	seller := addPlayer(f.data, "Ada", 1000)
	v := attachViewer(f.room)

	delete(f.room.viewers, v)
	v.Close()

	f.send(t, v, map[string]any{
		"type": "create_listing", "commandId": "cmd-gone-1", "playerId": seller.ID.String(),
		"item": map[string]any{"name": "copperore", "count": 10}, "pricePerUnit": 5,
	})

	assert.Empty(t, drain(t, v))
	assert.Equal(t, int64(998), f.data.players[seller.ID].Currency)
}

func TestRoom_ShutdownUnblocksProducers(t *testing.T) {
	r := NewRoom(NewPresenceRoom(testLogger), testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	go r.Run(ctx)
	<-r.done

	for i := 0; i < cap(r.mailbox); i++ {
		r.mailbox <- Message{Data: []byte(`{}`)}
	}
	// Full mailbox and a stopped loop; must return, not block.
	r.Deliver(nil, []byte(`{"type":"heartbeat"}`))

	v := NewViewer(nil, testLogger)
	r.Attach(v)
	select {
	case <-v.done:
	default:
		require.Fail(t, "viewer not closed by Attach on a stopped room")
	}

	r.Detach(v)
}
