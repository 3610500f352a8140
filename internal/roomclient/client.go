// Package roomclient is the bridge side of the room protocol: a small
// websocket client that holds persistent connections to the market and
// presence rooms and opens faction connections on demand.
package roomclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	dialTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	// Idle faction connections close after this long without a send.
	factionIdleTimeout = 10 * time.Minute
)

// MessageFunc receives every frame broadcast on the market room.
type MessageFunc func(data []byte)

type conn struct {
	mu sync.Mutex
	ws *websocket.Conn

	lastUsed time.Time
}

func (c *conn) send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUsed = time.Now()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// Client implements router.RoomSender over websockets.
type Client struct {
	host   string
	logger *slog.Logger

	market   *conn
	presence *conn

	mu       sync.Mutex
	factions map[string]*conn

	onMarket MessageFunc
}

func New(host string, logger *slog.Logger) *Client {
	return &Client{
		host:     host,
		logger:   logger.With("component", "roomclient"),
		factions: make(map[string]*conn),
	}
}

// OnMarketMessage registers the market broadcast listener. Must be set
// before Connect.
func (c *Client) OnMarketMessage(fn MessageFunc) { c.onMarket = fn }

// Connect dials the persistent market and presence connections.
func (c *Client) Connect(ctx context.Context) error {
	market, err := c.dial(ctx, "market", "market")
	if err != nil {
		return fmt.Errorf("dial market room: %w", err)
	}
	c.market = market
	go c.readLoop(market, c.onMarket)

	presence, err := c.dial(ctx, "presence", "global")
	if err != nil {
		market.ws.Close()
		return fmt.Errorf("dial presence room: %w", err)
	}
	c.presence = presence
	// Presence broadcasts are not consumed bridge-side; drain them so
	// the server's send buffer never fills.
	go c.readLoop(presence, nil)

	go c.reapIdleFactions(ctx)
	return nil
}

// Close tears down every connection.
func (c *Client) Close() {
	if c.market != nil {
		c.market.ws.Close()
	}
	if c.presence != nil {
		c.presence.ws.Close()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, fc := range c.factions {
		fc.ws.Close()
		delete(c.factions, id)
	}
}

func (c *Client) SendToMarket(ctx context.Context, msg any) error {
	return c.market.send(msg)
}

func (c *Client) SendToPresence(ctx context.Context, msg any) error {
	return c.presence.send(msg)
}

func (c *Client) SendToFaction(ctx context.Context, factionID string, msg any) error {
	fc, err := c.factionConn(ctx, factionID)
	if err != nil {
		return err
	}
	if err := fc.send(msg); err != nil {
		// Stale connection; drop it so the next send redials.
		c.dropFaction(factionID, fc)
		return err
	}
	return nil
}

func (c *Client) factionConn(ctx context.Context, factionID string) (*conn, error) {
	c.mu.Lock()
	if fc, ok := c.factions[factionID]; ok {
		c.mu.Unlock()
		return fc, nil
	}
	c.mu.Unlock()

	fc, err := c.dial(ctx, "faction", factionID)
	if err != nil {
		return nil, fmt.Errorf("dial faction room %s: %w", factionID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.factions[factionID]; ok {
		// Lost the race to another sender.
		fc.ws.Close()
		return existing, nil
	}
	c.factions[factionID] = fc
	go c.readLoop(fc, nil)
	return fc, nil
}

func (c *Client) dropFaction(factionID string, fc *conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.factions[factionID]; ok && current == fc {
		delete(c.factions, factionID)
	}
	fc.ws.Close()
}

func (c *Client) dial(ctx context.Context, party, room string) (*conn, error) {
	u := url.URL{Scheme: "ws", Host: c.host, Path: fmt.Sprintf("/parties/%s/%s", party, room)}
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	ws, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	c.logger.Info("room connected", "party", party, "room", room)
	return &conn{ws: ws, lastUsed: time.Now()}, nil
}

// readLoop drains a connection, forwarding frames when fn is set.
func (c *Client) readLoop(cn *conn, fn MessageFunc) {
	for {
		_, data, err := cn.ws.ReadMessage()
		if err != nil {
			c.logger.Warn("room connection closed", "error", err)
			return
		}
		if fn != nil {
			fn(data)
		}
	}
}

// reapIdleFactions closes faction connections nothing has used lately.
func (c *Client) reapIdleFactions(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-factionIdleTimeout)
			c.mu.Lock()
			for id, fc := range c.factions {
				fc.mu.Lock()
				idle := fc.lastUsed.Before(cutoff)
				fc.mu.Unlock()
				if idle {
					fc.ws.Close()
					delete(c.factions, id)
				}
			}
			c.mu.Unlock()
		}
	}
}
