package websocket

import (
	"context"
	"encoding/json"
	"time"

	ws "github.com/coder/websocket"
)

const (
	eventBufferSize = 16
	pingInterval    = 30 * time.Second
)

// Client pumps hub events onto one WebSocket connection. Events are
// marshalled per connection at write time.
type Client struct {
	hub  *Hub
	conn *ws.Conn
}

func NewClient(hub *Hub, conn *ws.Conn) *Client {
	return &Client{hub: hub, conn: conn}
}

// Run subscribes to the hub, starts the write pump, and blocks reading the
// connection until it closes. The subscription is released on return, which
// also stops the write pump.
func (c *Client) Run(ctx context.Context) {
	events := c.hub.Subscribe()
	defer c.hub.Unsubscribe(events)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx, events)
	c.readPump(ctx)
}

// readPump discards incoming frames; clients only listen. A read error means
// the connection is gone.
func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

// writePump serializes subscribed events to the connection and pings
// periodically to detect stale connections.
func (c *Client) writePump(ctx context.Context, events chan Event) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				c.hub.logger.Error("marshal event", "error", err)
				continue
			}
			if err := c.conn.Write(ctx, ws.MessageText, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
