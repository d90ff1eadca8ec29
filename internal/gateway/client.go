package gateway

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 30 * time.Second
	maxInboundSz = 512
)

// Client is one websocket peer. Results flow out through send; the peer
// may ask for a pong or for the latest result again.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

type inbound struct {
	Type string `json:"type"` // "ping" or "latest"
	TS   int64  `json:"ts,omitempty"`
}

type pongOut struct {
	Type     string `json:"type"`
	TS       int64  `json:"ts"`
	ServerTS int64  `json:"server_ts"`
}

func (c *Client) writePump() {
	keepalive := time.NewTicker(pingPeriod)
	defer keepalive.Stop()
	defer c.conn.Close()

	for {
		var (
			kind = websocket.TextMessage
			data []byte
		)
		select {
		case msg, ok := <-c.send:
			if !ok {
				kind = websocket.CloseMessage
			}
			data = msg
		case <-keepalive.C:
			kind = websocket.PingMessage
		}
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(kind, data); err != nil || kind == websocket.CloseMessage {
			return
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundSz)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var in inbound
		if json.Unmarshal(raw, &in) != nil {
			continue
		}
		switch in.Type {
		case "ping":
			out, _ := json.Marshal(pongOut{Type: "pong", TS: in.TS, ServerTS: time.Now().UnixMilli()})
			c.hub.offer(c, out)
		case "latest":
			c.hub.offer(c, c.hub.latestPayload())
		}
	}
}
