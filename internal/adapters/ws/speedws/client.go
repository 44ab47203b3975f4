package speedws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"trafficstats/internal/core/traffic"
	"trafficstats/internal/domain"
	"trafficstats/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type Client struct {
	ctx    context.Context
	cancel context.CancelFunc

	stream Subscriber
	conn   *websocket.Conn
	send   chan []byte

	// owned by readPump
	handle *traffic.SubscriptionHandle

	log logger.Logger

	ID string
}

func NewClient(parent context.Context, stream Subscriber, conn *websocket.Conn, log logger.Logger, cID string) *Client {
	ctx, cancel := context.WithCancel(parent)

	return &Client{
		ctx:    ctx,
		cancel: cancel,

		stream: stream,
		conn:   conn,
		send:   make(chan []byte, 16),

		log: log.With("client_id", cID),

		ID: cID,
	}
}

func (c *Client) readPump() {
	defer func() {
		c.unsubscribe()
		c.cancel()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("ws: client disconnected unexpected", "error", err)
			}
			return
		}

		var msg domain.WsClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.log.Error("ws: invalid client message", "error", err)
			continue
		}

		if msg.Channel != domain.WsChannelNetworkSpeed {
			c.log.Warn("ws: unknown channel", "channel", msg.Channel)
			continue
		}

		switch msg.Type {
		case domain.WsSubscribe:
			c.subscribe()
		case domain.WsUnsubscribe:
			c.unsubscribe()
		default:
			c.log.Debug("ws: unknown client message type", "type", msg.Type)
		}
	}
}

func (c *Client) subscribe() {
	if c.handle != nil {
		return
	}

	h := c.stream.Subscribe(c.push)
	c.handle = &h
	c.log.Info("ws: client subscribed", "channel", domain.WsChannelNetworkSpeed)
}

func (c *Client) unsubscribe() {
	if c.handle == nil {
		return
	}

	c.stream.Unsubscribe(*c.handle)
	c.handle = nil
	c.log.Info("ws: client unsubscribed", "channel", domain.WsChannelNetworkSpeed)
}

// push runs on the stream's dispatch goroutine.
func (c *Client) push(s domain.RateSample) {
	message, err := json.Marshal(domain.WsServerEvent{
		Channel: domain.WsChannelNetworkSpeed,
		Event:   domain.WsEventNetworkSpeed,
		Payload: s,
	})
	if err != nil {
		c.log.Error("ws: failed to marshal sample", "error", err)
		return
	}

	select {
	case <-c.ctx.Done():
	case c.send <- message:
	default:
		c.log.Warn("ws: client send buffer full, dropping sample")
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			if _, err := w.Write(message); err != nil {
				w.Close()
				return
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
