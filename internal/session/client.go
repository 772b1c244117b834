package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/coder/websocket"

	"github.com/certcanvas/certcanvas/backend-go/internal/typeid"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 256 * 1024
)

// Client is one websocket connection and the session it drives.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	session  *Session
	ctx      context.Context
	cancel   context.CancelFunc
	ClientID string
	OrgID    string
}

type ClientOptions struct {
	ClientID   string
	OrgID      string
	Templates  Templates
	Exporter   Exporter
	QRFallback string
}

func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn, opts ClientOptions) *Client {
	c := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		ClientID: opts.ClientID,
		OrgID:    opts.OrgID,
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.session = New(Config{
		ID:         typeid.NewSessionID(),
		OrgID:      opts.OrgID,
		Templates:  opts.Templates,
		Exporter:   opts.Exporter,
		QRFallback: opts.QRFallback,
		Send:       c.Send,
		OnTemplate: func(s *Session, templateID string, saved bool) {
			hub.templateOpened(c, templateID, saved)
		},
	})
	return c
}

// Serve runs the connection until the peer disconnects or the hub stops.
// templateID selects the template to open; empty opens the sample.
func (c *Client) Serve(templateID string) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)
	defer c.cancel()

	c.Send(newMessage(TypeWelcome, WelcomePayload{
		SessionID:  c.session.ID,
		ClientID:   c.ClientID,
		TemplateID: templateID,
	}))

	go c.writePump()

	sessionDone := make(chan struct{})
	go func() {
		defer close(sessionDone)
		c.session.Run(c.ctx)
	}()
	c.session.Dispatch(CommandPayload{Op: OpLoad, TemplateID: templateID})

	c.readPump()
	c.cancel()
	<-sessionDone
	c.conn.Close(websocket.StatusNormalClosure, "")
}

func (c *Client) readPump() {
	c.conn.SetReadLimit(maxMsgSize)

	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				slog.Debug("read error", "error", err, "client", c.ClientID)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("invalid message", "error", err, "client", c.ClientID)
			continue
		}
		if msg.Type != TypeCommand {
			slog.Warn("unknown message type", "type", msg.Type, "client", c.ClientID)
			continue
		}

		var cmd CommandPayload
		if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
			c.Send(newMessage(TypeError, ErrorPayload{Message: "invalid command payload"}))
			continue
		}
		if !c.session.Dispatch(cmd) {
			c.Send(newMessage(TypeError, ErrorPayload{Op: cmd.Op, Message: "session busy, command dropped"}))
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			writeCtx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				slog.Debug("write error", "error", err, "client", c.ClientID)
				c.cancel()
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.cancel()
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// Send queues msg for the connection. It never blocks; messages are
// dropped when the client falls behind.
func (c *Client) Send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal message", "error", err)
		return
	}

	select {
	case c.send <- data:
	default:
		slog.Warn("client send buffer full, dropping message", "client", c.ClientID)
	}
}
