package relay

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mentorhive/relay/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one websocket connection. A user may hold several clients at
// once (multiple tabs); presence is tracked per user, rooms per client.
type Client struct {
	id      string
	conn    *websocket.Conn
	gateway *Gateway
	log     *log.Logger
	user    types.User

	send     chan *ServerEvent
	stop     chan struct{}
	stopOnce sync.Once
}

func NewClient(conn *websocket.Conn, gw *Gateway, logger *log.Logger, user types.User) *Client {
	return &Client{
		id:      uuid.NewString(),
		conn:    conn,
		gateway: gw,
		log:     logger,
		user:    user,
		send:    make(chan *ServerEvent, 256),
		stop:    make(chan struct{}),
	}
}

func (c *Client) User() types.User { return c.user }

// queueEvent enqueues ev without blocking. A client whose send buffer is
// full is too far behind to save; the event is dropped and logged.
func (c *Client) queueEvent(ev *ServerEvent) {
	select {
	case c.send <- ev:
	default:
		c.log.Printf("client %s send buffer full, dropping %s", c.id, ev.Event)
	}
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// Read pumps frames from the websocket into the gateway. It owns the
// read side of the connection and triggers deregistration on exit.
func (c *Client) Read() {
	defer func() {
		c.gateway.deRegisterChan <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Printf("client %s read error: %v", c.id, err)
			}
			return
		}

		payload, err := decodeEvent(raw)
		if err != nil {
			c.log.Printf("client %s sent bad frame: %v", c.id, err)
			c.queueEvent(errEvent("malformed event"))
			continue
		}

		c.gateway.forwardEvent(c, payload)
	}
}

// Write pumps queued events to the websocket and keeps the connection
// alive with pings.
func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.log.Printf("client %s write error: %v", c.id, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.stop:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
