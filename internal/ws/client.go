package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"messaging-core/internal/models"
)

// Client is one live websocket session. The user id is resolved exactly once
// at handshake and never re-derived from client input. Outbound events go
// through the send queue so broadcasts never block on a slow socket; inbound
// commands are processed strictly in arrival order by the read pump.
type Client struct {
	ID     string
	UserID int

	conn      *websocket.Conn
	send      chan []byte
	limiter   *rate.Limiter
	done      chan struct{}
	closeOnce sync.Once

	connectedAt time.Time
	ip          string
}

func newClient(userID int, conn *websocket.Conn, sendBuffer int, opRate float64, opBurst int, ip string) *Client {
	return &Client{
		ID:          uuid.NewString(),
		UserID:      userID,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		limiter:     rate.NewLimiter(rate.Limit(opRate), opBurst),
		done:        make(chan struct{}),
		connectedAt: time.Now(),
		ip:          ip,
	}
}

// Send marshals and enqueues one event for this connection only.
func (c *Client) Send(event models.ServerEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	c.enqueue(payload)
}

// enqueue offers a frame to the outbound queue without blocking. Returns
// false when the connection is closed or the queue is full.
func (c *Client) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// writePump drains the outbound queue onto the socket. A write failure
// closes the connection; the read pump then observes the close and tears
// down room membership.
func (c *Client) writePump() {
	for {
		select {
		case payload := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("websocket write error: %v", err)
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}
