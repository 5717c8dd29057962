package websocket

import (
	"net/http"
	"time"

	"SoilMonitorAPI/internal/apperr"
	"SoilMonitorAPI/internal/live"
	"SoilMonitorAPI/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client forwards one live subscription to one websocket connection.
type Client struct {
	conn *websocket.Conn
	sub  *live.Subscription
	log  *logger.Logger
}

// writePump pumps events from the subscription to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.sub.Events():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			msg, err := live.Encode(ev)
			if err != nil {
				c.log.Error("Dropping unencodable event: %v", err)
				continue
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Debug("%v", apperr.NewSubscriberSendFailure(c.sub.ID(), err))
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

// readPump discards inbound frames and ends the subscription when the peer goes away.
func (c *Client) readPump() {
	defer func() {
		c.sub.Close()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ServeWs upgrades the request and subscribes the connection to the hub.
func ServeWs(hub *live.Hub, w http.ResponseWriter, r *http.Request, log *logger.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("WS Upgrade Error: %v", err)
		return
	}

	sub, err := hub.Subscribe(r.Context())
	if err != nil {
		log.Warn("WS subscribe failed: %v", err)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "live channel unavailable"))
		conn.Close()
		return
	}

	client := &Client{conn: conn, sub: sub, log: log}
	go client.writePump()
	go client.readPump()
}
