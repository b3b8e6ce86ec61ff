package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"botfleet/backend/internal/model"
	"botfleet/backend/internal/util"
	"botfleet/backend/pkg/logger"

	redisHelper "botfleet/backend/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// wsConn represents one connected client socket.
type wsConn struct {
	Hub      *WSHub
	Conn     *websocket.Conn
	ClientID string
	Send     chan []byte
}

// WSHub fans bot events out to connected clients. Events travel through redis
// pub/sub so every API instance delivers to its own sockets.
type WSHub struct {
	conns       map[*wsConn]bool
	clientConns map[string][]*wsConn
	register    chan *wsConn
	unregister  chan *wsConn
	broadcast   chan []byte
	mu          sync.RWMutex

	redisClient *redisHelper.Client
	log         *logger.Logger
}

func NewWSHub(redisClient *redisHelper.Client) *WSHub {
	return &WSHub{
		conns:       make(map[*wsConn]bool),
		clientConns: make(map[string][]*wsConn),
		register:    make(chan *wsConn),
		unregister:  make(chan *wsConn),
		broadcast:   make(chan []byte),
		redisClient: redisClient,
		log:         logger.GetLogger(),
	}
}

func (h *WSHub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.conns[conn] = true
			h.clientConns[conn.ClientID] = append(h.clientConns[conn.ClientID], conn)
			h.mu.Unlock()
			h.log.Infof("WS connection registered: client=%s", conn.ClientID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.conns[conn]; ok {
				delete(h.conns, conn)
				close(conn.Send)
				conns := h.clientConns[conn.ClientID]
				for i, c := range conns {
					if c == conn {
						h.clientConns[conn.ClientID] = append(conns[:i], conns[i+1:]...)
						break
					}
				}
				if len(h.clientConns[conn.ClientID]) == 0 {
					delete(h.clientConns, conn.ClientID)
				}
			}
			h.mu.Unlock()
			h.log.Infof("WS connection unregistered: client=%s", conn.ClientID)

		case message := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.conns {
				select {
				case conn.Send <- message:
				default:
					close(conn.Send)
					delete(h.conns, conn)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// NotifyClient publishes an event for one client. Delivery happens on
// whichever instance holds the client's sockets.
func (h *WSHub) NotifyClient(clientID, event string, payload interface{}) {
	msg := model.WSMessage{Event: event, Payload: payload}
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Errorf("Failed to marshal WS message: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	channel := redisHelper.WSClientKey(clientID)
	if err := h.redisClient.Publish(ctx, channel, data); err != nil {
		h.log.Errorf("Failed to publish WS event to %s: %v", channel, err)
	}
}

// deliverToClient writes a raw message to every socket held for one client.
func (h *WSHub) deliverToClient(clientID string, data []byte) {
	h.mu.RLock()
	conns, ok := h.clientConns[clientID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	for _, conn := range conns {
		select {
		case conn.Send <- data:
		default:
			// Buffer full; the connection is cleaned up on its next write failure.
		}
	}
}

// StartPubSubListener bridges redis pub/sub events to local sockets.
func (h *WSHub) StartPubSubListener(ctx context.Context) {
	broadcastKey := redisHelper.WSBroadcastKey()
	clientPrefix := redisHelper.WSClientKey("")

	pubsub := h.redisClient.PSubscribe(ctx, "ws:*")
	defer pubsub.Close()

	ch := pubsub.Channel()

	for msg := range ch {
		if msg.Channel == broadcastKey {
			h.broadcast <- []byte(msg.Payload)
		} else if len(msg.Channel) > len(clientPrefix) && msg.Channel[:len(clientPrefix)] == clientPrefix {
			clientID := msg.Channel[len(clientPrefix):]
			h.deliverToClient(clientID, []byte(msg.Payload))
		}
	}
}

func (c *wsConn) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, _, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Errorf("WS error: %v", err)
			}
			break
		}
		// Only control messages are expected from clients.
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, check origin
	},
}

// ServeWS handles WebSocket upgrade requests.
func (h *WSHub) ServeWS(c *gin.Context) {
	id, exists := c.Get("actor_id")
	if !exists {
		util.SendError(c, util.ErrUnauthorized("Not authenticated"))
		return
	}
	clientID := id.(string)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorf("Failed to upgrade websocket: %v", err)
		return
	}

	wc := &wsConn{
		Hub:      h,
		Conn:     conn,
		ClientID: clientID,
		Send:     make(chan []byte, 256),
	}

	h.register <- wc

	go wc.writePump()
	go wc.readPump()
}
