package websocket

import (
	"encoding/json"
	"sync"

	"github.com/facturalink/dte-backend/pkg/logger"
)

// Client is one websocket session of a tenant dashboard. A tenant can hold
// several sessions at once; each gets every event.
type Client struct {
	Hub      *Hub
	Conn     *Conn
	TenantID uint
	Send     chan []byte
}

// Hub fans transmission events out to the connected sessions of each tenant.
// Delivery is best effort: a session with a full buffer is disconnected, and
// events published while no session is connected are dropped.
type Hub struct {
	clients map[uint][]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan *tenantMessage

	mu sync.RWMutex
}

type tenantMessage struct {
	TenantID uint
	Payload  []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint][]*Client),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan *tenantMessage, 1024),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.TenantID] = append(h.clients[client.TenantID], client)
			sessions := len(h.clients[client.TenantID])
			h.mu.Unlock()
			logger.Info("WebSocket client registered", map[string]interface{}{
				"tenant_id":      client.TenantID,
				"total_sessions": sessions,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if clientList, ok := h.clients[client.TenantID]; ok {
				newList := make([]*Client, 0, len(clientList))
				for _, c := range clientList {
					if c != client {
						newList = append(newList, c)
					}
				}
				if len(newList) == 0 {
					delete(h.clients, client.TenantID)
				} else {
					h.clients[client.TenantID] = newList
				}
				close(client.Send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients[message.TenantID] {
				select {
				case client.Send <- message.Payload:
				default:
					// Send buffer full, clean up asynchronously.
					go h.Unregister(client)
					logger.Warn("Client send buffer full, disconnecting", map[string]interface{}{
						"tenant_id": message.TenantID,
					})
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastTransmission publishes a transmission event to every connected
// session of the tenant. Never blocks the caller.
func (h *Hub) BroadcastTransmission(tenantID uint, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal transmission event", err, nil)
		return
	}

	select {
	case h.broadcast <- &tenantMessage{TenantID: tenantID, Payload: data}:
	default:
		logger.Warn("Broadcast channel full, event dropped", map[string]interface{}{
			"tenant_id": tenantID,
		})
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// IsTenantConnected reports whether the tenant has at least one session.
func (h *Hub) IsTenantConnected(tenantID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[tenantID]
	return ok
}
