package controller

import (
	"net/http"

	apierrors "github.com/facturalink/dte-backend/internal/errors"
	"github.com/facturalink/dte-backend/internal/middleware"
	ws "github.com/facturalink/dte-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type EventStreamController struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

func NewEventStreamController(hub *ws.Hub, allowedOrigins []string) *EventStreamController {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &EventStreamController{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins[origin]
			},
		},
	}
}

// Stream upgrades to a websocket that pushes the tenant's transmission events
// GET /api/v1/events/stream
func (ctrl *EventStreamController) Stream(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tenantID, exists := middleware.GetTenantID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket upgrade failed", err, map[string]interface{}{
			"tenant_id": tenantID,
		})
		return
	}

	client := &ws.Client{
		Hub:      ctrl.hub,
		Conn:     &ws.Conn{Conn: conn},
		TenantID: tenantID,
		Send:     make(chan []byte, 64),
	}

	ctrl.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
