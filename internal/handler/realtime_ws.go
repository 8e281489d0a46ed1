package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"habitpact/config"
	"habitpact/internal/auth"
	"habitpact/internal/realtime"
	"habitpact/internal/service"
	"habitpact/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsInbound struct {
	Type           string   `json:"type"`
	PartnershipIDs []string `json:"partnership_ids"`
}

// UpgradeRealtimeWS serves the per-user socket; query: token. The socket receives
// "notification" frames for the user and, after subscribe_progress, "progress"
// frames for the partnerships the user belongs to.
func UpgradeRealtimeWS(cfg *config.JWTConfig, hub *ws.Hub, partnerships *service.PartnershipService, progress *service.ProgressService, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		claims, err := auth.ParseAccessToken(cfg, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		client := ws.NewClient(claims.UserID, 256)
		hub.Register(client)
		sub := &progressSubscription{}
		defer func() {
			sub.replace(nil)
			client.Close()
		}()

		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(wsPongWait))
			return nil
		})
		go writePump(conn, client)

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var msg wsInbound
			if json.Unmarshal(raw, &msg) != nil {
				continue
			}
			switch msg.Type {
			case "subscribe_progress":
				allowed := make([]string, 0, len(msg.PartnershipIDs))
				rejected := make([]string, 0)
				for _, id := range msg.PartnershipIDs {
					if _, err := partnerships.AuthorizeParticipant(c.Request.Context(), id, claims.UserID); err != nil {
						rejected = append(rejected, id)
						continue
					}
					allowed = append(allowed, id)
				}
				sub.replace(progress.Subscribe(allowed, func(ev realtime.ProgressEvent) {
					client.Push(gin.H{"type": "progress", "event": ev.Type, "progress": ev.Row})
				}))
				client.Push(gin.H{"type": "subscribed", "partnership_ids": allowed, "rejected": rejected})
			case "unsubscribe_progress":
				sub.replace(nil)
				client.Push(gin.H{"type": "unsubscribed"})
			default:
				log.WithField("type", msg.Type).Debug("ignoring websocket message")
			}
		}
	}
}

func writePump(conn *websocket.Conn, client *ws.Client) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-client.Outbound():
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// progressSubscription holds at most one live feed handle per socket.
type progressSubscription struct {
	mu  sync.Mutex
	cur *realtime.Subscription
}

func (p *progressSubscription) replace(next *realtime.Subscription) {
	p.mu.Lock()
	prev := p.cur
	p.cur = next
	p.mu.Unlock()
	if prev != nil {
		prev.Unsubscribe()
	}
}
