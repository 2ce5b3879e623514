package api

import (
	"net/http"
	"sync"

	"github.com/smesochoritis-afk/streetkiosk-loyalty/internal/model"
	"github.com/smesochoritis-afk/streetkiosk-loyalty/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	EventStampRecorded  = "stamp_recorded"
	EventRewardUnlocked = "reward_unlocked"
	EventRewardRedeemed = "reward_redeemed"
	EventProgressReset  = "progress_reset"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event is pushed to kiosk displays subscribed to a user's card.
type Event struct {
	Type            string `json:"type"`
	UserID          string `json:"user_id"`
	Stamps          int    `json:"stamps"`
	Target          int    `json:"target"`
	Remaining       int    `json:"remaining"`
	RewardAvailable bool   `json:"reward_available"`
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// EventHub fans scan/redeem events out to WebSocket subscribers, keyed by
// user id. Delivery is best effort: a subscriber whose write fails is
// dropped.
type EventHub struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

func (h *EventHub) add(userID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*subscriber]struct{})
	}
	h.subs[userID][sub] = struct{}{}
}

func (h *EventHub) remove(userID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[userID], sub)
	if len(h.subs[userID]) == 0 {
		delete(h.subs, userID)
	}
}

// Publish builds an event from the fresh status and broadcasts it to every
// subscriber of that user.
func (h *EventHub) Publish(eventType string, st *model.Status) {
	log := logger.Logger()

	data, err := json.Marshal(Event{
		Type:            eventType,
		UserID:          st.UserID,
		Stamps:          st.Stamps,
		Target:          st.Target,
		Remaining:       st.Remaining,
		RewardAvailable: st.RewardAvailable,
	})
	if err != nil {
		log.Error("failed to marshal event", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*subscriber, 0, len(h.subs[st.UserID]))
	for sub := range h.subs[st.UserID] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		if err := sub.send(data); err != nil {
			log.Debug("dropping websocket subscriber",
				zap.String("user_id", st.UserID), zap.Error(err))
			sub.conn.Close()
			h.remove(st.UserID, sub)
		}
	}
}

type eventRoutes struct {
	hub *EventHub
}

func NewEventRoutes(handler *gin.RouterGroup, hub *EventHub) {
	r := &eventRoutes{hub: hub}
	handler.GET("/ws/:user_id", r.Subscribe)
}

func (r *eventRoutes) Subscribe(c *gin.Context) {
	log := logger.Logger()

	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := &subscriber{conn: conn}
	r.hub.add(userID, sub)

	go func() {
		defer func() {
			r.hub.remove(userID, sub)
			conn.Close()
		}()

		// Inbound messages are ignored; the read loop only detects close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug("websocket closed unexpectedly", zap.Error(err))
				}
				return
			}
		}
	}()
}
