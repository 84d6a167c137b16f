// Package messaging pushes escrow events to websocket subscribers.
package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mintaro/internal/escrow"
	"github.com/sudo-init-do/mintaro/internal/httperr"
)

const (
	sendBuffer = 16
	writeWait  = 10 * time.Second
)

type wsEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// room is the set of subscribers of one topic.
type room struct {
	mu      sync.RWMutex
	members map[*subscriber]struct{}
}

// Hub fans escrow events out to the websockets subscribed to a job or a
// party. It implements escrow.Observer. Slow subscribers are dropped rather
// than allowed to hold up the escrow operation.
type Hub struct {
	engine   *escrow.Engine
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]*room
}

var _ escrow.Observer = (*Hub)(nil)

// NewHub creates a hub. Call SetEngine before serving websockets.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		rooms: make(map[string]*room),
	}
}

// SetEngine binds the hub to the engine it observes, which is built after
// the hub is registered as one of its observers.
func (h *Hub) SetEngine(engine *escrow.Engine) { h.engine = engine }

func jobTopic(id escrow.JobID) string    { return "job:" + strconv.FormatUint(uint64(id), 10) }
func partyTopic(a escrow.Address) string { return "party:" + string(a) }

func (h *Hub) room(topic string) *room {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[topic]; ok {
		return r
	}
	r := &room{members: make(map[*subscriber]struct{})}
	h.rooms[topic] = r
	return r
}

// Observe routes ev to its job's room and, for payouts, to the payee's room.
func (h *Hub) Observe(_ context.Context, ev escrow.Event) {
	payload, err := json.Marshal(wsEvent{Type: string(ev.Kind), Data: ev})
	if err != nil {
		h.logger.Error("failed to encode event", "kind", ev.Kind, "error", err)
		return
	}
	if ev.JobID != 0 {
		h.broadcast(jobTopic(ev.JobID), payload)
	}
	if ev.Freelancer != "" && (ev.Kind == escrow.EventPaymentReleased || ev.Kind == escrow.EventWithdrawn) {
		h.broadcast(partyTopic(ev.Freelancer), payload)
	}
}

func (h *Hub) broadcast(topic string, payload []byte) {
	h.mu.Lock()
	r, ok := h.rooms[topic]
	h.mu.Unlock()
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for s := range r.members {
		select {
		case s.send <- payload:
		default:
			delete(r.members, s)
			close(s.send)
		}
	}
}

func (r *room) register(s *subscriber) {
	r.mu.Lock()
	r.members[s] = struct{}{}
	r.mu.Unlock()
}

func (r *room) unregister(s *subscriber) {
	r.mu.Lock()
	if _, ok := r.members[s]; ok {
		delete(r.members, s)
		close(s.send)
	}
	r.mu.Unlock()
}

// JobWS - websocket for realtime updates on a job, for its client and freelancer
func (h *Hub) JobWS(c echo.Context) error {
	who, _ := c.Get("address").(string)
	if who == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid job id"})
	}
	job, err := h.engine.GetJob(c.Request().Context(), escrow.JobID(id))
	if err != nil {
		return httperr.Escrow(c, h.logger, err)
	}
	if escrow.Address(who) != job.Client && escrow.Address(who) != job.Freelancer {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this job"})
	}
	return h.serve(c, jobTopic(job.ID))
}

// WalletWS - websocket for the caller's releases and withdrawals
func (h *Hub) WalletWS(c echo.Context) error {
	who, _ := c.Get("address").(string)
	if who == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return h.serve(c, partyTopic(escrow.Address(who)))
}

func (h *Hub) serve(c echo.Context, topic string) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	s := &subscriber{conn: ws, send: make(chan []byte, sendBuffer)}
	r := h.room(topic)
	r.register(s)

	go s.writeLoop()

	// Read loop (discard client messages; protocol is server push)
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			r.unregister(s)
			_ = ws.Close()
			return nil
		}
	}
}

func (s *subscriber) writeLoop() {
	for payload := range s.send {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			_ = s.conn.Close()
			return
		}
	}
	_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
