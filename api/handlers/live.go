package handlers

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/medrounds/med-consult-api/api"
	"github.com/medrounds/med-consult-api/databases"
	"github.com/medrounds/med-consult-api/models"
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Adjust CORS as needed, e.g., check r.Header.Get("Origin")
	},
}

// LiveConn is the transport side of one live feed subscription. Satisfied by
// *websocket.Conn; tests use fakes.
type LiveConn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// LiveEvent is the JSON shape pushed to case viewers
type LiveEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type liveSubscriber struct {
	handle string
	conn   LiveConn
}

// LiveHub is the connection registry for case feeds, keyed by case id. It is
// purely transient fan-out: nothing is persisted and a subscriber never
// receives events published before it connected.
type LiveHub struct {
	mu    sync.Mutex
	cases map[string][]liveSubscriber
}

// NewLiveHub creates an empty hub
func NewLiveHub() *LiveHub {
	return &LiveHub{cases: make(map[string][]liveSubscriber)}
}

// Subscribe registers a connection under a case id and returns its handle
func (h *LiveHub) Subscribe(caseID string, conn LiveConn) string {
	handle := uuid.New().String()
	h.mu.Lock()
	h.cases[caseID] = append(h.cases[caseID], liveSubscriber{handle: handle, conn: conn})
	h.mu.Unlock()
	return handle
}

// Unsubscribe removes a connection; no-op if already removed
func (h *LiveHub) Unsubscribe(caseID, handle string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.cases[caseID]
	for i, s := range subs {
		if s.handle == handle {
			h.cases[caseID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(h.cases[caseID]) == 0 {
		delete(h.cases, caseID)
	}
}

// Publish sends an event to every connection registered for a case, in
// registration order. A failed send drops that connection but never prevents
// delivery to the others.
func (h *LiveHub) Publish(caseID string, event LiveEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.cases[caseID]
	kept := subs[:0]
	for _, s := range subs {
		if err := s.conn.WriteJSON(event); err != nil {
			zap.S().Warnw("dropping live subscriber after failed send",
				"caseId", caseID, "error", err)
			s.conn.Close()
			continue
		}
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		delete(h.cases, caseID)
	} else {
		h.cases[caseID] = kept
	}
}

// PublishMessage fans a newly appended message out to the case's viewers
func (h *LiveHub) PublishMessage(caseID string, msg models.Message) {
	h.Publish(caseID, LiveEvent{Type: "new_message", Data: msg})
}

// PublishProgress fans a consultation progress update out to the case's viewers
func (h *LiveHub) PublishProgress(caseID, message string, fraction float64) {
	h.Publish(caseID, LiveEvent{Type: "progress", Data: map[string]interface{}{
		"message":  message,
		"fraction": fraction,
	}})
}

// Sweep pings every registered connection and prunes the dead ones. Called
// periodically by the scheduler.
func (h *LiveHub) Sweep() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for caseID, subs := range h.cases {
		kept := subs[:0]
		for _, s := range subs {
			if err := s.conn.WriteJSON(LiveEvent{Type: "ping"}); err != nil {
				s.conn.Close()
				continue
			}
			kept = append(kept, s)
		}
		if len(kept) == 0 {
			delete(h.cases, caseID)
		} else {
			h.cases[caseID] = kept
		}
	}
}

// Live handles the case feed websocket endpoint
type Live struct {
	Hub *LiveHub
	DB  databases.ConsultationDatabase
}

// HandleCaseWebSocket upgrades the connection and streams new-message and
// progress events for one case until the client goes away
func (l Live) HandleCaseWebSocket(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]

	ownerID, err := api.ParseWSToken(r.URL.Query().Get("token"))
	if err != nil {
		zap.S().Warnw("rejected case feed connection", "caseId", caseID, "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "unauthorized"}`))
		return
	}

	// the feed is scoped exactly like the store: no room for this owner, no feed
	if _, err := l.DB.FindOne(r.Context(), roomOwnerFilter(caseID, ownerID)); err != nil {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "case not found"}`))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("websocket upgrade failed", "caseId", caseID, "error", err)
		return
	}

	handle := l.Hub.Subscribe(caseID, conn)
	zap.S().Debugw("case feed subscriber connected", "caseId", caseID, "handle", handle)

	// keep the connection alive until the peer closes it
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}

	l.Hub.Unsubscribe(caseID, handle)
	conn.Close()
	zap.S().Debugw("case feed subscriber disconnected", "caseId", caseID, "handle", handle)
}
