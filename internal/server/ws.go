package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/session"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	outBuffer  = 16
)

// PointerRange bounds the pointer ids a client may use. Each connection is
// given its own block of session pointer ids: the client's pointer n is
// n + slot*PointerRange, where slot is the lowest one not held by another
// open connection. A lone client sees its own ids unchanged.
const PointerRange = 1000

var errMissingType = errors.New("pointer message needs a type")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// PointerMessage is a pointer event sent by a client. Timestamps are taken
// from the server clock on arrival.
type PointerMessage struct {
	Type        session.EventType `json:"type"`
	Pointer     int               `json:"pointer"`
	X           float64           `json:"x"`
	Y           float64           `json:"y"`
	Pressure    *float64          `json:"pressure,omitempty"`
	Radius      float64           `json:"radius,omitempty"`
	RadiusMajor float64           `json:"radius_major,omitempty"`
	RadiusMinor float64           `json:"radius_minor,omitempty"`
	Orientation float64           `json:"orientation,omitempty"`
}

// Event converts the message to a session event. A missing pressure reads
// as full pressure.
func (m PointerMessage) Event() session.Event {
	pressure := 1.0
	if m.Pressure != nil {
		pressure = *m.Pressure
	}
	return session.Event{
		Type:        m.Type,
		PointerID:   m.Pointer,
		Position:    gesture.Vec2{X: m.X, Y: m.Y},
		Pressure:    pressure,
		Radius:      m.Radius,
		RadiusMajor: m.RadiusMajor,
		RadiusMinor: m.RadiusMinor,
		Orientation: m.Orientation,
	}
}

// ServerMessage is sent to clients: the session status on connect, every
// recognized gesture, and errors for rejected messages.
type ServerMessage struct {
	Type    string          `json:"type"`
	Status  *app.Status     `json:"status,omitempty"`
	Gesture *gesture.Result `json:"gesture,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// SessionHandler feeds pointer events from websocket clients into the app
// and streams recognized gestures back to every client. Clients share one
// gesture session; their pointer ids are kept apart by slot, so fingers from
// two clients can still form a multi-touch contact together.
type SessionHandler struct {
	app *app.App
	log *slog.Logger

	mu    sync.Mutex
	slots map[int]bool
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(a *app.App, log *slog.Logger) *SessionHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SessionHandler{app: a, log: log, slots: make(map[int]bool)}
}

func (h *SessionHandler) claimSlot() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	slot := 0
	for h.slots[slot] {
		slot++
	}
	h.slots[slot] = true
	return slot
}

// releaseSlot cancels the pointers a client left down and frees its slot.
// The cancels are queued before the slot can be claimed again.
func (h *SessionHandler) releaseSlot(slot int, down map[int]bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range down {
		h.app.Submit(session.Cancel(slot*PointerRange + id))
	}
	delete(h.slots, slot)
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slot := h.claimSlot()
	base := slot * PointerRange
	// pointers this client pressed and has not lifted
	down := make(map[int]bool)
	defer h.releaseSlot(slot, down)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	results, cancel := h.app.Subscribe()
	defer cancel()

	out := make(chan ServerMessage, outBuffer)
	done := make(chan struct{})
	go h.writeLoop(conn, results, out, done)

	st := h.app.Status()
	send(out, done, ServerMessage{Type: "status", Status: &st})

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket closed", "error", err)
			}
			return
		}

		var msg PointerMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == 0 {
			if err == nil {
				err = errMissingType
			}
			// a malformed message is reported and the session goes on
			if !send(out, done, ServerMessage{Type: "error", Error: err.Error()}) {
				return
			}
			continue
		}

		if msg.Pointer < 0 || msg.Pointer >= PointerRange {
			err := fmt.Errorf("pointer %d outside 0..%d", msg.Pointer, PointerRange-1)
			if !send(out, done, ServerMessage{Type: "error", Error: err.Error()}) {
				return
			}
			continue
		}

		ev := msg.Event()
		ev.PointerID += base
		if err := h.app.Submit(ev); err != nil {
			send(out, done, ServerMessage{Type: "error", Error: err.Error()})
			return
		}
		switch msg.Type {
		case session.EventDown:
			down[msg.Pointer] = true
		case session.EventUp, session.EventCancel:
			delete(down, msg.Pointer)
		}
	}
}

// writeLoop is the connection's only writer. It exits when the subscription
// closes or a write fails, closing the connection so the reader stops too.
func (h *SessionHandler) writeLoop(conn *websocket.Conn, results <-chan gesture.Result, out <-chan ServerMessage, done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(done)
		conn.Close()
	}()

	write := func(msg ServerMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			h.log.Debug("websocket write failed", "error", err)
			return false
		}
		return true
	}

	for {
		select {
		case res, ok := <-results:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session stopped"))
				return
			}
			if !write(ServerMessage{Type: "gesture", Gesture: &res}) {
				return
			}
		case msg := <-out:
			if !write(msg) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func send(out chan<- ServerMessage, done <-chan struct{}, msg ServerMessage) bool {
	select {
	case out <- msg:
		return true
	case <-done:
		return false
	}
}
