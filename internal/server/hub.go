package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sjawhar/panner/internal/session"
)

// Hub fans events out to connected overlays and is the websocket
// presentation surface. The last display event is replayed to new clients
// until its session is dismissed.
type Hub struct {
	log *zap.Logger

	mu      sync.RWMutex
	clients map[chan []byte]struct{}
	current []byte
	showing string
	onClose func(sessionID string)
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{log: log, clients: make(map[chan []byte]struct{})}
}

// Subscribe registers a client. The current display, if any, is queued first.
func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	if h.current != nil {
		ch <- h.current
	}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// OnClose registers the handler for close requests sent by overlays.
func (h *Hub) OnClose(fn func(sessionID string)) {
	h.mu.Lock()
	h.onClose = fn
	h.mu.Unlock()
}

func (h *Hub) handleClose(sessionID string) {
	h.mu.RLock()
	fn := h.onClose
	h.mu.RUnlock()
	if fn != nil && sessionID != "" {
		fn(sessionID)
	}
}

func (h *Hub) Display(_ context.Context, s session.Session) error {
	payload, err := json.Marshal(DisplayEvent{
		Event:     newEvent("display", s.OpenedAt),
		SessionID: s.ID,
		Item:      s.Item,
		MediaURL:  mediaURL(s.Item),
		KeepAwake: s.KeepAwake,
		Loop:      s.Loop,
	})
	if err != nil {
		return fmt.Errorf("marshal display event: %w", err)
	}

	h.mu.Lock()
	h.current = payload
	h.showing = s.ID
	h.mu.Unlock()

	h.Broadcast(payload)
	return nil
}

func (h *Hub) Dismiss(_ context.Context, sessionID string) error {
	h.mu.Lock()
	if h.showing == sessionID {
		h.current = nil
		h.showing = ""
	}
	h.mu.Unlock()

	h.broadcastEvent(DismissEvent{
		Event:     newEvent("dismiss", time.Now().UTC()),
		SessionID: sessionID,
	})
	return nil
}

func (h *Hub) BroadcastNotice(message string) {
	h.broadcastEvent(NoticeEvent{
		Event:   newEvent("notice", time.Now().UTC()),
		Message: message,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("event marshal error", zap.Error(err))
		return
	}
	h.Broadcast(payload)
}
