package server

import (
	"time"

	"github.com/sjawhar/panner/internal/content"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

// DisplayEvent asks every overlay to show a session.
type DisplayEvent struct {
	Event
	SessionID string       `json:"session_id"`
	Item      content.Item `json:"item"`
	MediaURL  string       `json:"media_url,omitempty"`
	KeepAwake bool         `json:"keep_awake"`
	Loop      bool         `json:"loop"`
}

type DismissEvent struct {
	Event
	SessionID string `json:"session_id"`
}

// NoticeEvent is a transient message such as "Library Empty".
type NoticeEvent struct {
	Event
	Message string `json:"message"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

// CloseRequest is the only message overlays send back.
type CloseRequest struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}

func mediaURL(item content.Item) string {
	if item.Kind != content.KindMedia || item.Media == nil {
		return ""
	}
	return "/api/media/" + item.Media.ID
}
