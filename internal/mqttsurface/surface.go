package mqttsurface

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sjawhar/panner/internal/content"
	"github.com/sjawhar/panner/internal/session"
)

// Broker is the subset of the MQTT client the surface needs.
type Broker interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
}

// Message is the retained state published to <topic>/session.
type Message struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id"`
	Item      *content.Item `json:"item,omitempty"`
	KeepAwake bool          `json:"keep_awake,omitempty"`
	Loop      bool          `json:"loop,omitempty"`
	Timestamp string        `json:"timestamp"`
}

// Surface presents sessions to remote displays over MQTT.
type Surface struct {
	broker Broker
	topic  string
	log    *zap.Logger
}

func New(broker Broker, topic string, log *zap.Logger) *Surface {
	if log == nil {
		log = zap.NewNop()
	}
	topic = strings.TrimRight(strings.TrimSpace(topic), "/")
	if topic == "" {
		topic = "panner"
	}
	return &Surface{broker: broker, topic: topic, log: log}
}

func (s *Surface) SessionTopic() string { return s.topic + "/session" }

func (s *Surface) CloseTopic() string { return s.topic + "/close" }

func (s *Surface) Display(_ context.Context, sess session.Session) error {
	item := sess.Item
	return s.publish(Message{
		Type:      "display",
		SessionID: sess.ID,
		Item:      &item,
		KeepAwake: sess.KeepAwake,
		Loop:      sess.Loop,
		Timestamp: stamp(sess.OpenedAt),
	})
}

func (s *Surface) Dismiss(_ context.Context, sessionID string) error {
	return s.publish(Message{
		Type:      "dismiss",
		SessionID: sessionID,
		Timestamp: stamp(time.Time{}),
	})
}

// Listen forwards close requests from <topic>/close. A payload is either a
// JSON object carrying session_id or the bare ID.
func (s *Surface) Listen(onClose func(sessionID string)) error {
	return s.broker.Subscribe(s.CloseTopic(), 1, func(_ string, payload []byte) {
		id := closeSessionID(payload)
		if id == "" {
			s.log.Debug("ignoring empty close request")
			return
		}
		onClose(id)
	})
}

func (s *Surface) publish(msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", msg.Type, err)
	}
	if err := s.broker.Publish(s.SessionTopic(), 0, true, payload); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Type, err)
	}
	return nil
}

func closeSessionID(payload []byte) string {
	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "{") {
		var req struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return ""
		}
		return strings.TrimSpace(req.SessionID)
	}
	return trimmed
}

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}
