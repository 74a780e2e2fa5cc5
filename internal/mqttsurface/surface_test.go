package mqttsurface

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sjawhar/panner/internal/content"
	"github.com/sjawhar/panner/internal/session"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type brokerMock struct {
	published []published
	handlers  map[string]func(string, []byte)
	err       error
}

func (b *brokerMock) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, published{topic, qos, retained, payload})
	return nil
}

func (b *brokerMock) Subscribe(topic string, _ byte, handler func(string, []byte)) error {
	if b.handlers == nil {
		b.handlers = map[string]func(string, []byte){}
	}
	b.handlers[topic] = handler
	return nil
}

func TestDisplayPublishesRetainedState(t *testing.T) {
	broker := &brokerMock{}
	s := New(broker, "home/panner/", nil)

	item := content.TextItem(content.TextGroup{Text: "Trust in the LORD", Reference: "Proverbs 3:5", Group: "Proverbs", Units: 1})
	if err := s.Display(context.Background(), session.Session{ID: "s1", Item: item, KeepAwake: true}); err != nil {
		t.Fatalf("Display failed: %v", err)
	}
	if err := s.Dismiss(context.Background(), "s1"); err != nil {
		t.Fatalf("Dismiss failed: %v", err)
	}

	if len(broker.published) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(broker.published))
	}
	for _, p := range broker.published {
		if p.topic != "home/panner/session" || !p.retained || p.qos != 0 {
			t.Fatalf("unexpected publish %+v", p)
		}
	}

	var display Message
	if err := json.Unmarshal(broker.published[0].payload, &display); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if display.Type != "display" || display.SessionID != "s1" || !display.KeepAwake {
		t.Fatalf("unexpected display message %#v", display)
	}
	if display.Item == nil || display.Item.Text == nil || display.Item.Text.Reference != "Proverbs 3:5" {
		t.Fatalf("expected text item in message, got %#v", display.Item)
	}

	var dismiss Message
	if err := json.Unmarshal(broker.published[1].payload, &dismiss); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if dismiss.Type != "dismiss" || dismiss.Item != nil {
		t.Fatalf("unexpected dismiss message %#v", dismiss)
	}
}

func TestDisplayReportsBrokerErrors(t *testing.T) {
	s := New(&brokerMock{err: errors.New("not connected")}, "", nil)
	if err := s.Display(context.Background(), session.Session{ID: "s1"}); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestListenForwardsCloseRequests(t *testing.T) {
	broker := &brokerMock{}
	s := New(broker, "", nil)

	var closed []string
	if err := s.Listen(func(id string) { closed = append(closed, id) }); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	handler := broker.handlers["panner/close"]
	if handler == nil {
		t.Fatalf("expected subscription on panner/close, got %v", broker.handlers)
	}
	handler("panner/close", []byte(`{"session_id":"s1"}`))
	handler("panner/close", []byte(" s2 \n"))
	handler("panner/close", []byte(`{"other":1}`))
	handler("panner/close", []byte(`{broken`))

	if len(closed) != 2 || closed[0] != "s1" || closed[1] != "s2" {
		t.Fatalf("unexpected close requests %v", closed)
	}
}
