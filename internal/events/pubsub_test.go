package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/JulesNsenda/chakucart/internal/orders/domain"
)

type fakePublishResult struct {
	err error
}

func (r fakePublishResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "msg-1", nil
}

type fakePublisher struct {
	results  []fakePublishResult
	messages []*gcppubsub.Message
}

func (p *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	p.messages = append(p.messages, msg)
	if len(p.results) == 0 {
		return fakePublishResult{}
	}
	res := p.results[0]
	p.results = p.results[1:]
	return res
}

func sampleEvent() domain.OrderEvent {
	return domain.OrderEvent{
		Type:       "order.delivered",
		OrderID:    "order-7",
		OwnerEmail: "ada@example.com",
		From:       domain.StatusPending,
		To:         domain.StatusDelivered,
		OccurredAt: time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC),
	}
}

func TestPubSubEventBusPublish(t *testing.T) {
	pub := &fakePublisher{}
	bus := newPubSubEventBus(pub, time.Second)

	if err := bus.Publish(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(pub.messages))
	}

	msg := pub.messages[0]
	if msg.OrderingKey != "order-7" {
		t.Errorf("OrderingKey = %q", msg.OrderingKey)
	}
	if msg.Attributes["event_type"] != "order.delivered" {
		t.Errorf("event_type attribute = %q", msg.Attributes["event_type"])
	}

	var decoded domain.OrderEvent
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded.To != domain.StatusDelivered || decoded.OrderID != "order-7" {
		t.Errorf("unexpected payload: %+v", decoded)
	}
}

func TestPubSubEventBusPublishError(t *testing.T) {
	transient := errors.New("transient")
	bus := newPubSubEventBus(&fakePublisher{results: []fakePublishResult{{err: transient}}}, time.Second)

	if err := bus.Publish(context.Background(), sampleEvent()); !errors.Is(err, transient) {
		t.Fatalf("expected wrapped transient error, got %v", err)
	}
}

func TestTopicResourceName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "short id", in: "orders", want: "projects/p1/topics/orders"},
		{name: "full name", in: "projects/other/topics/orders", want: "projects/other/topics/orders"},
		{name: "blank", in: "  ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := topicResourceName("p1", tt.in); got != tt.want {
				t.Errorf("topicResourceName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
