package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/JulesNsenda/chakucart/internal/orders/domain"
)

const defaultPublishTimeout = 15 * time.Second

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// PubSubEventBus publishes order events to a single Pub/Sub topic. Messages are ordered per order.
type PubSubEventBus struct {
	client    *gcppubsub.Client
	topic     *gcppubsub.Publisher
	publisher publisher
	timeout   time.Duration
}

// NewPubSubEventBus connects to Pub/Sub and prepares a publisher for topic. topic may be a topic
// ID or a full projects/<p>/topics/<t> resource name.
func NewPubSubEventBus(ctx context.Context, projectID, topic string) (*PubSubEventBus, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, errors.New("gcp project id is required")
	}
	name := topicResourceName(projectID, topic)
	if name == "" {
		return nil, errors.New("pubsub topic is required")
	}

	client, err := gcppubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	topicPublisher := client.Publisher(name)
	topicPublisher.EnableMessageOrdering = true

	return &PubSubEventBus{
		client:    client,
		topic:     topicPublisher,
		publisher: &gcpPublisher{Publisher: topicPublisher},
		timeout:   defaultPublishTimeout,
	}, nil
}

func newPubSubEventBus(p publisher, timeout time.Duration) *PubSubEventBus {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &PubSubEventBus{publisher: p, timeout: timeout}
}

func (b *PubSubEventBus) Publish(ctx context.Context, event domain.OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	msg := &gcppubsub.Message{
		Data:        payload,
		OrderingKey: event.OrderID,
		Attributes: map[string]string{
			"event_type":  event.Type,
			"order_id":    event.OrderID,
			"occurred_at": event.OccurredAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	result := b.publisher.Publish(publishCtx, msg)
	if result == nil {
		return fmt.Errorf("publish %s: publisher returned no result", event.Type)
	}
	if _, err := result.Get(publishCtx); err != nil {
		// An ordered publisher pauses the key after a failure.
		if b.topic != nil {
			b.topic.ResumePublish(event.OrderID)
		}
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Close flushes pending messages and releases the client.
func (b *PubSubEventBus) Close() error {
	if b.topic != nil {
		b.topic.Stop()
	}
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}

func topicResourceName(projectID, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/") {
		return n
	}
	return fmt.Sprintf("projects/%s/topics/%s", projectID, n)
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}
