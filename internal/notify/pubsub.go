package notify

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/i474232898/weather-extraction/internal/extraction"
)

// PubSubPublisher delivers notifications to Google Cloud Pub/Sub topics.
type PubSubPublisher struct {
	client *pubsub.Client
}

// NewPubSubPublisher wraps an existing Pub/Sub client.
func NewPubSubPublisher(client *pubsub.Client) *PubSubPublisher {
	return &PubSubPublisher{client: client}
}

// Publish sends message to topic and waits for the server to acknowledge it.
// The topic must already exist.
func (p *PubSubPublisher) Publish(ctx context.Context, topic, message string) (extraction.DeliveryResult, error) {
	t := p.client.Topic(topic)
	defer t.Stop()

	result := t.Publish(ctx, &pubsub.Message{
		Data: []byte(message),
		Attributes: map[string]string{
			"source": "weather-extraction",
		},
	})

	id, err := result.Get(ctx)
	if err != nil {
		return extraction.DeliveryResult{}, fmt.Errorf("failed to publish message: %w", err)
	}
	return extraction.DeliveryResult{MessageID: id, Topic: topic}, nil
}
