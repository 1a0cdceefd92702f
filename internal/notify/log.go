package notify

import (
	"context"
	"log"
	"strconv"
	"sync/atomic"

	"github.com/i474232898/weather-extraction/internal/extraction"
)

// LogPublisher writes notifications to the process log. It is used for
// local runs where no notification service is configured.
type LogPublisher struct {
	seq atomic.Int64
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(_ context.Context, topic, message string) (extraction.DeliveryResult, error) {
	id := strconv.FormatInt(p.seq.Add(1), 10)
	log.Printf("NOTIFY [%s] %s: %s", topic, id, message)
	return extraction.DeliveryResult{MessageID: id, Topic: topic}, nil
}
