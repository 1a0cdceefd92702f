package extraction

import (
	"context"
	"fmt"
	"log"
)

// FailureReporter forwards operator diagnostics to a notification channel.
type FailureReporter struct {
	publisher Publisher
}

// NewFailureReporter creates a reporter on top of publisher.
func NewFailureReporter(publisher Publisher) *FailureReporter {
	return &FailureReporter{publisher: publisher}
}

// Report publishes message to channel. Transport failures are returned to
// the caller; there is no fallback channel.
func (r *FailureReporter) Report(ctx context.Context, channel, message string) (DeliveryResult, error) {
	log.Printf("INFO: reporting to %s: %s", channel, message)

	res, err := r.publisher.Publish(ctx, channel, message)
	if err != nil {
		log.Printf("ERROR: failed to deliver report to %s: %v", channel, err)
		return DeliveryResult{}, fmt.Errorf("report to %s: %w", channel, err)
	}
	return res, nil
}
