package extraction

import (
	"context"
	"encoding/json"
	"time"
)

// Retriever abstracts a historical weather source (e.g. Open-Meteo archive).
type Retriever interface {
	Name() string
	Fetch(ctx context.Context, task Task) (json.RawMessage, error)
}

// ObjectStore is the raw object storage the activation reads its tasks
// document from and writes retrieved payloads to.
type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Exists(ctx context.Context, bucket, key string) (bool, error)
	Put(ctx context.Context, bucket, key string, data []byte) error
}

// DeliveryResult describes a published notification.
type DeliveryResult struct {
	MessageID string `json:"message_id"`
	Topic     string `json:"topic"`
}

// Publisher delivers operator notifications.
type Publisher interface {
	Publish(ctx context.Context, topic, message string) (DeliveryResult, error)
}

// RuleState is the desired state of a scheduling rule.
type RuleState string

const (
	RuleEnabled  RuleState = "ENABLED"
	RuleDisabled RuleState = "DISABLED"
)

// RuleResult is what a scheduler returns for a rule mutation. StatusCode
// follows HTTP conventions.
type RuleResult struct {
	StatusCode int       `json:"status_code"`
	RuleName   string    `json:"rule_name"`
	Expression string    `json:"expression"`
	NextRun    time.Time `json:"next_run,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// RuleScheduler mutates the schedule that triggers activations.
type RuleScheduler interface {
	PutRule(ctx context.Context, name, expression string, state RuleState) (RuleResult, error)
}

// Geocoder resolves a place into coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, place Place) (lat, lon float64, err error)
}
