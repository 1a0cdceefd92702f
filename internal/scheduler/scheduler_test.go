package scheduler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/i474232898/weather-extraction/internal/extraction"
)

func TestToStandardCron(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "cron(5 0 * * ? *)", want: "5 0 * * *"},
		{in: "cron(0,30 * * * ? *)", want: "0,30 * * * *"},
		{in: "*/15 * * * *", want: "*/15 * * * *"},
		{in: "cron(0 12 * * ? 2030)", wantErr: true},
		{in: "cron(0 12 * * ?)", wantErr: true},
		{in: "cron(0 12 * * ? *", wantErr: true},
		{in: "rate(5 minutes)", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ToStandardCron(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("%s: got %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func newTestScheduler() *RuleScheduler {
	s := New()
	s.now = func() time.Time { return time.Date(2024, 4, 26, 10, 10, 0, 0, time.UTC) }
	return s
}

func TestPutRuleSchedulesRegisteredJob(t *testing.T) {
	s := newTestScheduler()
	s.Register("extraction-schedule", func() {})

	res, err := s.PutRule(context.Background(), "extraction-schedule", "cron(0,30 * * * ? *)", extraction.RuleEnabled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", res.StatusCode, res.Message)
	}
	want := time.Date(2024, 4, 26, 10, 30, 0, 0, time.UTC)
	if !res.NextRun.Equal(want) {
		t.Fatalf("expected next run %s, got %s", want, res.NextRun)
	}
	if s.scheduler.Len() != 1 {
		t.Fatalf("expected 1 job, got %d", s.scheduler.Len())
	}

	// Rescheduling replaces the job instead of adding another one.
	res, err = s.PutRule(context.Background(), "extraction-schedule", "cron(5 0 * * ? *)", extraction.RuleEnabled)
	if err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("unexpected result %+v, %v", res, err)
	}
	if s.scheduler.Len() != 1 {
		t.Fatalf("expected 1 job after reschedule, got %d", s.scheduler.Len())
	}
	if want := time.Date(2024, 4, 27, 0, 5, 0, 0, time.UTC); !res.NextRun.Equal(want) {
		t.Fatalf("expected next run %s, got %s", want, res.NextRun)
	}

	rule, ok := s.Rule("extraction-schedule")
	if !ok || rule.Expression != "cron(5 0 * * ? *)" {
		t.Fatalf("unexpected stored rule %+v", rule)
	}
}

func TestPutRuleDisabled(t *testing.T) {
	s := newTestScheduler()
	s.Register("r", func() {})

	if _, err := s.PutRule(context.Background(), "r", "cron(5 0 * * ? *)", extraction.RuleEnabled); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := s.PutRule(context.Background(), "r", "cron(5 0 * * ? *)", extraction.RuleDisabled)
	if err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("unexpected result %+v, %v", res, err)
	}
	if s.scheduler.Len() != 0 {
		t.Fatalf("expected no jobs, got %d", s.scheduler.Len())
	}
}

func TestPutRuleRejections(t *testing.T) {
	s := newTestScheduler()
	s.Register("r", func() {})

	res, err := s.PutRule(context.Background(), "missing", "cron(5 0 * * ? *)", extraction.RuleEnabled)
	if err != nil || res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %+v, %v", res, err)
	}

	res, err = s.PutRule(context.Background(), "r", "cron(61 0 * * ? *)", extraction.RuleEnabled)
	if err != nil || res.StatusCode != http.StatusBadRequest || res.Message == "" {
		t.Fatalf("expected 400 with message, got %+v, %v", res, err)
	}

	res, err = s.PutRule(context.Background(), "r", "every five minutes", extraction.RuleEnabled)
	if err != nil || res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %+v, %v", res, err)
	}
	if s.scheduler.Len() != 0 {
		t.Fatalf("rejected rules must not schedule jobs, got %d", s.scheduler.Len())
	}
}

func TestCadenceControllerDrivesScheduler(t *testing.T) {
	s := newTestScheduler()
	s.Register("extraction-schedule", func() {})

	reporter := extraction.NewFailureReporter(nopPublisher{})
	ctrl := extraction.NewCadenceController(s, reporter, "extraction-schedule", "ops")

	res, err := ctrl.SetCadence(context.Background(), extraction.CadenceFrequent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != http.StatusOK || ctrl.Current() != extraction.CadenceFrequent {
		t.Fatalf("unexpected result %+v, current %s", res, ctrl.Current())
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(_ context.Context, topic, _ string) (extraction.DeliveryResult, error) {
	return extraction.DeliveryResult{MessageID: "1", Topic: topic}, nil
}
