package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/robfig/cron/v3"

	"github.com/i474232898/weather-extraction/internal/extraction"
)

// RuleScheduler runs registered jobs on rule expressions that can be
// changed at runtime. It is the in-process counterpart of a managed
// scheduling service.
type RuleScheduler struct {
	scheduler *gocron.Scheduler

	mu    sync.Mutex
	jobs  map[string]func()
	rules map[string]extraction.RuleResult
	now   func() time.Time
}

// New creates a RuleScheduler running in UTC. Overlapping runs of the same
// job are skipped.
func New() *RuleScheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &RuleScheduler{
		scheduler: s,
		jobs:      make(map[string]func()),
		rules:     make(map[string]extraction.RuleResult),
		now:       time.Now,
	}
}

// Register associates job with a rule name. A rule must be registered
// before PutRule can schedule it.
func (s *RuleScheduler) Register(name string, job func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[name] = job
}

// PutRule (re)schedules the job registered under name at expression.
// Disabling a rule removes its job. Invalid expressions and unknown rules are
// reported through the result's status code, not as errors.
func (s *RuleScheduler) PutRule(ctx context.Context, name, expression string, state extraction.RuleState) (extraction.RuleResult, error) {
	res := extraction.RuleResult{RuleName: name, Expression: expression}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[name]
	if !ok {
		res.StatusCode = http.StatusNotFound
		res.Message = fmt.Sprintf("rule %s does not exist", name)
		return res, nil
	}

	spec, err := ToStandardCron(expression)
	if err != nil {
		res.StatusCode = http.StatusBadRequest
		res.Message = err.Error()
		return res, nil
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		res.StatusCode = http.StatusBadRequest
		res.Message = fmt.Sprintf("invalid schedule expression %s: %v", expression, err)
		return res, nil
	}

	if err := s.scheduler.RemoveByTag(name); err != nil && !errors.Is(err, gocron.ErrJobNotFoundWithTag) {
		res.StatusCode = http.StatusInternalServerError
		return res, fmt.Errorf("remove rule %s: %w", name, err)
	}

	switch state {
	case extraction.RuleDisabled:
		log.Printf("INFO: scheduler: rule %s disabled", name)
	default:
		if _, err := s.scheduler.Cron(spec).Tag(name).Do(job); err != nil {
			res.StatusCode = http.StatusInternalServerError
			return res, fmt.Errorf("schedule rule %s: %w", name, err)
		}
		res.NextRun = sched.Next(s.now().UTC())
		log.Printf("INFO: scheduler: rule %s scheduled at %q, next run %s", name, spec, res.NextRun.Format(time.RFC3339))
	}

	res.StatusCode = http.StatusOK
	s.rules[name] = res
	return res, nil
}

// Rule returns the last accepted state of a rule.
func (s *RuleScheduler) Rule(name string) (extraction.RuleResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[name]
	return r, ok
}

// Start runs the scheduler in the background.
func (s *RuleScheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and cancels any future jobs.
func (s *RuleScheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// ToStandardCron converts a six-field rule expression of the form
// cron(min hour dom month dow year) into a five-field cron spec. The year
// field must be "*" and "?" is read as "*". Five-field specs pass through.
func ToStandardCron(expression string) (string, error) {
	expr := strings.TrimSpace(expression)
	if !strings.HasPrefix(expr, "cron(") {
		if len(strings.Fields(expr)) == 5 {
			return expr, nil
		}
		return "", fmt.Errorf("unsupported schedule expression %q", expression)
	}
	if !strings.HasSuffix(expr, ")") {
		return "", fmt.Errorf("unterminated schedule expression %q", expression)
	}

	fields := strings.Fields(strings.TrimSuffix(strings.TrimPrefix(expr, "cron("), ")"))
	if len(fields) != 6 {
		return "", fmt.Errorf("schedule expression %q must have 6 fields, got %d", expression, len(fields))
	}
	if fields[5] != "*" {
		return "", fmt.Errorf("schedule expression %q: only '*' is supported for year", expression)
	}

	for i, f := range fields[:5] {
		if f == "?" {
			fields[i] = "*"
		}
	}
	return strings.Join(fields[:5], " "), nil
}
