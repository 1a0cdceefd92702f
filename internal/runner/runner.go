package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/i474232898/weather-extraction/internal/extraction"
	"github.com/i474232898/weather-extraction/internal/store"
)

// ErrActivationInProgress is returned when an activation is requested while
// another one is still running.
var ErrActivationInProgress = errors.New("activation already in progress")

// Ledger persists the daily budget between activations.
type Ledger interface {
	LoadQuota(ctx context.Context, rule string) (store.QuotaRecord, error)
	SaveQuota(ctx context.Context, rule string, rec store.QuotaRecord) error
}

// Limits are the provider's request allowances. Hourly is nil when the
// provider has no hourly window.
type Limits struct {
	Daily    float64
	Hourly   *float64
	ByMinute float64
}

// Runner is the caller side of the activation contract: it supplies the
// quota snapshot, runs the service and carries daily_left forward.
type Runner struct {
	service *extraction.Service
	ledger  Ledger
	base    extraction.ActivationInput
	limits  Limits
	now     func() time.Time

	mu sync.Mutex
}

// New creates a Runner. base holds the bucket, key, topic and rule settings;
// its quota fields are filled on every activation.
func New(service *extraction.Service, ledger Ledger, base extraction.ActivationInput, limits Limits) *Runner {
	return &Runner{
		service: service,
		ledger:  ledger,
		base:    base,
		limits:  limits,
		now:     time.Now,
	}
}

// Activate runs one scheduled activation with the carried-over daily budget.
func (r *Runner) Activate(ctx context.Context) (extraction.ActivationResult, error) {
	if !r.mu.TryLock() {
		return extraction.ActivationResult{}, ErrActivationInProgress
	}
	defer r.mu.Unlock()

	day := r.now().UTC().Format(time.DateOnly)
	in, err := r.input(ctx, day)
	if err != nil {
		return extraction.ActivationResult{}, err
	}

	res, runErr := r.service.Run(ctx, in)

	rec := store.QuotaRecord{DailyLeft: res.DailyLeft, Day: day, UpdatedAt: r.now().UTC()}
	if err := r.ledger.SaveQuota(ctx, r.ruleKey(), rec); err != nil {
		log.Printf("ERROR: runner: failed to save daily_left: %v", err)
		return res, errors.Join(runErr, fmt.Errorf("save quota: %w", err))
	}
	return res, runErr
}

// Run performs an activation with an explicit input. The ledger is not
// consulted.
func (r *Runner) Run(ctx context.Context, in extraction.ActivationInput) (extraction.ActivationResult, error) {
	if !r.mu.TryLock() {
		return extraction.ActivationResult{}, ErrActivationInProgress
	}
	defer r.mu.Unlock()
	return r.service.Run(ctx, in)
}

// Service returns the wrapped activation service.
func (r *Runner) Service() *extraction.Service {
	return r.service
}

func (r *Runner) input(ctx context.Context, day string) (extraction.ActivationInput, error) {
	in := r.base
	in.DailyLeft = r.limits.Daily
	in.ByMinuteLeft = r.limits.ByMinute
	if r.limits.Hourly != nil {
		h := *r.limits.Hourly
		in.HourlyLeft = &h
	}

	rec, err := r.ledger.LoadQuota(ctx, r.ruleKey())
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Printf("INFO: runner: no saved quota, starting with daily_left=%v", in.DailyLeft)
	case err != nil:
		return in, fmt.Errorf("load quota: %w", err)
	case rec.Day != day:
		log.Printf("INFO: runner: new day %s, daily budget reset to %v", day, in.DailyLeft)
	default:
		in.DailyLeft = rec.DailyLeft
	}
	return in, nil
}

func (r *Runner) ruleKey() string {
	if r.base.SchedulingRuleName != "" {
		return r.base.SchedulingRuleName
	}
	return "default"
}
