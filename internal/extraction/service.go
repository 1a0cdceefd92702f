package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-extraction/internal/common"
)

// ActivationInput is the per-run input supplied by the scheduler or caller.
type ActivationInput struct {
	TasksBucket        string   `json:"tasks_bucket" validate:"required"`
	TasksFileKey       string   `json:"tasks_file_key" validate:"required"`
	DailyLeft          float64  `json:"daily_left" validate:"gte=0"`
	HourlyLeft         *float64 `json:"hourly_left,omitempty" validate:"omitempty,gte=0"`
	ByMinuteLeft       float64  `json:"by_minute_left" validate:"gte=0"`
	SchedulingRuleName string   `json:"scheduling_rule_name"`
	FailureTopic       string   `json:"failure_topic_arn" validate:"required"`
	RawBucket          string   `json:"raw_bucket" validate:"required"`
}

// UnmarshalJSON accepts hourly_allowed and by_minute_allowed as aliases of
// hourly_left and by_minute_left. daily_left and one of the per-minute keys
// are required: an absent budget is an error, not zero.
func (in *ActivationInput) UnmarshalJSON(data []byte) error {
	type plain ActivationInput
	aux := struct {
		*plain
		DailyLeft       *float64 `json:"daily_left"`
		ByMinuteLeft    *float64 `json:"by_minute_left"`
		HourlyAllowed   *float64 `json:"hourly_allowed"`
		ByMinuteAllowed *float64 `json:"by_minute_allowed"`
	}{plain: (*plain)(in)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var missing []string
	if aux.DailyLeft == nil {
		missing = append(missing, "daily_left")
	} else {
		in.DailyLeft = *aux.DailyLeft
	}
	switch {
	case aux.ByMinuteLeft != nil:
		in.ByMinuteLeft = *aux.ByMinuteLeft
	case aux.ByMinuteAllowed != nil:
		in.ByMinuteLeft = *aux.ByMinuteAllowed
	default:
		missing = append(missing, "by_minute_left")
	}
	if len(missing) > 0 {
		return fmt.Errorf("activation input is missing %s", strings.Join(missing, ", "))
	}

	if in.HourlyLeft == nil {
		in.HourlyLeft = aux.HourlyAllowed
	}
	return nil
}

// Quota returns the quota snapshot carried by the input.
func (in ActivationInput) Quota() QuotaState {
	return QuotaState{
		DailyLeft:    in.DailyLeft,
		HourlyLeft:   in.HourlyLeft,
		ByMinuteLeft: in.ByMinuteLeft,
	}
}

// TaskOutcome records the decision for one task of the batch.
type TaskOutcome struct {
	Service ServiceID `json:"service"`
	Index   int       `json:"index"`
	Outcome Outcome   `json:"outcome"`
	Key     string    `json:"key,omitempty"`
}

// ActivationResult is returned after an activation. DailyLeft is the value
// the caller persists into the next activation.
type ActivationResult struct {
	ID        string         `json:"id"`
	DailyLeft float64        `json:"daily_left"`
	Outcomes  []TaskOutcome  `json:"outcomes"`
	Stored    []string       `json:"stored"`
	Final     Decision       `json:"final"`
	Cadence   *CadenceResult `json:"cadence,omitempty"`
}

// Service runs activations: it reads the tasks document, governs each task
// against the quota, retrieves and stores approved tasks and adjusts the
// cadence.
type Service struct {
	store     ObjectStore
	retriever Retriever
	geocoder  Geocoder
	reporter  *FailureReporter
	cadence   *CadenceController
	pricing   Pricing
	now       func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithPricing overrides DefaultPricing.
func WithPricing(p Pricing) Option {
	return func(s *Service) { s.pricing = p }
}

// WithGeocoder enables resolving tasks that name a place instead of coordinates.
func WithGeocoder(g Geocoder) Option {
	return func(s *Service) { s.geocoder = g }
}

// WithClock overrides the clock used for version suffixes.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new Service.
func NewService(store ObjectStore, retriever Retriever, reporter *FailureReporter, cadence *CadenceController, opts ...Option) *Service {
	s := &Service{
		store:     store,
		retriever: retriever,
		reporter:  reporter,
		cadence:   cadence,
		pricing:   DefaultPricing,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pricing returns the pricing rule used to weigh tasks.
func (s *Service) Pricing() Pricing {
	return s.pricing
}

// Cadence returns the controller the service drives.
func (s *Service) Cadence() *CadenceController {
	return s.cadence
}

// Run performs one activation. Malformed documents or tasks abort the run
// with an error after the failure is reported. Quota exhaustion and empty
// task lists are not errors: they end the run with the matching decision.
// The result is returned alongside any error so the caller can persist
// DailyLeft for what already ran.
func (s *Service) Run(ctx context.Context, in ActivationInput) (ActivationResult, error) {
	res := ActivationResult{
		ID:        uuid.NewString(),
		DailyLeft: in.DailyLeft,
	}

	if err := validate.Struct(in); err != nil {
		return res, fmt.Errorf("invalid activation input: %w", err)
	}

	log.Printf("INFO: activation %s: daily_left=%s by_minute_left=%s",
		res.ID, common.Display(in.DailyLeft), common.Display(in.ByMinuteLeft))

	raw, err := s.store.Get(ctx, in.TasksBucket, in.TasksFileKey)
	if err != nil {
		return res, fmt.Errorf("read tasks document %s/%s: %w", in.TasksBucket, in.TasksFileKey, err)
	}

	batch, err := ValidateBatch(raw)
	if err != nil {
		return res, s.fail(ctx, in, err)
	}

	quota := in.Quota()
	for _, name := range batch.ServiceNames() {
		if !name.Known() {
			log.Printf("INFO: activation %s: skipping unsupported service %q", res.ID, name)
			continue
		}

		tasks := batch.Services[name].Tasks
		if len(tasks) == 0 {
			res.Outcomes = append(res.Outcomes, TaskOutcome{Service: name, Index: -1, Outcome: NoTasks()})
			res.Final = RejectNoTasks
			msg := fmt.Sprintf("activation %s: no tasks for service %s, reverting to default cadence", res.ID, name)
			return res, s.stop(ctx, in, &res, msg)
		}

		for i, task := range tasks {
			to, err := s.runTask(ctx, in, &quota, name, i, task)
			res.DailyLeft = quota.DailyLeft
			if err != nil {
				return res, s.fail(ctx, in, err)
			}
			res.Outcomes = append(res.Outcomes, to)
			res.Final = to.Outcome.Decision

			switch to.Outcome.Decision {
			case Proceed:
				res.Stored = append(res.Stored, to.Key)
				continue
			case DeferMinuteExhausted:
				msg := fmt.Sprintf("activation %s: %s cannot be processed, weight %s exceeds the per-minute allowance %s",
					res.ID, task, common.Display(to.Outcome.Weight), common.Display(quota.ByMinuteLeft))
				return res, s.stop(ctx, in, &res, msg)
			default:
				msg := fmt.Sprintf("activation %s: api request limit reached, %s needs %s but only %s is left",
					res.ID, task, common.Display(to.Outcome.Weight), common.Display(to.Outcome.Minimal))
				return res, s.stop(ctx, in, &res, msg)
			}
		}
	}

	if res.Final == Proceed {
		if err := s.applyCadence(ctx, &res, Proceed); err != nil {
			return res, err
		}
	}
	log.Printf("INFO: activation %s: completed, %d objects stored, daily_left=%s",
		res.ID, len(res.Stored), common.Display(res.DailyLeft))
	return res, nil
}

func (s *Service) runTask(ctx context.Context, in ActivationInput, quota *QuotaState, name ServiceID, i int, task Task) (TaskOutcome, error) {
	to := TaskOutcome{Service: name, Index: i}

	task, err := s.resolve(ctx, task)
	if err != nil {
		return to, err
	}

	weight, err := s.pricing.Weight(task)
	if err != nil {
		return to, err
	}

	out, next := Evaluate(weight, *quota)
	to.Outcome = out
	log.Printf("DEBUG: %s task %d weight=%s minimal=%s decision=%s",
		name, i, common.Display(weight), common.Display(out.Minimal), out.Decision)
	if out.Decision != Proceed {
		return to, nil
	}

	payload, err := s.retriever.Fetch(ctx, task)
	if err != nil {
		if !errors.Is(err, ErrProvider) {
			err = newError(KindProvider, err, "%s fetch failed for %s", s.retriever.Name(), task)
		}
		return to, err
	}

	key, err := PutUnique(ctx, s.store, in.RawBucket, RawObjectKey(name, task), payload, s.now())
	if err != nil {
		return to, err
	}
	to.Key = key
	*quota = next
	return to, nil
}

func (s *Service) resolve(ctx context.Context, task Task) (Task, error) {
	if !task.HasCoordinates() {
		if task.Place == nil {
			return task, newError(KindMalformedTask, nil, "%s has neither coordinates nor place", task)
		}
		if s.geocoder == nil {
			return task, newError(KindMalformedTask, nil, "%s names place %q but no geocoder is configured", task, task.Place.City)
		}
		lat, lon, err := s.geocoder.Resolve(ctx, *task.Place)
		if err != nil {
			return task, newError(KindProvider, err, "resolve place %q", task.Place.City)
		}
		la, lo := Decimal(lat), Decimal(lon)
		task.Latitude, task.Longitude = &la, &lo
	}

	coords := struct {
		Latitude  float64 `json:"latitude" validate:"latitude"`
		Longitude float64 `json:"longitude" validate:"longitude"`
	}{float64(*task.Latitude), float64(*task.Longitude)}
	if err := validate.Struct(coords); err != nil {
		return task, newError(KindMalformedTask, err, "%s has invalid coordinates", task)
	}
	return task, nil
}

// stop ends the run on a non-Proceed decision: the operator is notified and
// the cadence adjusted where the decision calls for it.
func (s *Service) stop(ctx context.Context, in ActivationInput, res *ActivationResult, msg string) error {
	log.Printf("INFO: %s", msg)
	var errs []error
	if _, err := s.reporter.Report(ctx, in.FailureTopic, msg); err != nil {
		errs = append(errs, err)
	}
	if err := s.applyCadence(ctx, res, res.Final); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Service) applyCadence(ctx context.Context, res *ActivationResult, d Decision) error {
	mode, ok := CadenceFor(d)
	if !ok || s.cadence == nil {
		return nil
	}
	cr, err := s.cadence.SetCadence(ctx, mode)
	res.Cadence = &cr
	return err
}

// fail reports err to the operator and returns it, joined with the
// notification error if the report could not be delivered.
func (s *Service) fail(ctx context.Context, in ActivationInput, err error) error {
	log.Printf("ERROR: activation failed: %v", err)
	if _, repErr := s.reporter.Report(ctx, in.FailureTopic, err.Error()); repErr != nil {
		return errors.Join(err, repErr)
	}
	return err
}
