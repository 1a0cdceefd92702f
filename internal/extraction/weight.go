package extraction

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report document key names rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Pricing describes how the provider charges fractional calls.
// A request costs (weeks/WeeksPerBlock) * CallsPerBlock * features*CallsPerFeature.
type Pricing struct {
	CallsPerFeature float64 `json:"calls_per_feature" yaml:"calls_per_feature"`
	WeeksPerBlock   float64 `json:"weeks_per_block" yaml:"weeks_per_block"`
	CallsPerBlock   float64 `json:"calls_per_block" yaml:"calls_per_block"`
}

var (
	// DefaultPricing matches the provider's published archive charges:
	// 14 variables over 25 days cost 2.5 calls.
	DefaultPricing = Pricing{CallsPerFeature: 0.1, WeeksPerBlock: 2, CallsPerBlock: 1}

	// QuarterPricing charges 3 calls per 4 weeks.
	QuarterPricing = Pricing{CallsPerFeature: 0.1, WeeksPerBlock: 4, CallsPerBlock: 3}
)

// pricedFields are the task keys a weight depends on.
type pricedFields struct {
	HourlyFeatures []string `json:"hourly_features" validate:"required,min=1"`
	DailyFeatures  []string `json:"daily_features" validate:"required"`
	StartDate      string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate        string   `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// Weight computes the task cost under DefaultPricing.
func Weight(task Task) (float64, error) {
	return DefaultPricing.Weight(task)
}

// Weight computes the fractional request cost of task. The day count is the
// plain difference end-start, without an inclusive adjustment. No rounding
// is applied.
func (p Pricing) Weight(task Task) (float64, error) {
	start, end, err := taskSpan(task)
	if err != nil {
		return 0, err
	}

	features := len(task.HourlyFeatures) + len(task.DailyFeatures)
	featureWeight := float64(features) * p.CallsPerFeature

	days := end.Sub(start).Hours() / 24
	weeks := days / 7.0

	return (weeks / p.WeeksPerBlock) * p.CallsPerBlock * featureWeight, nil
}

// Validate checks the pricing constants are usable.
func (p Pricing) Validate() error {
	if p.CallsPerFeature < 0 || p.CallsPerBlock < 0 {
		return errors.New("pricing calls must be non-negative")
	}
	if p.WeeksPerBlock <= 0 {
		return errors.New("pricing weeks per block must be positive")
	}
	return nil
}

func taskSpan(task Task) (time.Time, time.Time, error) {
	fields := pricedFields{
		HourlyFeatures: task.HourlyFeatures,
		DailyFeatures:  task.DailyFeatures,
		StartDate:      task.StartDate,
		EndDate:        task.EndDate,
	}
	if err := validate.Struct(fields); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return time.Time{}, time.Time{}, newError(KindMalformedTask, nil,
				"%q failed %q check in %s", fe.Field(), fe.Tag(), task)
		}
		return time.Time{}, time.Time{}, newError(KindMalformedTask, err, "%s", task)
	}

	start, err := time.Parse(dateLayout, task.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, newError(KindMalformedTask, err, "invalid start_date")
	}
	end, err := time.Parse(dateLayout, task.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, newError(KindMalformedTask, err, "invalid end_date")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, newError(KindMalformedTask, nil,
			"end_date %s is before start_date %s", task.EndDate, task.StartDate)
	}
	return start, end, nil
}
