package extraction

import (
	"errors"
	"math"
	"testing"
)

var referenceHourly = []string{
	"temperature_2m", "relative_humidity_2m", "apparent_temperature", "precipitation",
	"rain", "weather_code", "surface_pressure", "cloud_cover",
	"wind_speed_10m", "wind_direction_10m", "soil_temperature_7_to_28cm",
}

var referenceDaily = []string{"temperature_2m_max", "temperature_2m_min", "precipitation_hours"}

func dec(v float64) *Decimal {
	d := Decimal(v)
	return &d
}

func referenceTask(start, end string) Task {
	return Task{
		Latitude:       dec(25.761681),
		Longitude:      dec(-80.191788),
		StartDate:      start,
		EndDate:        end,
		HourlyFeatures: referenceHourly,
		DailyFeatures:  referenceDaily,
		Timezone:       "GMT",
	}
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func TestWeightReferenceValues(t *testing.T) {
	tests := []struct {
		start, end string
		want       float64
	}{
		{"2024-04-01", "2024-04-26", 2.5},
		{"2014-03-23", "2024-03-26", 365.6},
		{"2013-01-05", "2024-04-26", 412.9},
		{"2010-01-05", "2024-04-26", 522.5},
	}

	for _, tt := range tests {
		got, err := Weight(referenceTask(tt.start, tt.end))
		if err != nil {
			t.Fatalf("%s..%s: unexpected error: %v", tt.start, tt.end, err)
		}
		if roundTenth(got) != tt.want {
			t.Errorf("%s..%s: weight = %v, want %v", tt.start, tt.end, got, tt.want)
		}
	}
}

func TestQuarterPricing(t *testing.T) {
	got, err := QuarterPricing.Weight(referenceTask("2024-04-01", "2024-04-26"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 25 days / 7 / 4 * 3 * 1.4
	if math.Abs(got-3.75) > 1e-9 {
		t.Fatalf("expected 3.75, got %v", got)
	}
}

func TestWeightSameDayIsZero(t *testing.T) {
	got, err := Weight(referenceTask("2024-04-01", "2024-04-01"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestWeightIgnoresLocation(t *testing.T) {
	a := referenceTask("2024-04-01", "2024-04-26")
	b := a
	b.Latitude, b.Longitude, b.Timezone = dec(52.52), dec(13.41), "Europe/Berlin"

	wa, _ := Weight(a)
	wb, _ := Weight(b)
	if wa != wb {
		t.Fatalf("expected equal weights, got %v and %v", wa, wb)
	}
}

func TestWeightMalformedTask(t *testing.T) {
	tests := map[string]func(*Task){
		"missing hourly":   func(t *Task) { t.HourlyFeatures = nil },
		"empty hourly":     func(t *Task) { t.HourlyFeatures = []string{} },
		"missing daily":    func(t *Task) { t.DailyFeatures = nil },
		"missing start":    func(t *Task) { t.StartDate = "" },
		"missing end":      func(t *Task) { t.EndDate = "" },
		"invalid start":    func(t *Task) { t.StartDate = "2024-13-01" },
		"invalid end":      func(t *Task) { t.EndDate = "26/04/2024" },
		"end before start": func(t *Task) { t.StartDate, t.EndDate = "2024-04-26", "2024-04-01" },
	}

	for name, mutate := range tests {
		task := referenceTask("2024-04-01", "2024-04-26")
		mutate(&task)

		_, err := Weight(task)
		if !errors.Is(err, ErrMalformedTask) {
			t.Errorf("%s: expected ErrMalformedTask, got %v", name, err)
		}
	}
}

func TestWeightEmptyDailyIsValid(t *testing.T) {
	task := referenceTask("2024-04-01", "2024-04-15")
	task.DailyFeatures = []string{}

	got, err := Weight(task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 14 days = 1 block, 11 features
	if roundTenth(got) != 1.1 {
		t.Fatalf("expected 1.1, got %v", got)
	}
}

func TestPricingValidate(t *testing.T) {
	if err := DefaultPricing.Validate(); err != nil {
		t.Fatalf("default pricing invalid: %v", err)
	}
	if err := (Pricing{CallsPerFeature: 0.1, WeeksPerBlock: 0, CallsPerBlock: 1}).Validate(); err == nil {
		t.Fatal("expected error for zero weeks per block")
	}
}
