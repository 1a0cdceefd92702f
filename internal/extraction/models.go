package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ServiceID identifies a data provider section of a tasks document.
type ServiceID string

const (
	ServiceOpenMeteo ServiceID = "open_meteo"
)

// Known reports whether the service has a retrieval implementation.
func (s ServiceID) Known() bool {
	switch s {
	case ServiceOpenMeteo:
		return true
	default:
		return false
	}
}

// Decimal is a number that may be written either as a JSON number or as a
// numeric string ("25.761681"). It always marshals back as a JSON number.
type Decimal float64

func (d *Decimal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid decimal %s", data)
	}
	*d = Decimal(v)
	return nil
}

func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(d.String()), nil
}

// String formats the value with the fewest digits that round-trip.
func (d Decimal) String() string {
	return strconv.FormatFloat(float64(d), 'f', -1, 64)
}

// Place names a location to be resolved into coordinates when a task does
// not carry latitude/longitude itself.
type Place struct {
	City    string `json:"city"`
	Country string `json:"country,omitempty"`
}

// Task is one requested extraction unit.
// Nil feature slices mean the key was absent from the document.
//
// A decoded task marshals back to the document it came from: keys without a
// typed field are kept in Extra, and values written in a non-canonical form
// (numeric strings, explicit nulls) are re-emitted verbatim while the typed
// field still holds the same value.
type Task struct {
	Latitude       *Decimal `json:"latitude"`
	Longitude      *Decimal `json:"longitude"`
	Place          *Place   `json:"place"`
	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date"`
	HourlyFeatures []string `json:"hourly_features"`
	DailyFeatures  []string `json:"daily_features"`
	Timezone       string   `json:"timezone"`
	Tilt           *Decimal `json:"tilt"`

	// Extra holds provider-specific keys (e.g. "models") passed through untouched.
	Extra map[string]json.RawMessage `json:"-"`

	literals map[string]json.RawMessage
}

type taskField struct {
	key     string
	value   any
	present bool
}

func (t Task) fields() []taskField {
	return []taskField{
		{"latitude", t.Latitude, t.Latitude != nil},
		{"longitude", t.Longitude, t.Longitude != nil},
		{"place", t.Place, t.Place != nil},
		{"start_date", t.StartDate, t.StartDate != ""},
		{"end_date", t.EndDate, t.EndDate != ""},
		{"hourly_features", t.HourlyFeatures, t.HourlyFeatures != nil},
		{"daily_features", t.DailyFeatures, t.DailyFeatures != nil},
		{"timezone", t.Timezone, t.Timezone != ""},
		{"tilt", t.Tilt, t.Tilt != nil},
	}
}

func (t *Task) UnmarshalJSON(data []byte) error {
	type plain Task
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	*t = Task(p)
	t.Extra, t.literals = nil, nil

	known := make(map[string]bool, len(all))
	for _, f := range t.fields() {
		known[f.key] = true
		raw, ok := all[f.key]
		if !ok {
			continue
		}
		lit, err := compact(raw)
		if err != nil {
			return err
		}
		if f.present {
			canonical, err := json.Marshal(f.value)
			if err != nil {
				return err
			}
			if bytes.Equal(canonical, lit) {
				continue
			}
		}
		if t.literals == nil {
			t.literals = map[string]json.RawMessage{}
		}
		t.literals[f.key] = lit
	}

	for k, raw := range all {
		if known[k] {
			continue
		}
		v, err := compact(raw)
		if err != nil {
			return err
		}
		if t.Extra == nil {
			t.Extra = map[string]json.RawMessage{}
		}
		t.Extra[k] = v
	}
	return nil
}

func (t Task) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(t.Extra)+9)
	for k, v := range t.Extra {
		out[k] = v
	}
	for _, f := range t.fields() {
		if lit, ok := t.literals[f.key]; ok && sameValue(lit, f.value) {
			out[f.key] = lit
			continue
		}
		if !f.present {
			continue
		}
		b, err := json.Marshal(f.value)
		if err != nil {
			return nil, err
		}
		out[f.key] = b
	}
	return json.Marshal(out)
}

// sameValue reports whether lit decodes to v.
func sameValue(lit json.RawMessage, v any) bool {
	target := reflect.New(reflect.TypeOf(v))
	if err := json.Unmarshal(lit, target.Interface()); err != nil {
		return false
	}
	return reflect.DeepEqual(target.Elem().Interface(), v)
}

func compact(raw json.RawMessage) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.Bytes()), nil
}

// HasCoordinates reports whether both latitude and longitude are set.
func (t Task) HasCoordinates() bool {
	return t.Latitude != nil && t.Longitude != nil
}

// String is used in operator messages.
func (t Task) String() string {
	lat, lon := "?", "?"
	if t.Latitude != nil {
		lat = t.Latitude.String()
	}
	if t.Longitude != nil {
		lon = t.Longitude.String()
	}
	return fmt.Sprintf("task(lat=%s lon=%s %s..%s hourly=%d daily=%d)",
		lat, lon, t.StartDate, t.EndDate, len(t.HourlyFeatures), len(t.DailyFeatures))
}

// ServiceTasks is the per-service section of a tasks document.
type ServiceTasks struct {
	Tasks []Task `json:"tasks"`
}

// TaskBatch is the parsed tasks document.
type TaskBatch struct {
	Services map[ServiceID]ServiceTasks `json:"services"`
}

// QuotaState holds the remaining fractional request budget per window.
// HourlyLeft is optional; when set it takes part in the binding minimum.
type QuotaState struct {
	DailyLeft    float64  `json:"daily_left"`
	HourlyLeft   *float64 `json:"hourly_left,omitempty"`
	ByMinuteLeft float64  `json:"by_minute_left"`
}

// Decision is the tag of a GovernorOutcome.
type Decision int

const (
	Proceed Decision = iota + 1
	DeferMinuteExhausted
	RejectDailyOrHourlyExhausted
	RejectNoTasks
)

func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case DeferMinuteExhausted:
		return "defer_minute_exhausted"
	case RejectDailyOrHourlyExhausted:
		return "reject_daily_or_hourly_exhausted"
	case RejectNoTasks:
		return "reject_no_tasks"
	default:
		return "unknown"
	}
}

func (d Decision) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Outcome is the result of evaluating one task against the quota.
// Deducted is non-zero only for Proceed.
type Outcome struct {
	Decision Decision `json:"decision"`
	Weight   float64  `json:"weight"`
	Deducted float64  `json:"deducted"`
	Minimal  float64  `json:"minimal"`
}
