package extraction

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestValidateBatchEmpty(t *testing.T) {
	_, err := ValidateBatch([]byte(""))
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestValidateBatchMissingServices(t *testing.T) {
	_, err := ValidateBatch([]byte("{}"))
	if !errors.Is(err, ErrMalformedBatch) {
		t.Fatalf("expected ErrMalformedBatch, got %v", err)
	}
	if !strings.Contains(err.Error(), "'services'") {
		t.Fatalf("expected error to name services, got %q", err.Error())
	}
}

func TestValidateBatchMissingTasks(t *testing.T) {
	_, err := ValidateBatch([]byte(`{"services": {"open_meteo": {"task": []}}}`))
	if !errors.Is(err, ErrMalformedBatch) {
		t.Fatalf("expected ErrMalformedBatch, got %v", err)
	}
	if !strings.Contains(err.Error(), "open_meteo") {
		t.Fatalf("expected error to name the service, got %q", err.Error())
	}
}

func TestValidateBatchDecodeFailures(t *testing.T) {
	docs := []string{
		"not json",
		`["services"]`,
		`{"services": ["open_meteo"]}`,
		`{"services": {"open_meteo": {"tasks": [{"latitude": "north"}]}}}`,
		`{"services": {"open_meteo": {"tasks": {"a": 1}}}}`,
	}
	for _, doc := range docs {
		if _, err := ValidateBatch([]byte(doc)); !errors.Is(err, ErrMalformedBatch) {
			t.Errorf("%s: expected ErrMalformedBatch, got %v", doc, err)
		}
	}
}

func TestValidateBatchRoundTrip(t *testing.T) {
	want := TaskBatch{Services: map[ServiceID]ServiceTasks{
		ServiceOpenMeteo: {Tasks: []Task{
			{
				Latitude:       dec(25.761681),
				Longitude:      dec(-80.191788),
				StartDate:      "2024-03-23",
				EndDate:        "2024-03-26",
				HourlyFeatures: []string{"temperature_2m", "rain"},
				DailyFeatures:  []string{"temperature_2m_max"},
				Timezone:       "GMT",
				Tilt:           dec(5),
			},
			{HourlyFeatures: []string{"temperature_2m"}},
		}},
	}}

	raw, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := ValidateBatch(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestValidateBatchPreservesDocument(t *testing.T) {
	doc := `{"services": {"open_meteo": {"tasks": [{
		"latitude": "1.50", "longitude": 13.41,
		"start_date": "2024-01-01", "end_date": "2024-01-02",
		"hourly_features": ["a"], "daily_features": [],
		"models": "era5", "cell_selection": {"mode": "land"}, "tilt": null}]}}}`

	batch, err := ValidateBatch([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	task := batch.Services[ServiceOpenMeteo].Tasks[0]
	if string(task.Extra["models"]) != `"era5"` || string(task.Extra["cell_selection"]) != `{"mode":"land"}` {
		t.Fatalf("provider keys not kept: %v", task.Extra)
	}

	raw, err := json.Marshal(batch)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var gotDoc, wantDoc any
	if err := json.Unmarshal(raw, &gotDoc); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if err := json.Unmarshal([]byte(doc), &wantDoc); err != nil {
		t.Fatalf("decode input: %v", err)
	}
	if !reflect.DeepEqual(gotDoc, wantDoc) {
		t.Fatalf("document changed:\n got %s\nwant %s", raw, doc)
	}

	again, err := ValidateBatch(raw)
	if err != nil {
		t.Fatalf("re-validate: %v", err)
	}
	if !reflect.DeepEqual(again, batch) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", again, batch)
	}
	if _, err := Weight(again.Services[ServiceOpenMeteo].Tasks[0]); err != nil {
		t.Fatalf("empty daily list must survive the round trip: %v", err)
	}
}

func TestTaskMarshalAfterEdit(t *testing.T) {
	var task Task
	if err := json.Unmarshal([]byte(`{"latitude": "1.50", "hourly_features": ["a"]}`), &task); err != nil {
		t.Fatalf("decode: %v", err)
	}
	task.Latitude = dec(2)

	raw, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"hourly_features":["a"],"latitude":2}` {
		t.Fatalf("edited value not written: %s", raw)
	}
}

func TestValidateBatchStringCoordinates(t *testing.T) {
	doc := `{"services": {"open_meteo": {"tasks": [{
		"hourly_features": ["temperature_2m"],
		"daily_features": [],
		"latitude": "25.761681", "longitude": "-80.191788",
		"start_date": "2024-03-23", "end_date": "2024-03-26",
		"timezone": "GMT", "tilt": "5"}]}}}`

	batch, err := ValidateBatch([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	task := batch.Services[ServiceOpenMeteo].Tasks[0]
	if *task.Latitude != 25.761681 || *task.Longitude != -80.191788 || *task.Tilt != 5 {
		t.Fatalf("unexpected coordinates: %v %v %v", *task.Latitude, *task.Longitude, *task.Tilt)
	}
	if task.DailyFeatures == nil || len(task.DailyFeatures) != 0 {
		t.Fatalf("expected present but empty daily features, got %#v", task.DailyFeatures)
	}
}

func TestValidateBatchEmptyTasksIsValid(t *testing.T) {
	batch, err := ValidateBatch([]byte(`{"services": {"open_meteo": {"tasks": []}}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(batch.Services[ServiceOpenMeteo].Tasks); n != 0 {
		t.Fatalf("expected no tasks, got %d", n)
	}
}

func TestServiceNamesSorted(t *testing.T) {
	batch := TaskBatch{Services: map[ServiceID]ServiceTasks{
		"zeta": {}, ServiceOpenMeteo: {}, "alpha": {},
	}}
	got := batch.ServiceNames()
	want := []ServiceID{"alpha", ServiceOpenMeteo, "zeta"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
