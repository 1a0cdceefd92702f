package extraction

import (
	"encoding/json"
	"sort"
)

// ValidateBatch parses a tasks document and checks its structure: a top
// level "services" object whose every entry carries a "tasks" key. Task
// contents are not checked here; an empty tasks list is valid.
//
// Example document:
//
//	{"services": {"open_meteo": {"tasks": [{
//	    "hourly_features": ["temperature_2m", "rain"],
//	    "daily_features": ["temperature_2m_max"],
//	    "latitude": "25.761681", "longitude": "-80.191788",
//	    "start_date": "2024-03-23", "end_date": "2024-03-26",
//	    "timezone": "GMT", "tilt": "5"}]}}}
func ValidateBatch(raw []byte) (TaskBatch, error) {
	if len(raw) == 0 {
		return TaskBatch{}, &Error{Kind: KindEmptyDocument, Detail: "document is empty"}
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return TaskBatch{}, newError(KindMalformedBatch, err, "document is not a json object")
	}
	servicesRaw, ok := top["services"]
	if !ok {
		return TaskBatch{}, &Error{Kind: KindMalformedBatch, Detail: "'services' object not found"}
	}

	var services map[string]map[string]json.RawMessage
	if err := json.Unmarshal(servicesRaw, &services); err != nil {
		return TaskBatch{}, newError(KindMalformedBatch, err, "'services' is not an object of services")
	}
	for _, name := range sortedKeys(services) {
		if _, ok := services[name]["tasks"]; !ok {
			return TaskBatch{}, newError(KindMalformedBatch, nil, "'tasks' object not found in service %s", name)
		}
	}

	var batch TaskBatch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return TaskBatch{}, newError(KindMalformedBatch, err, "tasks could not be decoded")
	}
	if batch.Services == nil {
		batch.Services = map[ServiceID]ServiceTasks{}
	}
	return batch, nil
}

// ServiceNames returns the batch's services in a stable order.
func (b TaskBatch) ServiceNames() []ServiceID {
	names := make([]ServiceID, 0, len(b.Services))
	for name := range b.Services {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
