package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: not found", bucket, key)
	}
	return data, nil
}

func (s *fakeStore) Exists(_ context.Context, bucket, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[bucket+"/"+key]
	return ok, nil
}

func (s *fakeStore) Put(_ context.Context, bucket, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = data
	return nil
}

func (s *fakeStore) count(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

type fakeRetriever struct {
	calls []Task
	err   error
}

func (r *fakeRetriever) Name() string { return "fake" }

func (r *fakeRetriever) Fetch(_ context.Context, task Task) (json.RawMessage, error) {
	r.calls = append(r.calls, task)
	if r.err != nil {
		return nil, r.err
	}
	return json.RawMessage(`{"hourly":{}}`), nil
}

type published struct {
	topic, message string
}

type fakePublisher struct {
	messages []published
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, topic, message string) (DeliveryResult, error) {
	if p.err != nil {
		return DeliveryResult{}, p.err
	}
	p.messages = append(p.messages, published{topic, message})
	return DeliveryResult{MessageID: fmt.Sprint(len(p.messages)), Topic: topic}, nil
}

type ruleCall struct {
	name, expression string
	state            RuleState
}

type fakeRules struct {
	calls  []ruleCall
	status int
	err    error
}

func (r *fakeRules) PutRule(_ context.Context, name, expression string, state RuleState) (RuleResult, error) {
	r.calls = append(r.calls, ruleCall{name, expression, state})
	if r.err != nil {
		return RuleResult{}, r.err
	}
	status := r.status
	if status == 0 {
		status = 200
	}
	res := RuleResult{StatusCode: status, RuleName: name, Expression: expression}
	if status >= 300 {
		res.Message = "rule rejected"
	}
	return res, nil
}

type fakeGeocoder struct {
	lat, lon float64
	err      error
}

func (g fakeGeocoder) Resolve(context.Context, Place) (float64, float64, error) {
	if g.err != nil {
		return 0, 0, g.err
	}
	return g.lat, g.lon, nil
}

var errTransport = errors.New("transport down")
