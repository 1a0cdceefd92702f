package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no object or quota record exists for a key.
	ErrNotFound = errors.New("not found")
)

// QuotaRecord is the daily budget carried between activations of a rule.
// Day is the UTC calendar date the budget belongs to.
type QuotaRecord struct {
	DailyLeft float64
	Day       string
	UpdatedAt time.Time
}

// MemoryStore is a concurrency-safe in-memory object store and quota ledger.
type MemoryStore struct {
	mu sync.RWMutex

	// key: bucket + "/" + object key
	objects map[string][]byte

	quotas map[string]QuotaRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		quotas:  make(map[string]QuotaRecord),
	}
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

// Get returns a copy of the object, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[objectKey(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Exists reports whether an object is stored under key.
func (s *MemoryStore) Exists(_ context.Context, bucket, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.objects[objectKey(bucket, key)]
	return ok, nil
}

// Put stores a copy of data under key.
func (s *MemoryStore) Put(_ context.Context, bucket, key string, data []byte) error {
	if bucket == "" || key == "" {
		return errors.New("bucket and key are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[objectKey(bucket, key)] = append([]byte(nil), data...)
	return nil
}

// List returns the keys in bucket that start with prefix, sorted.
func (s *MemoryStore) List(_ context.Context, bucket, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	full := objectKey(bucket, prefix)
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, full) {
			keys = append(keys, strings.TrimPrefix(k, bucket+"/"))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// LoadQuota returns the last saved record for rule, or ErrNotFound.
func (s *MemoryStore) LoadQuota(_ context.Context, rule string) (QuotaRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.quotas[rule]
	if !ok {
		return QuotaRecord{}, ErrNotFound
	}
	return rec, nil
}

// SaveQuota replaces the record for rule.
func (s *MemoryStore) SaveQuota(_ context.Context, rule string, rec QuotaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.quotas[rule] = rec
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
