package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

type backend interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Exists(ctx context.Context, bucket, key string) (bool, error)
	Put(ctx context.Context, bucket, key string, data []byte) error
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	LoadQuota(ctx context.Context, rule string) (QuotaRecord, error)
	SaveQuota(ctx context.Context, rule string, rec QuotaRecord) error
	Close() error
}

func backends(t *testing.T) map[string]backend {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]backend{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestObjects(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		if _, err := s.Get(ctx, "raw", "missing.json"); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: expected ErrNotFound, got %v", name, err)
		}

		if err := s.Put(ctx, "raw", "open_meteo/a.json", []byte(`{"a":1}`)); err != nil {
			t.Fatalf("%s: put: %v", name, err)
		}
		if err := s.Put(ctx, "raw", "open_meteo/b.json", []byte(`{"b":1}`)); err != nil {
			t.Fatalf("%s: put: %v", name, err)
		}
		if err := s.Put(ctx, "tasks", "tasks.json", []byte(`{}`)); err != nil {
			t.Fatalf("%s: put: %v", name, err)
		}

		data, err := s.Get(ctx, "raw", "open_meteo/a.json")
		if err != nil || string(data) != `{"a":1}` {
			t.Errorf("%s: get = %q, %v", name, data, err)
		}

		ok, err := s.Exists(ctx, "raw", "open_meteo/b.json")
		if err != nil || !ok {
			t.Errorf("%s: expected object to exist, got %v %v", name, ok, err)
		}
		ok, _ = s.Exists(ctx, "tasks", "open_meteo/b.json")
		if ok {
			t.Errorf("%s: buckets must be isolated", name)
		}

		keys, err := s.List(ctx, "raw", "open_meteo/")
		if err != nil {
			t.Fatalf("%s: list: %v", name, err)
		}
		want := []string{"open_meteo/a.json", "open_meteo/b.json"}
		if !reflect.DeepEqual(keys, want) {
			t.Errorf("%s: list = %v, want %v", name, keys, want)
		}

		if err := s.Put(ctx, "", "x", nil); err == nil {
			t.Errorf("%s: expected error for empty bucket", name)
		}
	}
}

func TestQuotaLedger(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		if _, err := s.LoadQuota(ctx, "rule"); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: expected ErrNotFound, got %v", name, err)
		}

		rec := QuotaRecord{DailyLeft: 9997.5, Day: "2024-04-26", UpdatedAt: time.Unix(1714089900, 0).UTC()}
		if err := s.SaveQuota(ctx, "rule", rec); err != nil {
			t.Fatalf("%s: save: %v", name, err)
		}
		rec.DailyLeft = 9995
		if err := s.SaveQuota(ctx, "rule", rec); err != nil {
			t.Fatalf("%s: save: %v", name, err)
		}

		got, err := s.LoadQuota(ctx, "rule")
		if err != nil {
			t.Fatalf("%s: load: %v", name, err)
		}
		if got.DailyLeft != rec.DailyLeft || got.Day != rec.Day || !got.UpdatedAt.Equal(rec.UpdatedAt) {
			t.Errorf("%s: load = %+v, want %+v", name, got, rec)
		}
	}
}
