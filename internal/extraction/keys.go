package extraction

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

// RawObjectKey derives the storage key for a task's raw payload:
//
//	<service>/latitude=<lat>&longitude=<lon>/start_date=<s>&end_date=<e>.json
func RawObjectKey(service ServiceID, task Task) string {
	dir := fmt.Sprintf("latitude=%s&longitude=%s", task.Latitude, task.Longitude)
	file := fmt.Sprintf("start_date=%s&end_date=%s.json", task.StartDate, task.EndDate)
	return path.Join(string(service), dir, file)
}

// VersionedKey inserts a _version_<timestamp> suffix before the extension.
func VersionedKey(key string, at time.Time) string {
	base := strings.TrimSuffix(key, ".json")
	return base + "_version_" + at.UTC().Format(versionLayout) + ".json"
}

// PutUnique writes data under key, or under a versioned key when key is
// already taken. Existing objects are never overwritten. It returns the key
// actually written.
func PutUnique(ctx context.Context, store ObjectStore, bucket, key string, data []byte, now time.Time) (string, error) {
	exists, err := store.Exists(ctx, bucket, key)
	if err != nil {
		return "", fmt.Errorf("check %s/%s: %w", bucket, key, err)
	}
	if exists {
		versioned := VersionedKey(key, now)
		candidate := versioned
		for n := 2; ; n++ {
			exists, err = store.Exists(ctx, bucket, candidate)
			if err != nil {
				return "", fmt.Errorf("check %s/%s: %w", bucket, candidate, err)
			}
			if !exists {
				break
			}
			candidate = fmt.Sprintf("%s-%d.json", strings.TrimSuffix(versioned, ".json"), n)
		}
		key = candidate
	}

	if err := store.Put(ctx, bucket, key, data); err != nil {
		return "", fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	return key, nil
}
