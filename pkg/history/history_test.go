/*
 * Copyright 2025 the NannyAI Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package history

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elabbarw/nannyai/pkg/logger"
	"github.com/elabbarw/nannyai/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(t.TempDir(), logger.NewTestLogger())
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func record(deviceID, deviceName string, at time.Time) *models.CaptureRecord {
	return &models.CaptureRecord{
		Timestamp:  at,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		Scores:     map[string]float64{"violence": 0.1},
		Screenshot: []byte("not-really-a-png"),
	}
}

func TestAppendAndQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, record("dev-1", "laptop", base)))
	require.NoError(t, store.Append(ctx, record("dev-2", "tablet", base.Add(time.Second))))
	require.NoError(t, store.Append(ctx, record("dev-1", "laptop", base.Add(2*time.Second))))

	all, err := store.Query(ctx, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	// Newest first.
	assert.Equal(t, "dev-1", all[0].DeviceID)
	assert.Equal(t, base.Add(2*time.Second), all[0].Timestamp)

	laptop, err := store.Query(ctx, "dev-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, laptop, 2)
	assert.True(t, laptop[0].Timestamp.After(laptop[1].Timestamp))
	assert.InDelta(t, 0.1, laptop[0].Scores["violence"], 1e-9)
	assert.NotEmpty(t, laptop[0].Filename)

	// Screenshot files round-trip.
	data, err := store.Screenshot(laptop[0].Filename)
	require.NoError(t, err)
	assert.Equal(t, []byte("not-really-a-png"), data)

	limited, err := store.Query(ctx, "dev-1", 1, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, base, limited[0].Timestamp)
}

func TestAppendErrorRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &models.CaptureRecord{
		Timestamp:  time.Now(),
		DeviceID:   "dev-1",
		DeviceName: "laptop",
		Error:      "analysis failed",
	}

	require.NoError(t, store.Append(ctx, rec))

	got, err := store.Query(ctx, "dev-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "analysis failed", got[0].Error)
	assert.Nil(t, got[0].Scores)
	assert.Empty(t, got[0].Filename)
}

func TestQueryRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, record("dev-1", "laptop", base.Add(time.Duration(i)*time.Hour))))
	}

	got, err := store.QueryRange(ctx, "dev-1", base.Add(time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Oldest first for reporting.
	assert.Equal(t, base.Add(time.Hour), got[0].Timestamp)
	assert.Equal(t, base.Add(3*time.Hour), got[2].Timestamp)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, record("dev-1", "laptop", time.Now())))

	got, err := store.Query(ctx, "dev-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.NoError(t, store.Delete(ctx, got[0].Filename))

	got, err = store.Query(ctx, "dev-1", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = store.Screenshot(got0Filename(got))
	assert.Error(t, err)
}

// got0Filename avoids indexing an empty slice after deletion.
func got0Filename(records []models.CaptureRecord) string {
	if len(records) > 0 {
		return records[0].Filename
	}

	return "screenshot_gone.png"
}

func TestConcurrentAppends(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)

		go func(device int) {
			defer wg.Done()

			for j := 0; j < 10; j++ {
				deviceID := []string{"a", "b", "c", "d"}[device]
				_ = store.Append(ctx, record(deviceID, "device-"+deviceID, time.Now()))
			}
		}(i)
	}

	wg.Wait()

	all, err := store.Query(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 40)
}
