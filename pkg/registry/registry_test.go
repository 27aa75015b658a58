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

package registry

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elabbarw/nannyai/pkg/logger"
	"github.com/elabbarw/nannyai/pkg/models"
)

func newTestRegistry(t *testing.T) *DeviceRegistry {
	t.Helper()

	r, err := New(filepath.Join(t.TempDir(), "devices.json"), logger.NewTestLogger())
	require.NoError(t, err)

	return r
}

func TestAddGetRemove(t *testing.T) {
	r := newTestRegistry(t)

	device, err := r.Add("kids-laptop", models.DeviceConfig{VNCHost: "10.0.0.12", VNCPort: 5900})
	require.NoError(t, err)
	require.NotEmpty(t, device.ID)

	got, ok := r.Get(device.ID)
	require.True(t, ok)
	assert.Equal(t, "kids-laptop", got.Name)
	assert.Equal(t, "10.0.0.12", got.Config.VNCHost)
	assert.False(t, got.IsActive)

	require.NoError(t, r.Remove(device.ID))

	_, ok = r.Get(device.ID)
	assert.False(t, ok)

	err = r.Remove(device.ID)
	require.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")

	r, err := New(path, logger.NewTestLogger())
	require.NoError(t, err)

	first, err := r.Add("den-pc", models.DeviceConfig{})
	require.NoError(t, err)

	second, err := r.Add("playroom", models.DeviceConfig{CaptureBackend: "screen"})
	require.NoError(t, err)

	// Runtime state must not survive a reload.
	r.SetActive(first.ID, true)
	r.SetLastError(first.ID, "boom")

	reloaded, err := New(path, logger.NewTestLogger())
	require.NoError(t, err)

	devices := reloaded.List()
	require.Len(t, devices, 2)
	assert.Equal(t, first.ID, devices[0].ID)
	assert.Equal(t, second.ID, devices[1].ID)
	assert.False(t, devices[0].IsActive)
	assert.Empty(t, devices[0].LastError)
	assert.Equal(t, "screen", devices[1].Config.CaptureBackend)
}

func TestGetReturnsCopy(t *testing.T) {
	r := newTestRegistry(t)

	device, err := r.Add("tablet", models.DeviceConfig{})
	require.NoError(t, err)

	got, ok := r.Get(device.ID)
	require.True(t, ok)

	got.Name = "renamed"
	got.Config.CaptureBackend = "vnc"

	again, ok := r.Get(device.ID)
	require.True(t, ok)
	assert.Equal(t, "tablet", again.Name)
	assert.Empty(t, again.Config.CaptureBackend)
}

func TestRuntimeStateMutators(t *testing.T) {
	r := newTestRegistry(t)

	device, err := r.Add("tablet", models.DeviceConfig{})
	require.NoError(t, err)

	assert.True(t, r.SetActive(device.ID, true))
	assert.True(t, r.SetLastError(device.ID, "capture failed"))
	assert.True(t, r.SetLastScreenshot(device.ID, time.Unix(100, 0)))

	got, _ := r.Get(device.ID)
	assert.True(t, got.IsActive)
	assert.Equal(t, "capture failed", got.LastError)
	assert.Equal(t, time.Unix(100, 0), got.LastScreenshot)

	assert.True(t, r.SetLastError(device.ID, ""))

	got, _ = r.Get(device.ID)
	assert.Empty(t, got.LastError)

	assert.False(t, r.SetActive("missing", true))
	assert.False(t, r.SetLastError("missing", "x"))

	assert.Equal(t, []string{device.ID}, r.ActiveIDs())
}

func TestConcurrentMutation(t *testing.T) {
	r := newTestRegistry(t)

	a, err := r.Add("a", models.DeviceConfig{})
	require.NoError(t, err)

	b, err := r.Add("b", models.DeviceConfig{})
	require.NoError(t, err)

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)

		go func(i int) {
			defer wg.Done()

			r.SetActive(a.ID, i%2 == 0)
			r.SetLastError(a.ID, "err-a")
			r.Get(a.ID)
		}(i)

		go func(i int) {
			defer wg.Done()

			r.SetActive(b.ID, i%2 == 1)
			r.SetLastError(b.ID, "err-b")
			r.List()
		}(i)
	}

	wg.Wait()

	gotA, _ := r.Get(a.ID)
	gotB, _ := r.Get(b.ID)
	assert.Equal(t, "err-a", gotA.LastError)
	assert.Equal(t, "err-b", gotB.LastError)
}
