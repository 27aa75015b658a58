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

// Package registry owns the set of monitored devices and their runtime
// state. Every accessor is safe for concurrent use from the device loops
// and from the CLI; callers always receive copies, never shared pointers.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/elabbarw/nannyai/pkg/logger"
	"github.com/elabbarw/nannyai/pkg/models"
)

var ErrDeviceNotFound = errors.New("device not found")

// DeviceRegistry is the authoritative store for monitored devices.
// Identity and config are persisted to a JSON file; IsActive, LastError
// and LastScreenshot live only for the process lifetime.
type DeviceRegistry struct {
	mu      sync.RWMutex
	devices map[string]*models.Device
	order   []string
	path    string
	logger  logger.Logger
}

// New loads the device registry from path, creating an empty registry if
// the file does not exist yet.
func New(path string, log logger.Logger) (*DeviceRegistry, error) {
	r := &DeviceRegistry{
		devices: make(map[string]*models.Device),
		path:    path,
		logger:  log,
	}

	if err := r.load(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *DeviceRegistry) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("failed to read devices file: %w", err)
	}

	var devices []models.Device
	if err := json.Unmarshal(data, &devices); err != nil {
		return fmt.Errorf("failed to parse devices file %q: %w", r.path, err)
	}

	for i := range devices {
		d := devices[i]
		r.devices[d.ID] = &d
		r.order = append(r.order, d.ID)
	}

	return nil
}

// save writes identity and config for all devices. Caller must hold r.mu.
func (r *DeviceRegistry) save() error {
	devices := make([]models.Device, 0, len(r.devices))
	for _, id := range r.order {
		devices = append(devices, *r.devices[id])
	}

	data, err := json.MarshalIndent(devices, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal devices: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := os.WriteFile(r.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write devices file: %w", err)
	}

	return nil
}

// Add creates and persists a new device. The returned value is a copy.
func (r *DeviceRegistry) Add(name string, config models.DeviceConfig) (models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device := &models.Device{
		ID:     uuid.NewString(),
		Name:   name,
		Config: config,
	}

	r.devices[device.ID] = device
	r.order = append(r.order, device.ID)

	if err := r.save(); err != nil {
		delete(r.devices, device.ID)
		r.order = r.order[:len(r.order)-1]

		return models.Device{}, err
	}

	r.logger.Info().Str("device_id", device.ID).Str("name", name).Msg("Device added")

	return *device, nil
}

// Remove deletes a device and persists the change.
func (r *DeviceRegistry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	delete(r.devices, id)

	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return r.save()
}

// Get returns a copy of the device, so callers never observe concurrent
// mutation through a shared pointer.
func (r *DeviceRegistry) Get(id string) (models.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.devices[id]
	if !ok {
		return models.Device{}, false
	}

	return *device, true
}

// List returns copies of all devices in insertion order.
func (r *DeviceRegistry) List() []models.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]models.Device, 0, len(r.devices))
	for _, id := range r.order {
		devices = append(devices, *r.devices[id])
	}

	return devices
}

// FindByName resolves a device by its display name. Lookup is exact;
// ambiguity cannot arise because names are not required to be unique,
// so the first match in insertion order wins.
func (r *DeviceRegistry) FindByName(name string) (models.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if r.devices[id].Name == name {
			return *r.devices[id], true
		}
	}

	return models.Device{}, false
}

// UpdateConfig replaces a device's config and persists it.
func (r *DeviceRegistry) UpdateConfig(id string, config models.DeviceConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	device.Config = config

	return r.save()
}

// SetActive flips the running flag. Returns false for unknown devices.
func (r *DeviceRegistry) SetActive(id string, active bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[id]
	if !ok {
		return false
	}

	device.IsActive = active

	return true
}

// SetLastError records the most recent cycle failure; an empty message
// clears it.
func (r *DeviceRegistry) SetLastError(id, message string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[id]
	if !ok {
		return false
	}

	device.LastError = message

	return true
}

// SetLastScreenshot records when the device last produced a frame.
func (r *DeviceRegistry) SetLastScreenshot(id string, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[id]
	if !ok {
		return false
	}

	device.LastScreenshot = at

	return true
}

// ActiveIDs returns the ids of devices with a running loop, sorted for
// stable log output.
func (r *DeviceRegistry) ActiveIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string

	for id, device := range r.devices {
		if device.IsActive {
			ids = append(ids, id)
		}
	}

	sort.Strings(ids)

	return ids
}
