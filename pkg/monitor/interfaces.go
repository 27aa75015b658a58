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

package monitor

import (
	"context"
	"time"

	"github.com/elabbarw/nannyai/pkg/models"
)

// Capturer produces PNG-encoded frames for a device. Probe performs the
// lightweight "can I get a frame right now" check across the available
// backends and returns the name of the first one that succeeded.
type Capturer interface {
	Probe(ctx context.Context, cfg models.DeviceConfig) (string, error)
	Capture(ctx context.Context, cfg models.DeviceConfig) ([]byte, error)
}

// Analyzer classifies a frame into category confidence scores.
type Analyzer interface {
	Analyze(ctx context.Context, pngData []byte) (*models.Analysis, error)
}

// Notifier delivers a guardian alert. Failures are logged and swallowed;
// they never abort a cycle.
type Notifier interface {
	SendAlert(ctx context.Context, message string) error
}

// Terminator stops an offending program, returning the name of the
// process it actually terminated. Implementations must refuse protected
// system processes.
type Terminator interface {
	Terminate(ctx context.Context, programName string) (string, error)
}

// HistorySink durably appends one cycle record. Must be safe for
// concurrent append from multiple device loops.
type HistorySink interface {
	Append(ctx context.Context, record *models.CaptureRecord) error
}

// Registry is the device state surface the scheduler reads each tick and
// writes runtime state through. All operations are atomic per device.
type Registry interface {
	Get(id string) (models.Device, bool)
	List() []models.Device
	UpdateConfig(id string, config models.DeviceConfig) error
	SetActive(id string, active bool) bool
	SetLastError(id, message string) bool
	SetLastScreenshot(id string, at time.Time) bool
}

// Clock abstracts time so scheduler timing is testable.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}
