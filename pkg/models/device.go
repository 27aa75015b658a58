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

// Package models holds the shared data types for monitored devices,
// capture records and analysis results.
package models

import "time"

// DeviceConfig carries per-device settings. CaptureBackend is filled in by
// the capability probe once a backend has produced a frame for the device.
type DeviceConfig struct {
	CaptureBackend string    `json:"screenshot_backend,omitempty"`
	Interval       *Duration `json:"screenshot_interval,omitempty"`
	VNCHost        string    `json:"vnc_host,omitempty"`
	VNCPort        int       `json:"vnc_port,omitempty"`
	VNCPassword    string    `json:"vnc_password,omitempty"`
}

// Device is a monitored endpoint. IsActive, LastError and LastScreenshot
// are runtime state owned by the registry; they are not persisted.
type Device struct {
	ID             string       `json:"device_id"`
	Name           string       `json:"name"`
	Config         DeviceConfig `json:"config"`
	IsActive       bool         `json:"-"`
	LastError      string       `json:"-"`
	LastScreenshot time.Time    `json:"-"`
}

// Analysis is the successful outcome of one vision classification call.
// Scores maps category name to a confidence in [0,1]. ProgramName is set
// when the model could identify the foreground program in the frame.
type Analysis struct {
	Scores      map[string]float64
	ProgramName string
}

// CaptureRecord is one cycle's history entry. Exactly one of Scores or
// Error is set: Error carries the analyzer failure reason when
// classification did not produce scores.
type CaptureRecord struct {
	Timestamp    time.Time          `json:"timestamp"`
	DeviceID     string             `json:"device_id"`
	DeviceName   string             `json:"device_name"`
	Scores       map[string]float64 `json:"scores,omitempty"`
	Error        string             `json:"error,omitempty"`
	AlertSummary string             `json:"alert_summary,omitempty"`
	Filename     string             `json:"filename,omitempty"`

	// Screenshot holds the PNG bytes for the history sink to store.
	// It is never serialized with the record.
	Screenshot []byte `json:"-"`
}
