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

// Package monitor implements the per-device monitoring scheduler: one
// cooperative polling loop per device driving capture, analysis, alert
// evaluation, reaction and history persistence each tick.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/elabbarw/nannyai/pkg/logger"
	"github.com/elabbarw/nannyai/pkg/models"
)

const (
	// A device loop deactivates itself after this many consecutive
	// capture or unexpected failures.
	maxConsecutiveFailures = 3

	baseBackoff = 5 * time.Second
	maxBackoff  = 30 * time.Second

	defaultInterval    = 30 * time.Second
	defaultGracePeriod = time.Second
)

var (
	ErrDeviceNotFound  = errors.New("device not found")
	errStartIncomplete = errors.New("not all devices started")
	errCyclePanic      = errors.New("monitor cycle panicked")
)

// Config holds scheduler-level policy. Zero values fall back to defaults.
type Config struct {
	DefaultInterval     models.Duration    `json:"default_interval"`
	Thresholds          map[string]float64 `json:"content_thresholds"`
	MonitoredCategories []string           `json:"monitored_categories"`
	StopGracePeriod     models.Duration    `json:"stop_grace_period"`
}

// Deps are the capabilities a scheduler drives each cycle. Notifier and
// Terminator are optional; everything else is required.
type Deps struct {
	Registry   Registry
	Capturer   Capturer
	Analyzer   Analyzer
	Notifier   Notifier
	Terminator Terminator
	History    HistorySink
	Clock      Clock
}

// Scheduler owns one monitoring loop per active device. Loops are fully
// independent: a device's failures never affect another device's loop,
// and the registry is the only state shared between them.
type Scheduler struct {
	deps   Deps
	clock  Clock
	logger logger.Logger

	cfgMu     sync.RWMutex
	interval  time.Duration
	threshold map[string]float64
	monitored []string
	grace     time.Duration

	mu    sync.Mutex
	loops map[string]*deviceLoop
}

type deviceLoop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a scheduler. A nil Clock in deps gets the real clock.
func New(cfg *Config, deps Deps, log logger.Logger) *Scheduler {
	if cfg == nil {
		cfg = &Config{}
	}

	if deps.Clock == nil {
		deps.Clock = realClock{}
	}

	s := &Scheduler{
		deps:      deps,
		clock:     deps.Clock,
		logger:    log,
		interval:  cfg.DefaultInterval.Duration(),
		threshold: cfg.Thresholds,
		monitored: cfg.MonitoredCategories,
		grace:     cfg.StopGracePeriod.Duration(),
		loops:     make(map[string]*deviceLoop),
	}

	if s.interval <= 0 {
		s.interval = defaultInterval
	}

	if s.threshold == nil {
		s.threshold = models.DefaultThresholds()
	}

	if len(s.monitored) == 0 {
		s.monitored = models.DefaultCategories()
	}

	if s.grace <= 0 {
		s.grace = defaultGracePeriod
	}

	return s
}

// Start launches the monitoring loop for one device, or for every device
// in the registry when deviceID is empty. In the batch case each failure
// is logged and that device skipped; the returned error then reports that
// the batch was incomplete.
func (s *Scheduler) Start(ctx context.Context, deviceID string) error {
	if deviceID != "" {
		return s.startDevice(ctx, deviceID)
	}

	var failed int

	for _, device := range s.deps.Registry.List() {
		if err := s.startDevice(ctx, device.ID); err != nil {
			s.logger.Error().Err(err).Str("device_id", device.ID).Str("name", device.Name).
				Msg("Failed to start monitoring device")

			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d failed", errStartIncomplete, failed)
	}

	return nil
}

func (s *Scheduler) startDevice(ctx context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Starting an already-running device is a no-op.
	if _, running := s.loops[deviceID]; running {
		s.logger.Debug().Str("device_id", deviceID).Msg("Monitor loop already running")
		return nil
	}

	device, ok := s.deps.Registry.Get(deviceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}

	backend, err := s.deps.Capturer.Probe(ctx, device.Config)
	if err != nil {
		probeErr := fmt.Errorf("capture capability check failed: %w", err)
		s.deps.Registry.SetLastError(deviceID, probeErr.Error())

		return probeErr
	}

	if device.Config.CaptureBackend != backend {
		cfg := device.Config
		cfg.CaptureBackend = backend

		if err := s.deps.Registry.UpdateConfig(deviceID, cfg); err != nil {
			s.logger.Warn().Err(err).Str("device_id", deviceID).
				Msg("Failed to persist selected capture backend")
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	loop := &deviceLoop{cancel: cancel, done: make(chan struct{})}

	s.loops[deviceID] = loop
	s.deps.Registry.SetActive(deviceID, true)

	s.logger.Info().Str("device_id", deviceID).Str("name", device.Name).Str("backend", backend).
		Msg("Started monitoring device")

	go s.run(loopCtx, deviceID, loop)

	return nil
}

// Stop signals the loop for one device (or all loops when deviceID is
// empty) and waits up to the grace period for each to exit. A loop that
// does not join in time is logged; shutdown proceeds regardless.
func (s *Scheduler) Stop(_ context.Context, deviceID string) {
	s.mu.Lock()

	stopping := make(map[string]*deviceLoop)

	if deviceID != "" {
		if loop, ok := s.loops[deviceID]; ok {
			stopping[deviceID] = loop
		}
	} else {
		for id, loop := range s.loops {
			stopping[id] = loop
		}
	}

	s.mu.Unlock()

	for _, loop := range stopping {
		loop.cancel()
	}

	grace := s.gracePeriod()

	for id, loop := range stopping {
		select {
		case <-loop.done:
		case <-s.clock.After(grace):
			s.logger.Warn().Str("device_id", id).Dur("grace", grace).
				Msg("Monitor loop did not exit within grace period")
		}
	}
}

// Running reports whether a loop currently exists for the device.
func (s *Scheduler) Running(deviceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.loops[deviceID]

	return ok
}

// SetDefaultInterval applies a hot-reloaded global capture interval.
// Running loops pick it up on their next tick.
func (s *Scheduler) SetDefaultInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}

	s.cfgMu.Lock()
	s.interval = interval
	s.cfgMu.Unlock()

	s.logger.Info().Dur("interval", interval).Msg("Capture interval updated")
}

// run is one device's monitoring loop. It re-reads the device from the
// registry every iteration so external removal or reconfiguration takes
// effect at the next tick.
func (s *Scheduler) run(ctx context.Context, deviceID string, loop *deviceLoop) {
	defer func() {
		s.deps.Registry.SetActive(deviceID, false)

		s.mu.Lock()
		delete(s.loops, deviceID)
		s.mu.Unlock()

		close(loop.done)
	}()

	failures := 0

	for {
		device, ok := s.deps.Registry.Get(deviceID)
		if !ok {
			s.logger.Info().Str("device_id", deviceID).Msg("Device removed from registry; stopping loop")
			return
		}

		if !device.IsActive {
			return
		}

		// After a failed cycle the cached backend is suspect; clearing
		// it sends the retry through a fresh capability probe.
		if failures > 0 {
			device.Config.CaptureBackend = ""
		}

		err := s.cycle(ctx, &device)

		if ctx.Err() != nil {
			return
		}

		var wait time.Duration

		if err != nil {
			failures++

			s.logger.Error().Err(err).Str("device_id", deviceID).Str("name", device.Name).
				Int("consecutive_failures", failures).Msg("Monitor cycle failed")
			s.deps.Registry.SetLastError(deviceID, err.Error())

			if failures >= maxConsecutiveFailures {
				s.logger.Error().Str("device_id", deviceID).Int("max_failures", maxConsecutiveFailures).
					Msg("Deactivating device after repeated failures")
				return
			}

			wait = backoffDelay(failures)
		} else {
			failures = 0
			wait = s.effectiveInterval(&device)
		}

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(wait):
		}
	}
}

// cycle performs one capture → analyze → decide → react → persist pass.
// It returns an error only for capture or unexpected failures; an
// analyzer-reported failure is recorded as data and does not count
// against loop health.
func (s *Scheduler) cycle(ctx context.Context, device *models.Device) (err error) {
	defer func() {
		// A panicking backend must not take down the scheduler.
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errCyclePanic, r)
		}
	}()

	frame, err := s.deps.Capturer.Capture(ctx, device.Config)
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}

	now := s.clock.Now()

	s.deps.Registry.SetLastError(device.ID, "")
	s.deps.Registry.SetLastScreenshot(device.ID, now)

	record := &models.CaptureRecord{
		Timestamp:  now,
		DeviceID:   device.ID,
		DeviceName: device.Name,
		Screenshot: frame,
	}

	analysis, err := s.deps.Analyzer.Analyze(ctx, frame)
	if err != nil {
		s.logger.Warn().Err(err).Str("device_id", device.ID).Msg("Content analysis failed")

		record.Error = err.Error()
		s.appendHistory(ctx, record)

		return nil
	}

	record.Scores = analysis.Scores

	breaches := s.evaluate(analysis.Scores)
	if len(breaches) > 0 {
		record.AlertSummary = s.react(ctx, device, analysis, breaches)
	}

	s.appendHistory(ctx, record)

	return nil
}

// react sends the guardian notification and, when the analysis identified
// a program, attempts a safety-checked termination. Reactor failures are
// logged only; the returned summary always reflects what happened.
func (s *Scheduler) react(ctx context.Context, device *models.Device, analysis *models.Analysis, breaches []Breach) string {
	for _, b := range breaches {
		s.logger.Warn().Str("device_id", device.ID).Str("category", b.Category).
			Float64("score", b.Score).Msg("Harmful content detected")
	}

	var terminated string

	if analysis.ProgramName != "" && s.deps.Terminator != nil {
		name, err := s.deps.Terminator.Terminate(ctx, analysis.ProgramName)
		if err != nil {
			s.logger.Warn().Err(err).Str("device_id", device.ID).Str("program", analysis.ProgramName).
				Msg("Could not terminate program")
		} else {
			terminated = name
		}
	}

	summary := FormatAlertSummary(device.Name, breaches, terminated)

	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.SendAlert(ctx, summary); err != nil {
			s.logger.Error().Err(err).Str("device_id", device.ID).Msg("Failed to send alert notification")
		}
	}

	return summary
}

func (s *Scheduler) appendHistory(ctx context.Context, record *models.CaptureRecord) {
	if err := s.deps.History.Append(ctx, record); err != nil {
		s.logger.Error().Err(err).Str("device_id", record.DeviceID).Msg("Failed to append history record")
	}
}

func (s *Scheduler) evaluate(scores map[string]float64) []Breach {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()

	return EvaluateAlerts(scores, s.threshold, s.monitored)
}

func (s *Scheduler) effectiveInterval(device *models.Device) time.Duration {
	if device.Config.Interval != nil && device.Config.Interval.Duration() > 0 {
		return device.Config.Interval.Duration()
	}

	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()

	return s.interval
}

func (s *Scheduler) gracePeriod() time.Duration {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()

	return s.grace
}

// backoffDelay grows linearly with the failure count and caps at
// maxBackoff: 5s, 10s, 15s, ... 30s.
func backoffDelay(failures int) time.Duration {
	delay := time.Duration(failures) * baseBackoff
	if delay > maxBackoff {
		delay = maxBackoff
	}

	return delay
}
