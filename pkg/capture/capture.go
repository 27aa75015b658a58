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

// Package capture provides screenshot backends and the first-success
// selection policy used when probing a device's capture capability.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/elabbarw/nannyai/pkg/logger"
	"github.com/elabbarw/nannyai/pkg/models"
)

var (
	// ErrNotConfigured is returned by a backend that cannot apply to the
	// device at all (e.g. the VNC backend on a device without a VNC host).
	// The selector skips such backends instead of counting them as failures.
	ErrNotConfigured = errors.New("backend not configured for device")

	ErrNoWorkingBackend = errors.New("no working screenshot backend")

	errUnknownBackend = errors.New("unknown screenshot backend")
)

// Backend produces a still image for a device.
type Backend interface {
	Name() string
	Capture(ctx context.Context, cfg models.DeviceConfig) (image.Image, error)
}

// DefaultBackends returns the available backends in probe priority order.
// Remote-desktop capture is tried before the local display grab so a
// remote device never silently falls back to the operator's own screen.
func DefaultBackends() []Backend {
	return []Backend{
		&VNCBackend{},
		&ScreenBackend{},
	}
}

// Selector tries backends in order and remembers nothing itself; the
// winning backend name is cached on the device config by the caller.
type Selector struct {
	backends []Backend
	logger   logger.Logger
}

func NewSelector(log logger.Logger, backends ...Backend) *Selector {
	if len(backends) == 0 {
		backends = DefaultBackends()
	}

	return &Selector{backends: backends, logger: log}
}

// Probe takes a trial frame with each applicable backend and returns the
// name of the first one that succeeds.
func (s *Selector) Probe(ctx context.Context, cfg models.DeviceConfig) (string, error) {
	var lastErr error

	for _, backend := range s.backends {
		if _, err := backend.Capture(ctx, cfg); err != nil {
			if errors.Is(err, ErrNotConfigured) {
				continue
			}

			s.logger.Debug().Str("backend", backend.Name()).Err(err).Msg("Backend probe failed")

			lastErr = fmt.Errorf("%s: %w", backend.Name(), err)

			continue
		}

		s.logger.Info().Str("backend", backend.Name()).Msg("Screenshot backend selected")

		return backend.Name(), nil
	}

	if lastErr != nil {
		return "", fmt.Errorf("%w: last error: %w", ErrNoWorkingBackend, lastErr)
	}

	return "", ErrNoWorkingBackend
}

// Capture grabs a frame with the device's selected backend and returns it
// PNG-encoded. An empty backend name falls back to a fresh probe.
func (s *Selector) Capture(ctx context.Context, cfg models.DeviceConfig) ([]byte, error) {
	name := cfg.CaptureBackend

	if name == "" {
		probed, err := s.Probe(ctx, cfg)
		if err != nil {
			return nil, err
		}

		name = probed
	}

	backend, err := s.backend(name)
	if err != nil {
		return nil, err
	}

	img, err := backend.Capture(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s capture failed: %w", name, err)
	}

	return EncodePNG(img)
}

func (s *Selector) backend(name string) (Backend, error) {
	for _, b := range s.backends {
		if b.Name() == name {
			return b, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", errUnknownBackend, name)
}

// EncodePNG serializes a captured frame for analysis and storage.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer

	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode screenshot: %w", err)
	}

	return buf.Bytes(), nil
}
