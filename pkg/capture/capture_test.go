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

package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elabbarw/nannyai/pkg/logger"
	"github.com/elabbarw/nannyai/pkg/models"
)

type stubBackend struct {
	name  string
	err   error
	calls int
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Capture(_ context.Context, _ models.DeviceConfig) (image.Image, error) {
	s.calls++

	if s.err != nil {
		return nil, s.err
	}

	return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
}

func TestProbeFirstSuccessWins(t *testing.T) {
	broken := &stubBackend{name: "broken", err: errors.New("no display")}
	working := &stubBackend{name: "working"}
	never := &stubBackend{name: "never"}

	s := NewSelector(logger.NewTestLogger(), broken, working, never)

	name, err := s.Probe(context.Background(), models.DeviceConfig{})
	require.NoError(t, err)
	assert.Equal(t, "working", name)
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, 1, working.calls)
	assert.Zero(t, never.calls)
}

func TestProbeSkipsUnconfiguredBackends(t *testing.T) {
	remote := &stubBackend{name: "vnc", err: ErrNotConfigured}
	local := &stubBackend{name: "screen"}

	s := NewSelector(logger.NewTestLogger(), remote, local)

	name, err := s.Probe(context.Background(), models.DeviceConfig{})
	require.NoError(t, err)
	assert.Equal(t, "screen", name)
}

func TestProbeAllFail(t *testing.T) {
	s := NewSelector(logger.NewTestLogger(),
		&stubBackend{name: "a", err: errors.New("a broke")},
		&stubBackend{name: "b", err: errors.New("b broke")},
	)

	_, err := s.Probe(context.Background(), models.DeviceConfig{})
	require.ErrorIs(t, err, ErrNoWorkingBackend)
	assert.Contains(t, err.Error(), "b broke")
}

func TestCaptureUsesSelectedBackend(t *testing.T) {
	first := &stubBackend{name: "first"}
	second := &stubBackend{name: "second"}

	s := NewSelector(logger.NewTestLogger(), first, second)

	data, err := s.Capture(context.Background(), models.DeviceConfig{CaptureBackend: "second"})
	require.NoError(t, err)
	assert.Zero(t, first.calls)
	assert.Equal(t, 1, second.calls)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())
}

func TestCaptureUnknownBackend(t *testing.T) {
	s := NewSelector(logger.NewTestLogger(), &stubBackend{name: "screen"})

	_, err := s.Capture(context.Background(), models.DeviceConfig{CaptureBackend: "x11"})
	require.ErrorIs(t, err, errUnknownBackend)
}
