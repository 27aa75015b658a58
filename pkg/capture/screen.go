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
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"github.com/elabbarw/nannyai/pkg/models"
)

var errNoDisplays = errors.New("no active displays")

// ScreenBackend grabs the local display framebuffer. It covers Windows,
// macOS and X11 through the same call.
type ScreenBackend struct{}

func (*ScreenBackend) Name() string { return "screen" }

func (*ScreenBackend) Capture(_ context.Context, _ models.DeviceConfig) (image.Image, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, errNoDisplays
	}

	img, err := screenshot.CaptureDisplay(0)
	if err != nil {
		return nil, fmt.Errorf("display grab failed: %w", err)
	}

	return img, nil
}
