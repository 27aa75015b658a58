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
	"net"
	"time"

	vnc "github.com/mitchellh/go-vnc"

	"github.com/elabbarw/nannyai/pkg/models"
)

const (
	defaultVNCPort    = 5900
	vncFrameTimeout   = 15 * time.Second
	vncMessageBacklog = 8
)

var errVNCNoFrame = errors.New("vnc server sent no framebuffer update")

// VNCBackend captures the framebuffer of a remote device over RFB.
// A fresh connection per frame keeps the loop free of session state; the
// capture interval is long enough that handshake cost does not matter.
type VNCBackend struct{}

func (*VNCBackend) Name() string { return "vnc" }

func (*VNCBackend) Capture(ctx context.Context, cfg models.DeviceConfig) (image.Image, error) {
	if cfg.VNCHost == "" {
		return nil, ErrNotConfigured
	}

	port := cfg.VNCPort
	if port == 0 {
		port = defaultVNCPort
	}

	addr := net.JoinHostPort(cfg.VNCHost, fmt.Sprintf("%d", port))

	dialer := net.Dialer{Timeout: vncFrameTimeout}

	nc, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("vnc dial %s: %w", addr, err)
	}
	defer func() { _ = nc.Close() }()

	deadline := time.Now().Add(vncFrameTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	_ = nc.SetDeadline(deadline)

	msgCh := make(chan vnc.ServerMessage, vncMessageBacklog)

	clientCfg := &vnc.ClientConfig{
		ServerMessageCh: msgCh,
		Exclusive:       false,
	}

	if cfg.VNCPassword != "" {
		clientCfg.Auth = []vnc.ClientAuth{&vnc.PasswordAuth{Password: cfg.VNCPassword}}
	}

	conn, err := vnc.Client(nc, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("vnc handshake %s: %w", addr, err)
	}
	defer func() { _ = conn.Close() }()

	width := conn.FrameBufferWidth
	height := conn.FrameBufferHeight

	if err := conn.FramebufferUpdateRequest(false, 0, 0, width, height); err != nil {
		return nil, fmt.Errorf("vnc framebuffer request: %w", err)
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, errVNCNoFrame
		case msg, ok := <-msgCh:
			if !ok {
				return nil, errVNCNoFrame
			}

			update, isUpdate := msg.(*vnc.FramebufferUpdateMessage)
			if !isUpdate {
				continue
			}

			return frameToImage(update, int(width), int(height)), nil
		}
	}
}

// frameToImage flattens the update rectangles into one RGBA image.
// Unrequested regions stay black, which is fine for a full-frame request.
func frameToImage(update *vnc.FramebufferUpdateMessage, width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for i := range update.Rectangles {
		rect := &update.Rectangles[i]

		raw, ok := rect.Enc.(*vnc.RawEncoding)
		if !ok {
			continue
		}

		for row := 0; row < int(rect.Height); row++ {
			for col := 0; col < int(rect.Width); col++ {
				c := raw.Colors[row*int(rect.Width)+col]
				offset := img.PixOffset(int(rect.X)+col, int(rect.Y)+row)

				img.Pix[offset] = uint8(c.R)
				img.Pix[offset+1] = uint8(c.G)
				img.Pix[offset+2] = uint8(c.B)
				img.Pix[offset+3] = 0xff
			}
		}
	}

	return img
}
