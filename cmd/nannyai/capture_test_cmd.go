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

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/elabbarw/nannyai/pkg/capture"
)

const captureTestTimeout = 30 * time.Second

func newCaptureTestCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "capture-test <id-or-name>",
		Short: "Probe a device's capture backends and save one frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			device, err := resolveDevice(a, args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), captureTestTimeout)
			defer cancel()

			selector := capture.NewSelector(a.logger, capture.DefaultBackends()...)

			backend, err := selector.Probe(ctx, device.Config)
			if err != nil {
				return fmt.Errorf("no working capture backend for %q: %w", device.Name, err)
			}

			fmt.Printf("Backend %q works for device %q\n", backend, device.Name)

			device.Config.CaptureBackend = backend

			frame, err := selector.Capture(ctx, device.Config)
			if err != nil {
				return err
			}

			if err := os.WriteFile(output, frame, 0o600); err != nil {
				return fmt.Errorf("failed to write frame: %w", err)
			}

			fmt.Printf("Frame saved to %s (%d bytes)\n", output, len(frame))

			return nil
		},
	}

	cmd.Flags().StringVar(&output, "out", "capture-test.png", "Output PNG path")

	return cmd
}
