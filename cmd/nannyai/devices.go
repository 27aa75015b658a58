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
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/elabbarw/nannyai/pkg/models"
)

var errDeviceNotFound = errors.New("device not found")

func newDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Manage monitored devices",
	}

	cmd.AddCommand(newDevicesAddCmd())
	cmd.AddCommand(newDevicesListCmd())
	cmd.AddCommand(newDevicesRemoveCmd())
	cmd.AddCommand(newDevicesSetCmd())

	return cmd
}

type deviceFlags struct {
	interval    time.Duration
	backend     string
	vncHost     string
	vncPort     int
	vncPassword string
}

func (f *deviceFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.interval, "interval", 0, "Per-device screenshot interval (0 uses the global default)")
	cmd.Flags().StringVar(&f.backend, "backend", "", "Capture backend (vnc or screen; empty probes automatically)")
	cmd.Flags().StringVar(&f.vncHost, "vnc-host", "", "VNC server host for remote capture")
	cmd.Flags().IntVar(&f.vncPort, "vnc-port", 5900, "VNC server port")
	cmd.Flags().StringVar(&f.vncPassword, "vnc-password", "", "VNC server password")
}

func (f *deviceFlags) apply(cfg *models.DeviceConfig) {
	if f.interval > 0 {
		d := models.Duration(f.interval)
		cfg.Interval = &d
	}

	if f.backend != "" {
		cfg.CaptureBackend = f.backend
	}

	if f.vncHost != "" {
		cfg.VNCHost = f.vncHost
		cfg.VNCPort = f.vncPort
		cfg.VNCPassword = f.vncPassword
	}
}

func newDevicesAddCmd() *cobra.Command {
	var flags deviceFlags

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			var cfg models.DeviceConfig
			flags.apply(&cfg)

			device, err := a.registry.Add(args[0], cfg)
			if err != nil {
				return err
			}

			fmt.Printf("Added device %q (%s)\n", device.Name, device.ID)

			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

func newDevicesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered devices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			devices := a.registry.List()
			if len(devices) == 0 {
				fmt.Println("No devices registered")

				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tBACKEND\tINTERVAL\tVNC HOST")

			for i := range devices {
				d := &devices[i]

				interval := "default"
				if d.Config.Interval != nil {
					interval = d.Config.Interval.Duration().String()
				}

				backend := d.Config.CaptureBackend
				if backend == "" {
					backend = "auto"
				}

				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Name, backend, interval, d.Config.VNCHost)
			}

			return w.Flush()
		},
	}
}

func newDevicesRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id-or-name>",
		Short: "Remove a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			device, err := resolveDevice(a, args[0])
			if err != nil {
				return err
			}

			if err := a.registry.Remove(device.ID); err != nil {
				return err
			}

			fmt.Printf("Removed device %q\n", device.Name)

			return nil
		},
	}
}

func newDevicesSetCmd() *cobra.Command {
	var flags deviceFlags

	cmd := &cobra.Command{
		Use:   "set <id-or-name>",
		Short: "Update a device's capture settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			device, err := resolveDevice(a, args[0])
			if err != nil {
				return err
			}

			cfg := device.Config
			flags.apply(&cfg)

			if err := a.registry.UpdateConfig(device.ID, cfg); err != nil {
				return err
			}

			fmt.Printf("Updated device %q\n", device.Name)

			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

// resolveDevice accepts either a device ID or a device name.
func resolveDevice(a *app, idOrName string) (models.Device, error) {
	if device, ok := a.registry.Get(idOrName); ok {
		return device, nil
	}

	if device, ok := a.registry.FindByName(idOrName); ok {
		return device, nil
	}

	return models.Device{}, fmt.Errorf("%w: %q", errDeviceNotFound, idOrName)
}
