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

// nannyai is the screen-monitoring daemon and its management CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/elabbarw/nannyai/pkg/config"
	"github.com/elabbarw/nannyai/pkg/logger"
	"github.com/elabbarw/nannyai/pkg/registry"
)

var (
	dataDir    string
	configPath string
)

func main() {
	root := &cobra.Command{
		Use:           "nannyai",
		Short:         "NannyAI screen monitoring",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&dataDir, "data-dir", "data", "Directory for config, device registry and capture history")
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default <data-dir>/config.json)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newDevicesCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newCaptureTestCmd())
	root.AddCommand(newAPIKeyCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the pieces every subcommand needs.
type app struct {
	cfg      *config.Config
	cfgPath  string
	logger   logger.Logger
	registry *registry.DeviceRegistry
}

func newApp() (*app, error) {
	path := configPath
	if path == "" {
		path = filepath.Join(dataDir, "config.json")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	log, err := logger.New(logConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	reg, err := registry.New(filepath.Join(dataDir, "devices.json"), log)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		cfgPath:  path,
		logger:   log,
		registry: reg,
	}, nil
}
