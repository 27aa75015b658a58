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
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/elabbarw/nannyai/pkg/analyzer"
	"github.com/elabbarw/nannyai/pkg/capture"
	"github.com/elabbarw/nannyai/pkg/config"
	"github.com/elabbarw/nannyai/pkg/history"
	"github.com/elabbarw/nannyai/pkg/monitor"
	"github.com/elabbarw/nannyai/pkg/notify"
	"github.com/elabbarw/nannyai/pkg/terminator"
)

const shutdownTimeout = 10 * time.Second

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the monitoring daemon",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runDaemon()
		},
	}
}

func runDaemon() error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := a.logger

	apiKey, err := config.APIKey(a.cfg.VisionProvider)
	if err != nil {
		return err
	}

	vision, err := analyzer.New(ctx, a.cfg.VisionProvider, apiKey, a.cfg.SelectedModel(a.cfg.VisionProvider), log)
	if err != nil {
		return err
	}

	store, err := history.Open(dataDir, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close history store")
		}
	}()

	sched := monitor.New(
		&monitor.Config{
			DefaultInterval:     a.cfg.ScreenshotInterval,
			Thresholds:          a.cfg.ContentThresholds,
			MonitoredCategories: a.cfg.MonitoredCategories,
			StopGracePeriod:     a.cfg.StopGracePeriod,
		},
		monitor.Deps{
			Registry:   a.registry,
			Capturer:   capture.NewSelector(log, capture.DefaultBackends()...),
			Analyzer:   vision,
			Notifier:   notify.NewMailer(a.cfg.EmailSettings, log),
			Terminator: terminator.New(log),
			History:    store,
		},
		log,
	)

	if a.cfg.MonitoringEnabled {
		if err := sched.Start(ctx, ""); err != nil {
			// Devices that fail their probe stay stopped; the rest run.
			log.Warn().Err(err).Msg("Some devices failed to start")
		}
	} else {
		log.Info().Msg("Monitoring disabled in config; waiting for config change")
	}

	if err := config.Watch(ctx, a.cfgPath, log, func(cfg *config.Config) {
		sched.SetDefaultInterval(cfg.ScreenshotInterval.Duration())

		switch {
		case cfg.MonitoringEnabled && !a.cfg.MonitoringEnabled:
			if startErr := sched.Start(ctx, ""); startErr != nil {
				log.Warn().Err(startErr).Msg("Some devices failed to start")
			}
		case !cfg.MonitoringEnabled && a.cfg.MonitoringEnabled:
			sched.Stop(ctx, "")
		}

		a.cfg = cfg
	}); err != nil {
		log.Warn().Err(err).Msg("Config watch unavailable; interval changes require restart")
	}

	log.Info().Str("data_dir", dataDir).Msg("NannyAI daemon started")

	<-ctx.Done()

	log.Info().Msg("Shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	sched.Stop(stopCtx, "")

	return nil
}

func newAPIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey <provider> <key>",
		Short: "Store a vision provider API key in the OS keyring",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := config.SetAPIKey(args[0], args[1]); err != nil {
				return err
			}

			fmt.Printf("Stored API key for %s\n", args[0])

			return nil
		},
	}

	return cmd
}
