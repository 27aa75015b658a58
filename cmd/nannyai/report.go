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
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/elabbarw/nannyai/pkg/history"
	"github.com/elabbarw/nannyai/pkg/reports"
)

func newReportCmd() *cobra.Command {
	var (
		days   int
		output string
	)

	cmd := &cobra.Command{
		Use:   "report <id-or-name>",
		Short: "Generate a PDF activity report for a device",
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

			store, err := history.Open(dataDir, a.logger)
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()

			out, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create report file: %w", err)
			}
			defer func() {
				_ = out.Close()
			}()

			until := time.Now()
			since := until.AddDate(0, 0, -days)

			gen := reports.NewGenerator(store, a.logger)

			summary, err := gen.Generate(cmd.Context(), device.ID, since, until, out)
			if err != nil {
				return err
			}

			fmt.Printf("Report written to %s (%d captures, %d alerts)\n",
				output, summary.TotalCaptures, summary.AlertCount)

			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Report window in days")
	cmd.Flags().StringVar(&output, "out", "nannyai-report.pdf", "Output PDF path")

	return cmd
}
