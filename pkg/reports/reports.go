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

// Package reports renders activity reports over the capture history.
package reports

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"

	"github.com/elabbarw/nannyai/pkg/logger"
	"github.com/elabbarw/nannyai/pkg/models"
)

const maxRecentAlerts = 25

// HistorySource is the slice of the history store a report needs.
type HistorySource interface {
	QueryRange(ctx context.Context, deviceID string, since, until time.Time) ([]models.CaptureRecord, error)
}

// Summary aggregates one device's activity over a report window.
type Summary struct {
	DeviceID      string
	DeviceName    string
	Since         time.Time
	Until         time.Time
	TotalCaptures int
	AnalyzerFails int
	AlertCount    int
	CategoryHits  map[string]int
	RecentAlerts  []models.CaptureRecord
}

// Generator builds PDF activity reports from capture history.
type Generator struct {
	history HistorySource
	logger  zerolog.Logger
}

func NewGenerator(history HistorySource, log logger.Logger) *Generator {
	return &Generator{
		history: history,
		logger:  log.WithComponent("reports"),
	}
}

// Summarize aggregates the device's history for the window.
func (g *Generator) Summarize(ctx context.Context, deviceID string, since, until time.Time) (*Summary, error) {
	records, err := g.history.QueryRange(ctx, deviceID, since, until)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	summary := &Summary{
		DeviceID:     deviceID,
		Since:        since,
		Until:        until,
		CategoryHits: make(map[string]int),
	}

	for i := range records {
		rec := &records[i]
		summary.TotalCaptures++
		summary.DeviceName = rec.DeviceName

		if rec.Error != "" {
			summary.AnalyzerFails++
			continue
		}

		if rec.AlertSummary == "" {
			continue
		}

		summary.AlertCount++

		for category, score := range rec.Scores {
			if score >= models.DefaultThreshold {
				summary.CategoryHits[category]++
			}
		}

		summary.RecentAlerts = append(summary.RecentAlerts, *rec)
	}

	// Records come back oldest-first; the report shows the newest alerts.
	if len(summary.RecentAlerts) > maxRecentAlerts {
		summary.RecentAlerts = summary.RecentAlerts[len(summary.RecentAlerts)-maxRecentAlerts:]
	}

	return summary, nil
}

// WritePDF renders the summary as a single-device PDF report.
func (g *Generator) WritePDF(summary *Summary, w io.Writer) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("NannyAI Activity Report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "NannyAI Activity Report")
	pdf.Ln(12)

	name := summary.DeviceName
	if name == "" {
		name = summary.DeviceID
	}

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Device: %s", name))
	pdf.Ln(7)
	pdf.Cell(0, 7, fmt.Sprintf("Period: %s to %s",
		summary.Since.Format("2006-01-02 15:04"), summary.Until.Format("2006-01-02 15:04")))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Overview")
	pdf.Ln(9)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Captures analyzed: %d", summary.TotalCaptures))
	pdf.Ln(7)
	pdf.Cell(0, 7, fmt.Sprintf("Alerts raised: %d", summary.AlertCount))
	pdf.Ln(7)
	pdf.Cell(0, 7, fmt.Sprintf("Analysis failures: %d", summary.AnalyzerFails))
	pdf.Ln(12)

	if len(summary.CategoryHits) > 0 {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.Cell(0, 8, "Alerts by Category")
		pdf.Ln(9)

		pdf.SetFont("Helvetica", "", 11)

		for _, category := range sortedCategories(summary.CategoryHits) {
			pdf.Cell(0, 7, fmt.Sprintf("%s: %d", category, summary.CategoryHits[category]))
			pdf.Ln(7)
		}

		pdf.Ln(5)
	}

	if len(summary.RecentAlerts) > 0 {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.Cell(0, 8, "Recent Alerts")
		pdf.Ln(9)

		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(45, 7, "Time", "1", 0, "", false, 0, "")
		pdf.CellFormat(0, 7, "Detail", "1", 1, "", false, 0, "")

		pdf.SetFont("Helvetica", "", 10)

		for i := range summary.RecentAlerts {
			rec := &summary.RecentAlerts[i]
			pdf.CellFormat(45, 7, rec.Timestamp.Format("2006-01-02 15:04:05"), "1", 0, "", false, 0, "")
			pdf.CellFormat(0, 7, firstLine(rec.AlertSummary), "1", 1, "", false, 0, "")
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render PDF: %w", err)
	}

	return nil
}

// Generate is the one-shot helper the CLI uses.
func (g *Generator) Generate(ctx context.Context, deviceID string, since, until time.Time, w io.Writer) (*Summary, error) {
	summary, err := g.Summarize(ctx, deviceID, since, until)
	if err != nil {
		return nil, err
	}

	if err := g.WritePDF(summary, w); err != nil {
		return nil, err
	}

	g.logger.Info().
		Str("device_id", deviceID).
		Int("captures", summary.TotalCaptures).
		Int("alerts", summary.AlertCount).
		Msg("Activity report generated")

	return summary, nil
}

// sortedCategories orders categories by hit count descending, then name.
func sortedCategories(hits map[string]int) []string {
	categories := make([]string, 0, len(hits))
	for category := range hits {
		categories = append(categories, category)
	}

	sort.Slice(categories, func(i, j int) bool {
		if hits[categories[i]] != hits[categories[j]] {
			return hits[categories[i]] > hits[categories[j]]
		}

		return categories[i] < categories[j]
	})

	return categories
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}

	return s
}
