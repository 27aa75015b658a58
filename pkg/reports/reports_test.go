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

package reports

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elabbarw/nannyai/pkg/logger"
	"github.com/elabbarw/nannyai/pkg/models"
)

type stubHistory struct {
	records []models.CaptureRecord
	err     error
}

func (s *stubHistory) QueryRange(_ context.Context, _ string, _, _ time.Time) ([]models.CaptureRecord, error) {
	return s.records, s.err
}

func testWindow() (time.Time, time.Time) {
	until := time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC)

	return until.Add(-24 * time.Hour), until
}

func TestSummarizeAggregates(t *testing.T) {
	since, until := testWindow()

	history := &stubHistory{records: []models.CaptureRecord{
		{
			Timestamp:  since.Add(time.Hour),
			DeviceID:   "dev-1",
			DeviceName: "Kids Laptop",
			Scores:     map[string]float64{"violence": 0.2, "adult": 0.1},
		},
		{
			Timestamp:  since.Add(2 * time.Hour),
			DeviceID:   "dev-1",
			DeviceName: "Kids Laptop",
			Error:      "analysis failed: timeout",
		},
		{
			Timestamp:    since.Add(3 * time.Hour),
			DeviceID:     "dev-1",
			DeviceName:   "Kids Laptop",
			Scores:       map[string]float64{"violence": 0.9, "adult": 0.1},
			AlertSummary: "Alert from Kids Laptop:\nViolence (0.90)",
		},
		{
			Timestamp:    since.Add(4 * time.Hour),
			DeviceID:     "dev-1",
			DeviceName:   "Kids Laptop",
			Scores:       map[string]float64{"violence": 0.8, "gambling": 0.75},
			AlertSummary: "Alert from Kids Laptop:\nViolence (0.80)\nGambling (0.75)",
		},
	}}

	gen := NewGenerator(history, logger.NewTestLogger())

	summary, err := gen.Summarize(context.Background(), "dev-1", since, until)
	require.NoError(t, err)

	assert.Equal(t, "Kids Laptop", summary.DeviceName)
	assert.Equal(t, 4, summary.TotalCaptures)
	assert.Equal(t, 1, summary.AnalyzerFails)
	assert.Equal(t, 2, summary.AlertCount)
	assert.Equal(t, 2, summary.CategoryHits["violence"])
	assert.Equal(t, 1, summary.CategoryHits["gambling"])
	assert.NotContains(t, summary.CategoryHits, "adult")
	require.Len(t, summary.RecentAlerts, 2)
	assert.True(t, summary.RecentAlerts[0].Timestamp.Before(summary.RecentAlerts[1].Timestamp))
}

func TestSummarizeCapsRecentAlerts(t *testing.T) {
	since, until := testWindow()

	var records []models.CaptureRecord
	for i := 0; i < maxRecentAlerts+10; i++ {
		records = append(records, models.CaptureRecord{
			Timestamp:    since.Add(time.Duration(i) * time.Minute),
			DeviceID:     "dev-1",
			DeviceName:   "Kids Laptop",
			Scores:       map[string]float64{"violence": 0.9},
			AlertSummary: "Alert from Kids Laptop:\nViolence (0.90)",
		})
	}

	gen := NewGenerator(&stubHistory{records: records}, logger.NewTestLogger())

	summary, err := gen.Summarize(context.Background(), "dev-1", since, until)
	require.NoError(t, err)

	assert.Equal(t, maxRecentAlerts+10, summary.AlertCount)
	require.Len(t, summary.RecentAlerts, maxRecentAlerts)
	// The cap keeps the newest alerts.
	assert.Equal(t, records[len(records)-1].Timestamp, summary.RecentAlerts[maxRecentAlerts-1].Timestamp)
}

func TestGenerateWritesPDF(t *testing.T) {
	since, until := testWindow()

	history := &stubHistory{records: []models.CaptureRecord{
		{
			Timestamp:    since.Add(time.Hour),
			DeviceID:     "dev-1",
			DeviceName:   "Kids Laptop",
			Scores:       map[string]float64{"violence": 0.9},
			AlertSummary: "Alert from Kids Laptop:\nViolence (0.90)",
		},
	}}

	gen := NewGenerator(history, logger.NewTestLogger())

	var buf bytes.Buffer

	summary, err := gen.Generate(context.Background(), "dev-1", since, until, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.AlertCount)

	// A PDF stream starts with the %PDF magic.
	require.Greater(t, buf.Len(), 4)
	assert.Equal(t, "%PDF", buf.String()[:4])
}

func TestSortedCategoriesOrder(t *testing.T) {
	hits := map[string]int{"violence": 2, "adult": 2, "gambling": 5}

	assert.Equal(t, []string{"gambling", "adult", "violence"}, sortedCategories(hits))
}
