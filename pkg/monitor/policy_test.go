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

package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elabbarw/nannyai/pkg/models"
)

func TestEvaluateAlerts(t *testing.T) {
	defaultThresholds := models.DefaultThresholds()

	tests := []struct {
		name       string
		scores     map[string]float64
		thresholds map[string]float64
		monitored  []string
		want       []Breach
	}{
		{
			name:       "single breach",
			scores:     map[string]float64{"violence": 0.85},
			thresholds: defaultThresholds,
			monitored:  []string{"violence"},
			want:       []Breach{{Category: "violence", Score: 0.85}},
		},
		{
			name:       "below threshold",
			scores:     map[string]float64{"violence": 0.5},
			thresholds: defaultThresholds,
			monitored:  []string{"violence"},
			want:       nil,
		},
		{
			name:       "score equal to threshold breaches",
			scores:     map[string]float64{"adult": 0.7},
			thresholds: defaultThresholds,
			monitored:  []string{"adult"},
			want:       []Breach{{Category: "adult", Score: 0.7}},
		},
		{
			name:       "monitored order preserved",
			scores:     map[string]float64{"gambling": 0.9, "violence": 0.8, "drugs": 0.95},
			thresholds: defaultThresholds,
			monitored:  []string{"drugs", "violence", "gambling"},
			want: []Breach{
				{Category: "drugs", Score: 0.95},
				{Category: "violence", Score: 0.8},
				{Category: "gambling", Score: 0.9},
			},
		},
		{
			name:       "absent categories skipped",
			scores:     map[string]float64{"violence": 0.9},
			thresholds: defaultThresholds,
			monitored:  []string{"adult", "violence", "hate"},
			want:       []Breach{{Category: "violence", Score: 0.9}},
		},
		{
			name:       "out of range treated as absent",
			scores:     map[string]float64{"violence": 1.5, "adult": -0.2, "hate": 0.8},
			thresholds: defaultThresholds,
			monitored:  []string{"violence", "adult", "hate"},
			want:       []Breach{{Category: "hate", Score: 0.8}},
		},
		{
			name:      "missing threshold uses default",
			scores:    map[string]float64{"violence": 0.71},
			monitored: []string{"violence"},
			want:      []Breach{{Category: "violence", Score: 0.71}},
		},
		{
			name:       "per-category threshold override",
			scores:     map[string]float64{"gambling": 0.4},
			thresholds: map[string]float64{"gambling": 0.3},
			monitored:  []string{"gambling"},
			want:       []Breach{{Category: "gambling", Score: 0.4}},
		},
		{
			name:       "unmonitored category never breaches",
			scores:     map[string]float64{"gambling": 0.99},
			thresholds: defaultThresholds,
			monitored:  []string{"violence"},
			want:       nil,
		},
		{
			name:       "empty scores",
			scores:     map[string]float64{},
			thresholds: defaultThresholds,
			monitored:  models.DefaultCategories(),
			want:       nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateAlerts(tt.scores, tt.thresholds, tt.monitored)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatAlertSummary(t *testing.T) {
	breaches := []Breach{
		{Category: "violence", Score: 0.85},
		{Category: "adult", Score: 0.72},
	}

	summary := FormatAlertSummary("kids-laptop", breaches, "")
	assert.Equal(t, "Alert from kids-laptop:\nViolence (0.85)\nAdult (0.72)", summary)

	summary = FormatAlertSummary("kids-laptop", breaches[:1], "doom")
	assert.Equal(t, "Alert from kids-laptop:\nViolence (0.85)\nTerminated program: doom", summary)
}
