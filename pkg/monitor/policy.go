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
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/elabbarw/nannyai/pkg/models"
)

// Breach is one category whose score met or exceeded its threshold.
type Breach struct {
	Category string
	Score    float64
}

// EvaluateAlerts returns the breached categories in monitored order.
// Categories absent from the score mapping are skipped; scores outside
// [0,1] are treated as absent rather than breaching. A category without a
// threshold entry uses the default.
func EvaluateAlerts(scores, thresholds map[string]float64, monitored []string) []Breach {
	var breaches []Breach

	for _, category := range monitored {
		score, ok := scores[category]
		if !ok {
			continue
		}

		if math.IsNaN(score) || score < 0 || score > 1 {
			continue
		}

		threshold, ok := thresholds[category]
		if !ok {
			threshold = models.DefaultThreshold
		}

		if score >= threshold {
			breaches = append(breaches, Breach{Category: category, Score: score})
		}
	}

	return breaches
}

// FormatAlertSummary renders the human-readable alert body sent to the
// guardian and stored with the history record.
func FormatAlertSummary(deviceName string, breaches []Breach, terminatedProgram string) string {
	lines := make([]string, 0, len(breaches)+1)

	for _, b := range breaches {
		lines = append(lines, fmt.Sprintf("%s (%.2f)", capitalize(b.Category), b.Score))
	}

	if terminatedProgram != "" {
		lines = append(lines, "Terminated program: "+terminatedProgram)
	}

	return fmt.Sprintf("Alert from %s:\n%s", deviceName, strings.Join(lines, "\n"))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])

	return string(runes)
}
