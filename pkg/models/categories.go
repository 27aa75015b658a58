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

package models

// Content categories the vision model scores.
const (
	CategoryViolence = "violence"
	CategoryAdult    = "adult"
	CategoryHate     = "hate"
	CategoryDrugs    = "drugs"
	CategoryGambling = "gambling"
)

// DefaultThreshold is the breach threshold applied to any category without
// an explicit configuration entry.
const DefaultThreshold = 0.7

// DefaultCategories returns the monitored category set in evaluation order.
func DefaultCategories() []string {
	return []string{
		CategoryViolence,
		CategoryAdult,
		CategoryHate,
		CategoryDrugs,
		CategoryGambling,
	}
}

// DefaultThresholds returns the default per-category threshold mapping.
func DefaultThresholds() map[string]float64 {
	thresholds := make(map[string]float64, 5)
	for _, c := range DefaultCategories() {
		thresholds[c] = DefaultThreshold
	}

	return thresholds
}
