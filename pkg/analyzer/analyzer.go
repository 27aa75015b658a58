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

// Package analyzer classifies screenshots into per-category confidence
// scores using a vision model provider.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/elabbarw/nannyai/pkg/logger"
	"github.com/elabbarw/nannyai/pkg/models"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	systemPrompt = "You're NannyAI. A bot specialised in protecting children and minors from harmful " +
		"content on the internet. You will be provided with screenshots to analyze for potentially " +
		"harmful content. For each category (violence, adult, hate, drugs, gambling), provide a " +
		"confidence score as a float between 0.0 and 1.0. If you can identify the foreground program, " +
		"include its name under the key \"program_name\". Return the results in JSON format with the " +
		"categories as keys, for example: " +
		`{"violence": 0.0, "adult": 0.0, "hate": 0.0, "drugs": 0.0, "gambling": 0.0}`

	emojiPrompt = "NannyAI, pay close attention to chats and emojis that might hint towards anything " +
		"sexual or violent since a minor would be viewing them. They won't explicitly mention anything " +
		"to trigger but the emojis and their order would implicitly mention this."

	userPrompt = "NannyAI, please analyze this screenshot for potentially harmful content."
)

var (
	errUnknownProvider = errors.New("unknown vision provider")
	errMissingAPIKey   = errors.New("vision provider API key not configured")
	errEmptyResponse   = errors.New("vision provider returned an empty response")
)

// Analyzer classifies one PNG-encoded screenshot. A returned error means
// this cycle produced no usable scores; the caller records it as a
// data-quality event, not a loop fault.
type Analyzer interface {
	Analyze(ctx context.Context, pngData []byte) (*models.Analysis, error)
}

// New builds the analyzer for the configured provider.
func New(ctx context.Context, provider, apiKey, model string, log logger.Logger) (Analyzer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s", errMissingAPIKey, provider)
	}

	switch provider {
	case ProviderOpenAI:
		return NewOpenAI(apiKey, model, log), nil
	case ProviderGemini:
		return NewGemini(ctx, apiKey, model, log)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownProvider, provider)
	}
}

// parseScores extracts validated category scores from a model response.
// Scores outside [0,1] or non-numeric are dropped. An "explicit" key
// folds into the adult score, clamped to 1.
func parseScores(content string) (*models.Analysis, error) {
	var raw map[string]interface{}

	if err := json.Unmarshal([]byte(trimFences(content)), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}

	scores := make(map[string]float64)

	for _, category := range models.DefaultCategories() {
		if score, ok := scoreValue(raw[category]); ok {
			scores[category] = score
		}
	}

	if extra, ok := scoreValue(raw["explicit"]); ok {
		adult := scores[models.CategoryAdult] + extra
		if adult > 1 {
			adult = 1
		}

		scores[models.CategoryAdult] = adult
	}

	analysis := &models.Analysis{Scores: scores}

	if program, ok := raw["program_name"].(string); ok {
		analysis.ProgramName = program
	}

	return analysis, nil
}

func scoreValue(v interface{}) (float64, bool) {
	var score float64

	switch value := v.(type) {
	case float64:
		score = value
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0, false
		}

		score = parsed
	default:
		return 0, false
	}

	if math.IsNaN(score) || score < 0 || score > 1 {
		return 0, false
	}

	return score, true
}

// trimFences strips a markdown code fence the model may wrap around the
// JSON body.
func trimFences(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}

	return strings.TrimSpace(content)
}
