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

package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/elabbarw/nannyai/pkg/logger"
	"github.com/elabbarw/nannyai/pkg/models"
)

const defaultGeminiModel = "gemini-1.5-flash-8b"

// GeminiAnalyzer calls the Google Gemini vision API.
type GeminiAnalyzer struct {
	client *genai.Client
	model  string
	logger logger.Logger
}

func NewGemini(ctx context.Context, apiKey, model string, log logger.Logger) (*GeminiAnalyzer, error) {
	if model == "" {
		model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiAnalyzer{
		client: client,
		model:  model,
		logger: log,
	}, nil
}

func (a *GeminiAnalyzer) Analyze(ctx context.Context, pngData []byte) (*models.Analysis, error) {
	model := a.client.GenerativeModel(a.model)
	model.GenerationConfig.ResponseMIMEType = "application/json"

	prompt := strings.Join([]string{systemPrompt, emojiPrompt, userPrompt}, "\n")

	resp, err := model.GenerateContent(ctx, genai.Text(prompt), genai.ImageData("png", pngData))
	if err != nil {
		return nil, fmt.Errorf("gemini vision call failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errEmptyResponse
	}

	var sb strings.Builder

	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	if sb.Len() == 0 {
		return nil, errEmptyResponse
	}

	a.logger.Debug().Str("model", a.model).Msg("Gemini analysis complete")

	return parseScores(sb.String())
}

// Close releases the underlying API client.
func (a *GeminiAnalyzer) Close() error {
	return a.client.Close()
}
