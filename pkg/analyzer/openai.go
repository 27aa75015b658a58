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
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/elabbarw/nannyai/pkg/logger"
	"github.com/elabbarw/nannyai/pkg/models"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	maxResponseTokens  = 300
)

// OpenAIAnalyzer calls the OpenAI vision API with a JSON response format.
type OpenAIAnalyzer struct {
	client *openai.Client
	model  string
	logger logger.Logger
}

func NewOpenAI(apiKey, model string, log logger.Logger) *OpenAIAnalyzer {
	if model == "" {
		model = defaultOpenAIModel
	}

	return &OpenAIAnalyzer{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: log,
	}
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, pngData []byte) (*models.Analysis, error) {
	imageURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData)

	req := openai.ChatCompletionRequest{
		Model:     a.model,
		MaxTokens: maxResponseTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleSystem, Content: emojiPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: userPrompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: imageURL},
					},
				},
			},
		},
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai vision call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errEmptyResponse
	}

	a.logger.Debug().Str("model", a.model).Str("finish_reason", string(resp.Choices[0].FinishReason)).
		Msg("OpenAI analysis complete")

	return parseScores(resp.Choices[0].Message.Content)
}
