package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIService implements TextService with the Chat Completions API. It works with
// any OpenAI-compatible endpoint when a base URL is given.
type OpenAIService struct {
	client    openai.Client
	modelName string
	logger    *slog.Logger
}

func NewOpenAIService(apiKey, modelName, baseURL string, logger *slog.Logger) *OpenAIService {
	if modelName == "" {
		modelName = DefaultOpenAIModel
	}
	// Retries are applied by RetryingTextService.
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIService{
		client:    openai.NewClient(opts...),
		modelName: modelName,
		logger:    logger,
	}
}

// GenerateStructured forces a call to a single function whose parameters are the
// requested schema. Plain JSON content is accepted when the endpoint ignores tools.
func (o *OpenAIService) GenerateStructured(ctx context.Context, sreq StructuredRequest) (json.RawMessage, error) {
	params := openai.ChatCompletionNewParams{
		Model:               o.modelName,
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage(sreq.Prompt)},
		Temperature:         openai.Float(sreq.Temperature),
		MaxCompletionTokens: openai.Int(DefaultAnthropicMaxTokens),
		Tools: []openai.ChatCompletionToolParam{{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        sreq.Schema.Name,
				Description: openai.String(sreq.Schema.Description),
				Parameters:  openai.FunctionParameters(sreq.Schema.JSONSchema()),
			},
		}},
		ToolChoice: openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: sreq.Schema.Name},
			},
		},
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", ErrMalformedResponse)
	}

	msg := resp.Choices[0].Message
	o.logger.Debug("OpenAI structured response",
		"schema", sreq.Schema.Name,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	for _, tc := range msg.ToolCalls {
		if tc.Function.Name == sreq.Schema.Name {
			return json.RawMessage(tc.Function.Arguments), nil
		}
	}

	if content := strings.TrimSpace(msg.Content); strings.HasPrefix(content, "{") {
		return json.RawMessage(content), nil
	}
	return nil, fmt.Errorf("%w: no %s function call in response", ErrMalformedResponse, sreq.Schema.Name)
}
