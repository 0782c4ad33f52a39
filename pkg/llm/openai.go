package llm

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// OpenAIEngine sends prompts to an OpenAI compatible chat completion endpoint.
// Azure OpenAI deployments are supported through ApiTypeAzure.
type OpenAIEngine struct {
	settings *Settings
	client   *go_openai.Client
}

func MakeClient(s *Settings) (*go_openai.Client, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var config go_openai.ClientConfig
	switch s.ApiType {
	case ApiTypeAzure:
		config = go_openai.DefaultAzureConfig(s.APIKey, s.BaseURL)
	default:
		config = go_openai.DefaultConfig(s.APIKey)
		if s.BaseURL != "" {
			config.BaseURL = s.BaseURL
		}
	}
	if s.Timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: s.Timeout}
	}
	return go_openai.NewClientWithConfig(config), nil
}

func NewOpenAIEngine(s *Settings) (*OpenAIEngine, error) {
	s = s.Clone()
	client, err := MakeClient(s)
	if err != nil {
		return nil, err
	}
	return &OpenAIEngine{settings: s, client: client}, nil
}

func (e *OpenAIEngine) Complete(ctx context.Context, prompt Prompt) (string, error) {
	req := go_openai.ChatCompletionRequest{
		Model: e.settings.Engine,
		Messages: []go_openai.ChatCompletionMessage{
			{Role: go_openai.ChatMessageRoleSystem, Content: prompt.System},
			{Role: go_openai.ChatMessageRoleUser, Content: prompt.User},
		},
	}
	if e.settings.Temperature != nil {
		req.Temperature = float32(*e.settings.Temperature)
	}
	if e.settings.MaxResponseTokens != nil {
		req.MaxTokens = *e.settings.MaxResponseTokens
	}

	log.Debug().
		Str("engine", req.Model).
		Int("system_len", len(prompt.System)).
		Int("user_len", len(prompt.User)).
		Msg("OpenAI completion started")

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "openai chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}

	log.Debug().
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Str("finish_reason", string(resp.Choices[0].FinishReason)).
		Msg("OpenAI completion finished")

	return resp.Choices[0].Message.Content, nil
}

var _ Completer = (*OpenAIEngine)(nil)
