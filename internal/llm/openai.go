package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// BackendOpenAI публичный API OpenAI (или совместимый через BaseURL)
	BackendOpenAI = "openai"
	// BackendAzure Azure OpenAI: модель адресуется как deployment
	BackendAzure = "azure"

	defaultMaxTokens = 1024
)

// Config настройки подключения к провайдеру
type Config struct {
	Backend    string
	APIKey     string
	BaseURL    string // для openai: переопределение базового URL
	Endpoint   string // для azure: https://{resource}.openai.azure.com
	APIVersion string // для azure
}

// OpenAIProvider реализует Provider поверх go-openai
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider создает провайдер для OpenAI или Azure OpenAI
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key is required")
	}

	var clientCfg openai.ClientConfig
	switch strings.ToLower(cfg.Backend) {
	case BackendAzure:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("azure endpoint is required for azure backend")
		}
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
		if cfg.APIVersion != "" {
			clientCfg.APIVersion = cfg.APIVersion
		}
		// Имя deployment совпадает с идентификатором модели
		clientCfg.AzureModelMapperFunc = func(model string) string { return model }
	case BackendOpenAI, "":
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
	default:
		return nil, fmt.Errorf("unsupported llm backend: %s", cfg.Backend)
	}

	return &OpenAIProvider{client: openai.NewClientWithConfig(clientCfg)}, nil
}

// Generate выполняет один chat completion запрос
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	chatReq := openai.ChatCompletionRequest{
		Model:               req.Model,
		Messages:            toOpenAIMessages(req.Messages),
		MaxCompletionTokens: maxTokens,
	}

	if req.Schema != nil {
		schemaBytes, err := json.Marshal(req.Schema.Definition)
		if err != nil {
			return nil, fmt.Errorf("marshal schema %q: %w", req.Schema.Name, err)
		}
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        req.Schema.Name,
				Description: req.Schema.Description,
				Schema:      json.RawMessage(schemaBytes),
				Strict:      true,
			},
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		log.Printf("[LLM] Ошибка запроса к модели %s: %v", req.Model, err)
		return nil, mapOpenAIError(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return nil, &ErrInvalidResponse{Err: errors.New("no choices in response")}
	}

	text := resp.Choices[0].Message.Content
	out := &Response{
		Text:  text,
		Model: resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	if req.Schema != nil {
		content := json.RawMessage(text)
		if err := validateResponse(req.Schema, content); err != nil {
			return nil, err
		}
		out.Content = content
	}

	return out, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

// mapOpenAIError классифицирует ошибку go-openai, сохраняя тело ответа провайдера
func mapOpenAIError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &ErrProviderUnavailable{Err: fmt.Errorf("%w: %v", ctxErr, err)}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		payload, _ := json.Marshal(apiErr)
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return &ErrRateLimit{Payload: string(payload), Err: err}
		}
		return &ErrProviderUnavailable{Payload: string(payload), Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return &ErrRateLimit{Payload: reqErr.Error(), Err: err}
		}
		return &ErrProviderUnavailable{Payload: reqErr.Error(), Err: err}
	}

	return &ErrProviderUnavailable{Payload: err.Error(), Err: err}
}
