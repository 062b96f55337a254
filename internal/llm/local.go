package llm

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// LocalConfig configures an OpenAI-compatible local runtime (Ollama, LM
// Studio, vLLM, llama.cpp server) reachable over HTTP.
type LocalConfig struct {
	BaseURL      string
	APIKey       string
	DefaultModel string
}

// LocalProvider implements Provider against any runtime that speaks the
// OpenAI chat-completions wire shape. Unlike the hosted OpenAI adapter, its
// native-tool-calling support is not assumed: callers check
// SupportsNativeTools per model against the closed local-model whitelist.
type LocalProvider struct {
	client       *openai.Client
	defaultModel string
}

var _ Provider = (*LocalProvider)(nil)

// NewLocalProvider creates a local-runtime adapter pointed at BaseURL. Most
// local runtimes ignore the API key, but the OpenAI client requires a
// non-empty value.
func NewLocalProvider(cfg LocalConfig) (*LocalProvider, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("llm: local runtime base url is required")
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "local"
	}
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = cfg.BaseURL

	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = "llama3.1"
	}

	return &LocalProvider{
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: defaultModel,
	}, nil
}

func (p *LocalProvider) Name() string { return "local" }

func (p *LocalProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: p.defaultModel, Name: p.defaultModel, ContextWindow: 0},
	}
}

func (p *LocalProvider) SupportsNativeTools(model string) bool {
	return SupportsNativeTools("local", model)
}

func (p *LocalProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertMessagesToOpenAI(req.Messages, req.System),
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 && p.SupportsNativeTools(model) {
		chatReq.Tools = convertToolsToOpenAI(req.Tools)
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, NewProviderError("local", model, err)
	}

	chunks := make(chan *CompletionChunk)
	go processOpenAIStream(stream, chunks)
	return chunks, nil
}
