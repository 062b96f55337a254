package llm

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockConfig configures the Bedrock adapter.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
}

// BedrockProvider implements Provider for AWS Bedrock's Converse API.
type BedrockProvider struct {
	client       *bedrockruntime.Client
	defaultModel string
}

var _ Provider = (*BedrockProvider)(nil)

// NewBedrockProvider creates a Bedrock adapter using explicit credentials if
// given, otherwise the default AWS credential chain (env, IAM role).
func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken,
			)),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(region))
	}
	if err != nil {
		return nil, NewProviderError("bedrock", defaultModel, err)
	}

	return &BedrockProvider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: defaultModel,
	}, nil
}

func (p *BedrockProvider) Name() string { return "bedrock" }

func (p *BedrockProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "anthropic.claude-3-opus-20240229-v1:0", Name: "Claude 3 Opus (Bedrock)", ContextWindow: 200000},
		{ID: "anthropic.claude-3-sonnet-20240229-v1:0", Name: "Claude 3 Sonnet (Bedrock)", ContextWindow: 200000},
		{ID: "anthropic.claude-3-haiku-20240307-v1:0", Name: "Claude 3 Haiku (Bedrock)", ContextWindow: 200000},
		{ID: "amazon.titan-text-express-v1", Name: "Titan Text Express", ContextWindow: 8192},
		{ID: "meta.llama3-70b-instruct-v1:0", Name: "Llama 3 70B (Bedrock)", ContextWindow: 8192},
		{ID: "mistral.mixtral-8x7b-instruct-v0:1", Name: "Mixtral 8x7B (Bedrock)", ContextWindow: 32768},
		{ID: "cohere.command-r-plus-v1:0", Name: "Command R+ (Bedrock)", ContextWindow: 128000},
	}
}

func (p *BedrockProvider) SupportsNativeTools(model string) bool { return true }

func (p *BedrockProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages, err := convertMessagesToBedrock(req.Messages)
	if err != nil {
		return nil, NewProviderError("bedrock", model, err)
	}

	converseReq := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(model),
		Messages: messages,
	}
	if req.System != "" {
		converseReq.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		if maxTokens > math.MaxInt32 {
			maxTokens = math.MaxInt32
		}
		converseReq.InferenceConfig = &types.InferenceConfiguration{
			MaxTokens: aws.Int32(int32(maxTokens)),
		}
	}
	if len(req.Tools) > 0 {
		toolConfig, err := convertToolsToBedrock(req.Tools)
		if err != nil {
			return nil, NewProviderError("bedrock", model, err)
		}
		converseReq.ToolConfig = toolConfig
	}

	stream, err := p.client.ConverseStream(ctx, converseReq)
	if err != nil {
		return nil, NewProviderError("bedrock", model, err)
	}

	chunks := make(chan *CompletionChunk)
	go processBedrockStream(ctx, stream, chunks, model)
	return chunks, nil
}

func convertMessagesToBedrock(messages []Message) ([]types.Message, error) {
	result := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			continue
		}

		var content []types.ContentBlock
		if m.Content != "" {
			content = append(content, &types.ContentBlockMemberText{Value: m.Content})
		}
		for _, tr := range m.ToolResults {
			content = append(content, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(tr.ToolCallID),
					Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: tr.Content}},
				},
			})
		}
		for _, tc := range m.ToolCalls {
			var inputDoc any
			if len(tc.Input) > 0 {
				if err := json.Unmarshal(tc.Input, &inputDoc); err != nil {
					return nil, err
				}
			} else {
				inputDoc = map[string]any{}
			}
			content = append(content, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     document.NewLazyDocument(inputDoc),
				},
			})
		}

		role := types.ConversationRoleUser
		if m.Role == RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		if len(content) > 0 {
			result = append(result, types.Message{Role: role, Content: content})
		}
	}
	return result, nil
}

func convertToolsToBedrock(tools []ToolSpec) (*types.ToolConfiguration, error) {
	specs := make([]types.Tool, 0, len(tools))
	for _, t := range tools {
		var schemaDoc any
		if len(t.Schema) > 0 {
			if err := json.Unmarshal(t.Schema, &schemaDoc); err != nil {
				return nil, err
			}
		} else {
			schemaDoc = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		specs = append(specs, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(t.Name),
				Description: aws.String(t.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schemaDoc)},
			},
		})
	}
	return &types.ToolConfiguration{Tools: specs}, nil
}

func processBedrockStream(ctx context.Context, stream *bedrockruntime.ConverseStreamOutput, chunks chan<- *CompletionChunk, model string) {
	defer close(chunks)

	eventStream := stream.GetStream()
	defer eventStream.Close()

	var currentToolID, currentToolName string
	var toolInput strings.Builder
	inToolUse := false

	eventChan := eventStream.Events()
	for {
		select {
		case <-ctx.Done():
			chunks <- &CompletionChunk{Error: ctx.Err(), Done: true}
			return
		case event, ok := <-eventChan:
			if !ok {
				if inToolUse {
					chunks <- &CompletionChunk{ToolCall: &ToolCall{ID: currentToolID, Name: currentToolName, Input: json.RawMessage(toolInput.String())}}
				}
				if err := eventStream.Err(); err != nil {
					chunks <- &CompletionChunk{Error: NewProviderError("bedrock", model, err), Done: true}
				} else {
					chunks <- &CompletionChunk{Done: true}
				}
				return
			}

			switch ev := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockStart:
				if toolUse, ok := ev.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
					currentToolID = aws.ToString(toolUse.Value.ToolUseId)
					currentToolName = aws.ToString(toolUse.Value.Name)
					toolInput.Reset()
					inToolUse = true
				}
			case *types.ConverseStreamOutputMemberContentBlockDelta:
				switch delta := ev.Value.Delta.(type) {
				case *types.ContentBlockDeltaMemberText:
					if delta.Value != "" {
						chunks <- &CompletionChunk{Text: delta.Value}
					}
				case *types.ContentBlockDeltaMemberToolUse:
					if delta.Value.Input != nil {
						toolInput.WriteString(*delta.Value.Input)
					}
				}
			case *types.ConverseStreamOutputMemberContentBlockStop:
				if inToolUse {
					input := toolInput.String()
					if input == "" {
						input = "{}"
					}
					chunks <- &CompletionChunk{ToolCall: &ToolCall{ID: currentToolID, Name: currentToolName, Input: json.RawMessage(input)}}
					inToolUse = false
					toolInput.Reset()
				}
			case *types.ConverseStreamOutputMemberMessageStop:
				chunks <- &CompletionChunk{Done: true}
				return
			}
		}
	}
}
