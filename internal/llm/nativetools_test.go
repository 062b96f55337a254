package llm

import "testing"

func TestSupportsNativeTools(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		want     bool
	}{
		{"anthropic always native", "anthropic", "claude-sonnet-4-20250514", true},
		{"openai always native", "openai", "gpt-4o", true},
		{"bedrock always native", "bedrock", "anthropic.claude-3-sonnet-20240229-v1:0", true},
		{"local llama3.1 is whitelisted", "local", "llama3.1:70b", true},
		{"local qwen2.5 is whitelisted", "local", "qwen2.5-coder:32b", true},
		{"local mistral-nemo is whitelisted", "local", "mistral-nemo:latest", true},
		{"local command-r is whitelisted", "local", "command-r-plus", true},
		{"local llama2 is not whitelisted", "local", "llama2:13b", false},
		{"local unknown model is not whitelisted", "local", "phi3", false},
		{"provider name is case-insensitive", "Anthropic", "claude-sonnet-4", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SupportsNativeTools(tt.provider, tt.model)
			if got != tt.want {
				t.Errorf("SupportsNativeTools(%q, %q) = %v, want %v", tt.provider, tt.model, got, tt.want)
			}
		})
	}
}
