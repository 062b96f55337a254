package llm

import "strings"

// commercialNativeToolProviders always support native tool calling: they're
// hosted APIs whose function-calling contract Harbor can trust unconditionally.
var commercialNativeToolProviders = map[string]bool{
	"anthropic": true,
	"openai":    true,
	"bedrock":   true,
}

// localNativeToolModelPrefixes is the closed whitelist of local-runtime
// model families known to implement OpenAI-compatible tool calling
// reliably. Anything not matched here is assumed to need text-emulated
// tool-call extraction, since a wrong "native" assumption silently drops
// tool calls the model only described in prose.
var localNativeToolModelPrefixes = []string{
	"llama3.1",
	"llama3.2",
	"llama3.3",
	"mistral-nemo",
	"mistral-large",
	"qwen2.5",
	"command-r",
}

// SupportsNativeTools reports whether provider/model should be trusted to
// surface structured tool calls. Commercial providers always do; a local
// runtime's model must match the whitelist.
func SupportsNativeTools(provider, model string) bool {
	if commercialNativeToolProviders[strings.ToLower(provider)] {
		return true
	}
	m := strings.ToLower(model)
	for _, prefix := range localNativeToolModelPrefixes {
		if strings.HasPrefix(m, prefix) || strings.Contains(m, prefix) {
			return true
		}
	}
	return false
}
