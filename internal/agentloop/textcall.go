package agentloop

import (
	"encoding/json"
	"strings"
)

// extractedCall is a tool call parsed out of free text, in either of the
// two accepted shapes.
type extractedCall struct {
	Name  string
	Input json.RawMessage
}

// ExtractTextToolCall locates the first JSON object in text and, if it
// parses as either {name, parameters} or {tool, args}, returns the call it
// describes. This is the text-emulated path used for providers/models that
// don't surface structured tool_calls: the system prompt instructs the
// model to emit exactly one such object when it wants to call a tool.
func ExtractTextToolCall(text string) (extractedCall, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return extractedCall{}, false
	}

	end := matchingBrace(text, start)
	if end < 0 {
		return extractedCall{}, false
	}
	candidate := text[start : end+1]

	var loose struct {
		Name       string          `json:"name"`
		Parameters json.RawMessage `json:"parameters"`
		Tool       string          `json:"tool"`
		Args       json.RawMessage `json:"args"`
	}
	if err := json.Unmarshal([]byte(candidate), &loose); err != nil {
		return extractedCall{}, false
	}

	name := loose.Name
	input := loose.Parameters
	if name == "" {
		name = loose.Tool
		input = loose.Args
	}
	if name == "" {
		return extractedCall{}, false
	}
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	return extractedCall{Name: name, Input: input}, true
}

// matchingBrace returns the index of the brace matching the '{' at open,
// accounting for nested objects and braces inside string literals, or -1 if
// text ends before the object closes.
func matchingBrace(text string, open int) int {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
