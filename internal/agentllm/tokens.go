package agentllm

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// perMessageTokens approximates the role and framing overhead of one chat message.
const perMessageTokens = 4

var (
	codecOnce sync.Once
	codecMu   sync.Mutex
	codec     tokenizer.Codec
	codecErr  error
)

// countTokens estimates the prompt size of msgs with the cl100k encoding,
// falling back to four bytes per token when the encoding cannot be loaded.
func countTokens(msgs []Message) int {
	codecOnce.Do(func() { codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase) })
	total := 0
	for _, m := range msgs {
		text := m.Content
		for _, c := range m.ToolCalls {
			text += c.Function.Name + c.Function.Arguments
		}
		total += perMessageTokens + textTokens(text)
	}
	return total
}

func textTokens(text string) int {
	if text == "" {
		return 0
	}
	if codecErr == nil {
		codecMu.Lock()
		ids, _, err := codec.Encode(text)
		codecMu.Unlock()
		if err == nil {
			return len(ids)
		}
	}
	return (len(text) + 3) / 4
}
