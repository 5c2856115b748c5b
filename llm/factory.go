package llm

import "fmt"

// Backend identifies an LLM provider implementation.
type Backend string

const (
	BackendGemini Backend = "GEMINI"
	BackendOpenAI Backend = "OPENAI"
)

// ParseBackend validates a configured backend key. Unknown keys fail at
// startup rather than at first use.
func ParseBackend(key string) (Backend, error) {
	switch Backend(key) {
	case BackendGemini, BackendOpenAI:
		return Backend(key), nil
	default:
		return "", fmt.Errorf("unknown llm backend %q", key)
	}
}
