package eval

import (
	"fmt"
	"strings"

	errorskg "github.com/sweetpotato0/minirag/errors"
)

// JudgeBackend identifies which LLM backend powers the scoring judge.
type JudgeBackend string

const (
	JudgeGoogle JudgeBackend = "google"
	JudgeOpenAI JudgeBackend = "openai"
)

// ParseJudgeBackend resolves a configured judge backend name. Unknown names
// fail fast instead of falling back to a default.
func ParseJudgeBackend(name string) (JudgeBackend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case string(JudgeGoogle):
		return JudgeGoogle, nil
	case string(JudgeOpenAI):
		return JudgeOpenAI, nil
	default:
		return "", fmt.Errorf("unknown eval judge backend %q: %w", name, errorskg.ErrInvalidConfig)
	}
}
