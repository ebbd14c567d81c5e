package composer

import (
	"context"
	"strings"

	"github.com/kalambet/aist/internal/engine"
	"github.com/kalambet/aist/internal/retrieval"
)

// Chatter is the subset of engine.Engine the synthesizer needs.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []engine.Message) (string, error)
}

// Synthesizer turns a task description plus retrieved examples into one
// candidate shell command with a single generation call.
type Synthesizer struct {
	chat        Chatter
	model       string
	instruction string
}

// NewSynthesizer creates a Synthesizer that prompts model with instruction.
func NewSynthesizer(chat Chatter, model, instruction string) *Synthesizer {
	return &Synthesizer{chat: chat, model: model, instruction: instruction}
}

// Synthesize returns the generated reply with surrounding whitespace
// trimmed and otherwise untouched; execution decides whether it is a valid
// command. Provider errors are returned unchanged.
func (s *Synthesizer) Synthesize(ctx context.Context, task string, examples []retrieval.Match, priorError string) (string, error) {
	msgs := BuildMessages(s.instruction, examples, task, priorError)
	out, err := s.chat.Chat(ctx, s.model, msgs)
	if err != nil {
		return "", err
	}
	cmd := strings.TrimSpace(out)
	if cmd == "" {
		return "", &engine.ProviderError{Backend: "generation", Op: "chat", Err: engine.ErrEmptyResponse}
	}
	return cmd, nil
}
