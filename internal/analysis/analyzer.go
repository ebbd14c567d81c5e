package analysis

import (
	"context"
	"strings"

	"github.com/kalambet/aist/internal/engine"
)

// Chatter is the subset of engine.Engine the analyzer needs.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []engine.Message) (string, error)
}

// Analyzer summarizes the output of an accepted command.
type Analyzer struct {
	chat        Chatter
	model       string
	instruction string
}

// New creates an Analyzer that prompts model with instruction.
func New(chat Chatter, model, instruction string) *Analyzer {
	return &Analyzer{chat: chat, model: model, instruction: instruction}
}

// Analyze returns the provider's summary of output. Blank output is
// summarized without a provider call.
func (a *Analyzer) Analyze(ctx context.Context, command, output string) (string, error) {
	if strings.TrimSpace(output) == "" {
		return "The command produced no output.", nil
	}
	msgs := []engine.Message{
		{Role: engine.RoleSystem, Content: a.instruction},
		{Role: engine.RoleUser, Content: "Command:\n" + command + "\n\nOutput:\n" + output},
	}
	summary, err := a.chat.Chat(ctx, a.model, msgs)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(summary), nil
}
