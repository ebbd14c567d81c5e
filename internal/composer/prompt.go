package composer

import (
	"fmt"
	"strings"

	"github.com/kalambet/aist/internal/engine"
	"github.com/kalambet/aist/internal/retrieval"
)

// BuildMessages assembles the generation prompt: the instruction and the
// retrieved examples form the system message, the task and the previous
// attempt's error (if any) form the user message. It is a pure function of
// its inputs.
func BuildMessages(instruction string, examples []retrieval.Match, task, priorError string) []engine.Message {
	var sys strings.Builder
	sys.WriteString(strings.TrimSpace(instruction))

	if len(examples) > 0 {
		sys.WriteString("\n\n[Examples]\n")
		for i, ex := range examples {
			fmt.Fprintf(&sys, "\nExample %d:\nDescription: %s\nCommand: %s\n", i+1, ex.Description, ex.Command)
		}
	}

	var user strings.Builder
	user.WriteString("Task: ")
	user.WriteString(task)
	if priorError != "" {
		user.WriteString("\n\n[Previous Attempt Failed]\n")
		user.WriteString(priorError)
		user.WriteString("\n\nReturn a corrected command that avoids this error.")
	}

	return []engine.Message{
		{Role: engine.RoleSystem, Content: sys.String()},
		{Role: engine.RoleUser, Content: user.String()},
	}
}
