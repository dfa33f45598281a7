package tools

import (
	"context"
	"strings"

	"github.com/shopzen/shopzen-backend/pkg/llm"
)

const (
	EscalateName      = "escalateToHuman"
	escalationMessage = "I have notified a human specialist. They will review this conversation and contact you shortly."
)

// Escalator records a hand-off request for human follow-up.
type Escalator interface {
	Escalate(ctx context.Context, scope Scope, reason string) error
}

type escalate struct {
	escalator Escalator
}

func EscalateToHuman(escalator Escalator) Tool {
	return &escalate{escalator: escalator}
}

func (t *escalate) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        EscalateName,
		Description: "Escalate the conversation to a human agent when the user is angry or the request is too complex.",
		Parameters:  objectSchema("reason", "The reason for escalation."),
	}
}

func (t *escalate) Execute(ctx context.Context, scope Scope, args map[string]any) (any, error) {
	reason := strings.TrimSpace(stringArg(args, "reason"))
	if reason == "" {
		reason = "unspecified"
	}
	if err := t.escalator.Escalate(ctx, scope, reason); err != nil {
		return nil, err
	}
	return map[string]any{"escalated": true, "message": escalationMessage}, nil
}
