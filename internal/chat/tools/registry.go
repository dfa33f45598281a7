// Package tools holds the functions the shopping assistant may call. Every
// tool receives the authenticated user out of band through Scope; model
// arguments never select whose data is read.
package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
	"github.com/shopzen/shopzen-backend/pkg/llm"
)

const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeUnknown = "unknown"
)

// Scope identifies the caller a tool runs for.
type Scope struct {
	UserID         uuid.UUID
	ConversationID uuid.UUID
}

// Tool is one callable function exposed to the model.
type Tool interface {
	Definition() llm.ToolDefinition
	Execute(ctx context.Context, scope Scope, args map[string]any) (any, error)
}

// Result is the structured output handed back to the model.
type Result struct {
	Name    string
	Output  any
	Outcome string
}

// Registry resolves tool calls by name.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t == nil {
			continue
		}
		r.tools[t.Definition().Name] = t
	}
	return r
}

// Definitions lists the registered tools sorted by name.
func (r *Registry) Definitions() []llm.ToolDefinition {
	if r == nil {
		return nil
	}
	defs := make([]llm.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute runs one call. Failures become {error: ...} results so the
// conversation can continue.
func (r *Registry) Execute(ctx context.Context, scope Scope, call llm.ToolCall) Result {
	tool, ok := r.lookup(call.Name)
	if !ok {
		return Result{
			Name:    call.Name,
			Output:  errorOutput(fmt.Sprintf("Function %s not found", call.Name)),
			Outcome: OutcomeUnknown,
		}
	}
	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	out, err := tool.Execute(ctx, scope, args)
	if err != nil {
		return Result{Name: call.Name, Output: errorOutput(publicMessage(err)), Outcome: OutcomeError}
	}
	return Result{Name: call.Name, Output: out, Outcome: OutcomeOK}
}

func (r *Registry) lookup(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.tools[name]
	return t, ok
}

func errorOutput(msg string) map[string]any {
	return map[string]any{"error": msg}
}

// publicMessage keeps internal causes out of model-visible output.
func publicMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return "tool execution failed"
}

func stringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func objectSchema(required string, description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			required: map[string]any{
				"type":        "string",
				"description": description,
			},
		},
		"required": []string{required},
	}
}
