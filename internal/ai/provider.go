package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/christopherklint97/travelpal/internal/trip"
)

// ErrEmptyResponse is returned when the model produced neither text nor a
// tool call.
var ErrEmptyResponse = errors.New("model returned an empty response")

// ProviderError wraps transport and API failures. They are safe to retry.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Request is a one-shot structured generation.
type Request struct {
	System string
	Prompt string
	// Schema constrains the output. Nil when search grounding is enabled.
	Schema *jsonschema.Schema
	Search bool
}

// ChatConfig seeds a conversational session.
type ChatConfig struct {
	System  string
	History []trip.ChatMessage
	Tools   []Tool
}

// Tool is a function the model may invoke instead of replying with text.
type Tool struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
	StartChat(ctx context.Context, cfg ChatConfig) (Chat, error)
}

// Chat is a live conversation. It is not safe for concurrent use.
type Chat interface {
	Send(ctx context.Context, text string) (*Response, error)
	// SendToolResults answers every call of the previous response in one
	// turn.
	SendToolResults(ctx context.Context, results []ToolResult) (*Response, error)
}

type ResponseKind int

const (
	TextResponse ResponseKind = iota
	ToolInvocation
)

func (k ResponseKind) String() string {
	switch k {
	case TextResponse:
		return "text"
	case ToolInvocation:
		return "tool_call"
	default:
		return fmt.Sprintf("ResponseKind(%d)", int(k))
	}
}

type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
	// Raw is the arguments text as the model sent it, when the provider
	// delivers text. Args is nil if Raw is not a JSON object.
	Raw string
}

// ToolResult answers one ToolCall.
type ToolResult struct {
	Call   ToolCall
	Result map[string]any
}

// Response is one model turn: text, tool calls, or both.
type Response struct {
	Text  string
	Calls []ToolCall
}

func (r *Response) Kind() ResponseKind {
	if r != nil && len(r.Calls) > 0 {
		return ToolInvocation
	}
	return TextResponse
}

// Invocation returns the first call of the named tool.
func (r *Response) Invocation(name string) (ToolCall, bool) {
	if r == nil {
		return ToolCall{}, false
	}
	for _, c := range r.Calls {
		if c.Name == name {
			return c, true
		}
	}
	return ToolCall{}, false
}

func (r *Response) empty() bool {
	return r == nil || (strings.TrimSpace(r.Text) == "" && len(r.Calls) == 0)
}
