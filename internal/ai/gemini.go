package ai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/christopherklint97/travelpal/internal/textutil"
	"github.com/christopherklint97/travelpal/internal/trip"
)

const defaultGeminiModel = "gemini-2.5-flash"

type Gemini struct {
	Model  string
	client *genai.Client
	logger *slog.Logger
}

func NewGemini(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Gemini, error) {
	if model == "" {
		model = defaultGeminiModel
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Gemini{Model: model, client: client, logger: logger}, nil
}

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Search {
		// Search grounding and a response schema are mutually exclusive.
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	} else if req.Schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = toGenaiSchema(req.Schema)
	}

	g.logger.Debug("invoking gemini",
		"model", g.Model,
		"search", req.Search,
		"prompt_len", len(req.Prompt),
		"system_len", len(req.System),
	)

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.Model, genai.Text(req.Prompt), config)
	if err != nil {
		return "", &ProviderError{Provider: "gemini", Op: "generate", Err: err}
	}

	out := toResponse(resp)
	g.logger.Debug("gemini finished",
		"elapsed", time.Since(start),
		"text_len", len(out.Text),
		"text", textutil.Truncate(out.Text, 2000),
	)
	if strings.TrimSpace(out.Text) == "" {
		return "", ErrEmptyResponse
	}
	return out.Text, nil
}

func (g *Gemini) StartChat(ctx context.Context, cfg ChatConfig) (Chat, error) {
	config := &genai.GenerateContentConfig{}
	if cfg.System != "" {
		config.SystemInstruction = genai.NewContentFromText(cfg.System, genai.RoleUser)
	}
	if len(cfg.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(cfg.Tools))
		for _, t := range cfg.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toGenaiSchema(t.Parameters),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	history := make([]*genai.Content, 0, len(cfg.History))
	for _, m := range cfg.History {
		role := genai.Role(genai.RoleUser)
		if m.Role == trip.RoleModel {
			role = genai.RoleModel
		}
		history = append(history, genai.NewContentFromText(m.Text, role))
	}

	chat, err := g.client.Chats.Create(ctx, g.Model, config, history)
	if err != nil {
		return nil, &ProviderError{Provider: "gemini", Op: "start chat", Err: err}
	}
	g.logger.Debug("gemini chat started", "model", g.Model, "history", len(history), "tools", len(cfg.Tools))
	return &geminiChat{chat: chat, logger: g.logger}, nil
}

type geminiChat struct {
	chat   *genai.Chat
	logger *slog.Logger
}

func (c *geminiChat) Send(ctx context.Context, text string) (*Response, error) {
	c.logger.Debug("gemini chat send", "text_len", len(text), "text", textutil.Truncate(text, 200))
	return c.send(ctx, "send", genai.Part{Text: text})
}

func (c *geminiChat) SendToolResults(ctx context.Context, results []ToolResult) (*Response, error) {
	parts := make([]genai.Part, 0, len(results))
	for _, r := range results {
		c.logger.Debug("gemini chat tool result", "tool", r.Call.Name, "id", r.Call.ID)
		parts = append(parts, genai.Part{FunctionResponse: &genai.FunctionResponse{
			ID:       r.Call.ID,
			Name:     r.Call.Name,
			Response: r.Result,
		}})
	}
	return c.send(ctx, "tool result", parts...)
}

func (c *geminiChat) send(ctx context.Context, op string, parts ...genai.Part) (*Response, error) {
	resp, err := c.chat.SendMessage(ctx, parts...)
	if err != nil {
		return nil, &ProviderError{Provider: "gemini", Op: op, Err: err}
	}
	out := toResponse(resp)
	c.logger.Debug("gemini chat response",
		"kind", out.Kind(),
		"calls", len(out.Calls),
		"text", textutil.Truncate(out.Text, 500),
	)
	if out.empty() && op == "send" {
		return nil, ErrEmptyResponse
	}
	return out, nil
}

// toResponse collects text and function calls from every candidate part.
func toResponse(resp *genai.GenerateContentResponse) *Response {
	out := &Response{}
	if resp == nil {
		return out
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" && !part.Thought {
				text.WriteString(part.Text)
			}
			if fc := part.FunctionCall; fc != nil {
				out.Calls = append(out.Calls, ToolCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
			}
		}
		// Only the first candidate is a real answer.
		break
	}
	out.Text = text.String()
	return out
}
