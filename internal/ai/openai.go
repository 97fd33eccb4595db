package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/christopherklint97/travelpal/internal/textutil"
	"github.com/christopherklint97/travelpal/internal/trip"
)

const defaultOpenAIModel = "gpt-4o-mini"

type OpenAI struct {
	Model  string
	client openai.Client
	logger *slog.Logger
}

func NewOpenAI(apiKey, model string, logger *slog.Logger, opts ...option.RequestOption) *OpenAI {
	if model == "" {
		model = defaultOpenAIModel
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAI{Model: model, client: openai.NewClient(opts...), logger: logger}
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.Model),
		Messages: messages,
	}
	// Search is not offered through chat completions; the schema text is
	// already embedded in the prompt in that case.
	if req.Schema != nil {
		schema, err := schemaMap(req.Schema)
		if err != nil {
			return "", err
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "trip_plan",
					Schema: schema,
				},
			},
		}
	}

	o.logger.Debug("invoking openai",
		"model", o.Model,
		"prompt_len", len(req.Prompt),
		"schema", req.Schema != nil,
	)

	start := time.Now()
	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", &ProviderError{Provider: "openai", Op: "generate", Err: err}
	}
	if len(completion.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	text := completion.Choices[0].Message.Content
	o.logger.Debug("openai finished",
		"elapsed", time.Since(start),
		"text_len", len(text),
		"text", textutil.Truncate(text, 2000),
	)
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (o *OpenAI) StartChat(ctx context.Context, cfg ChatConfig) (Chat, error) {
	c := &openaiChat{client: o.client, model: o.Model, logger: o.logger}
	if cfg.System != "" {
		c.messages = append(c.messages, openai.SystemMessage(cfg.System))
	}
	for _, m := range cfg.History {
		if m.Role == trip.RoleModel {
			c.messages = append(c.messages, openai.AssistantMessage(m.Text))
		} else {
			c.messages = append(c.messages, openai.UserMessage(m.Text))
		}
	}
	for _, t := range cfg.Tools {
		params, err := schemaMap(t.Parameters)
		if err != nil {
			return nil, fmt.Errorf("declaring tool %s: %w", t.Name, err)
		}
		c.tools = append(c.tools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  openai.FunctionParameters(params),
		}))
	}
	o.logger.Debug("openai chat started", "model", o.Model, "history", len(cfg.History), "tools", len(c.tools))
	return c, nil
}

// openaiChat keeps the transcript client-side since chat completions are
// stateless.
type openaiChat struct {
	client   openai.Client
	model    string
	tools    []openai.ChatCompletionToolUnionParam
	messages []openai.ChatCompletionMessageParamUnion
	logger   *slog.Logger
}

func (c *openaiChat) Send(ctx context.Context, text string) (*Response, error) {
	c.logger.Debug("openai chat send", "text_len", len(text), "text", textutil.Truncate(text, 200))
	resp, err := c.complete(ctx, "send", openai.UserMessage(text))
	if err != nil {
		return nil, err
	}
	if resp.empty() {
		return nil, ErrEmptyResponse
	}
	return resp, nil
}

func (c *openaiChat) SendToolResults(ctx context.Context, results []ToolResult) (*Response, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(results))
	for _, r := range results {
		data, err := json.Marshal(r.Result)
		if err != nil {
			return nil, fmt.Errorf("marshaling tool result: %w", err)
		}
		c.logger.Debug("openai chat tool result", "tool", r.Call.Name, "id", r.Call.ID)
		msgs = append(msgs, openai.ToolMessage(string(data), r.Call.ID))
	}
	return c.complete(ctx, "tool result", msgs...)
}

func (c *openaiChat) complete(ctx context.Context, op string, msgs ...openai.ChatCompletionMessageParamUnion) (*Response, error) {
	messages := append(append([]openai.ChatCompletionMessageParamUnion{}, c.messages...), msgs...)

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
		Tools:    c.tools,
	})
	if err != nil {
		return nil, &ProviderError{Provider: "openai", Op: op, Err: err}
	}
	if len(completion.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	reply := completion.Choices[0].Message
	// Commit the turn only once the model answered.
	c.messages = append(messages, reply.ToParam())

	out := &Response{Text: reply.Content}
	for _, tc := range reply.ToolCalls {
		var args map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			args = nil
			c.logger.Warn("tool call arguments are not a JSON object, passing raw text on",
				"tool", tc.Function.Name,
				"error", err,
				"raw", textutil.Truncate(tc.Function.Arguments, 500),
			)
		}
		out.Calls = append(out.Calls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: args, Raw: tc.Function.Arguments})
	}
	c.logger.Debug("openai chat response",
		"kind", out.Kind(),
		"calls", len(out.Calls),
		"text", textutil.Truncate(out.Text, 500),
	)
	return out, nil
}
