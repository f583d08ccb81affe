// Package openai adapts the OpenAI Chat Completions API to the model.Model
// interface used by the research pipeline. It converts the pipeline's
// normalized contents into provider messages (pairing replayed tool results
// with the assistant tool calls that produced them), supports streaming and
// function calling, and accepts a custom base URL for OpenAI-compatible
// endpoints.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pharmadb/deepresearch/core"
	"github.com/pharmadb/deepresearch/model"
)

// partialCall accumulates streamed tool call fragments (id, name, argument
// deltas) until the finish chunk closes them out.
type partialCall struct{ id, name, args string }

// Options configure the OpenAI adapter. Defaults suit the analyst role;
// override per instance via functional options.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
	BaseURL             string
}

// Model wraps the OpenAI Chat Completions API behind model.Model.
type Model struct {
	client *openai.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
}

// NewModel creates an adapter with its own client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient wraps an existing client, mainly for tests.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements unified streaming / non-streaming generation.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.buildParams(req, buildMessages(req))
		if req.Stream {
			m.generateStreaming(ctx, params, out, errCh)
			return
		}
		m.generateOnce(ctx, params, out, errCh)
	}()

	return out, errCh
}

// indexToolResults collects replayed tool results by function call id,
// preserving first-seen order. Results whose call id never appears on an
// assistant message are appended at the end so no observation is lost.
func indexToolResults(contents []core.Content) (map[string]string, []string) {
	results := map[string]string{}
	var order []string

	for _, c := range contents {
		if c.Role != "tool" {
			continue
		}
		for _, p := range c.Parts {
			fr, ok := p.(core.FunctionResponsePart)
			if !ok || fr.FunctionResponse.ID == "" {
				continue
			}
			if _, seen := results[fr.FunctionResponse.ID]; seen {
				continue
			}
			results[fr.FunctionResponse.ID] = responseText(fr.FunctionResponse)
			order = append(order, fr.FunctionResponse.ID)
		}
	}

	return results, order
}

func responseText(fr core.FunctionResponse) string {
	if s, ok := fr.Response.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", fr.Response)
}

// buildMessages converts normalized contents into provider messages. Each
// assistant tool call is immediately followed by the tool message carrying
// its result, matched by function call id; the API rejects histories where
// the ids do not pair up.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	toolResults, order := indexToolResults(req.Contents)

	var messages []openai.ChatCompletionMessageParamUnion
	for _, c := range req.Contents {
		if c.Role == "tool" {
			continue
		}

		text := flattenText(c)

		switch c.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(text))
		case "user":
			messages = append(messages, openai.UserMessage(text))
		case "assistant":
			messages = appendAssistant(messages, c, text, toolResults)
		default:
			if text != "" {
				messages = append(messages, openai.UserMessage(text))
			}
		}
	}

	for _, id := range order {
		if result, ok := toolResults[id]; ok {
			messages = append(messages, openai.ToolMessage(result, id))
		}
	}

	return messages
}

// appendAssistant emits the assistant message and, when it carries tool
// calls, the paired tool result messages right after it.
func appendAssistant(
	messages []openai.ChatCompletionMessageParamUnion,
	c core.Content,
	text string,
	toolResults map[string]string,
) []openai.ChatCompletionMessageParamUnion {
	toolCalls, callIDs := extractToolCalls(c)
	if len(toolCalls) == 0 {
		return append(messages, openai.AssistantMessage(text))
	}

	messages = append(messages, openai.ChatCompletionMessageParamUnion{
		OfAssistant: &openai.ChatCompletionAssistantMessageParam{
			Role:      "assistant",
			ToolCalls: toolCalls,
		},
	})

	for _, id := range callIDs {
		if id == "" {
			continue
		}
		if result, ok := toolResults[id]; ok {
			messages = append(messages, openai.ToolMessage(result, id))
			delete(toolResults, id)
		}
	}

	return messages
}

func flattenText(c core.Content) string {
	var b strings.Builder
	for _, p := range c.Parts {
		if tp, ok := p.(core.TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// extractToolCalls converts FunctionCallParts to provider tool calls,
// returning the call ids in order for result pairing.
func extractToolCalls(c core.Content) ([]openai.ChatCompletionMessageToolCallParam, []string) {
	var toolCalls []openai.ChatCompletionMessageToolCallParam
	var callIDs []string

	for _, p := range c.Parts {
		fc, ok := p.(core.FunctionCallPart)
		if !ok {
			continue
		}
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   fc.FunctionCall.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      fc.FunctionCall.Name,
				Arguments: fc.FunctionCall.Arguments,
			},
		})
		callIDs = append(callIDs, fc.FunctionCall.ID)
	}

	return toolCalls, callIDs
}

// buildParams assembles the request, applying per-request generation
// overrides and tool declarations.
func (m *Model) buildParams(
	req model.Request,
	messages []openai.ChatCompletionMessageParamUnion,
) openai.ChatCompletionNewParams {
	temperature := m.opts.Temperature
	maxTokens := m.opts.MaxCompletionTokens
	if req.Config != nil {
		if req.Config.Temperature != nil {
			temperature = *req.Config.Temperature
		}
		if req.Config.MaxTokens != nil {
			maxTokens = *req.Config.MaxTokens
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               m.opts.Model,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}

	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
		for i, tdef := range req.Tools {
			tools[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        tdef.Function.Name,
					Description: openai.String(tdef.Function.Description),
					Parameters:  tdef.Function.Parameters,
				},
			}
		}
		params.Tools = tools
	}

	return params
}

// generateStreaming forwards partial text / tool call deltas as they arrive
// and emits the assembled final response on the finish chunk.
func (m *Model) generateStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)

	var text strings.Builder
	pending := map[int64]*partialCall{}

	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				text.WriteString(choice.Delta.Content)
				out <- model.Response{
					Partial: true,
					Content: core.Content{
						Role:  "assistant",
						Parts: []core.Part{core.TextPart{Text: choice.Delta.Content}},
					},
				}
			}

			for _, tc := range choice.Delta.ToolCalls {
				pc, ok := pending[tc.Index]
				if !ok {
					pc = &partialCall{}
					pending[tc.Index] = pc
				}
				if tc.ID != "" {
					pc.id = tc.ID
				}
				if tc.Function.Name != "" {
					pc.name = tc.Function.Name
				}
				pc.args += tc.Function.Arguments

				out <- model.Response{
					Partial: true,
					Content: core.Content{
						Role:  "assistant",
						Parts: []core.Part{functionCallPart(pc)},
					},
				}
			}

			if choice.FinishReason != "" {
				finalParts := make([]core.Part, 0, len(pending)+1)
				if text.Len() > 0 {
					finalParts = append(finalParts, core.TextPart{Text: text.String()})
				}
				for _, pc := range pending {
					finalParts = append(finalParts, functionCallPart(pc))
				}
				out <- model.Response{
					Partial:      false,
					Content:      core.Content{Role: "assistant", Parts: finalParts},
					FinishReason: choice.FinishReason,
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("openai streaming error: %w", err)
	}
}

func functionCallPart(pc *partialCall) core.FunctionCallPart {
	return core.FunctionCallPart{FunctionCall: core.FunctionCall{
		ID:        pc.id,
		Name:      pc.name,
		Arguments: pc.args,
	}}
}

// generateOnce performs a single non-streaming completion.
func (m *Model) generateOnce(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("openai api error: %w", err)
		return
	}
	if len(resp.Choices) == 0 {
		errCh <- fmt.Errorf("no choices returned")
		return
	}

	choice := resp.Choices[0]
	parts := make([]core.Part, 0, len(choice.Message.ToolCalls)+1)
	if choice.Message.Content != "" {
		parts = append(parts, core.TextPart{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}})
	}

	out <- model.Response{
		ID:           resp.ID,
		Partial:      false,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: choice.FinishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
}

// Info returns metadata describing this adapter.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
