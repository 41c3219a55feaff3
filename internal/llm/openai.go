package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeatlas-ai/codeatlas/internal/tools"
	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient is the alternate backend for OpenAI-compatible endpoints.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI chat-completions client.
func NewOpenAIClient(apiKey, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIClient{client: openai.NewClient(apiKey), model: model}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	messages, err := openaiMessages(req)
	if err != nil {
		return nil, &ProviderError{Provider: "openai", Err: err}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Tools:       openaiTools(req.Tools),
		Temperature: 0.1,
	})
	if err != nil {
		return nil, &ProviderError{Provider: "openai", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: "openai", Err: ErrEmptyResponse}
	}

	msg := resp.Choices[0].Message
	out := &Response{Text: msg.Content}
	for _, call := range msg.ToolCalls {
		args := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return nil, &ProviderError{Provider: "openai",
					Err: fmt.Errorf("decode arguments of %s: %w", call.Function.Name, err)}
			}
		}
		out.Calls = append(out.Calls, ToolCall{
			ID:   call.ID,
			Name: call.Function.Name,
			Args: args,
		})
	}
	if out.Text == "" && len(out.Calls) == 0 {
		return nil, &ProviderError{Provider: "openai", Err: ErrEmptyResponse}
	}
	return out, nil
}

func (c *OpenAIClient) Close() error { return nil }

func openaiMessages(req Request) ([]openai.ChatCompletionMessage, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Turns)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, turn := range req.Turns {
		switch turn.Role {
		case RoleModel:
			msg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: turn.Text,
			}
			for _, call := range turn.Calls {
				args, err := json.Marshal(call.Args)
				if err != nil {
					return nil, fmt.Errorf("encode arguments of %s: %w", call.Name, err)
				}
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: string(args),
					},
				})
			}
			messages = append(messages, msg)
		default:
			if len(turn.Results) > 0 {
				for _, result := range turn.Results {
					messages = append(messages, openai.ChatCompletionMessage{
						Role:       openai.ChatMessageRoleTool,
						ToolCallID: result.CallID,
						Content:    result.Content,
					})
				}
				continue
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: turn.Text,
			})
		}
	}
	return messages, nil
}

func openaiTools(defs []tools.Definition) []openai.Tool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(defs))
	for _, def := range defs {
		properties := map[string]any{}
		var required []string
		for _, p := range def.Params {
			properties[p.Name] = openaiParamSchema(p)
			if p.Required {
				required = append(required, p.Name)
			}
		}
		params := map[string]any{
			"type":       "object",
			"properties": properties,
		}
		if len(required) > 0 {
			params["required"] = required
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(def.Kind),
				Description: def.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

func openaiParamSchema(p tools.Param) map[string]any {
	switch p.Type {
	case "integer":
		return map[string]any{"type": "integer", "description": p.Description}
	case "boolean":
		return map[string]any{"type": "boolean", "description": p.Description}
	case "string_array":
		return map[string]any{
			"type":        "array",
			"description": p.Description,
			"items":       map[string]any{"type": "string"},
		}
	default:
		return map[string]any{"type": "string", "description": p.Description}
	}
}
