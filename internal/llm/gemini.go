package llm

import (
	"context"
	"fmt"

	"github.com/codeatlas-ai/codeatlas/internal/tools"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiClient is the primary backend, built on Google's Generative AI
// SDK with native function calling.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini API client. model defaults to the
// production flash model.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, req Request) (*Response, error) {
	var systemInstruction *genai.Content
	if req.System != "" {
		systemInstruction = genai.Text(req.System)[0]
	}

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
		Temperature:       ptrFloat32(0.1),
		Tools:             geminiTools(req.Tools),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, geminiHistory(req.Turns), genConfig)
	if err != nil {
		return nil, &ProviderError{Provider: "gemini", Err: err}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &ProviderError{Provider: "gemini", Err: ErrEmptyResponse}
	}

	out := &Response{}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			out.Text += part.Text
		}
		if part.FunctionCall != nil {
			out.Calls = append(out.Calls, ToolCall{
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
	}
	if out.Text == "" && len(out.Calls) == 0 {
		return nil, &ProviderError{Provider: "gemini", Err: ErrEmptyResponse}
	}
	return out, nil
}

func (c *GeminiClient) Close() error { return nil }

// geminiHistory converts a neutral transcript into genai contents.
func geminiHistory(turns []Turn) []*genai.Content {
	history := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		content := &genai.Content{Role: string(turn.Role)}
		if turn.Text != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: turn.Text})
		}
		for _, call := range turn.Calls {
			content.Parts = append(content.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{Name: call.Name, Args: call.Args},
			})
		}
		for _, result := range turn.Results {
			content.Parts = append(content.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					Name:     result.Name,
					Response: map[string]any{"result": result.Content},
				},
			})
		}
		history = append(history, content)
	}
	return history
}

// geminiTools converts the tool catalog into genai function declarations.
func geminiTools(defs []tools.Definition) []*genai.Tool {
	if len(defs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, def := range defs {
		schema := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: map[string]*genai.Schema{},
		}
		for _, p := range def.Params {
			schema.Properties[p.Name] = geminiParamSchema(p)
			if p.Required {
				schema.Required = append(schema.Required, p.Name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        string(def.Kind),
			Description: def.Description,
			Parameters:  schema,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func geminiParamSchema(p tools.Param) *genai.Schema {
	switch p.Type {
	case "integer":
		return &genai.Schema{Type: genai.TypeInteger, Description: p.Description}
	case "boolean":
		return &genai.Schema{Type: genai.TypeBoolean, Description: p.Description}
	case "string_array":
		return &genai.Schema{
			Type:        genai.TypeArray,
			Description: p.Description,
			Items:       &genai.Schema{Type: genai.TypeString},
		}
	default:
		return &genai.Schema{Type: genai.TypeString, Description: p.Description}
	}
}

func ptrFloat32(f float64) *float32 {
	f32 := float32(f)
	return &f32
}
