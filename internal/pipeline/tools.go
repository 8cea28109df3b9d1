package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hiuminee/carebot-backend/internal/llm"
	"github.com/hiuminee/carebot-backend/internal/rag"
)

// BuiltinTools is the statically declared tool surface the model may call
// during a turn.
func BuiltinTools(retriever rag.Retriever) []llm.Tool {
	return []llm.Tool{
		{
			Name:        "get_weather",
			Description: "Fetch the weather information for a given location.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"location": {
						"type": "string",
						"description": "The location for which to fetch the weather information."
					}
				},
				"required": ["location"]
			}`),
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				var params struct {
					Location string `json:"location"`
				}
				if err := json.Unmarshal(args, &params); err != nil {
					return "", fmt.Errorf("decode arguments: %w", err)
				}
				return "sunny", nil
			},
		},
		{
			Name:        "get_information",
			Description: "Get information from your knowledge base to answer questions.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {
						"type": "string",
						"description": "The user question."
					}
				},
				"required": ["query"]
			}`),
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				var params struct {
					Query string `json:"query"`
				}
				if err := json.Unmarshal(args, &params); err != nil {
					return "", fmt.Errorf("decode arguments: %w", err)
				}
				docs, err := retriever.Retrieve(ctx, params.Query)
				if err != nil {
					return "", fmt.Errorf("retrieve context: %w", err)
				}
				payload, err := json.Marshal(map[string]string{"context": rag.ContextText(docs)})
				if err != nil {
					return "", err
				}
				return string(payload), nil
			},
		},
	}
}
