package agent

import "encoding/json"

// Wire types for the OpenAI-compatible chat completions API.

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []toolDef     `json:"tools,omitempty"`
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type toolDef struct {
	Type     string      `json:"type"`
	Function toolDefFunc `json:"function"`
}

type toolDefFunc struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

var toolDefinitions = []toolDef{
	{
		Type: "function",
		Function: toolDefFunc{
			Name:        "search_properties",
			Description: "Search the property portal for listings matching structured criteria. Use whenever the user wants to find villas, apartments or other properties.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"location": {"type": "string", "description": "Location or area to search, exactly as the user named it"},
					"property_type": {"type": "string", "description": "villa, apartment, townhouse, penthouse, ..."},
					"transaction_type": {"type": "string", "enum": ["sale", "rent"], "description": "Defaults to sale"},
					"min_price": {"type": "integer", "description": "Minimum price in AED"},
					"max_price": {"type": "integer", "description": "Maximum price in AED"},
					"bedrooms": {"type": "integer", "description": "Number of bedrooms"},
					"bathrooms": {"type": "integer", "description": "Number of bathrooms"}
				},
				"required": ["location"]
			}`),
		},
	},
}
