package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"propsearch/config"
	"propsearch/models"
)

const maxToolIterations = 5

const systemPrompt = `You are a real estate search assistant for the UAE market.
Parse the location name exactly as the user wrote it ("Dubai Marina", "JBR",
"Palm Jumeirah"). Turn price phrases into bounds: "under 5M" means
max_price 5000000, "above 2M" means min_price 2000000, "2M to 4M" means
both. Extract property_type (villa, apartment, townhouse, penthouse, ...)
and transaction_type (sale or rent, default sale). When the user wants to
find properties, call search_properties with those arguments, then answer
naturally using the returned listings.`

// SearchFunc is the search facade the agent exposes as a tool. Re-entrant
// synchronous calls are fine; the core is synchronous end to end.
type SearchFunc func(ctx context.Context, c models.SearchCriteria) (*models.SearchResult, error)

// Agent turns a natural-language query into structured searches via an
// OpenAI-compatible chat completions endpoint with manual tool calling.
type Agent struct {
	cfg    config.LLMConfig
	client *http.Client
	search SearchFunc
}

func New(cfg config.LLMConfig, client *http.Client, search SearchFunc) *Agent {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Agent{cfg: cfg, client: client, search: search}
}

// ToolCallRecord is one executed tool call, kept for the response trace.
type ToolCallRecord struct {
	Tool   string          `json:"tool_name"`
	Args   json.RawMessage `json:"args"`
	Result json.RawMessage `json:"result"`
}

// Answer is the agent's reply plus every listing its searches produced.
type Answer struct {
	Reply     string              `json:"ai_response"`
	Listings  []models.RawListing `json:"listings"`
	ToolCalls []ToolCallRecord    `json:"tool_calls_made"`
}

// Ask runs the tool-calling loop: send the query, execute any tool calls
// the model makes, feed results back, and stop on the first plain reply or
// after maxToolIterations rounds.
func (a *Agent) Ask(ctx context.Context, query string) (*Answer, error) {
	if a.cfg.APIKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY not configured")
	}

	messages := []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: query},
	}

	answer := &Answer{Listings: []models.RawListing{}}

	for i := 0; i < maxToolIterations; i++ {
		msg, err := a.complete(ctx, messages)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)

		if len(msg.ToolCalls) == 0 {
			answer.Reply = msg.Content
			return answer, nil
		}

		for _, call := range msg.ToolCalls {
			result := a.dispatch(ctx, call, answer)
			messages = append(messages, chatMessage{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    string(result),
			})
		}
	}

	return answer, nil
}

func (a *Agent) dispatch(ctx context.Context, call toolCall, answer *Answer) json.RawMessage {
	log.Printf("Agent: tool call %s(%s)", call.Function.Name, call.Function.Arguments)

	var result json.RawMessage
	switch call.Function.Name {
	case "search_properties":
		result = a.runSearch(ctx, []byte(call.Function.Arguments), answer)
	default:
		result = errorResult(fmt.Sprintf("unknown tool: %s", call.Function.Name))
	}

	answer.ToolCalls = append(answer.ToolCalls, ToolCallRecord{
		Tool:   call.Function.Name,
		Args:   json.RawMessage(call.Function.Arguments),
		Result: result,
	})
	return result
}

// searchArgs is the loose argument shape an LLM produces. It is validated
// into SearchCriteria here and the untyped form never travels further.
type searchArgs struct {
	Location        string `json:"location"`
	PropertyType    string `json:"property_type"`
	TransactionType string `json:"transaction_type"`
	MinPrice        *int64 `json:"min_price"`
	MaxPrice        *int64 `json:"max_price"`
	Bedrooms        *int   `json:"bedrooms"`
	Bathrooms       *int   `json:"bathrooms"`
}

func (a *Agent) runSearch(ctx context.Context, rawArgs []byte, answer *Answer) json.RawMessage {
	var args searchArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return errorResult(fmt.Sprintf("bad arguments: %v", err))
	}

	criteria := models.SearchCriteria{
		Location:        args.Location,
		PropertyType:    args.PropertyType,
		TransactionType: models.TransactionType(args.TransactionType),
		MinPrice:        args.MinPrice,
		MaxPrice:        args.MaxPrice,
		Bedrooms:        args.Bedrooms,
		Bathrooms:       args.Bathrooms,
	}

	result, err := a.search(ctx, criteria)
	if err != nil {
		return errorResult(err.Error())
	}

	answer.Listings = append(answer.Listings, result.Listings...)

	// The model only needs a sample to talk about; the full set goes back
	// to the HTTP caller through Answer.Listings.
	sample := result.Listings
	if len(sample) > 10 {
		sample = sample[:10]
	}
	payload, _ := json.Marshal(map[string]any{
		"status":     "success",
		"count":      result.Count(),
		"provenance": result.Provenance,
		"listings":   sample,
	})
	return payload
}

func errorResult(msg string) json.RawMessage {
	payload, _ := json.Marshal(map[string]string{"status": "error", "message": msg})
	return payload
}

func (a *Agent) complete(ctx context.Context, messages []chatMessage) (*chatMessage, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model:    a.cfg.Model,
		Messages: messages,
		Tools:    toolDefinitions,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("chat completion: status %d: %s", resp.StatusCode, string(body))
	}

	var completion chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: no choices")
	}
	return &completion.Choices[0].Message, nil
}
