package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"inventory-reconciler/internal/inbox"
	"inventory-reconciler/internal/model"
)

const extractPrompt = `Extract the order confirmation from the message below as JSON with fields:
type ("purchase" or "sale"), order_number, date (YYYY-MM-DD), vendor_name or channel,
items (name, sku, upc, product_id, quantity, unit_price or sale_price),
subtotal, taxes, shipping, total, confidence_score (0..1).
Omit any field you cannot read. Reply with JSON only.`

// HTTPExtractor calls a chat-completions style endpoint to turn message
// text into an extraction payload.
type HTTPExtractor struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewHTTPExtractor creates an extractor client.
// endpoint: completions URL, e.g. "https://api.openai.com/v1/chat/completions"
// model: model identifier passed through to the endpoint.
func NewHTTPExtractor(endpoint, apiKey, model string) *HTTPExtractor {
	return &HTTPExtractor{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (e *HTTPExtractor) Extract(ctx context.Context, msg inbox.RawMessage) (*model.OrderRecord, float64, error) {
	reqBody, err := json.Marshal(map[string]interface{}{
		"model": e.model,
		"messages": []map[string]string{
			{"role": "system", "content": extractPrompt},
			{"role": "user", "content": "Subject: " + msg.Subject + "\n\n" + msg.Body},
		},
		"response_format": map[string]string{"type": "json_object"},
		"temperature":     0,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("extract: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, 0, fmt.Errorf("extract: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("extract: call endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, 0, fmt.Errorf("extract: unexpected status %d", resp.StatusCode)
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, 0, fmt.Errorf("extract: decode completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, 0, fmt.Errorf("extract: empty completion")
	}

	// Malformed extraction content is not a transport error: log it and
	// skip the message, matching the never-raises contract.
	var p payload
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &p); err != nil {
		log.Printf("[extract] unparseable payload for %s: %v", msg.UID, err)
		return nil, 0, nil
	}
	o := p.toOrder(msg.UID)
	if o == nil {
		log.Printf("[extract] message %s is not an order confirmation, skipping", msg.UID)
		return nil, 0, nil
	}
	return o, p.Confidence, nil
}
