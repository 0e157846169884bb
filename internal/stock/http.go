package stock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"inventory-reconciler/internal/model"
)

// HTTPBackend talks to the inventory service over its REST API. All calls
// honor the request context and a bounded client timeout; non-2xx responses
// surface as transient errors for the retry policy to handle.
type HTTPBackend struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPBackend creates a backend client.
// baseURL: API root, e.g. "https://inventory.example.com/api/v1"
// token: bearer token for the Authorization header (may be empty).
func NewHTTPBackend(baseURL, token string) *HTTPBackend {
	return &HTTPBackend{
		baseURL: baseURL,
		token:   token,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type itemPayload struct {
	ID       string `json:"id"`
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	OnHand   int64  `json:"on_hand"`
	LastCost string `json:"last_cost"`
	HasCost  bool   `json:"has_cost"`
}

func (b *HTTPBackend) FindIdentity(ctx context.Context, by LookupKey, value string) (Identity, error) {
	q := url.Values{}
	q.Set(string(by), value)

	var resp struct {
		Items []itemPayload `json:"items"`
	}
	if err := b.do(ctx, http.MethodGet, "/items?"+q.Encode(), nil, &resp); err != nil {
		return Identity{}, err
	}
	if len(resp.Items) == 0 {
		return Identity{}, ErrNotFound
	}
	it := resp.Items[0]
	return Identity{ID: it.ID, SKU: it.SKU, Name: it.Name}, nil
}

func (b *HTTPBackend) RegisterIdentity(ctx context.Context, name, sku string) (Identity, error) {
	body := map[string]string{"name": name, "sku": sku}
	var resp struct {
		Item itemPayload `json:"item"`
	}
	if err := b.do(ctx, http.MethodPost, "/items", body, &resp); err != nil {
		return Identity{}, err
	}
	return Identity{ID: resp.Item.ID, SKU: resp.Item.SKU, Name: resp.Item.Name}, nil
}

func (b *HTTPBackend) ApplyAdjustment(ctx context.Context, adj model.StockAdjustment) error {
	body := map[string]interface{}{
		"stock_id":     adj.StockID,
		"quantity":     adj.Quantity,
		"unit_cost":    adj.UnitCost.String(),
		"direction":    string(adj.Direction),
		"source_order": adj.SourceOrderNumber,
	}
	return b.do(ctx, http.MethodPost, "/adjustments", body, nil)
}

func (b *HTTPBackend) GetLastCost(ctx context.Context, stockID string) (decimal.Decimal, bool, error) {
	var resp struct {
		Item itemPayload `json:"item"`
	}
	if err := b.do(ctx, http.MethodGet, "/items/"+url.PathEscape(stockID), nil, &resp); err != nil {
		return decimal.Zero, false, err
	}
	if !resp.Item.HasCost {
		return decimal.Zero, false, nil
	}
	cost, err := decimal.NewFromString(resp.Item.LastCost)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("stock: parse last cost %q: %w", resp.Item.LastCost, err)
	}
	return cost, true, nil
}

func (b *HTTPBackend) SetLastCost(ctx context.Context, stockID string, cost decimal.Decimal) error {
	body := map[string]string{"last_cost": cost.String()}
	return b.do(ctx, http.MethodPut, "/items/"+url.PathEscape(stockID)+"/cost", body, nil)
}

func (b *HTTPBackend) OnHand(ctx context.Context, stockID string) (int64, error) {
	var resp struct {
		Item itemPayload `json:"item"`
	}
	if err := b.do(ctx, http.MethodGet, "/items/"+url.PathEscape(stockID), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Item.OnHand, nil
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("stock: marshal: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("stock: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("stock: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("stock: %s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("stock: decode response: %w", err)
		}
	}
	return nil
}
