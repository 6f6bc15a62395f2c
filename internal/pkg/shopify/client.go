package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/wandernook/wandernook/internal/pkg/config"
	"github.com/wandernook/wandernook/internal/pkg/metrics"
)

// ErrNotConfigured is returned when the shop domain or admin token is missing.
var ErrNotConfigured = errors.New("shopify admin configuration is missing")

// OrderRef identifies an order. ID is a numeric REST id for created orders
// and a GraphQL gid for orders found by search.
type OrderRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Client struct {
	Domain      string
	AccessToken string
	APIVersion  string
	// BaseURL overrides https://<Domain> (tests).
	BaseURL string

	HTTPClient *http.Client
}

func NewClient(cfg config.ShopifyConfig) *Client {
	version := strings.TrimSpace(cfg.APIVersion)
	if version == "" {
		version = "2025-07"
	}
	return &Client{
		Domain:      strings.TrimSpace(cfg.Domain),
		AccessToken: strings.TrimSpace(cfg.AdminAccessToken),
		APIVersion:  version,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Configured reports whether admin API calls can be made.
func (c *Client) Configured() bool {
	return (c.Domain != "" || c.BaseURL != "") && c.AccessToken != ""
}

func (c *Client) adminURL(path string) string {
	base := c.BaseURL
	if base == "" {
		base = "https://" + c.Domain
	}
	return strings.TrimRight(base, "/") + "/admin/api/" + c.APIVersion + path
}

const findOrderByTagQuery = `query ExistingOrder($query: String!) {
  orders(first: 1, query: $query) {
    edges {
      node {
        id
        name
      }
    }
  }
}`

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type ordersSearchResponse struct {
	Data *struct {
		Orders *struct {
			Edges []struct {
				Node OrderRef `json:"node"`
			} `json:"edges"`
		} `json:"orders"`
	} `json:"data"`
}

// FindOrderByTag returns the first order carrying tag, or nil. A failed
// search is logged and reported as not found.
func (c *Client) FindOrderByTag(ctx context.Context, tag string) (*OrderRef, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	payload := graphQLRequest{
		Query:     findOrderByTagQuery,
		Variables: map[string]any{"query": fmt.Sprintf("tag:%q", tag)},
	}
	status, body, err := c.post(ctx, "/graphql.json", payload)
	if err != nil {
		log.Warnf("[Shopify] order search for %s failed: %v", tag, err)
		return nil, nil
	}
	if status < 200 || status >= 300 {
		log.Warnf("[Shopify] order search for %s failed: status=%d", tag, status)
		return nil, nil
	}

	var out ordersSearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		log.Warnf("[Shopify] order search for %s returned invalid json: %v", tag, err)
		return nil, nil
	}
	if out.Data == nil || out.Data.Orders == nil || len(out.Data.Orders.Edges) == 0 {
		return nil, nil
	}
	node := out.Data.Orders.Edges[0].Node
	return &node, nil
}

type createOrderResponse struct {
	Order *struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"order"`
	Errors json.RawMessage `json:"errors"`
}

// CreateOrder posts a REST order.
func (c *Client) CreateOrder(ctx context.Context, in OrderInput) (*OrderRef, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	status, body, err := c.post(ctx, "/orders.json", map[string]any{"order": in})
	if err != nil {
		return nil, fmt.Errorf("Failed to create Shopify order: %w", err)
	}

	var out createOrderResponse
	jsonErr := json.Unmarshal(body, &out)
	if status < 200 || status >= 300 || jsonErr != nil || out.Order == nil {
		detail := fmt.Sprintf("HTTP %d", status)
		if jsonErr == nil && len(out.Errors) > 0 && string(out.Errors) != "null" {
			detail = string(out.Errors)
		}
		return nil, &Error{Status: status, Message: "Failed to create Shopify order: " + detail}
	}
	return &OrderRef{
		ID:   strconv.FormatInt(out.Order.ID, 10),
		Name: out.Order.Name,
	}, nil
}

// CancelOrder cancels without notifying the customer or restocking.
func (c *Client) CancelOrder(ctx context.Context, orderID int64) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	payload := map[string]any{
		"reason":  "other",
		"email":   false,
		"restock": false,
	}
	status, body, err := c.post(ctx, fmt.Sprintf("/orders/%d/cancel.json", orderID), payload)
	if err != nil {
		return fmt.Errorf("Order cancel failed: %w", err)
	}
	if status < 200 || status >= 300 {
		return &Error{Status: status, Message: fmt.Sprintf("Order cancel failed (%d): %s", status, string(body))}
	}
	return nil
}

// Error is a non-2xx admin API answer.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

func (c *Client) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.adminURL(path), bytes.NewReader(raw))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Shopify-Access-Token", c.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	defer metrics.ObserveUpstream("shopify", time.Now())
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, body, nil
}
