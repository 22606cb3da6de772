package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/claude/liftledger/internal/models"
)

// HTTPClient implements DataSource by calling the LiftLedger REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	return body, nil
}

// QueryLoggedSets fetches the full set history. The user is implied by the
// server-side identity; the userID argument only matters in local mode.
func (c *HTTPClient) QueryLoggedSets(ctx context.Context, _ int) ([]models.LoggedSet, error) {
	body, err := c.get(ctx, "/api/v1/sets", nil)
	if err != nil {
		return nil, err
	}

	var sets []models.LoggedSet
	if err := json.Unmarshal(body, &sets); err != nil {
		return nil, fmt.Errorf("httpclient: decode sets: %w", err)
	}
	return sets, nil
}

func (c *HTTPClient) ListMachines(ctx context.Context, _ int) ([]models.Machine, error) {
	body, err := c.get(ctx, "/api/v1/machines", nil)
	if err != nil {
		return nil, err
	}

	var machines []models.Machine
	if err := json.Unmarshal(body, &machines); err != nil {
		return nil, fmt.Errorf("httpclient: decode machines: %w", err)
	}
	return machines, nil
}

// planResponse is the /api/v1/plan payload: the active plan flattened into
// its days and items. A null plan_id means no active plan.
type planResponse struct {
	PlanID *uuid.UUID        `json:"plan_id"`
	Days   []models.PlanDay  `json:"days"`
	Items  []models.PlanItem `json:"items"`
}

func (c *HTTPClient) fetchPlan(ctx context.Context) (*planResponse, error) {
	body, err := c.get(ctx, "/api/v1/plan", nil)
	if err != nil {
		return nil, err
	}

	var resp planResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("httpclient: decode plan: %w", err)
	}
	return &resp, nil
}

func (c *HTTPClient) ActivePlanID(ctx context.Context, _ int) (uuid.UUID, bool, error) {
	resp, err := c.fetchPlan(ctx)
	if err != nil {
		return uuid.Nil, false, err
	}
	if resp.PlanID == nil {
		return uuid.Nil, false, nil
	}
	return *resp.PlanID, true, nil
}

func (c *HTTPClient) ListPlanDays(ctx context.Context, _ uuid.UUID) ([]models.PlanDay, error) {
	resp, err := c.fetchPlan(ctx)
	if err != nil {
		return nil, err
	}
	return resp.Days, nil
}

func (c *HTTPClient) ListPlanItems(ctx context.Context, _ uuid.UUID) ([]models.PlanItem, error) {
	resp, err := c.fetchPlan(ctx)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *HTTPClient) ListPlanItemsForDay(ctx context.Context, planDayID uuid.UUID) ([]models.PlanItem, error) {
	resp, err := c.fetchPlan(ctx)
	if err != nil {
		return nil, err
	}
	var items []models.PlanItem
	for _, item := range resp.Items {
		if item.PlanDayID == planDayID {
			items = append(items, item)
		}
	}
	return items, nil
}
