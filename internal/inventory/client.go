package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stockroom/internal"
	"stockroom/internal/config"
	"stockroom/internal/equipment"
	"stockroom/internal/util"
)

const maxAttempts = 5

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

type scrollPayload struct {
	Items    []map[string]any `json:"items"`
	ScrollID *string          `json:"scrollId"`
	Total    *int             `json:"total"`
}

type searchPayload struct {
	Items    []map[string]any `json:"items"`
	Receipts []map[string]any `json:"receipts"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.InventoryTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.InventoryRateLimitRPS),
	}
}

func (c *Client) ScrollItems(ctx context.Context) ([]internal.ItemRecord, error) {
	return c.scrollItems(ctx, map[string]string{})
}

func (c *Client) IncrementalItems(ctx context.Context, mode string) ([]internal.ItemRecord, error) {
	params := map[string]string{}
	switch mode {
	case "day":
		params["day"] = strconv.Itoa(c.cfg.IncrementalLookbackDays)
	case "hour":
		params["hour"] = strconv.Itoa(c.cfg.IncrementalLookbackHrs)
	default:
		return nil, fmt.Errorf("unsupported incremental mode: %s", mode)
	}
	return c.scrollItems(ctx, params)
}

// SearchItems asks the inventory service for items carrying any of the
// equipment numbers in spec.
func (c *Client) SearchItems(ctx context.Context, spec string) ([]internal.ItemRecord, error) {
	query, err := c.equipmentQuery(spec)
	if err != nil || query == "" {
		return nil, err
	}
	body, err := c.fetchJSON(ctx, "search", map[string]string{"equipment": query})
	if err != nil {
		return nil, err
	}
	var payload searchPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	out := make([]internal.ItemRecord, 0, len(payload.Items))
	for _, raw := range payload.Items {
		item, err := toItemRecord(raw)
		if err != nil {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (c *Client) SearchReceipts(ctx context.Context, spec string) ([]internal.ReceiptRecord, error) {
	query, err := c.equipmentQuery(spec)
	if err != nil || query == "" {
		return nil, err
	}
	body, err := c.fetchJSON(ctx, "rrp/search", map[string]string{"equipment": query})
	if err != nil {
		return nil, err
	}
	var payload searchPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	out := make([]internal.ReceiptRecord, 0, len(payload.Receipts))
	for _, raw := range payload.Receipts {
		receipt, err := toReceiptRecord(raw)
		if err != nil {
			continue
		}
		out = append(out, receipt)
	}
	return out, nil
}

func (c *Client) equipmentQuery(spec string) (string, error) {
	set, err := equipment.ExpandLimit(spec, c.cfg.EquipmentMaxTokens)
	if err != nil {
		return "", fmt.Errorf("equipment %q: %w", spec, err)
	}
	return set.Join(","), nil
}

func (c *Client) scrollItems(ctx context.Context, params map[string]string) ([]internal.ItemRecord, error) {
	all := make([]internal.ItemRecord, 0)
	seen := map[string]struct{}{}
	var scrollID string

	for {
		query := map[string]string{}
		for k, v := range params {
			query[k] = v
		}
		if scrollID != "" {
			query["scrollId"] = scrollID
		}

		body, err := c.fetchJSON(ctx, "items/scroll", query)
		if err != nil {
			return nil, err
		}

		var payload scrollPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}

		for _, raw := range payload.Items {
			item, err := toItemRecord(raw)
			if err != nil {
				continue
			}
			all = append(all, item)
		}

		if payload.ScrollID == nil || *payload.ScrollID == "" || len(payload.Items) == 0 {
			break
		}
		if _, ok := seen[*payload.ScrollID]; ok {
			break
		}
		seen[*payload.ScrollID] = struct{}{}
		scrollID = *payload.ScrollID
	}

	return all, nil
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.InventoryAPIToken) == "" {
		return nil, errors.New("missing INVENTORY_API_TOKEN")
	}

	u, err := url.Parse(strings.TrimRight(c.cfg.InventoryAPIBaseURL, "/") + "/" + endpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.InventoryAPIToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < maxAttempts {
				lastErr = fmt.Errorf("inventory status %d", resp.StatusCode)
				if err := sleepCtx(ctx, backoff(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("inventory api error: endpoint=%s status=%d body=%s", endpoint, resp.StatusCode, string(body))
		}

		var apiResp apiResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, fmt.Errorf("inventory api %s: decode envelope: %w", endpoint, err)
		}
		if !apiResp.Success {
			return nil, fmt.Errorf("inventory api unsuccessful: %s %s", apiResp.Message, string(apiResp.Errors))
		}
		return apiResp.Data, nil
	}

	if lastErr == nil {
		lastErr = errors.New("inventory request failed")
	}
	return nil, lastErr
}

func backoff(attempt int) time.Duration {
	return time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func toItemRecord(raw map[string]any) (internal.ItemRecord, error) {
	partNumber, _ := raw["partNumber"].(string)
	partNumber = strings.TrimSpace(partNumber)
	if partNumber == "" {
		return internal.ItemRecord{}, errors.New("empty part number")
	}

	id, ok := toInt(raw["id"])
	if !ok {
		return internal.ItemRecord{}, errors.New("missing id")
	}

	description, _ := raw["description"].(string)
	rawJSON, _ := json.Marshal(raw)
	return internal.ItemRecord{
		ID:               id,
		PartNumber:       partNumber,
		Description:      strings.TrimSpace(description),
		Unit:             toStringPtr(raw["unit"]),
		Location:         toStringPtr(raw["location"]),
		OnHand:           toFloatPtr(raw["onHand"]),
		EquipmentNumbers: equipment.NormalizeValue(raw["equipmentNumbers"]),
		UpdatedAt:        toStringPtr(raw["updatedAt"]),
		RawJSON:          string(rawJSON),
	}, nil
}

func toReceiptRecord(raw map[string]any) (internal.ReceiptRecord, error) {
	rrp, _ := raw["rrpNumber"].(string)
	partNumber, _ := raw["partNumber"].(string)
	if strings.TrimSpace(rrp) == "" || strings.TrimSpace(partNumber) == "" {
		return internal.ReceiptRecord{}, errors.New("incomplete receipt")
	}
	id, _ := toInt(raw["id"])
	return internal.ReceiptRecord{
		ID:               id,
		RRPNumber:        strings.TrimSpace(rrp),
		Supplier:         toStringPtr(raw["supplier"]),
		ReceivedAt:       toStringPtr(raw["receivedAt"]),
		PartNumber:       strings.TrimSpace(partNumber),
		Qty:              toFloatPtr(raw["qty"]),
		EquipmentNumbers: equipment.NormalizeValue(raw["equipmentNumbers"]),
	}, nil
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		i, err := t.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		return i, err == nil
	default:
		return 0, false
	}
}

func toFloatPtr(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case int:
		f := float64(t)
		return &f
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return &f
		}
	}
	return nil
}

func toStringPtr(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return util.StringPtr(s)
}
