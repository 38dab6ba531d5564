// Package clients wraps the Hyperliquid public info endpoint.
//
// All reads are unauthenticated POSTs against a single JSON endpoint. Value
// reads deliberately map every failure to zero so that a transient API outage
// degrades a single tick instead of poisoning the recorded series; the flip
// side is that a genuine zero balance is indistinguishable from an outage.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the Hyperliquid mainnet info endpoint.
	DefaultBaseURL = "https://api.hyperliquid.xyz/info"

	// DefaultTimeout bounds every request; there are no retries, the next
	// tick is the retry.
	DefaultTimeout = 10 * time.Second

	typeClearinghouseState = "clearinghouseState"
	typeUserFills          = "userFills"
)

// HyperliquidClient issues read-only queries for wallet state and fills.
type HyperliquidClient struct {
	baseURL string
	httpc   *http.Client
	logger  *zap.Logger
}

// NewHyperliquidClient creates a client against the given info endpoint.
// Empty baseURL falls back to mainnet, zero timeout to DefaultTimeout.
func NewHyperliquidClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HyperliquidClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HyperliquidClient{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type infoRequest struct {
	Type string `json:"type"`
	User string `json:"user"`
}

func (c *HyperliquidClient) post(ctx context.Context, reqType, wallet string) ([]byte, error) {
	body, err := json.Marshal(infoRequest{Type: reqType, User: wallet})
	if err != nil {
		return nil, errors.Wrap(err, "marshal info request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build info request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "post info request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("info endpoint returned status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read info response")
	}
	return payload, nil
}

// AccountState returns the raw clearinghouse state payload for a wallet.
// Positions extraction works on the raw payload because the response shape
// has changed across API generations.
func (c *HyperliquidClient) AccountState(ctx context.Context, wallet string) (json.RawMessage, error) {
	return c.post(ctx, typeClearinghouseState, wallet)
}

// AccountValue returns marginSummary.accountValue for the wallet, or zero on
// any transport error, malformed payload, or missing field.
func (c *HyperliquidClient) AccountValue(ctx context.Context, wallet string) decimal.Decimal {
	payload, err := c.post(ctx, typeClearinghouseState, wallet)
	if err != nil {
		return decimal.Zero
	}

	var state struct {
		MarginSummary struct {
			AccountValue json.RawMessage `json:"accountValue"`
		} `json:"marginSummary"`
	}
	if err := json.Unmarshal(payload, &state); err != nil {
		return decimal.Zero
	}

	value, err := decimalFromJSON(state.MarginSummary.AccountValue)
	if err != nil {
		return decimal.Zero
	}
	return value
}

// TradeVolume sums price*size over the wallet's fills executed at or after
// sinceMs, rounded to two decimal places. Malformed individual fills are
// skipped; a malformed or non-list response yields zero. Failures are logged
// but never propagate: volume degrades to zero for this tick only.
func (c *HyperliquidClient) TradeVolume(ctx context.Context, wallet string, sinceMs int64) decimal.Decimal {
	payload, err := c.post(ctx, typeUserFills, wallet)
	if err != nil {
		c.logger.Warn("fetch user fills failed", zap.String("wallet", wallet), zap.Error(err))
		return decimal.Zero
	}

	var fills []json.RawMessage
	if err := json.Unmarshal(payload, &fills); err != nil {
		c.logger.Warn("user fills response is not a list", zap.String("wallet", wallet), zap.Error(err))
		return decimal.Zero
	}
	if len(fills) == 0 {
		return decimal.Zero
	}

	total := decimal.Zero
	for _, raw := range fills {
		var fill struct {
			Px   json.RawMessage `json:"px"`
			Sz   json.RawMessage `json:"sz"`
			Time json.RawMessage `json:"time"`
		}
		if err := json.Unmarshal(raw, &fill); err != nil {
			continue
		}
		ts, err := intFromJSON(fill.Time)
		if err != nil || ts < sinceMs {
			continue
		}
		price, err := decimalFromJSON(fill.Px)
		if err != nil {
			continue
		}
		size, err := decimalFromJSON(fill.Sz)
		if err != nil {
			continue
		}
		total = total.Add(price.Mul(size))
	}

	return total.Round(2)
}

// decimalFromJSON parses a JSON number or numeric string. The exchange mostly
// ships balances and sizes as strings, older payloads used bare numbers.
func decimalFromJSON(raw json.RawMessage) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return decimal.Zero, fmt.Errorf("empty numeric field")
	}
	s = strings.Trim(s, `"`)
	return decimal.NewFromString(s)
}

func intFromJSON(raw json.RawMessage) (int64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, fmt.Errorf("empty integer field")
	}
	s = strings.Trim(s, `"`)
	// fill timestamps occasionally carry a fractional part
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	return strconv.ParseInt(s, 10, 64)
}
