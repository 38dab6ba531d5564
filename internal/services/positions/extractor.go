// Package positions turns raw clearinghouse state payloads into normalized
// open-position lists.
package positions

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/hlboard/internal/domain"
)

// sizeKeys are tried in order when looking for the signed position size; the
// field has been renamed across API generations.
var sizeKeys = []string{"szi", "size", "sz"}

// Extract parses a clearinghouse state payload into the open positions of the
// account, sorted LONG before SHORT before FLAT and by descending absolute
// value within a side.
//
// The assetPositions node is accepted both as a list of wrapper objects
// (current shape) and as a mapping of wrapper objects (legacy shape). Entries
// with zero absolute value and entries that cannot be parsed are dropped; a
// payload without usable positions yields an empty list, never an error.
func Extract(payload []byte) []domain.Position {
	var state struct {
		AssetPositions json.RawMessage `json:"assetPositions"`
	}
	if err := json.Unmarshal(payload, &state); err != nil || len(state.AssetPositions) == 0 {
		return nil
	}

	wrappers := collectWrappers(state.AssetPositions)

	out := make([]domain.Position, 0, len(wrappers))
	for _, raw := range wrappers {
		if pos, ok := parsePosition(raw); ok {
			out = append(out, pos)
		}
	}

	domain.SortPositions(out)
	return out
}

// collectWrappers accepts assetPositions either as a JSON array or as a
// legacy JSON object keyed by arbitrary names.
func collectWrappers(raw json.RawMessage) []json.RawMessage {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var mapping map[string]json.RawMessage
	if err := json.Unmarshal(raw, &mapping); err == nil {
		out := make([]json.RawMessage, 0, len(mapping))
		for _, v := range mapping {
			out = append(out, v)
		}
		return out
	}
	return nil
}

func parsePosition(raw json.RawMessage) (domain.Position, bool) {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return domain.Position{}, false
	}

	// wrappers nest the payload under "position"; some legacy entries are
	// the position object itself
	fields := wrapper
	if inner, ok := wrapper["position"]; ok {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(inner, &nested); err != nil {
			return domain.Position{}, false
		}
		fields = nested
	}

	value, err := numberField(fields, "positionValue")
	if err != nil || value.IsZero() {
		return domain.Position{}, false
	}

	size := decimal.Zero
	for _, key := range sizeKeys {
		if s, err := numberField(fields, key); err == nil {
			size = s
			break
		}
	}

	pnl, err := numberField(fields, "unrealizedPnl")
	if err != nil {
		pnl = decimal.Zero
	}

	var coin string
	if raw, ok := fields["coin"]; ok {
		_ = json.Unmarshal(raw, &coin)
	}

	return domain.Position{
		Coin:          coin,
		Side:          domain.SideFromSize(size),
		Value:         value.Abs(),
		Size:          size,
		UnrealizedPnl: pnl,
	}, true
}

func numberField(fields map[string]json.RawMessage, key string) (decimal.Decimal, error) {
	raw, ok := fields[key]
	if !ok {
		return decimal.Zero, errMissingField
	}
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return decimal.Zero, errMissingField
	}
	return decimal.NewFromString(s)
}

var errMissingField = errors.New("missing numeric field")
