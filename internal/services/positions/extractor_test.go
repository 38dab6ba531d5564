package positions

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hlboard/internal/domain"
)

func TestExtract_ListShape(t *testing.T) {
	payload := []byte(`{"assetPositions":[
		{"type":"oneWay","position":{"coin":"ETH","szi":"1.5","positionValue":"3000","unrealizedPnl":"120.5"}},
		{"type":"oneWay","position":{"coin":"BTC","szi":"-0.1","positionValue":"-6500","unrealizedPnl":"-50"}}
	]}`)

	got := Extract(payload)
	require.Len(t, got, 2)

	require.Equal(t, "ETH", got[0].Coin)
	require.Equal(t, domain.PositionSideLong, got[0].Side)
	require.True(t, got[0].Value.Equal(decimal.NewFromInt(3000)))
	require.True(t, got[0].Size.Equal(decimal.RequireFromString("1.5")))
	require.True(t, got[0].UnrealizedPnl.Equal(decimal.RequireFromString("120.5")))

	require.Equal(t, "BTC", got[1].Coin)
	require.Equal(t, domain.PositionSideShort, got[1].Side)
	require.True(t, got[1].Value.Equal(decimal.NewFromInt(6500)))
}

func TestExtract_LegacyMapShape(t *testing.T) {
	payload := []byte(`{"assetPositions":{
		"0":{"position":{"coin":"SOL","szi":"-2","positionValue":"-500","unrealizedPnl":"10"}}
	}}`)

	got := Extract(payload)
	require.Len(t, got, 1)
	require.Equal(t, "SOL", got[0].Coin)
	require.Equal(t, domain.PositionSideShort, got[0].Side)
	require.Equal(t, "500.00", got[0].Value.StringFixed(2))
	require.Equal(t, "-2.000000", got[0].Size.StringFixed(6))
}

func TestExtract_SortOrder(t *testing.T) {
	payload := []byte(`{"assetPositions":[
		{"position":{"coin":"FLAT1","szi":"0","positionValue":"100"}},
		{"position":{"coin":"SHORT_SMALL","szi":"-1","positionValue":"-200"}},
		{"position":{"coin":"LONG_SMALL","szi":"1","positionValue":"300"}},
		{"position":{"coin":"SHORT_BIG","szi":"-5","positionValue":"-900"}},
		{"position":{"coin":"LONG_BIG","szi":"2","positionValue":"800"}}
	]}`)

	got := Extract(payload)
	require.Len(t, got, 5)

	coins := make([]string, len(got))
	for i, p := range got {
		coins[i] = p.Coin
	}
	require.Equal(t, []string{"LONG_BIG", "LONG_SMALL", "SHORT_BIG", "SHORT_SMALL", "FLAT1"}, coins)
}

func TestExtract_ZeroValueExcluded(t *testing.T) {
	payload := []byte(`{"assetPositions":[
		{"position":{"coin":"DUST","szi":"1","positionValue":"0"}},
		{"position":{"coin":"ETH","szi":"1","positionValue":"100"}}
	]}`)

	got := Extract(payload)
	require.Len(t, got, 1)
	require.Equal(t, "ETH", got[0].Coin)
}

func TestExtract_AlternateSizeKeys(t *testing.T) {
	payload := []byte(`{"assetPositions":[
		{"position":{"coin":"A","size":"-3","positionValue":"-100"}},
		{"position":{"coin":"B","sz":"4","positionValue":"100"}}
	]}`)

	got := Extract(payload)
	require.Len(t, got, 2)
	require.Equal(t, "B", got[0].Coin)
	require.Equal(t, domain.PositionSideLong, got[0].Side)
	require.Equal(t, "A", got[1].Coin)
	require.Equal(t, domain.PositionSideShort, got[1].Side)
}

func TestExtract_FlatOnZeroSize(t *testing.T) {
	payload := []byte(`{"assetPositions":[
		{"position":{"coin":"X","szi":"0","positionValue":"-100"}}
	]}`)

	got := Extract(payload)
	require.Len(t, got, 1)
	require.Equal(t, domain.PositionSideFlat, got[0].Side)
	require.Equal(t, "FLAT", got[0].Side.String())
}

func TestExtract_DegenerateInputs(t *testing.T) {
	for name, payload := range map[string]string{
		"garbage":        `nope`,
		"no positions":   `{}`,
		"empty list":     `{"assetPositions":[]}`,
		"empty map":      `{"assetPositions":{}}`,
		"scalar node":    `{"assetPositions":42}`,
		"broken wrapper": `{"assetPositions":[{"position":"not-an-object"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			require.Empty(t, Extract([]byte(payload)))
		})
	}
}
