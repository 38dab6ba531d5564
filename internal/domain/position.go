package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PositionSide represents the direction of an open position.
type PositionSide int

const (
	// PositionSideLong is a positive-size position.
	PositionSideLong PositionSide = iota
	// PositionSideShort is a negative-size position.
	PositionSideShort
	// PositionSideFlat is a zero-size position that still carries value.
	PositionSideFlat
)

func (s PositionSide) String() string {
	switch s {
	case PositionSideLong:
		return "LONG"
	case PositionSideShort:
		return "SHORT"
	case PositionSideFlat:
		return "FLAT"
	default:
		return "UNKNOWN"
	}
}

// Position is one open exposure derived from a clearinghouse state response.
// Positions are recomputed on every refresh and never persisted.
type Position struct {
	Coin          string          `json:"coin"`
	Side          PositionSide    `json:"-"`
	Value         decimal.Decimal `json:"value"` // absolute value in quote currency
	Size          decimal.Decimal `json:"size"`  // signed
	UnrealizedPnl decimal.Decimal `json:"unrealized_pnl"`
}

// SideFromSize maps the sign of a size field to a position side.
func SideFromSize(size decimal.Decimal) PositionSide {
	switch {
	case size.IsPositive():
		return PositionSideLong
	case size.IsNegative():
		return PositionSideShort
	default:
		return PositionSideFlat
	}
}

// SortPositions orders positions LONG before SHORT before FLAT, then by
// descending absolute value within the same side.
func SortPositions(positions []Position) {
	sort.SliceStable(positions, func(i, j int) bool {
		if positions[i].Side != positions[j].Side {
			return positions[i].Side < positions[j].Side
		}
		return positions[i].Value.GreaterThan(positions[j].Value)
	})
}
