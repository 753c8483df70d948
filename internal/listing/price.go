package listing

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// PriceDecimals is the fixed-point scale used by the marketplace contract.
const PriceDecimals = 18

// ParsePrice parses user input into a decimal price. Empty input parses as 0.
func ParsePrice(input string) (decimal.Decimal, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("listing: parse price %q: %w", input, err)
	}
	return d, nil
}

// ToFixedPoint converts a decimal price into its 18-decimal integer form.
// Prices carrying more fractional digits than the scale allows are rejected
// rather than rounded.
func ToFixedPoint(price decimal.Decimal) (*big.Int, error) {
	if price.IsNegative() {
		return nil, fmt.Errorf("listing: negative price %s", price)
	}
	scaled := price.Shift(PriceDecimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("listing: price %s exceeds %d decimal places", price, PriceDecimals)
	}
	return scaled.BigInt(), nil
}

// FromFixedPoint converts an 18-decimal integer back into a decimal price.
func FromFixedPoint(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -PriceDecimals)
}
