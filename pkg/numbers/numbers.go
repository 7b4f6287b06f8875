package numbers

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ToBaseUnits converts a human-readable token amount (e.g. "1000.50") into
// integer base units for the given number of token decimals. Amounts that do
// not fit evenly into base units are rejected rather than silently truncated.
func ToBaseUnits(amount string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount '%s': %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount '%s' is negative", amount)
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount '%s' has more than %d decimal places", amount, decimals)
	}
	return scaled.BigInt(), nil
}

// FromBaseUnits renders integer base units as a human-readable amount.
func FromBaseUnits(amount *big.Int, decimals uint8) string {
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// AddNumericStrings sums two amounts stored as postgres numeric strings.
func AddNumericStrings(a, b string) (string, error) {
	na, err := decimal.NewFromString(a)
	if err != nil {
		return "", err
	}
	nb, err := decimal.NewFromString(b)
	if err != nil {
		return "", err
	}
	return na.Add(nb).String(), nil
}

// NumericStringToBig parses an amount stored as a postgres numeric string.
func NumericStringToBig(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric string '%s'", s)
	}
	return n, nil
}
