package utils

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// NativeDecimals decimal count of every EVM native asset
const NativeDecimals = 18

var (
	// ErrInvalidAmount amount is not a positive decimal number
	ErrInvalidAmount = errors.New("invalid amount")
)

// ValidateAmount checks the decimal syntax and that the amount is strictly positive
func ValidateAmount(amount string) error {
	whole, frac, err := splitDecimal(amount)
	if err != nil {
		return err
	}
	if strings.Trim(whole+frac, "0") == "" {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	}
	return nil
}

// ParseUnits converts a decimal string to smallest units using the asset's decimals.
// Fractional digits beyond decimals are rejected rather than rounded.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	whole, frac, err := splitDecimal(amount)
	if err != nil {
		return nil, err
	}
	if len(frac) > int(decimals) {
		if strings.TrimRight(frac[decimals:], "0") != "" {
			return nil, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, amount, decimals)
		}
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))
	digits := strings.TrimLeft(whole+frac, "0")
	if digits == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return v, nil
}

// FormatUnits renders smallest units as a decimal string without trailing zeros
func FormatUnits(raw *big.Int, decimals uint8) string {
	if raw == nil {
		return "0"
	}
	neg := raw.Sign() < 0
	digits := new(big.Int).Abs(raw).String()
	if decimals > 0 {
		if len(digits) <= int(decimals) {
			digits = strings.Repeat("0", int(decimals)-len(digits)+1) + digits
		}
		point := len(digits) - int(decimals)
		whole, frac := digits[:point], strings.TrimRight(digits[point:], "0")
		digits = whole
		if frac != "" {
			digits += "." + frac
		}
	}
	if neg {
		return "-" + digits
	}
	return digits
}

func splitDecimal(amount string) (string, string, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return "", "", fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if whole == "" && frac == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	for _, part := range []string{whole, frac} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return "", "", fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
			}
		}
	}
	return whole, frac, nil
}
