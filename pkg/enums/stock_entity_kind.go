package enums

import "fmt"

// StockEntityKind names what a ledger row belongs to.
type StockEntityKind string

const (
	StockEntityProduct            StockEntityKind = "product"
	StockEntityVariantCombination StockEntityKind = "variant_combination"
)

var validStockEntityKinds = []StockEntityKind{
	StockEntityProduct,
	StockEntityVariantCombination,
}

// String implements fmt.Stringer.
func (k StockEntityKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known StockEntityKind.
func (k StockEntityKind) IsValid() bool {
	for _, candidate := range validStockEntityKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseStockEntityKind converts raw input into a StockEntityKind.
func ParseStockEntityKind(value string) (StockEntityKind, error) {
	for _, candidate := range validStockEntityKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock entity kind %q", value)
}
