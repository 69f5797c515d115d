package extraction

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// 1.234 or 12.345.678: dots are thousand separators in Brazilian notation.
	thousandsOnly = regexp.MustCompile(`^-?[1-9]\d{0,2}(\.\d{3})+$`)
	currencyNoise = strings.NewReplacer("R$", "", "r$", "", " ", "", "\u00a0", "", "%", "")
)

// ParseAmount reads a monetary or percentage value written either in JSON
// notation ("1234.56") or in Brazilian notation ("R$ 1.234,56").
func ParseAmount(s string) (decimal.Decimal, error) {
	v := currencyNoise.Replace(strings.TrimSpace(s))
	if v == "" || v == "-" {
		return decimal.Zero, fmt.Errorf("empty amount %q", s)
	}

	switch {
	case strings.Contains(v, ","):
		v = strings.ReplaceAll(v, ".", "")
		v = strings.Replace(v, ",", ".", 1)
	case strings.Count(v, ".") > 1 || thousandsOnly.MatchString(v):
		v = strings.ReplaceAll(v, ".", "")
	}

	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}
