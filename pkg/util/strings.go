package util

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var tickerRe = regexp.MustCompile(`^\^?[A-Z0-9][A-Z0-9.\-]{0,10}$`)

// NormalizeTicker upper-cases and trims a ticker symbol.
func NormalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidTicker reports whether s (already normalized) looks like an exchange symbol.
func ValidTicker(s string) bool {
	return tickerRe.MatchString(s)
}

// SplitTickers splits a comma separated list, normalizing and dropping empties and duplicates.
func SplitTickers(s string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, part := range strings.Split(s, ",") {
		t := NormalizeTicker(part)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ParseNumber parses display-formatted numbers such as "$1,234.50", "+12.3%" or "0.0421".
// A trailing "%" is stripped but the value is not divided by 100. NaN and
// infinities are rejected.
func ParseNumber(s string) (float64, error) {
	clean := strings.TrimSpace(s)
	clean = strings.TrimSuffix(clean, "%")
	clean = strings.ReplaceAll(clean, ",", "")
	neg := false
	if strings.HasPrefix(clean, "-") {
		neg = true
		clean = clean[1:]
	}
	clean = strings.TrimPrefix(clean, "+")
	clean = strings.TrimPrefix(clean, "$")
	if clean == "" || strings.EqualFold(clean, "N/A") {
		return 0, fmt.Errorf("no numeric value in %q", s)
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	if neg {
		v = -v
	}
	return v, nil
}
