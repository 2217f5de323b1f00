package providers

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"MarketPulse/pkg/util"
)

// payload is a provider response keyed by display labels such as "💰 CURRENT PRICE".
// Lookups ignore decorations, case and the space/underscore distinction, so
// "current_price" and "💰 CURRENT PRICE" name the same field.
type payload map[string]interface{}

func canonicalKey(k string) string {
	var b strings.Builder
	space := false
	for _, r := range k {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '/' || r == '(' || r == ')':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToUpper(r))
		case r == ' ' || r == '_' || r == '-':
			space = true
		}
	}
	return b.String()
}

func (p payload) lookup(names ...string) (interface{}, bool) {
	idx := make(map[string]interface{}, len(p))
	for k, v := range p {
		idx[canonicalKey(k)] = v
	}
	for _, n := range names {
		if v, ok := idx[canonicalKey(n)]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// number returns the first present field among names as a float.
// Display strings like "$189.20", "+12.3%" and "0.1234" are accepted.
func (p payload) number(names ...string) (float64, bool, error) {
	v, ok := p.lookup(names...)
	if !ok {
		return 0, false, nil
	}
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, true, fmt.Errorf("field %s: non-finite value", names[0])
		}
		return t, true, nil
	case string:
		f, err := util.ParseNumber(t)
		if err != nil {
			return 0, true, fmt.Errorf("field %s: %w", names[0], err)
		}
		return f, true, nil
	default:
		return 0, true, fmt.Errorf("field %s: unexpected type %T", names[0], v)
	}
}

// required is number for fields the adapter cannot do without.
func (p payload) required(names ...string) (float64, error) {
	f, ok, err := p.number(names...)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("field %s missing", names[0])
	}
	return f, nil
}

// percent reads a ratio that may be rendered as a percentage ("45.00%" is 0.45).
func (p payload) percent(names ...string) (float64, bool, error) {
	v, ok := p.lookup(names...)
	if !ok {
		return 0, false, nil
	}
	f, _, err := p.number(names...)
	if err != nil {
		return 0, true, err
	}
	if s, isStr := v.(string); isStr && strings.HasSuffix(strings.TrimSpace(s), "%") {
		f /= 100
	}
	return f, true, nil
}

func (p payload) text(names ...string) string {
	v, ok := p.lookup(names...)
	if !ok {
		return ""
	}
	if s, isStr := v.(string); isStr {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}
