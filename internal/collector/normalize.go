package collector

import (
	"strconv"
	"strings"

	"MarketArchive/internal/model"
)

// nullTokens are provider placeholders for a missing value.
var nullTokens = map[string]bool{"": true, "None": true, "null": true, "-": true, "--": true, "N/A": true}

// normalizeValue turns numeric strings into float64 and placeholder
// strings into nil. Other values pass through.
func normalizeValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.TrimSpace(s)
	if nullTokens[s] {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// normalizeReport copies raw into a Report, normalizing every value except
// the period identity keys.
func normalizeReport(raw map[string]any) model.Report {
	r := make(model.Report, len(raw))
	for k, v := range raw {
		switch k {
		case model.KeyFiscalDateEnding, model.KeyDate:
			r[k] = v
		default:
			r[k] = normalizeValue(v)
		}
	}
	return r
}

func normalizeReports(raw []map[string]any) []model.Report {
	out := make([]model.Report, 0, len(raw))
	for _, m := range raw {
		out = append(out, normalizeReport(m))
	}
	return out
}

// setQuote stores v under key when it parses to a non-zero number.
func setQuote(q model.Quote, key string, v any) {
	var f float64
	switch n := normalizeValue(v).(type) {
	case float64:
		f = n
	case int64:
		f = float64(n)
	case int:
		f = float64(n)
	default:
		return
	}
	if f != 0 {
		q[key] = f
	}
}

// parseNumber parses display numbers such as "1,234.56", "2.35T" or "4.1%".
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if nullTokens[s] {
		return 0, false
	}
	exp := ""
	switch s[len(s)-1] {
	case 'K', 'k':
		exp = "e3"
	case 'M':
		exp = "e6"
	case 'B':
		exp = "e9"
	case 'T':
		exp = "e12"
	case '%':
		exp = "e-2"
	}
	if exp != "" {
		s = s[:len(s)-1] + exp
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
