package extraction

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/triad3/irpf-import/internal/domain"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)

	typography = strings.NewReplacer(
		"\u201c", `"`, "\u201d", `"`, "\u201e", `"`, "\u201f", `"`, "\u2033", `"`,
		"\u2018", "'", "\u2019", "'", "\u201a", "'", "\u201b", "'", "\u2032", "'",
		"\u2026", "...",
		"\u2013", "-", "\u2014", "-",
		"\u00a0", " ",
	)
)

// Normalized is a model reply that parsed into a JSON object with at least one item.
type Normalized struct {
	// Clean is the JSON text that parsed, after cleanup.
	Clean  string
	Raw    map[string]any
	Counts map[domain.Collection]int
	Total  int
}

// StripCodeFences removes a Markdown fence around the reply and anything
// outside the outermost JSON object. A reply whose first bracket opens an
// array is left whole so it fails to parse as an object.
func StripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the opening line (``` or ```json).
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return strings.TrimSpace(strings.Trim(s, "`"))
		}
		s = strings.TrimSpace(s[idx+1:])
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.IndexAny(s, "{["); start != -1 && s[start] == '{' {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}

	return strings.TrimSpace(s)
}

// ReplaceTypography swaps curly quotes, ellipsis glyphs and dashes for their
// ASCII equivalents.
func ReplaceTypography(s string) string {
	return typography.Replace(s)
}

// Normalize cleans and parses a model reply. The fence-stripped text is
// parsed as is first; typography replacement and whitespace collapsing are
// fallbacks, since curly quotes inside string values are valid JSON.
// A blank reply is EmptyResponse, text that parses in none of these forms is
// MalformedExtractionPayload and an object without items is NoDataExtracted.
func Normalize(raw string) (*Normalized, error) {
	clean := StripCodeFences(raw)
	if strings.TrimSpace(clean) == "" {
		return nil, domain.Errorf(domain.CodeEmptyResponse, "model reply is empty")
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(clean), &obj); err != nil {
		clean = ReplaceTypography(clean)
		if err := json.Unmarshal([]byte(clean), &obj); err != nil {
			loose := strings.TrimSpace(whitespaceRun.ReplaceAllString(clean, " "))
			if err2 := json.Unmarshal([]byte(loose), &obj); err2 != nil {
				e := domain.NewError(domain.CodeMalformedExtractionPayload, "model reply is not a JSON object", err2)
				e.Snippet = domain.Snippet(clean)
				return nil, e
			}
			clean = loose
		}
	}
	if obj == nil {
		e := domain.Errorf(domain.CodeMalformedExtractionPayload, "model reply is null")
		e.Snippet = domain.Snippet(clean)
		return nil, e
	}

	counts := CountItems(obj)
	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return nil, domain.Errorf(domain.CodeNoDataExtracted, "extraction payload has no items")
	}

	return &Normalized{
		Clean:  clean,
		Raw:    obj,
		Counts: counts,
		Total:  total,
	}, nil
}

// CountItems counts the elements of each collection array. Missing or
// non-array values count as zero.
func CountItems(obj map[string]any) map[domain.Collection]int {
	counts := make(map[domain.Collection]int, len(domain.AllCollections))
	for _, c := range domain.AllCollections {
		if arr, ok := obj[string(c)].([]any); ok {
			counts[c] = len(arr)
		} else {
			counts[c] = 0
		}
	}
	return counts
}
