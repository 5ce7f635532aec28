package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"agrodetect/models"
)

var (
	ErrNoJSONObject = errors.New("no JSON object in response")
	ErrMissingField = errors.New("missing required field")
)

// Kind tags the shape of one element of an LLM-produced list.
type Kind int

const (
	KindString Kind = iota
	KindObject
	KindOther
)

// Item is one element of the actions or prevention list as the LLM emitted it.
type Item struct {
	Kind   Kind
	Str    string
	Object map[string]json.RawMessage
	Raw    json.RawMessage
}

// ClassifyItem decodes raw into a tagged Item.
func ClassifyItem(raw json.RawMessage) Item {
	trimmed := bytes.TrimSpace(raw)
	item := Item{Kind: KindOther, Raw: trimmed}
	if len(trimmed) == 0 {
		return item
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			item.Kind = KindString
			item.Str = s
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err == nil {
			item.Kind = KindObject
			item.Object = obj
		}
	}
	return item
}

var (
	actionPrimaryKeys     = []string{"details", "description", "option"}
	actionSecondaryKeys   = []string{"step", "action", "treatment"}
	preventionPrimaryKeys = []string{"practice", "strategy", "tip", "treatment"}
	preventionSecondary   = []string{"details", "description"}
)

// leakedLabel matches a `label: {...}` prefix some models put in front of the sentence.
var leakedLabel = regexp.MustCompile(`^[^:]*:\s*\{.*?\}\s*`)

// FlattenAction turns one actions element into a plain sentence.
func FlattenAction(item Item) string {
	return flatten(item, actionPrimaryKeys, actionSecondaryKeys)
}

// FlattenPrevention turns one prevention element into a plain sentence.
func FlattenPrevention(item Item) string {
	return flatten(item, preventionPrimaryKeys, preventionSecondary)
}

func flatten(item Item, primary, secondary []string) string {
	switch item.Kind {
	case KindString:
		return CleanString(item.Str)
	case KindObject:
		if s := firstString(item.Object, primary); s != "" {
			return s
		}
		if s := firstString(item.Object, secondary); s != "" {
			return s
		}
		return compact(item.Raw)
	default:
		return compact(item.Raw)
	}
}

// CleanString strips a leaked label prefix and trims. The original text is kept when nothing remains.
func CleanString(s string) string {
	if cleaned := strings.TrimSpace(leakedLabel.ReplaceAllString(s, "")); cleaned != "" {
		return cleaned
	}
	return s
}

func firstString(obj map[string]json.RawMessage, keys []string) string {
	for _, key := range keys {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// SanitizeItems flattens every element and drops the empty results.
func SanitizeItems(raws []json.RawMessage, flattenFn func(Item) string) []string {
	out := make([]string, 0, len(raws))
	for _, raw := range raws {
		if s := flattenFn(ClassifyItem(raw)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SanitizeStrings reapplies the string rule to an already flattened list.
func SanitizeStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = CleanString(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ExtractJSONObject returns the first balanced top-level {...} in text.
// Braces inside JSON strings are ignored. An opening brace that never closes is skipped
// and the scan resumes after it.
func ExtractJSONObject(text string) (string, bool) {
	obj, _, ok := nextObject(text, 0)
	return obj, ok
}

// nextObject finds the first balanced {...} starting at or after from and returns it with its offset.
func nextObject(text string, from int) (string, int, bool) {
	for from < len(text) {
		next := strings.IndexByte(text[from:], '{')
		if next == -1 {
			break
		}
		start := from + next
		if end := matchBrace(text, start); end != -1 {
			return text[start : end+1], start, true
		}
		from = start + 1
	}
	return "", -1, false
}

func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// decodeFirstObject decodes the first balanced {...} that is a valid JSON object.
// Brace pairs in prose such as "{High}" are passed over.
func decodeFirstObject(text string) (map[string]json.RawMessage, error) {
	var lastErr error
	for from := 0; ; {
		obj, start, ok := nextObject(text, from)
		if !ok {
			break
		}
		var fields map[string]json.RawMessage
		lastErr = json.Unmarshal([]byte(obj), &fields)
		if lastErr == nil {
			return fields, nil
		}
		from = start + 1
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", ErrNoJSONObject, lastErr)
	}
	return nil, ErrNoJSONObject
}

// ParseAdvisory extracts and validates an Advisory from raw LLM output.
// A missing or non-numeric confidence is replaced by fallbackConfidence.
func ParseAdvisory(response string, fallbackConfidence float64) (*models.Advisory, error) {
	fields, err := decodeFirstObject(response)
	if err != nil {
		return nil, err
	}

	advisory := &models.Advisory{Confidence: fallbackConfidence}

	scenario, err := requireString(fields, "scenario")
	if err != nil {
		return nil, err
	}
	if advisory.Disease, err = requireString(fields, "disease"); err != nil {
		return nil, err
	}
	severity, err := requireString(fields, "severity")
	if err != nil {
		return nil, err
	}
	if advisory.Summary, err = requireString(fields, "summary"); err != nil {
		return nil, err
	}
	advisory.Scenario = models.Scenario(scenario)
	advisory.Severity = models.Severity(severity)

	if raw, ok := fields["confidence"]; ok {
		var c float64
		if err := json.Unmarshal(raw, &c); err == nil {
			advisory.Confidence = c
		}
	}

	if advisory.Actions, err = sanitizeList(fields, "actions", FlattenAction); err != nil {
		return nil, err
	}
	if advisory.Prevention, err = sanitizeList(fields, "prevention", FlattenPrevention); err != nil {
		return nil, err
	}
	return advisory, nil
}

func requireString(fields map[string]json.RawMessage, key string) (string, error) {
	var s string
	if err := json.Unmarshal(fields[key], &s); err != nil || s == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	return s, nil
}

func sanitizeList(fields map[string]json.RawMessage, key string, flattenFn func(Item) string) ([]string, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(fields[key], &raws); err != nil || raws == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	items := SanitizeItems(raws, flattenFn)
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	return items, nil
}
