package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/fintrack/internal/ir"
)

// parseQuery turns repeated key=value flags into a query. Integer and
// boolean values are typed; everything else is a string.
func parseQuery(pairs []string) (ir.IRObject, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, err := splitPair(pair)
		if err != nil {
			return nil, err
		}
		m[key] = typedValue(value)
	}
	return ir.NewQuery(m)
}

func typedValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// parseHeaders turns repeated "Name: value" or name=value flags into headers.
func parseHeaders(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		if name, value, ok := strings.Cut(pair, ":"); ok && !strings.Contains(name, "=") {
			name = strings.TrimSpace(name)
			if name == "" {
				return nil, fmt.Errorf("header %q: empty name", pair)
			}
			headers[name] = strings.TrimSpace(value)
			continue
		}
		key, value, err := splitPair(pair)
		if err != nil {
			return nil, err
		}
		headers[key] = value
	}
	return headers, nil
}

func splitPair(pair string) (string, string, error) {
	key, value, ok := strings.Cut(pair, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("%q: expected key=value", pair)
	}
	return key, strings.TrimSpace(value), nil
}
