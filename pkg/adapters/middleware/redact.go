package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/aretw0/canopy/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type redactMiddleware struct {
	next     ports.TrailSink
	patterns []*regexp.Regexp
}

// NewRedactMiddleware creates a middleware that masks the values of JSON
// object keys matching any of the patterns, at any depth. State snapshots and
// log attributes travel inside events, so this keeps secrets out of the trail.
func NewRedactMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redact pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.TrailSink) ports.TrailSink {
		return &redactMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactMiddleware) Append(ctx context.Context, rootID string, payload []byte) error {
	if len(m.patterns) == 0 {
		return m.next.Append(ctx, rootID, payload)
	}

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("redact: payload is not JSON: %w", err)
	}
	if !mask(doc, m.patterns) {
		return m.next.Append(ctx, rootID, payload)
	}

	masked, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("redact: failed to encode payload: %w", err)
	}
	return m.next.Append(ctx, rootID, masked)
}

func (m *redactMiddleware) Recent(ctx context.Context, rootID string, n int) ([][]byte, error) {
	return m.next.Recent(ctx, rootID, n)
}

func (m *redactMiddleware) Delete(ctx context.Context, rootID string) error {
	return m.next.Delete(ctx, rootID)
}

// mask rewrites doc in place and reports whether anything was masked.
func mask(doc any, patterns []*regexp.Regexp) bool {
	changed := false
	stack := []any{doc}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch v := cur.(type) {
		case map[string]any:
			for k, val := range v {
				if matchesAny(k, patterns) {
					v[k] = Mask
					changed = true
					continue
				}
				stack = append(stack, val)
			}
		case []any:
			stack = append(stack, v...)
		}
	}
	return changed
}

func matchesAny(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
