// Package redact masks secrets in log output. A Redactor holds literal
// secrets taken from the configuration plus patterns for credentials that
// show up in URLs and headers; Handler applies it to every slog record.
package redact

import (
	"regexp"
	"strings"
	"sync"
)

// Placeholder replaces every redacted value.
const Placeholder = "[REDACTED]"

var defaultPatterns = []*regexp.Regexp{
	// Authorization header values.
	regexp.MustCompile(`(?i)\b(bearer|basic)\s+[A-Za-z0-9._~+/=-]{8,}`),
	// user:password@ in URLs and DSNs.
	regexp.MustCompile(`://[^/\s:@]+:[^/\s@]+@`),
}

// Redactor replaces known secrets in strings. Safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// New creates a Redactor with the default patterns and the given literals.
func New(literals ...string) *Redactor {
	r := &Redactor{patterns: defaultPatterns}
	for _, l := range literals {
		r.Add(l)
	}
	return r
}

// Add registers a literal secret. Values shorter than four bytes are
// ignored so that short tokens do not blank out ordinary words.
func (r *Redactor) Add(secret string) {
	if len(secret) < 4 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// Replace swaps the literal set, e.g. after a config reload.
func (r *Redactor) Replace(literals ...string) {
	next := make([]string, 0, len(literals))
	for _, l := range literals {
		if len(l) >= 4 {
			next = append(next, l)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = next
}

// Redact returns s with every known secret replaced by Placeholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}
	r.mu.RLock()
	patterns, literals := r.patterns, r.literals
	r.mu.RUnlock()

	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, Placeholder)
	}
	for _, p := range patterns {
		s = p.ReplaceAllStringFunc(s, func(m string) string {
			if strings.HasPrefix(m, "://") {
				return "://" + Placeholder + "@"
			}
			if i := strings.IndexAny(m, " \t"); i > 0 {
				return m[:i+1] + Placeholder
			}
			return Placeholder
		})
	}
	return s
}
