package logger

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Sanitizer masks secrets in log messages and in values of sensitive keys.
//
// Only values of keys that look sensitive (token, secret, ...) are masked
// in structured arguments; a secret hidden in the value of an innocuous key
// such as "url" is left alone.
type Sanitizer struct {
	mu    sync.RWMutex
	rules []SanitizeRule
}

// SanitizeRule is one regexp replacement
type SanitizeRule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

var sensitiveKeys = []string{
	"password", "passwd", "token", "secret",
	"api_key", "apikey", "credential", "auth_code",
}

// NewSanitizer creates a sanitizer with the secret-masking rules
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		rules: []SanitizeRule{
			{regexp.MustCompile(`(?i)(password|passwd)=\S+`), "$1=***"},
			{regexp.MustCompile(`(?i)(access_token|refresh_token|token)=\S+`), "$1=***"},
			{regexp.MustCompile(`(?i)client_secret=\S+`), "client_secret=***"},
			{regexp.MustCompile(`(?i)bearer\s+\S+`), "bearer ***"},
			{regexp.MustCompile(`ya29\.[0-9A-Za-z_\-]+`), "ya29.***"},
		},
	}
}

// MaskHomePaths adds rules hiding user names in home directory paths
func (s *Sanitizer) MaskHomePaths() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules,
		SanitizeRule{regexp.MustCompile(`(?i)([A-Z]):\\Users\\[^\\]+`), `$1:\Users\***`},
		SanitizeRule{regexp.MustCompile(`/home/[^/\s]+`), "/home/***"},
		SanitizeRule{regexp.MustCompile(`/Users/[^/\s]+`), "/Users/***"},
	)
}

// Sanitize applies every rule to input
func (s *Sanitizer) Sanitize(input string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rule := range s.rules {
		input = rule.Pattern.ReplaceAllString(input, rule.Replacement)
	}
	return input
}

// SanitizeArgs returns a copy of key/value args with sensitive values masked
// and string values passed through the message rules
func (s *Sanitizer) SanitizeArgs(args []any) []any {
	if len(args) == 0 {
		return args
	}

	out := make([]any, len(args))
	copy(out, args)

	for i := 0; i+1 < len(out); i += 2 {
		key, ok := out[i].(string)
		if !ok {
			continue
		}
		var value string
		switch v := out[i+1].(type) {
		case string:
			value = v
		case error:
			value = v.Error()
		default:
			continue
		}
		if isSensitiveKey(key) {
			out[i+1] = maskValue(value)
		} else {
			out[i+1] = s.Sanitize(value)
		}
	}
	return out
}

// AddRule adds a custom replacement rule
func (s *Sanitizer) AddRule(pattern, replacement string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, SanitizeRule{Pattern: re, Replacement: replacement})
	return nil
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range sensitiveKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// maskValue keeps the first and last character of long values
func maskValue(value string) string {
	switch {
	case len(value) <= 2:
		return "***"
	case len(value) <= 8:
		return value[:1] + "***"
	default:
		return value[:1] + "***" + value[len(value)-1:]
	}
}
