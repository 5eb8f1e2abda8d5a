package common

import (
	"net/url"
	"regexp"
	"strings"
)

// MaskedValue replaces anything the masker considers sensitive.
const MaskedValue = "***MASKED***"

// SensitivePattern represents a pattern to detect and mask sensitive information
type SensitivePattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Keys        []string // attribute keys masked wholesale (case-insensitive)
}

// DefaultSensitivePatterns covers credentials that show up in connection strings and config.
var DefaultSensitivePatterns = []SensitivePattern{
	{
		Name:        "url_userinfo",
		Regex:       regexp.MustCompile(`(?i)([a-z][a-z0-9+.\-]*://[^:/@\s]+):([^@\s]+)@`),
		Replacement: "${1}:" + MaskedValue + "@",
	},
	{
		Name:        "password",
		Regex:       regexp.MustCompile(`(?i)\b(password|passwd|pwd)(\s*[:=]\s*)("[^"]*"|'[^']*'|[^\s&;,]+)`),
		Replacement: "${1}${2}" + MaskedValue,
		Keys:        []string{"password", "passwd", "pwd"},
	},
	{
		Name:        "secret",
		Regex:       regexp.MustCompile(`(?i)\b(secret|jwt_secret)(\s*[:=]\s*)("[^"]*"|'[^']*'|[^\s&;,]+)`),
		Replacement: "${1}${2}" + MaskedValue,
		Keys:        []string{"secret", "jwt_secret"},
	},
	{
		Name:        "bearer_token",
		Regex:       regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-._~+/]+=*`),
		Replacement: "Bearer " + MaskedValue,
		Keys:        []string{"token", "authorization"},
	},
}

// Masker handles masking of sensitive information in logs
type Masker struct {
	patterns []SensitivePattern
	enabled  bool
}

// NewMasker creates a new masker with default patterns
func NewMasker() *Masker {
	return &Masker{patterns: DefaultSensitivePatterns, enabled: true}
}

// SetEnabled enables or disables masking
func (m *Masker) SetEnabled(enabled bool) {
	m.enabled = enabled
}

// IsEnabled returns whether masking is enabled
func (m *Masker) IsEnabled() bool {
	return m.enabled
}

// MaskString masks sensitive information in a string
func (m *Masker) MaskString(input string) string {
	if !m.enabled {
		return input
	}
	result := input
	for _, p := range m.patterns {
		if p.Regex != nil {
			result = p.Regex.ReplaceAllString(result, p.Replacement)
		}
	}
	return result
}

// MaskValue masks a value based on its key first, then on its content.
func (m *Masker) MaskValue(key string, value any) any {
	if !m.enabled {
		return value
	}
	lowerKey := strings.ToLower(key)
	for _, p := range m.patterns {
		for _, k := range p.Keys {
			if lowerKey == k {
				return MaskedValue
			}
		}
	}
	switch v := value.(type) {
	case string:
		return m.MaskString(v)
	case error:
		return m.MaskString(v.Error())
	default:
		return value
	}
}

// MaskDSN hides the password of a URL-style connection string. Anything that
// does not parse as a URL goes through the regex patterns instead.
func MaskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return defaultMasker.MaskString(dsn)
	}
	if _, ok := u.User.Password(); !ok {
		return dsn
	}
	u.User = url.UserPassword(u.User.Username(), "xxxxx")
	return strings.Replace(u.String(), "xxxxx", MaskedValue, 1)
}

var defaultMasker = NewMasker()

// MaskSensitiveData masks sensitive data using the package masker
func MaskSensitiveData(input string) string {
	return defaultMasker.MaskString(input)
}
