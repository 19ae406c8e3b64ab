// Package masking applies the fixed, ordered PII redaction every fragment
// passes through at ingress: compiled patterns applied in sequence,
// destructive, and deliberately non-configurable.
package masking

import (
	"regexp"
)

// Pattern pairs a compiled regexp with its replacement.
type Pattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// apiKeyPattern matches OpenAI-style "sk-" secrets and Google "AIza" API keys.
var apiKeyPattern = regexp.MustCompile(`sk-[A-Za-z0-9]{32,}|AIza[0-9A-Za-z_-]{35}`)

// emailPattern is a pragmatic RFC-5321-shaped address matcher.
var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// passwordPattern matches an English/Korean password keyword followed by a
// separator and a value token.
var passwordPattern = regexp.MustCompile(`(?i)(password|passwd|pwd|비밀번호|비번)\s*[:=]\s*(\S+)`)

// koreanPhonePattern matches Korean mobile numbers, e.g. 010-1234-5678.
var koreanPhonePattern = regexp.MustCompile(`01[016789][-\s]?\d{3,4}[-\s]?\d{4}`)

const (
	apiKeyReplacement = "[REDACTED_API_KEY]"
	emailReplacement  = "[REDACTED_EMAIL]"
	phoneReplacement  = "[REDACTED_PHONE]"
)

// Redact applies the four ordered substitutions to content.
// It is destructive and idempotent: Redact(Redact(s)) == Redact(s), since
// every replacement token is itself immune to re-matching by the patterns
// that produced it.
func Redact(content string) string {
	content = apiKeyPattern.ReplaceAllString(content, apiKeyReplacement)
	content = emailPattern.ReplaceAllString(content, emailReplacement)
	content = passwordPattern.ReplaceAllStringFunc(content, func(m string) string {
		sub := passwordPattern.FindStringSubmatch(m)
		if len(sub) < 2 {
			return m
		}
		return sub[1] + ": [REDACTED_PWD]"
	})
	content = koreanPhonePattern.ReplaceAllString(content, phoneReplacement)
	return content
}
