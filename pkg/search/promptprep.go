package search

import (
	"regexp"
	"strings"
)

var (
	frontmatterPattern = regexp.MustCompile(`(?s)\A---\n.*?\n---\n`)
	codeBlockPattern    = regexp.MustCompile("(?s)```.*?```")
	markdownLinkPattern = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	htmlTagPattern      = regexp.MustCompile(`<[^>]+>`)
)

// prepareQueryText prepares text for query embedding: strip
// frontmatter, collapse code blocks, flatten markdown links to their
// label text, strip HTML, trim, and cap length (approximated in
// characters since the precise token cap is enforced by the caller's
// tokenizer before the embedding call).
func prepareQueryText(text string, maxChars int) string {
	text = frontmatterPattern.ReplaceAllString(text, "")
	text = codeBlockPattern.ReplaceAllString(text, " ")
	text = markdownLinkPattern.ReplaceAllString(text, "$1")
	text = htmlTagPattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	if maxChars > 0 && len(text) > maxChars {
		text = text[:maxChars]
	}
	return text
}
