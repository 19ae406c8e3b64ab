// Package tokencount estimates token counts for fragment content and search
// queries. It wraps tiktoken-go's cl100k_base encoding, falling back to a
// char/4 heuristic when the tokenizer cannot be initialised; the failure is
// logged once and degrades silently.
package tokencount

import (
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// charsPerToken is the approximate number of characters per token, used only
// by the fallback estimator.
const charsPerToken = 4

// Counter counts tokens for arbitrary text, preferring a precise tokenizer
// and degrading to a byte-length heuristic.
type Counter struct {
	once    sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
	warnLog sync.Once
}

// NewCounter returns a Counter. The underlying tokenizer is lazily
// initialised on first use so construction never fails.
func NewCounter() *Counter {
	return &Counter{}
}

func (c *Counter) encoding() *tiktoken.Tiktoken {
	c.once.Do(func() {
		c.enc, c.encErr = tiktoken.GetEncoding("cl100k_base")
	})
	if c.encErr != nil {
		c.warnLog.Do(func() {
			slog.Warn("tokencount: failed to initialise cl100k_base tokenizer, using char/4 fallback", "error", c.encErr)
		})
	}
	return c.enc
}

// Count returns the estimated token count for text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if enc := c.encoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return fallback(text)
}

// fallback is the char/4 rounding-up estimate.
func fallback(text string) int {
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// defaultCounter is shared by package-level helpers; callers that want
// explicit lifetime control should construct their own Counter instead.
var defaultCounter = NewCounter()

// Estimate is a package-level convenience wrapping the default Counter.
func Estimate(text string) int {
	return defaultCounter.Count(text)
}
