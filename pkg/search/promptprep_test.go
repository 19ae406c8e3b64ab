package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrepareQueryTextStripsFrontmatter(t *testing.T) {
	in := "---\ntitle: x\n---\nhello world"
	assert.Equal(t, "hello world", prepareQueryText(in, 0))
}

func TestPrepareQueryTextCollapsesCodeBlocks(t *testing.T) {
	in := "before ```go\nfunc f(){}\n``` after"
	got := prepareQueryText(in, 0)
	assert.NotContains(t, got, "func f")
	assert.Contains(t, got, "before")
	assert.Contains(t, got, "after")
}

func TestPrepareQueryTextFlattensMarkdownLinks(t *testing.T) {
	in := "see [the docs](https://example.com/docs) for more"
	assert.Equal(t, "see the docs for more", prepareQueryText(in, 0))
}

func TestPrepareQueryTextStripsHTML(t *testing.T) {
	in := "<p>hello <b>world</b></p>"
	assert.Equal(t, "hello world", prepareQueryText(in, 0))
}

func TestPrepareQueryTextCapsLength(t *testing.T) {
	in := "0123456789"
	assert.Equal(t, "01234", prepareQueryText(in, 5))
}
