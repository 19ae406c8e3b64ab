package fragment

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/masking"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/tokencount"
)

// idHexLen is the length of the random hex suffix in a fragment id
// ("frag-<16 hex>").
const idHexLen = 16

// hashPrefixLen is the number of hex characters kept from SHA-256(redacted
// content) as the content_hash.
const hashPrefixLen = 16

// Clock abstracts wall-clock time so tests can control CreatedAt/AccessedAt
// deterministically.
type Clock func() time.Time

// Factory is FragmentFactory: a pure, stateless constructor.
// It holds no mutable state beyond its injected collaborators, so a single
// Factory is safe to share across goroutines.
type Factory struct {
	tokens *tokencount.Counter
	clock  Clock
}

// NewFactory constructs a Factory. A nil clock defaults to time.Now.
func NewFactory(tokens *tokencount.Counter, clock Clock) *Factory {
	if tokens == nil {
		tokens = tokencount.NewCounter()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Factory{tokens: tokens, clock: clock}
}

// CreateParams are the caller-supplied fields for a new fragment. Keywords,
// Importance, and Source are optional; zero values trigger the documented
// defaults/inference.
type CreateParams struct {
	Content    string
	Topic      string
	Keywords   []string
	Type       Type
	Importance float64 // 0 means "use the type default"
	Source     string
	LinkedTo   []string
	AgentID    string
	IsAnchor   bool
}

// Create builds a Fragment from params: redacts PII, truncates to
// MaxContentChars, infers tier, hashes the redacted+truncated content,
// extracts keywords when the caller omitted them, and counts tokens.
func (f *Factory) Create(params CreateParams) (*Fragment, error) {
	if !params.Type.Valid() {
		return nil, fmt.Errorf("fragment: invalid type %q", params.Type)
	}

	redacted := masking.Redact(params.Content)
	truncated := truncate(redacted, MaxContentChars)

	importance := params.Importance
	if importance == 0 {
		importance = params.Type.DefaultImportance()
	}
	if importance < 0 {
		importance = 0
	}
	if importance > 1 {
		importance = 1
	}

	keywords := params.Keywords
	if len(keywords) == 0 {
		keywords = ExtractKeywords(truncated)
	}
	keywords = uniqueLower(keywords)

	agentID := params.AgentID
	if agentID == "" {
		agentID = DefaultSharedScope
	}

	now := f.clock()

	frag := &Fragment{
		ID:              newID(),
		Content:         truncated,
		Topic:           params.Topic,
		Keywords:        keywords,
		Type:            params.Type,
		Importance:      importance,
		ContentHash:     hashContent(truncated),
		Source:          params.Source,
		LinkedTo:        append([]string(nil), params.LinkedTo...),
		AgentID:         agentID,
		AccessCount:     0,
		AccessedAt:      now,
		CreatedAt:       now,
		TTLTier:         InferTier(params.Type, importance),
		EstimatedTokens: f.tokens.Count(truncated),
		UtilityScore:    1.0,
		VerifiedAt:      now,
		IsAnchor:        params.IsAnchor,
	}
	return frag, nil
}

// CreateSplit builds a sequence of fragments from a longer text, each
// truncated to MaxContentChars, chained via LinkedTo in insertion order.
func (f *Factory) CreateSplit(text string, params CreateParams) ([]*Fragment, error) {
	chunks := chunkText(text, MaxContentChars)
	frags := make([]*Fragment, 0, len(chunks))
	var prev *Fragment
	for _, chunk := range chunks {
		p := params
		p.Content = chunk
		p.Keywords = nil // each chunk gets its own extracted keywords
		frag, err := f.Create(p)
		if err != nil {
			return nil, err
		}
		if prev != nil {
			prev.LinkedTo = append(prev.LinkedTo, frag.ID)
			frag.LinkedTo = append(frag.LinkedTo, prev.ID)
		}
		frags = append(frags, frag)
		prev = frag
	}
	return frags, nil
}

// truncate cuts s to at most maxChars runes, appending TruncationMarker
// (itself counted within the limit) when a cut occurred.
func truncate(s string, maxChars int) string {
	if utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	markerLen := utf8.RuneCountInString(TruncationMarker)
	runes := []rune(s)
	cut := maxChars - markerLen
	if cut < 0 {
		cut = 0
	}
	return string(runes[:cut]) + TruncationMarker
}

// chunkText splits text into rune-bounded chunks of at most maxChars,
// breaking on whitespace near the boundary when possible to avoid
// mid-word splits.
func chunkText(text string, maxChars int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= maxChars {
			chunks = append(chunks, string(runes))
			break
		}
		end := maxChars
		for end > 0 && !isBreakable(runes[end]) {
			end--
		}
		if end == 0 {
			end = maxChars
		}
		chunks = append(chunks, string(runes[:end]))
		runes = runes[end:]
	}
	return chunks
}

func isBreakable(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}

// hashContent returns the 16-hex-char prefix of SHA-256(content), the
// stored content_hash.
func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:hashPrefixLen]
}

// TruncateContent exposes the factory's truncation rule for callers (e.g.
// MemoryManager.amend) that rewrite Content outside of Create.
func TruncateContent(s string) string {
	return truncate(s, MaxContentChars)
}

// HashContent exposes the factory's content_hash rule for callers that
// rewrite Content outside of Create.
func HashContent(s string) string {
	return hashContent(s)
}

// newID returns a fresh "frag-<16 hex>" identifier.
func newID() string {
	id := uuid.New()
	return fmt.Sprintf("frag-%s", hex.EncodeToString(id[:])[:idHexLen])
}

func uniqueLower(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		lw := strings.ToLower(w)
		if _, ok := seen[lw]; ok {
			continue
		}
		seen[lw] = struct{}{}
		out = append(out, lw)
	}
	return out
}
