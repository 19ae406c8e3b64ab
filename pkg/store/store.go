// Package store implements durable persistence for fragments, links, and
// versions, plus the consolidator-invoked maintenance sweeps. Every query
// is hand-written SQL executed through pgx's CollectRows /
// RowToStructByName, and every fragment-table statement runs inside a
// scoped transaction so the row-level-security policy and the
// query-builder filter agree on what the caller may see.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/database"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/memerr"
)

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

// Store is FragmentStore.
type Store struct {
	pool  *pgxpool.Pool
	clock Clock
}

// New constructs a Store over an already-migrated pool.
func New(pool *pgxpool.Pool, clock Clock) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{pool: pool, clock: clock}
}

// withScope opens a transaction with the caller's agent id bound to the
// app.current_agent_id setting the row-visibility policy reads. Every
// fragment-table access goes through here, so a non-superuser connection
// sees exactly the rows the Go-side scopeFilter mirror admits.
func (s *Store) withScope(ctx context.Context, agentID string, fn func(tx pgx.Tx) error) error {
	return database.WithScope(ctx, s.pool, agentID, fn)
}

// row mirrors the fragments table's columns, scanned with
// pgx.RowToStructByName via `db` struct tags.
type row struct {
	ID              string           `db:"id"`
	Content         string           `db:"content"`
	Topic           string           `db:"topic"`
	Keywords        []string         `db:"keywords"`
	Type            string           `db:"type"`
	Importance      float64          `db:"importance"`
	ContentHash     string           `db:"content_hash"`
	Source          string           `db:"source"`
	LinkedTo        []string         `db:"linked_to"`
	AgentID         string           `db:"agent_id"`
	AccessCount     int              `db:"access_count"`
	AccessedAt      *time.Time       `db:"accessed_at"`
	CreatedAt       time.Time        `db:"created_at"`
	TTLTier         string           `db:"ttl_tier"`
	EstimatedTokens int              `db:"estimated_tokens"`
	UtilityScore    float64          `db:"utility_score"`
	VerifiedAt      time.Time        `db:"verified_at"`
	Embedding       *pgvector.Vector `db:"embedding"`
	IsAnchor        bool             `db:"is_anchor"`
}

func (r row) toFragment() *fragment.Fragment {
	f := &fragment.Fragment{
		ID:              r.ID,
		Content:         r.Content,
		Topic:           r.Topic,
		Keywords:        r.Keywords,
		Type:            fragment.Type(r.Type),
		Importance:      r.Importance,
		ContentHash:     r.ContentHash,
		Source:          r.Source,
		LinkedTo:        r.LinkedTo,
		AgentID:         r.AgentID,
		AccessCount:     r.AccessCount,
		CreatedAt:       r.CreatedAt,
		TTLTier:         fragment.TTLTier(r.TTLTier),
		EstimatedTokens: r.EstimatedTokens,
		UtilityScore:    r.UtilityScore,
		VerifiedAt:      r.VerifiedAt,
		IsAnchor:        r.IsAnchor,
	}
	if r.AccessedAt != nil {
		f.AccessedAt = *r.AccessedAt
	}
	if r.Embedding != nil {
		f.Embedding = r.Embedding.Slice()
	}
	return f
}

const fragmentColumns = `id, content, topic, keywords, type, importance, content_hash, source,
	linked_to, agent_id, access_count, accessed_at, created_at, ttl_tier,
	estimated_tokens, utility_score, verified_at, embedding, is_anchor`

// scopeFilter returns the SQL predicate and args mirroring the
// row-visibility policy: the row-level-security policy bound through
// withScope is the primary gate, and this is its query-builder twin so
// both layers give the same answer. The maintenance identities (system,
// admin) are admitted to everything.
func scopeFilter(agentID string, argStart int) (string, []interface{}) {
	if fragment.BypassesScope(agentID) {
		return "TRUE", nil
	}
	return fmt.Sprintf("(agent_id = $%d OR agent_id = '%s')", argStart, fragment.DefaultSharedScope), []interface{}{agentID}
}

// Insert stores one fragment: a hash collision returns the
// existing id with importance bumped to the max of the two; otherwise a
// fresh row is written. embed is the embedding to store (nil if the
// caller chose not to generate one — ShouldEmbed is evaluated by MemoryManager).
func (s *Store) Insert(ctx context.Context, f *fragment.Fragment, embed []float32) (id string, created bool, err error) {
	err = s.withScope(ctx, f.AgentID, func(tx pgx.Tx) error {
		var existingID string
		var existingImportance float64
		lookupErr := tx.QueryRow(ctx,
			`SELECT id, importance FROM fragments WHERE content_hash = $1 AND (agent_id = $2 OR agent_id = $3)`,
			f.ContentHash, f.AgentID, fragment.DefaultSharedScope,
		).Scan(&existingID, &existingImportance)
		switch {
		case lookupErr == nil:
			newImportance := existingImportance
			if f.Importance > newImportance {
				newImportance = f.Importance
			}
			if _, err := tx.Exec(ctx, `UPDATE fragments SET importance = $1 WHERE id = $2`, newImportance, existingID); err != nil {
				return memerr.NewBackend("insert.bump", err)
			}
			id = existingID
			return nil
		case errors.Is(lookupErr, pgx.ErrNoRows):
			// fall through to insert
		default:
			return memerr.NewBackend("insert.lookup", lookupErr)
		}

		var vec *pgvector.Vector
		if len(embed) > 0 {
			v := pgvector.NewVector(embed)
			vec = &v
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO fragments (id, content, topic, keywords, type, importance, content_hash,
				source, linked_to, agent_id, access_count, accessed_at, created_at, ttl_tier,
				estimated_tokens, utility_score, verified_at, embedding, is_anchor)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
			f.ID, f.Content, f.Topic, f.Keywords, string(f.Type), f.Importance, f.ContentHash,
			f.Source, f.LinkedTo, f.AgentID, f.AccessCount, nilIfZero(f.AccessedAt), f.CreatedAt,
			string(f.TTLTier), f.EstimatedTokens, f.UtilityScore, f.VerifiedAt, vec, f.IsAnchor,
		); err != nil {
			return memerr.NewBackend("insert", err)
		}
		id = f.ID
		created = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return id, created, nil
}

func vectorOf(v []float32) pgvector.Vector {
	return pgvector.NewVector(v)
}

func nilIfZero(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// GetByID fetches one fragment visible to agentID.
func (s *Store) GetByID(ctx context.Context, id, agentID string) (*fragment.Fragment, error) {
	var out *fragment.Fragment
	err := s.withScope(ctx, agentID, func(tx pgx.Tx) error {
		f, err := s.getByIDTx(ctx, tx, id, agentID)
		if err != nil {
			return err
		}
		out = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetByIDs fetches a batch of fragments visible to agentID, in no
// guaranteed order — callers that need ordering reorder client-side.
func (s *Store) GetByIDs(ctx context.Context, ids []string, agentID string) ([]*fragment.Fragment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []*fragment.Fragment
	err := s.withScope(ctx, agentID, func(tx pgx.Tx) error {
		filter, args := scopeFilter(agentID, 2)
		query := fmt.Sprintf(`SELECT %s FROM fragments WHERE id = ANY($1) AND %s`, fragmentColumns, filter)
		rows, err := tx.Query(ctx, query, append([]interface{}{ids}, args...)...)
		if err != nil {
			return memerr.NewBackend("getByIds", err)
		}
		defer rows.Close()
		results, err := pgx.CollectRows(rows, pgx.RowToStructByName[row])
		if err != nil {
			return memerr.NewBackend("getByIds", err)
		}
		out = make([]*fragment.Fragment, len(results))
		for i, r := range results {
			out[i] = r.toFragment()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// KeywordSearchParams narrows SearchByKeywords.
type KeywordSearchParams struct {
	Type          string
	Topic         string
	MinImportance float64
	Limit         int
}

// SearchByKeywords uses array overlap against the keywords GIN index,
// excluding rows that are the source of any superseded_by edge.
func (s *Store) SearchByKeywords(ctx context.Context, keywords []string, params KeywordSearchParams, agentID string) ([]*fragment.Fragment, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 30
	}
	var out []*fragment.Fragment
	err := s.withScope(ctx, agentID, func(tx pgx.Tx) error {
		filter, args := scopeFilter(agentID, 2)
		args = append([]interface{}{keywords}, args...)
		query := fmt.Sprintf(`
			SELECT %s FROM fragments f
			WHERE f.keywords && $1 AND %s
			AND NOT EXISTS (SELECT 1 FROM fragment_links l WHERE l.from_id = f.id AND l.relation_type = 'superseded_by')`,
			fragmentColumns, filter)
		if params.Type != "" {
			args = append(args, params.Type)
			query += fmt.Sprintf(" AND f.type = $%d", len(args))
		}
		if params.Topic != "" {
			args = append(args, params.Topic)
			query += fmt.Sprintf(" AND f.topic = $%d", len(args))
		}
		if params.MinImportance > 0 {
			args = append(args, params.MinImportance)
			query += fmt.Sprintf(" AND f.importance >= $%d", len(args))
		}
		args = append(args, limit)
		query += fmt.Sprintf(" ORDER BY f.importance DESC LIMIT $%d", len(args))

		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return memerr.NewBackend("searchByKeywords", err)
		}
		defer rows.Close()
		results, err := pgx.CollectRows(rows, pgx.RowToStructByName[row])
		if err != nil {
			return memerr.NewBackend("searchByKeywords", err)
		}
		out = make([]*fragment.Fragment, len(results))
		for i, r := range results {
			out[i] = r.toFragment()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SemanticResult pairs a fragment with its cosine similarity to the query.
type SemanticResult struct {
	Fragment   *fragment.Fragment
	Similarity float64
}

// SearchBySemantic cosine-searches the HNSW index, filtering 1-minSim >= minSim
// and excluding superseded_by sources.
func (s *Store) SearchBySemantic(ctx context.Context, queryVec []float32, limit int, minSim float64, agentID string) ([]SemanticResult, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []SemanticResult
	err := s.withScope(ctx, agentID, func(tx pgx.Tx) error {
		filter, scopeArgs := scopeFilter(agentID, 3)
		query := fmt.Sprintf(`
			SELECT %s, 1 - (embedding <=> $1) AS similarity FROM fragments f
			WHERE embedding IS NOT NULL AND %s
			AND NOT EXISTS (SELECT 1 FROM fragment_links l WHERE l.from_id = f.id AND l.relation_type = 'superseded_by')
			AND 1 - (embedding <=> $1) >= $2
			ORDER BY embedding <=> $1
			LIMIT $%d`,
			fragmentColumns, filter, len(scopeArgs)+3)

		vec := pgvector.NewVector(queryVec)
		args := append([]interface{}{vec, minSim}, scopeArgs...)
		args = append(args, limit)

		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return memerr.NewBackend("searchBySemantic", err)
		}
		defer rows.Close()

		results, err := pgx.CollectRows(rows, pgx.RowToStructByName[rowWithSimilarity])
		if err != nil {
			return memerr.NewBackend("searchBySemantic", err)
		}
		out = make([]SemanticResult, len(results))
		for i, r := range results {
			out[i] = SemanticResult{Fragment: r.row.toFragment(), Similarity: r.Similarity}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// rowWithSimilarity embeds row's db-tagged columns plus the computed
// cosine-similarity column SearchBySemantic's SELECT appends.
type rowWithSimilarity struct {
	row
	Similarity float64 `db:"similarity"`
}

// IncrementAccess bumps access_count/accessed_at for ids, batched —
// failure is logged by the caller, not raised.
func (s *Store) IncrementAccess(ctx context.Context, ids []string, agentID string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.withScope(ctx, agentID, func(tx pgx.Tx) error {
		filter, args := scopeFilter(agentID, 3)
		query := fmt.Sprintf(`UPDATE fragments SET access_count = access_count + 1, accessed_at = $2 WHERE id = ANY($1) AND %s`, filter)
		full := append([]interface{}{ids, s.clock()}, args...)
		if _, err := tx.Exec(ctx, query, full...); err != nil {
			return memerr.NewBackend("incrementAccess", err)
		}
		return nil
	})
}
