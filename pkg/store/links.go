package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/memerr"
)

// validRelations whitelists relation-type filters accepted from callers,
// preventing filter-string injection.
var validRelations = map[fragment.RelationType]bool{
	fragment.RelationRelated:      true,
	fragment.RelationCausedBy:     true,
	fragment.RelationResolvedBy:   true,
	fragment.RelationPartOf:       true,
	fragment.RelationContradicts:  true,
	fragment.RelationSupersededBy: true,
}

// createLinkTx upserts one edge and maintains both linked_to mirrors
// idempotently. Every edge-creating path — explicit links, auto-links,
// supersessions, and the consolidator's contradiction resolution — funnels
// through here so the undirected mirror invariant holds no matter who
// created the edge.
func createLinkTx(ctx context.Context, tx pgx.Tx, from, to string, relation fragment.RelationType) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO fragment_links (from_id, to_id, relation_type) VALUES ($1,$2,$3)
		ON CONFLICT (from_id, to_id, relation_type) DO NOTHING`,
		from, to, string(relation),
	); err != nil {
		return memerr.NewBackend("createLink", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE fragments SET linked_to = array_append(linked_to, $1) WHERE id = $2 AND NOT ($1 = ANY(linked_to))`, to, from); err != nil {
		return memerr.NewBackend("createLink.mirrorFrom", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE fragments SET linked_to = array_append(linked_to, $1) WHERE id = $2 AND NOT ($1 = ANY(linked_to))`, from, to); err != nil {
		return memerr.NewBackend("createLink.mirrorTo", err)
	}
	return nil
}

// CreateLink upserts the edge and maintains both linked_to mirrors
// idempotently, after verifying both endpoints are visible to the caller.
func (s *Store) CreateLink(ctx context.Context, from, to string, relation fragment.RelationType, agentID string) error {
	if !validRelations[relation] {
		return memerr.NewValidationError("relationType", "unknown relation type")
	}
	return s.withScope(ctx, agentID, func(tx pgx.Tx) error {
		if _, err := s.getByIDTx(ctx, tx, from, agentID); err != nil {
			return err
		}
		if _, err := s.getByIDTx(ctx, tx, to, agentID); err != nil {
			return err
		}
		return createLinkTx(ctx, tx, from, to, relation)
	})
}

// LinkedFragment pairs a fragment with the relation that reached it from
// a queried source id, and the walk depth (used by GetRCAChain).
type LinkedFragment struct {
	Fragment *fragment.Fragment
	Relation fragment.RelationType
	Depth    int
}

// relationPriority orders resolved_by before caused_by before everything
// else.
func relationPriority(r string) int {
	switch fragment.RelationType(r) {
	case fragment.RelationResolvedBy:
		return 0
	case fragment.RelationCausedBy:
		return 1
	default:
		return 2
	}
}

// GetLinkedFragments joins edges to rows for a one-hop fetch, ordered by
// relation priority then importance descending, capped at limit.
func (s *Store) GetLinkedFragments(ctx context.Context, fromIDs []string, relation fragment.RelationType, limit int, agentID string) ([]LinkedFragment, error) {
	if len(fromIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	var out []LinkedFragment
	err := s.withScope(ctx, agentID, func(tx pgx.Tx) error {
		filter, scopeArgs := scopeFilter(agentID, 3)
		query := fmt.Sprintf(`
			SELECT %s, l.relation_type AS rel FROM fragment_links l
			JOIN fragments f ON f.id = l.to_id
			WHERE l.from_id = ANY($1) AND %s`, prefixColumns("f", fragmentColumns), filter)
		args := append([]interface{}{fromIDs}, scopeArgs...)
		if relation != "" {
			if !validRelations[relation] {
				return memerr.NewValidationError("relationType", "unknown relation type")
			}
			args = append(args, string(relation))
			query += fmt.Sprintf(" AND l.relation_type = $%d", len(args))
		}
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))

		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return memerr.NewBackend("getLinkedFragments", err)
		}
		defer rows.Close()

		type joined struct {
			row
			Rel string `db:"rel"`
		}
		results, err := pgx.CollectRows(rows, pgx.RowToStructByName[joined])
		if err != nil {
			return memerr.NewBackend("getLinkedFragments", err)
		}

		out = make([]LinkedFragment, len(results))
		for i, r := range results {
			out[i] = LinkedFragment{Fragment: r.row.toFragment(), Relation: fragment.RelationType(r.Rel)}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByRelationPriorityThenImportance(out)
	return out, nil
}

func sortByRelationPriorityThenImportance(lf []LinkedFragment) {
	for i := 1; i < len(lf); i++ {
		j := i
		for j > 0 {
			a, b := lf[j-1], lf[j]
			aPri, bPri := relationPriority(string(a.Relation)), relationPriority(string(b.Relation))
			swap := aPri > bPri || (aPri == bPri && a.Fragment.Importance < b.Fragment.Importance)
			if !swap {
				break
			}
			lf[j-1], lf[j] = lf[j], lf[j-1]
			j--
		}
	}
}

// GetRCAChain performs a one-hop walk from startId following only
// caused_by and resolved_by edges, returning the start node plus targets
// annotated with relation and depth.
func (s *Store) GetRCAChain(ctx context.Context, startID, agentID string) ([]LinkedFragment, error) {
	start, err := s.GetByID(ctx, startID, agentID)
	if err != nil {
		return nil, err
	}
	chain := []LinkedFragment{{Fragment: start, Depth: 0}}

	for _, rel := range []fragment.RelationType{fragment.RelationCausedBy, fragment.RelationResolvedBy} {
		linked, err := s.GetLinkedFragments(ctx, []string{startID}, rel, 50, agentID)
		if err != nil {
			return nil, err
		}
		for _, lf := range linked {
			lf.Depth = 1
			chain = append(chain, lf)
		}
	}
	return chain, nil
}

func prefixColumns(alias, cols string) string {
	parts := strings.Split(cols, ",")
	out := make([]string, 0, len(parts))
	for _, c := range parts {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		out = append(out, alias+"."+c)
	}
	return strings.Join(out, ", ")
}
