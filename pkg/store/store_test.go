package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/config"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/database"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
)

// newTestStore spins up a throwaway postgres container with pgvector,
// applies migrations through the real database.Client, and returns a Store
// over it. Skipped under -short so the unit suite stays container-free.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test requires a container runtime; skipped under -short")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, "pgvector/pgvector:pg16",
		postgres.WithDatabase("memento"),
		postgres.WithUsername("memento"),
		postgres.WithPassword("memento"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	client, err := database.NewClient(ctx, config.DatabaseConfig{
		Host: host, Port: port.Int(), User: "memento", Password: "memento",
		Database: "memento", SSLMode: "disable", MaxConns: 5,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return New(client.Pool, nil)
}

func sampleFragment(agentID string) *fragment.Fragment {
	now := time.Now()
	return &fragment.Fragment{
		ID:              "frag-" + randHex(),
		Content:         "Redis NOAUTH indicates missing REDIS_PASSWORD.",
		Topic:           "redis",
		Keywords:        []string{"redis", "noauth"},
		Type:            fragment.TypeError,
		Importance:      0.9,
		ContentHash:     randHex(),
		AgentID:         agentID,
		CreatedAt:       now,
		VerifiedAt:      now,
		TTLTier:         fragment.TierHot,
		EstimatedTokens: 12,
		UtilityScore:    1.0,
	}
}

var hexCounter int64

func randHex() string {
	hexCounter++
	return fmt.Sprintf("%016x", time.Now().UnixNano()+hexCounter)
}

func TestInsertAndGetByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := sampleFragment("default")

	id, created, err := s.Insert(ctx, f, nil)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, f.ID, id)

	got, err := s.GetByID(ctx, id, "default")
	require.NoError(t, err)
	require.Equal(t, f.Content, got.Content)
	require.Equal(t, fragment.TypeError, got.Type)
}

func TestInsertDuplicateBumpsImportance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := sampleFragment("default")
	f.Importance = 0.5

	id1, created1, err := s.Insert(ctx, f, nil)
	require.NoError(t, err)
	require.True(t, created1)

	dup := sampleFragment("default")
	dup.ContentHash = f.ContentHash
	dup.Importance = 0.9

	id2, created2, err := s.Insert(ctx, dup, nil)
	require.NoError(t, err)
	require.False(t, created2)
	require.Equal(t, id1, id2)

	got, err := s.GetByID(ctx, id1, "default")
	require.NoError(t, err)
	require.Equal(t, 0.9, got.Importance)
}

func TestCreateLinkMirrorsBothSides(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := sampleFragment("default")
	b := sampleFragment("default")
	b.ContentHash = randHex()

	_, _, err := s.Insert(ctx, a, nil)
	require.NoError(t, err)
	_, _, err = s.Insert(ctx, b, nil)
	require.NoError(t, err)

	require.NoError(t, s.CreateLink(ctx, a.ID, b.ID, fragment.RelationRelated, "default"))

	gotA, err := s.GetByID(ctx, a.ID, "default")
	require.NoError(t, err)
	gotB, err := s.GetByID(ctx, b.ID, "default")
	require.NoError(t, err)
	require.Contains(t, gotA.LinkedTo, b.ID)
	require.Contains(t, gotB.LinkedTo, a.ID)
}

func TestDeleteCascadesAndPrunesLinkedTo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := sampleFragment("default")
	b := sampleFragment("default")
	b.ContentHash = randHex()
	_, _, err := s.Insert(ctx, a, nil)
	require.NoError(t, err)
	_, _, err = s.Insert(ctx, b, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateLink(ctx, a.ID, b.ID, fragment.RelationRelated, "default"))

	require.NoError(t, s.Delete(ctx, b.ID, "default"))

	gotA, err := s.GetByID(ctx, a.ID, "default")
	require.NoError(t, err)
	require.NotContains(t, gotA.LinkedTo, b.ID)
}

func TestAnchorFragmentSurvivesExpirySweep(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := sampleFragment("default")
	f.Importance = 0.01
	f.IsAnchor = true
	f.TTLTier = fragment.TierWarm
	f.AccessedAt = time.Now().Add(-365 * 24 * time.Hour)
	_, _, err := s.Insert(ctx, f, nil)
	require.NoError(t, err)

	_, err = s.DeleteExpired(ctx, SweepConfig{
		ExpirationMinImportance: 0.1,
		ExpirationInactivity:    24 * time.Hour,
		ExpirationMinLinks:      2,
	})
	require.NoError(t, err)

	_, err = s.GetByID(ctx, f.ID, "default")
	require.NoError(t, err, "anchor must survive the expiry sweep")
}

func TestScopeIsolatesAgents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	private := sampleFragment("agent-a")
	_, _, err := s.Insert(ctx, private, nil)
	require.NoError(t, err)

	shared := sampleFragment("default")
	shared.ContentHash = randHex()
	_, _, err = s.Insert(ctx, shared, nil)
	require.NoError(t, err)

	// Another agent sees the shared pool but not agent-a's row.
	_, err = s.GetByID(ctx, private.ID, "agent-b")
	require.Error(t, err)
	_, err = s.GetByID(ctx, shared.ID, "agent-b")
	require.NoError(t, err)

	// The owner and both maintenance identities see it.
	for _, agent := range []string{"agent-a", fragment.MaintenanceScope, fragment.AdminScope} {
		_, err = s.GetByID(ctx, private.ID, agent)
		require.NoError(t, err, "agent %s must see the row", agent)
	}
}

func TestResolveContradictionMirrorsLinkedTo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := sampleFragment("default")
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := sampleFragment("default")
	newer.ContentHash = randHex()

	_, _, err := s.Insert(ctx, older, nil)
	require.NoError(t, err)
	_, _, err = s.Insert(ctx, newer, nil)
	require.NoError(t, err)

	require.NoError(t, s.ResolveContradiction(ctx, older.ID, newer.ID))

	gotOlder, err := s.GetByID(ctx, older.ID, "default")
	require.NoError(t, err)
	gotNewer, err := s.GetByID(ctx, newer.ID, "default")
	require.NoError(t, err)
	require.Contains(t, gotOlder.LinkedTo, newer.ID)
	require.Contains(t, gotNewer.LinkedTo, older.ID)
	require.InDelta(t, 0.45, gotOlder.Importance, 1e-9, "older fragment's importance halves")

	linked, err := s.GetLinkedFragments(ctx, []string{older.ID}, fragment.RelationSupersededBy, 10, "default")
	require.NoError(t, err)
	require.Len(t, linked, 1)
	require.Equal(t, newer.ID, linked[0].Fragment.ID)
}
