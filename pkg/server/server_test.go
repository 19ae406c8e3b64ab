package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/activity"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/index"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/memory"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/tokencount"
)

// connect boots the Server over in-memory transports and returns a live
// client session, the same harness shape the durable-store-free paths can
// be driven through.
func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()

	clock := func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	factory := fragment.NewFactory(tokencount.NewCounter(), clock)
	manager := memory.New(
		factory, nil, index.New(nil, index.Options{}), nil, nil, nil, nil,
		activity.New(nil, 0, clock), memory.DefaultConfig(), clock,
	)
	srv := New(manager)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = srv.Run(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "memento-test", Version: "test"}, nil)
	session, err := client.Connect(context.Background(), clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestServerExposesElevenTools(t *testing.T) {
	session := connect(t)

	tools, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make(map[string]bool, len(tools.Tools))
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"remember", "recall", "forget", "link", "amend", "reflect", "context",
		"tool_feedback", "memory_stats", "memory_consolidate", "graph_explore",
	} {
		assert.True(t, names[want], "missing tool %s", want)
	}
	assert.Len(t, tools.Tools, 11)
}

func TestValidationErrorsFoldIntoEnvelope(t *testing.T) {
	session := connect(t)
	ctx := context.Background()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "link",
		Arguments: map[string]any{"toId": "frag-b"},
	})
	require.NoError(t, err)

	raw, marshalErr := json.Marshal(res.StructuredContent)
	require.NoError(t, marshalErr)
	var out struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "fromId")
}

func TestSessionScopedRememberRoundTrips(t *testing.T) {
	session := connect(t)
	ctx := context.Background()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name: "remember",
		Arguments: map[string]any{
			"content": "scratch note", "topic": "t", "type": "fact",
			"scope": "session", "sessionId": "sess-1",
		},
	})
	require.NoError(t, err)

	raw, marshalErr := json.Marshal(res.StructuredContent)
	require.NoError(t, marshalErr)
	var out struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
		Scope   string `json:"scope"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.True(t, out.Success)
	assert.Equal(t, "session", out.Scope)
	assert.Contains(t, out.ID, "frag-")
}
