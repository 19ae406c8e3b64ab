package server

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/consolidator"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/memerr"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/memory"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/reflect"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/store"
)

// envelope is the shared success/error header every tool result carries.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func failed(err error) envelope {
	return envelope{Success: false, Error: memerr.Facade(err)}
}

var ok = envelope{Success: true}

// --- remember ---

type rememberInput struct {
	Content    string   `json:"content" jsonschema:"the fragment text to store"`
	Topic      string   `json:"topic" jsonschema:"categorical label"`
	Type       string   `json:"type" jsonschema:"fact|decision|error|preference|procedure|relation"`
	Keywords   []string `json:"keywords,omitempty"`
	Importance float64  `json:"importance,omitempty"`
	Source     string   `json:"source,omitempty"`
	LinkedTo   []string `json:"linkedTo,omitempty"`
	Scope      string   `json:"scope,omitempty" jsonschema:"permanent|session"`
	IsAnchor   bool     `json:"isAnchor,omitempty"`
	SessionID  string   `json:"sessionId,omitempty"`
	AgentID    string   `json:"agentId,omitempty"`
}

type rememberOutput struct {
	envelope
	*memory.RememberResult
}

func (s *Server) handleRemember(ctx context.Context, req *mcp.CallToolRequest, in rememberInput) (*mcp.CallToolResult, rememberOutput, error) {
	s.manager.RecordToolCall(ctx, in.SessionID, "remember")
	res, err := s.manager.Remember(ctx, memory.RememberParams{
		Content: in.Content, Topic: in.Topic, Keywords: in.Keywords,
		Type: fragment.Type(in.Type), Importance: in.Importance, Source: in.Source,
		LinkedTo: in.LinkedTo, Scope: in.Scope, IsAnchor: in.IsAnchor,
		SessionID: in.SessionID, AgentID: in.AgentID,
	})
	if err != nil {
		return nil, rememberOutput{envelope: failed(err)}, nil
	}
	return nil, rememberOutput{envelope: ok, RememberResult: res}, nil
}

// --- recall ---

type recallInput struct {
	Keywords         []string `json:"keywords,omitempty"`
	Topic            string   `json:"topic,omitempty"`
	Type             string   `json:"type,omitempty"`
	Text             string   `json:"text,omitempty" jsonschema:"free-text query for semantic search"`
	MinImportance    float64  `json:"minImportance,omitempty"`
	TokenBudget      int      `json:"tokenBudget,omitempty"`
	IncludeLinks     *bool    `json:"includeLinks,omitempty"`
	LinkRelationType string   `json:"linkRelationType,omitempty"`
	Threshold        float64  `json:"threshold,omitempty"`
	SessionID        string   `json:"sessionId,omitempty"`
	AgentID          string   `json:"agentId,omitempty"`
}

type recallOutput struct {
	envelope
	*memory.RecallResult
}

func (s *Server) handleRecall(ctx context.Context, req *mcp.CallToolRequest, in recallInput) (*mcp.CallToolResult, recallOutput, error) {
	s.manager.RecordToolCall(ctx, in.SessionID, "recall")
	res, err := s.manager.Recall(ctx, memory.RecallParams{
		Keywords: in.Keywords, Topic: in.Topic, Type: in.Type, Text: in.Text,
		MinImportance: in.MinImportance, TokenBudget: in.TokenBudget,
		IncludeLinks: in.IncludeLinks, LinkRelationType: fragment.RelationType(in.LinkRelationType),
		Threshold: in.Threshold, SessionID: in.SessionID, AgentID: in.AgentID,
	})
	if err != nil {
		return nil, recallOutput{envelope: failed(err)}, nil
	}
	return nil, recallOutput{envelope: ok, RecallResult: res}, nil
}

// --- forget ---

type forgetInput struct {
	ID        string `json:"id,omitempty"`
	Topic     string `json:"topic,omitempty"`
	Force     bool   `json:"force,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	AgentID   string `json:"agentId,omitempty"`
}

type forgetOutput struct {
	envelope
	*memory.ForgetResult
}

func (s *Server) handleForget(ctx context.Context, req *mcp.CallToolRequest, in forgetInput) (*mcp.CallToolResult, forgetOutput, error) {
	s.manager.RecordToolCall(ctx, in.SessionID, "forget")
	res, err := s.manager.Forget(ctx, memory.ForgetParams{
		ID: in.ID, Topic: in.Topic, Force: in.Force, AgentID: in.AgentID,
	})
	if err != nil {
		return nil, forgetOutput{envelope: failed(err)}, nil
	}
	return nil, forgetOutput{envelope: ok, ForgetResult: res}, nil
}

// --- link ---

type linkInput struct {
	FromID       string `json:"fromId"`
	ToID         string `json:"toId"`
	RelationType string `json:"relationType,omitempty"`
	SessionID    string `json:"sessionId,omitempty"`
	AgentID      string `json:"agentId,omitempty"`
}

type linkOutput struct {
	envelope
	*memory.LinkResult
}

func (s *Server) handleLink(ctx context.Context, req *mcp.CallToolRequest, in linkInput) (*mcp.CallToolResult, linkOutput, error) {
	s.manager.RecordToolCall(ctx, in.SessionID, "link")
	res, err := s.manager.Link(ctx, memory.LinkParams{
		FromID: in.FromID, ToID: in.ToID,
		RelationType: fragment.RelationType(in.RelationType), AgentID: in.AgentID,
	})
	if err != nil {
		return nil, linkOutput{envelope: failed(err)}, nil
	}
	return nil, linkOutput{envelope: ok, LinkResult: res}, nil
}

// --- amend ---

type amendInput struct {
	ID         string   `json:"id"`
	Content    *string  `json:"content,omitempty"`
	Topic      *string  `json:"topic,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	Type       *string  `json:"type,omitempty"`
	Importance *float64 `json:"importance,omitempty"`
	IsAnchor   *bool    `json:"isAnchor,omitempty"`
	Supersedes string   `json:"supersedes,omitempty"`
	SessionID  string   `json:"sessionId,omitempty"`
	AgentID    string   `json:"agentId,omitempty"`
}

type amendOutput struct {
	envelope
	*memory.AmendResult
}

func (s *Server) handleAmend(ctx context.Context, req *mcp.CallToolRequest, in amendInput) (*mcp.CallToolResult, amendOutput, error) {
	s.manager.RecordToolCall(ctx, in.SessionID, "amend")
	var typ *fragment.Type
	if in.Type != nil {
		t := fragment.Type(*in.Type)
		typ = &t
	}
	res, err := s.manager.Amend(ctx, memory.AmendParams{
		ID: in.ID, Content: in.Content, Topic: in.Topic, Keywords: in.Keywords,
		Type: typ, Importance: in.Importance, IsAnchor: in.IsAnchor,
		Supersedes: in.Supersedes, AgentID: in.AgentID,
	})
	if err != nil {
		return nil, amendOutput{envelope: failed(err)}, nil
	}
	return nil, amendOutput{envelope: ok, AmendResult: res}, nil
}

// --- reflect ---

type taskEffectivenessInput struct {
	OverallSuccess bool     `json:"overall_success"`
	ToolHighlights []string `json:"tool_highlights,omitempty"`
	ToolPainPoints []string `json:"tool_pain_points,omitempty"`
}

type reflectInput struct {
	Summary           string                  `json:"summary"`
	Decisions         []string                `json:"decisions,omitempty"`
	ErrorsResolved    []string                `json:"errors_resolved,omitempty"`
	NewProcedures     []string                `json:"new_procedures,omitempty"`
	OpenQuestions     []string                `json:"open_questions,omitempty"`
	TaskEffectiveness *taskEffectivenessInput `json:"task_effectiveness,omitempty"`
	SessionID         string                  `json:"sessionId,omitempty"`
	AgentID           string                  `json:"agentId,omitempty"`
}

type reflectOutput struct {
	envelope
	FragmentIDs []string `json:"fragmentIds,omitempty"`
}

func (s *Server) handleReflect(ctx context.Context, req *mcp.CallToolRequest, in reflectInput) (*mcp.CallToolResult, reflectOutput, error) {
	s.manager.RecordToolCall(ctx, in.SessionID, "reflect")
	params := reflect.Params{
		Summary: in.Summary, SessionID: in.SessionID,
		Decisions: in.Decisions, ErrorsResolved: in.ErrorsResolved,
		NewProcedures: in.NewProcedures, OpenQuestions: in.OpenQuestions,
		AgentID: in.AgentID,
	}
	if in.TaskEffectiveness != nil {
		params.TaskEffectiveness = &reflect.TaskEffectiveness{
			OverallSuccess: in.TaskEffectiveness.OverallSuccess,
			ToolHighlights: in.TaskEffectiveness.ToolHighlights,
			ToolPainPoints: in.TaskEffectiveness.ToolPainPoints,
		}
	}
	res, err := s.manager.Reflect(ctx, params)
	if err != nil {
		return nil, reflectOutput{envelope: failed(err)}, nil
	}
	return nil, reflectOutput{envelope: ok, FragmentIDs: res.FragmentIDs}, nil
}

// --- context ---

type contextInput struct {
	TokenBudget int      `json:"tokenBudget,omitempty"`
	Types       []string `json:"types,omitempty"`
	SessionID   string   `json:"sessionId,omitempty"`
	AgentID     string   `json:"agentId,omitempty"`
}

type contextOutput struct {
	envelope
	*memory.ContextResult
}

func (s *Server) handleContext(ctx context.Context, req *mcp.CallToolRequest, in contextInput) (*mcp.CallToolResult, contextOutput, error) {
	s.manager.RecordToolCall(ctx, in.SessionID, "context")
	types := make([]fragment.Type, 0, len(in.Types))
	for _, t := range in.Types {
		types = append(types, fragment.Type(t))
	}
	res, err := s.manager.Context(ctx, memory.ContextParams{
		TokenBudget: in.TokenBudget, Types: types,
		SessionID: in.SessionID, AgentID: in.AgentID,
	})
	if err != nil {
		return nil, contextOutput{envelope: failed(err)}, nil
	}
	return nil, contextOutput{envelope: ok, ContextResult: res}, nil
}

// --- tool_feedback ---

type toolFeedbackInput struct {
	ToolName    string `json:"tool_name"`
	Relevant    bool   `json:"relevant"`
	Sufficient  bool   `json:"sufficient"`
	Suggestion  string `json:"suggestion,omitempty" jsonschema:"at most 100 characters"`
	Context     string `json:"context,omitempty" jsonschema:"at most 50 characters"`
	SessionID   string `json:"session_id,omitempty"`
	TriggerType string `json:"trigger_type,omitempty" jsonschema:"sampled|voluntary"`
}

type toolFeedbackOutput struct {
	envelope
}

func (s *Server) handleToolFeedback(ctx context.Context, req *mcp.CallToolRequest, in toolFeedbackInput) (*mcp.CallToolResult, toolFeedbackOutput, error) {
	s.manager.RecordToolCall(ctx, in.SessionID, "tool_feedback")
	err := s.manager.ToolFeedback(ctx, memory.ToolFeedbackParams{
		ToolName: in.ToolName, Relevant: in.Relevant, Sufficient: in.Sufficient,
		Suggestion: in.Suggestion, Context: in.Context, SessionID: in.SessionID,
		TriggerType: fragment.ToolFeedbackTrigger(in.TriggerType),
	})
	if err != nil {
		return nil, toolFeedbackOutput{envelope: failed(err)}, nil
	}
	return nil, toolFeedbackOutput{envelope: ok}, nil
}

// --- memory_stats ---

type statsInput struct {
	AgentID string `json:"agentId,omitempty"`
}

type statsOutput struct {
	envelope
	*store.Stats
}

func (s *Server) handleStats(ctx context.Context, req *mcp.CallToolRequest, in statsInput) (*mcp.CallToolResult, statsOutput, error) {
	s.manager.RecordToolCall(ctx, "", "memory_stats")
	res, err := s.manager.Stats(ctx, in.AgentID)
	if err != nil {
		return nil, statsOutput{envelope: failed(err)}, nil
	}
	return nil, statsOutput{envelope: ok, Stats: res}, nil
}

// --- memory_consolidate ---

type consolidateInput struct{}

type consolidateOutput struct {
	envelope
	*consolidator.Result
}

func (s *Server) handleConsolidate(ctx context.Context, req *mcp.CallToolRequest, in consolidateInput) (*mcp.CallToolResult, consolidateOutput, error) {
	s.manager.RecordToolCall(ctx, "", "memory_consolidate")
	res := s.manager.Consolidate(ctx)
	return nil, consolidateOutput{envelope: ok, Result: res}, nil
}

// --- graph_explore ---

type graphExploreInput struct {
	StartID   string `json:"startId"`
	SessionID string `json:"sessionId,omitempty"`
	AgentID   string `json:"agentId,omitempty"`
}

type graphExploreOutput struct {
	envelope
	Nodes []memory.GraphNode `json:"nodes,omitempty"`
}

func (s *Server) handleGraphExplore(ctx context.Context, req *mcp.CallToolRequest, in graphExploreInput) (*mcp.CallToolResult, graphExploreOutput, error) {
	s.manager.RecordToolCall(ctx, in.SessionID, "graph_explore")
	nodes, err := s.manager.GraphExplore(ctx, in.StartID, in.AgentID)
	if err != nil {
		return nil, graphExploreOutput{envelope: failed(err)}, nil
	}
	return nil, graphExploreOutput{envelope: ok, Nodes: nodes}, nil
}
