// Package mcptools exposes session inspection and the scoring formula as
// MCP tools and resources.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/yosida95/uritemplate/v3"

	"github.com/txn2/talkback/pkg/scoring"
	"github.com/txn2/talkback/pkg/session"
	"github.com/txn2/talkback/pkg/transcript"
)

// Tool and resource names.
const (
	ListSessionsTool    = "list_sessions"
	ComputeScoreTool    = "compute_score"
	SessionTemplateURI  = "session://{session_id}"
	sessionTemplateName = "Session Status"
)

// Toolkit registers the talkback tools on an MCP server.
type Toolkit struct {
	store    transcript.Store
	registry session.Registry
}

// New creates a Toolkit reading from store and registry.
func New(store transcript.Store, registry session.Registry) *Toolkit {
	return &Toolkit{store: store, registry: registry}
}

// Register adds every tool and resource template to s.
func (t *Toolkit) Register(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name:        ListSessionsTool,
		Description: "List sessions holding transcript chunks with their chunk counts and presenter state.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ listSessionsInput) (*mcp.CallToolResult, any, error) {
		return t.handleListSessions(ctx, req)
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        ComputeScoreTool,
		Description: "Compute the presentation score from a transcript, audience metrics, trend and question quality without calling any model.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(_ context.Context, _ *mcp.CallToolRequest, in computeScoreInput) (*mcp.CallToolResult, any, error) {
		return handleComputeScore(in)
	})

	s.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: SessionTemplateURI,
		Name:        sessionTemplateName,
		Description: "Chunk count and control-plane state for one session",
		MIMEType:    "application/json",
	}, t.handleSessionResource)
}

// listSessionsInput is empty since this tool has no parameters.
type listSessionsInput struct{}

type sessionEntry struct {
	transcript.SessionInfo
	State       session.State `json:"state"`
	Connections int           `json:"connections"`
}

type listSessionsOutput struct {
	Sessions []sessionEntry `json:"sessions"`
	Count    int            `json:"count"`
}

func (t *Toolkit) handleListSessions(ctx context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, any, error) {
	infos := t.store.Sessions(ctx)
	entries := make([]sessionEntry, 0, len(infos))
	for _, info := range infos {
		entry := sessionEntry{SessionInfo: info, State: session.StateNoPresenter}
		if t.registry != nil {
			entry.State = t.registry.SessionState(ctx, info.ID)
			entry.Connections = len(t.registry.Connections(ctx, info.ID))
		}
		entries = append(entries, entry)
	}
	return jsonResult(listSessionsOutput{Sessions: entries, Count: len(entries)})
}

type computeScoreInput struct {
	Transcript      string   `json:"transcript" jsonschema:"the presentation transcript"`
	AvgCuriosity    float64  `json:"avgCuriosity,omitempty" jsonschema:"audience curiosity average from 0 to 100"`
	AvgAttention    float64  `json:"avgAttention,omitempty" jsonschema:"audience attention average from 0 to 100"`
	AvgVibe         float64  `json:"avgVibe,omitempty" jsonschema:"audience vibe average from 0 to 100"`
	Trend           string   `json:"trend,omitempty" jsonschema:"improving, stable or declining"`
	QuestionQuality *float64 `json:"questionQuality,omitempty" jsonschema:"question quality from 0 to 100, defaults to 50"`
}

func handleComputeScore(in computeScoreInput) (*mcp.CallToolResult, any, error) {
	quality := scoring.DefaultQuestionQuality
	if in.QuestionQuality != nil {
		quality = scoring.Clamp(*in.QuestionQuality)
	}
	b := scoring.Compute(scoring.Inputs{
		Transcript: in.Transcript,
		Face: &scoring.FaceMetrics{
			AvgCuriosity: in.AvgCuriosity,
			AvgAttention: in.AvgAttention,
			AvgVibe:      in.AvgVibe,
		},
		Trend:           scoring.ParseTrend(in.Trend),
		QuestionQuality: quality,
	})
	return jsonResult(b)
}

// handleSessionResource serves session://{session_id}.
func (t *Toolkit) handleSessionResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	vars, err := parseTemplateVars(SessionTemplateURI, uri)
	if err != nil || vars["session_id"] == "" {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // SDK matches on the error type
	}

	status, ok := session.Describe(ctx, t.store, t.registry, vars["session_id"])
	if !ok {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // SDK matches on the error type
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling resource %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// parseTemplateVars extracts the named variables of uri under templateStr.
func parseTemplateVars(templateStr, uri string) (map[string]string, error) {
	tmpl, err := uritemplate.New(templateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid template %q: %w", templateStr, err)
	}
	match := tmpl.Match(uri)
	if match == nil {
		return nil, fmt.Errorf("uri %q does not match template %q", uri, templateStr)
	}
	result := make(map[string]string)
	for _, name := range tmpl.Varnames() {
		result[name] = match.Get(name).String()
	}
	return result, nil
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &mcp.CallToolResult{ //nolint:nilerr // tool errors travel in CallToolResult.IsError
			Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + err.Error()}},
			IsError: true,
		}, nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
