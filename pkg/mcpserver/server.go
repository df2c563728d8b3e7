// Package mcpserver serves the tool operations over the Model Context
// Protocol, on stdio or streamable HTTP.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dd0wney/cluso-attackgraph/pkg/health"
	"github.com/dd0wney/cluso-attackgraph/pkg/loader"
	"github.com/dd0wney/cluso-attackgraph/pkg/logging"
	"github.com/dd0wney/cluso-attackgraph/pkg/metrics"
	"github.com/dd0wney/cluso-attackgraph/pkg/middleware"
	"github.com/dd0wney/cluso-attackgraph/pkg/tools"
)

// Routes mounted by HTTPHandler
const (
	RouteMCP     = "/mcp"
	RouteHealth  = "/healthz"
	RouteReady   = "/readyz"
	RouteLive    = "/livez"
	RouteMetrics = "/metrics"
)

// MaxDroppedRatio is the share of dropped relationships above which the
// knowledge base reports degraded
const MaxDroppedRatio = 0.10

const serverInstructions = `Read-only MITRE ATT&CK knowledge base.

Start with 'search' or 'list_tactics' to find ids, then drill down with
'get_technique', 'get_group_techniques' and 'get_technique_mitigations'.
Use 'build_attack_path' to lay a group's techniques over the kill chain,
'analyze_coverage_gaps' to find unmitigated techniques for a set of groups and
'detect_technique_relationships' to explore the graph around a technique.
'get_load_status' reports whether the knowledge base is loaded.

Errors come back as {"error":{"kind":...,"message":...}} with kind one of
NotLoaded, EntityNotFound, InvalidParameter, Cancelled or Internal.`

// Options configures a Server
type Options struct {
	Version string
	Logger  logging.Logger
	Metrics *metrics.Registry

	// Health replaces the default checks built from the tool service's manager
	Health *health.HealthChecker

	CORS         *middleware.CORSConfig
	MaxBodyBytes int64
	RateLimiter  *middleware.RateLimiter
}

// Server wraps the MCP server with the knowledge-base tools
type Server struct {
	mcp     *mcp.Server
	tools   *tools.Service
	logger  logging.Logger
	metrics *metrics.Registry
	health  *health.HealthChecker
	opts    Options
}

// New creates a server with every tool and resource registered
func New(svc *tools.Service, opts Options) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	s := &Server{
		tools:   svc,
		logger:  logger.With(logging.Component("mcpserver")),
		metrics: opts.Metrics,
		health:  opts.Health,
		opts:    opts,
	}
	if s.health == nil {
		s.health = DefaultHealth(svc.Manager())
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "attackgraph",
			Title:   "ATT&CK Knowledge Graph",
			Version: opts.Version,
		},
		&mcp.ServerOptions{
			Instructions: serverInstructions,
		},
	)

	s.registerTools()
	s.registerResources()

	return s
}

// DefaultHealth builds the checks served on the health endpoints. Readiness
// requires a snapshot; the full check also grades data quality and memory.
func DefaultHealth(manager *loader.Manager) *health.HealthChecker {
	hc := health.NewHealthChecker()
	kb := health.LoaderCheck(manager.Status)
	quality := health.DataQualityCheck(func() (int, int) {
		snap, err := manager.Snapshot(context.Background(), loader.NoWait)
		if err != nil {
			return 0, 0
		}
		return snap.Stats.Relationships, snap.Stats.DroppedRelationships
	}, MaxDroppedRatio)
	memory := health.MemoryCheck(health.RuntimeMemory)

	hc.RegisterCheck("knowledge_base", kb)
	hc.RegisterCheck("data_quality", quality)
	hc.RegisterCheck("memory", memory)
	hc.RegisterReadinessCheck("knowledge_base", kb)
	hc.RegisterLivenessCheck("memory", memory)
	return hc
}

// MCPServer returns the underlying MCP server for direct access (e.g., testing).
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// RunStdio serves MCP over stdin/stdout until ctx is done or the client
// disconnects. Logs must not go to stdout in this mode.
func (s *Server) RunStdio(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns the streamable HTTP transport together with the
// health and metrics endpoints:
//
//   - /mcp      streamable HTTP transport
//   - /healthz  every check; degraded still answers 200
//   - /readyz   503 until a snapshot is published
//   - /livez    process liveness
//   - /metrics  Prometheus exposition (when a registry is configured)
func (s *Server) HTTPHandler() http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return s.mcp },
		&mcp.StreamableHTTPOptions{},
	)

	mux := http.NewServeMux()
	mux.Handle(RouteMCP, middleware.Chain(streamable,
		middleware.RateLimit(s.opts.RateLimiter, middleware.RemoteIP),
		middleware.BodySizeLimit(s.opts.MaxBodyBytes),
	))
	mux.HandleFunc(RouteHealth, getOnly(s.health.HTTPHandler()))
	mux.HandleFunc(RouteReady, getOnly(s.health.ReadinessHandler()))
	mux.HandleFunc(RouteLive, getOnly(s.health.LivenessHandler()))

	routes := []string{RouteMCP, RouteHealth, RouteReady, RouteLive}
	var recorder middleware.MetricsRecorder
	if s.metrics != nil {
		mux.Handle(RouteMetrics, s.metrics.Handler())
		routes = append(routes, RouteMetrics)
		recorder = s.metrics
	}

	return middleware.Chain(mux,
		middleware.PanicRecovery(s.logger),
		middleware.RequestID(),
		middleware.AccessLog(s.logger),
		middleware.Metrics(recorder, routes...),
		middleware.SecurityHeaders(),
		middleware.CORS(s.opts.CORS),
	)
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

// ---------------------------------------------------------------------------
// Result helpers
// ---------------------------------------------------------------------------

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return textResult(string(data)), nil
}

// errorResult reports a tool failure in-band so the client can read the
// kind and correct its call.
func errorResult(te *tools.Error) *mcp.CallToolResult {
	data, err := json.MarshalIndent(map[string]*tools.Error{"error": te}, "", "  ")
	if err != nil {
		data = []byte(fmt.Sprintf(`{"error":{"kind":%q,"message":%q}}`, te.Kind, te.Message))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		IsError: true,
	}
}

func boolPtr(b bool) *bool { return &b }
