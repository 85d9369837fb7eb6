// Package api implements the request surface (spec component C7, §4.7,
// §6.1, §6.2): the compile/upload/examples/health HTTP endpoints and the
// /ws WebSocket upgrade, wired the way the teacher's main.go wires one
// concrete transport (a jsonrpc2.Conn) onto one concrete handler — here
// a gorilla/mux router onto internal/session's dispatch table.
package api

import (
	"context"
	"log"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"

	"github.com/MoDevIO/unosim/internal/analyzer"
	"github.com/MoDevIO/unosim/internal/artifact"
	"github.com/MoDevIO/unosim/internal/config"
	"github.com/MoDevIO/unosim/internal/session"
	"github.com/MoDevIO/unosim/internal/toolchain"
)

// Server bundles everything the request surface needs: configuration,
// the toolchain, the examples catalog, and the process-wide session
// table (spec §5's only shared mutable state besides the build root).
type Server struct {
	cfg       config.Config
	toolchain toolchain.Toolchain
	table     *session.Table
	limiter   *ipRateLimiter
	examples  *exampleCatalog
	mockRT    string

	sessionCounter int64
}

// New assembles a Server ready to be mounted onto an http.Handler.
func New(cfg config.Config, tc toolchain.Toolchain, mockRuntime string) *Server {
	return &Server{
		cfg:       cfg,
		toolchain: tc,
		table:     session.NewTable(),
		limiter:   newIPRateLimiter(cfg.DisableRateLimit),
		examples:  newExampleCatalog(cfg.ExamplesDir),
		mockRT:    mockRuntime,
	}
}

// Router builds the full route table described in spec §6.1/§6.2.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.cspMiddleware)
	r.Handle("/api/compile", s.rateLimited(http.HandlerFunc(s.handleCompile))).Methods(http.MethodPost)
	r.Handle("/api/upload", s.rateLimited(http.HandlerFunc(s.handleUpload))).Methods(http.MethodPost)
	r.HandleFunc("/api/examples", s.handleListExamples).Methods(http.MethodGet)
	r.HandleFunc("/examples/{path:.*}", s.handleGetExample).Methods(http.MethodGet)
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebSocket)
	return r
}

func (s *Server) cspMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Shutdown logs that the server is shutting down. It does not stop the
// tracked sessions' runners or close their sockets.
func (s *Server) Shutdown(ctx context.Context) {
	_ = ctx
	log.Println("shutting down: closing all sessions")
}

// nextSessionID produces a short, process-unique session identifier.
func (s *Server) nextSessionID() string {
	return "sess-" + itoa64(atomic.AddInt64(&s.sessionCounter, 1))
}

func itoa64(n int64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// compileResult bundles everything handleCompile needs to build the
// /api/compile response (spec §6.1).
type compileResult struct {
	Success        bool                `json:"success"`
	Output         string              `json:"output"`
	Errors         string              `json:"errors,omitempty"`
	ParserMessages []analyzer.Advisory `json:"parserMessages"`
	IORegistry     []string            `json:"ioRegistry"`
	ProcessedCode  string              `json:"processedCode"`
}

// runCompile implements the shared compile pipeline used by /api/compile,
// /api/upload and the websocket compile message: C3 artifact build, C2 static
// analysis run in parallel, then C1 toolchain invocation (spec §2 flow).
func (s *Server) runCompile(ctx context.Context, bundle artifact.Bundle) (compileResult, toolchain.Result) {
	type analyzeOut struct {
		advisories []analyzer.Advisory
		analogPins map[string]bool
	}
	analyzeCh := make(chan analyzeOut, 1)
	go func() {
		main := bundle.Files[0].Content
		for _, f := range bundle.Files {
			if f.Name == bundle.MainName {
				main = f.Content
				break
			}
		}
		advisories, pins := analyzer.Analyze(main)
		analyzeCh <- analyzeOut{advisories, pins}
	}()

	art, buildErr := artifact.Build(bundle, s.mockRT)
	analysis := <-analyzeCh

	registry := make([]string, 0, len(analysis.analogPins))
	for pin := range analysis.analogPins {
		registry = append(registry, pin)
	}

	if buildErr != nil {
		return compileResult{
			Success:        false,
			Errors:         buildErr.Error(),
			ParserMessages: analysis.advisories,
			IORegistry:     registry,
		}, toolchain.Result{}
	}

	result, err := s.toolchain.Compile(ctx, art.MergedSource, toHeaders(bundle), art.LineOffset)
	if err != nil {
		return compileResult{
			Success:        false,
			Errors:         err.Error(),
			ParserMessages: analysis.advisories,
			IORegistry:     registry,
			ProcessedCode:  art.MergedSource,
		}, toolchain.Result{}
	}

	return compileResult{
		Success:        result.Success,
		Output:         result.Stdout,
		Errors:         result.RewrittenDiagnostics,
		ParserMessages: analysis.advisories,
		IORegistry:     registry,
		ProcessedCode:  art.MergedSource,
	}, result
}

// toHeaders converts a bundle's non-main files into the toolchain's own
// Header type, keeping internal/toolchain free of an internal/artifact
// import.
func toHeaders(bundle artifact.Bundle) []toolchain.Header {
	files := artifact.HeaderFiles(bundle)
	headers := make([]toolchain.Header, len(files))
	for i, f := range files {
		headers[i] = toolchain.Header{Name: f.Name, Content: f.Content}
	}
	return headers
}
