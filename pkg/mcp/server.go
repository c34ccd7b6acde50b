// Package mcp exposes the dashboard queries as Model Context Protocol tools
// over newline-delimited JSON-RPC on stdio.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/stockbuzz/stockbuzz/pkg/audit"
	"github.com/stockbuzz/stockbuzz/pkg/budget"
	"github.com/stockbuzz/stockbuzz/pkg/market"
	"github.com/stockbuzz/stockbuzz/pkg/tracker"
)

const maxLineSize = 4 * 1024 * 1024

// Deps are the collaborators of a Server. Market is required; the others
// disable their tools when nil.
type Deps struct {
	Market  *market.Service
	Tracker tracker.Tracker
	Budget  *budget.Enforcer
	Audit   *audit.Logger
	Logger  *zap.Logger
}

// Server is a minimal MCP server.
type Server struct {
	market   *market.Service
	tracker  tracker.Tracker
	enforcer *budget.Enforcer
	auditor  *audit.Logger
	logger   *zap.Logger
	version  string
}

// New creates a Server.
func New(d Deps, version string) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		market:   d.Market,
		tracker:  d.Tracker,
		enforcer: d.Budget,
		auditor:  d.Audit,
		logger:   logger.Named("mcp"),
		version:  version,
	}
}

// Run reads JSON-RPC requests from r line by line and writes responses to w.
// It blocks until r is closed or ctx is cancelled. Requests are handled one
// at a time; model calls are paced by the service queue anyway.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(w, Response{
				JSONRPC: jsonrpcVersion,
				Error:   &RPCError{Code: CodeParseError, Message: "parse error"},
			})
			continue
		}
		if req.JSONRPC != jsonrpcVersion {
			s.writeResponse(w, Response{
				JSONRPC: jsonrpcVersion,
				ID:      req.ID,
				Error:   &RPCError{Code: CodeInvalidRequest, Message: "jsonrpc must be \"2.0\""},
			})
			continue
		}

		resp := s.dispatch(ctx, &req)
		if resp == nil {
			continue
		}
		s.writeResponse(w, *resp)
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	s.logger.Debug("request", zap.String("method", req.Method))

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized", "notifications/cancelled":
		return nil
	case "ping":
		return &Response{JSONRPC: jsonrpcVersion, ID: req.ID, Result: map[string]any{}}
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		if len(req.ID) == 0 {
			return nil
		}
		return &Response{
			JSONRPC: jsonrpcVersion,
			ID:      req.ID,
			Error:   &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method: %s", req.Method)},
		}
	}
}

func (s *Server) handleInitialize(req *Request) *Response {
	return &Response{
		JSONRPC: jsonrpcVersion,
		ID:      req.ID,
		Result: InitializeResult{
			ProtocolVersion: ProtocolVersion,
			ServerInfo:      ServerInfo{Name: "stockbuzz", Version: s.version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
			Instructions:    "Live stock market scanners, news, quotes and analysis. Results are cached briefly; pass force=true for fresh data.",
		},
	}
}

func (s *Server) handleToolsList(req *Request) *Response {
	return &Response{
		JSONRPC: jsonrpcVersion,
		ID:      req.ID,
		Result:  ToolsListResult{Tools: allTools},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return &Response{
			JSONRPC: jsonrpcVersion,
			ID:      req.ID,
			Error:   &RPCError{Code: CodeInvalidParams, Message: "invalid params"},
		}
	}

	handler, ok := toolHandlers[params.Name]
	if !ok {
		return &Response{
			JSONRPC: jsonrpcVersion,
			ID:      req.ID,
			Result:  errorResult(fmt.Sprintf("unknown tool: %s", params.Name)),
		}
	}

	result := handler(ctx, s, params.Arguments)
	if result.IsError {
		s.logger.Info("tool failed", zap.String("tool", params.Name))
	}
	return &Response{
		JSONRPC: jsonrpcVersion,
		ID:      req.ID,
		Result:  result,
	}
}

func (s *Server) writeResponse(w io.Writer, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("marshal response", zap.Error(err))
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write response", zap.Error(err))
	}
}
