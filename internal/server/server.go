// Package server exposes the tool registry over JSON-RPC 2.0: a
// line-framed stdio loop by default, with an optional websocket
// listener.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mnehmos/questforge/internal/registry"
)

// JSONRPCRequest is a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse is a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      any           `json:"id"`
	Result  any           `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// JSONRPCError is a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON-RPC 2.0 error codes used by the server.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
)

// callParams is the params shape of a tools/call request.
type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	SessionID string          `json:"sessionId,omitempty"`
}

// Server dispatches JSON-RPC requests into the registry.
type Server struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// New creates a server over a registry.
func New(r *registry.Registry) *Server {
	return &Server{registry: r, logger: slog.Default().With("component", "server")}
}

// handle resolves one request to a response. sessionID is the
// transport-level default when the call carries none.
func (s *Server) handle(ctx context.Context, sessionID string, req *JSONRPCRequest) *JSONRPCResponse {
	resp := &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "tools/list":
		resp.Result = map[string]any{"tools": s.registry.List()}
	case "tools/call":
		var params callParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			resp.Error = &JSONRPCError{Code: codeInvalidRequest, Message: "invalid tools/call params"}
			return resp
		}
		if params.SessionID != "" {
			sessionID = params.SessionID
		}
		sess := registry.Session{SessionID: sessionID}
		resp.Result = s.registry.Invoke(ctx, sess, params.Name, params.Arguments)
	default:
		resp.Error = &JSONRPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
	return resp
}

// ServeStdio runs the line-framed loop until EOF. Each connection gets
// one session: requests are handled to completion in arrival order.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	sessionID := uuid.New().String()
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req JSONRPCRequest
		if err := json.Unmarshal(line, &req); err != nil {
			if err := enc.Encode(&JSONRPCResponse{
				JSONRPC: "2.0",
				Error:   &JSONRPCError{Code: codeParseError, Message: "parse error"},
			}); err != nil {
				return err
			}
			continue
		}
		if err := enc.Encode(s.handle(ctx, sessionID, &req)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 20,
	WriteBufferSize: 1 << 20,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ServeWebSocket runs a websocket listener. Each connection is its own
// session with serialized request handling.
func (s *Server) ServeWebSocket(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		sessionID := uuid.New().String()
		var writeMu sync.Mutex
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req JSONRPCRequest
			resp := &JSONRPCResponse{JSONRPC: "2.0"}
			if err := json.Unmarshal(payload, &req); err != nil {
				resp.Error = &JSONRPCError{Code: codeParseError, Message: "parse error"}
			} else {
				resp = s.handle(r.Context(), sessionID, &req)
			}
			writeMu.Lock()
			err = conn.WriteJSON(resp)
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	s.logger.Info("websocket listener up", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
