// Package rpc exposes the bundle's JSON-RPC 2.0 interface. Requests are
// authenticated with HTTP Basic credentials from the config and dispatched
// to registered methods; application errors use codes in the -1000 range
// alongside the standard JSON-RPC ones.
package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"

	"github.com/revrsedev/inspircd-mods-contrib/internal/metrics"
)

// JSON-RPC 2.0 error codes, plus the module's application range.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeCallDenied = -32000

	CodeNotFound      = -1000
	CodeAlreadyExists = -1001
	CodeInvalidName   = -1002
	CodeDenied        = -1005
)

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Handler implements one RPC method. A nil *Error means success.
type Handler func(params json.RawMessage) (any, *Error)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Server dispatches JSON-RPC requests to registered methods.
type Server struct {
	user     string
	password string
	methods  map[string]Handler
}

// NewServer creates a Server guarding every call with the given Basic
// credentials.
func NewServer(user, password string) *Server {
	return &Server{
		user:     user,
		password: password,
		methods:  make(map[string]Handler),
	}
}

// Register adds a method to the dispatch table. Registration happens at
// startup, before the server is exposed; it is not safe to call once
// requests are flowing.
func (s *Server) Register(method string, h Handler) {
	s.methods[method] = h
}

// Handler returns the HTTP handler serving the RPC endpoint.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serve)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="jsonrpc"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		metrics.RPCRequests.WithLabelValues("", "unauthorized").Inc()
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, response{
			JSONRPC: "2.0",
			Error:   &Error{Code: CodeParseError, Message: "parse error"},
		})
		metrics.RPCRequests.WithLabelValues("", "parse_error").Inc()
		return
	}

	if req.JSONRPC != "2.0" || req.Method == "" {
		writeResponse(w, response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &Error{Code: CodeInvalidRequest, Message: "invalid request"},
		})
		metrics.RPCRequests.WithLabelValues(req.Method, "invalid_request").Inc()
		return
	}

	h, ok := s.methods[req.Method]
	if !ok {
		writeResponse(w, response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &Error{Code: CodeMethodNotFound, Message: "method not found"},
		})
		metrics.RPCRequests.WithLabelValues(req.Method, "not_found").Inc()
		return
	}

	result, rpcErr := h(req.Params)
	if rpcErr != nil {
		writeResponse(w, response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr})
		metrics.RPCRequests.WithLabelValues(req.Method, "error").Inc()
		return
	}

	writeResponse(w, response{JSONRPC: "2.0", ID: req.ID, Result: result})
	metrics.RPCRequests.WithLabelValues(req.Method, "ok").Inc()
}

func (s *Server) authorized(r *http.Request) bool {
	user, password, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.user)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) == 1
	return userOK && passOK
}

func writeResponse(w http.ResponseWriter, resp response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("[rpc] write response: %v", err)
	}
}
