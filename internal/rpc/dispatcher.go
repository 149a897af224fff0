package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"golang.org/x/sync/errgroup"
)

const defaultBatchConcurrency = 8

// HandlerFunc executes one method call.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Dispatcher routes JSON-RPC requests to registered handlers.
// It keeps no per-call state, so one instance serves all requests.
type Dispatcher struct {
	methods          map[string]HandlerFunc
	batchConcurrency int
	logger           *slog.Logger
}

// NewDispatcher returns an empty dispatcher.
// batchConcurrency bounds parallel calls within one batch; 0 uses 8.
func NewDispatcher(batchConcurrency int, logger *slog.Logger) *Dispatcher {
	if batchConcurrency <= 0 {
		batchConcurrency = defaultBatchConcurrency
	}
	return &Dispatcher{
		methods:          make(map[string]HandlerFunc),
		batchConcurrency: batchConcurrency,
		logger:           logger,
	}
}

// Register binds method to h. Registering a name twice replaces the handler.
// Not safe for use while requests are served.
func (d *Dispatcher) Register(method string, h HandlerFunc) {
	d.methods[method] = h
}

// Methods returns the registered method names, sorted.
func (d *Dispatcher) Methods() []string {
	return slices.Sorted(maps.Keys(d.methods))
}

// Handle processes a raw request body. It returns a *Response for a single
// request and a []*Response for a batch, in input order.
func (d *Dispatcher) Handle(ctx context.Context, body []byte) any {
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return errorResponse(nil, NewError(CodeParseError, "Parse error"))
	}

	if body[0] != '[' {
		return d.handleOne(ctx, body)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(body, &elems); err != nil {
		return errorResponse(nil, NewError(CodeParseError, "Parse error"))
	}
	if len(elems) == 0 {
		return errorResponse(nil, NewError(CodeInvalidRequest, "Invalid Request"))
	}

	out := make([]*Response, len(elems))
	var g errgroup.Group
	g.SetLimit(d.batchConcurrency)
	for i, raw := range elems {
		g.Go(func() error {
			out[i] = d.handleOne(ctx, raw)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// handleOne validates, routes and executes a single request.
func (d *Dispatcher) handleOne(ctx context.Context, raw json.RawMessage) *Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(extractID(raw), NewError(CodeInvalidRequest, "Invalid Request"))
	}

	id := req.ID
	if !validID(id) {
		return errorResponse(nil, NewError(CodeInvalidRequest, "Invalid Request"))
	}
	if req.JSONRPC != Version || req.Method == "" {
		return errorResponse(id, NewError(CodeInvalidRequest, "Invalid Request"))
	}

	h, ok := d.methods[req.Method]
	if !ok {
		return errorResponse(id, &Error{
			Code:    CodeMethodNotFound,
			Message: fmt.Sprintf("Method %s not found", req.Method),
		})
	}

	result, err := d.call(ctx, req.Method, h, req.Params)
	if err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			return errorResponse(id, rpcErr)
		}
		d.logger.Error("rpc handler failed", "method", req.Method, "error", err)
		return errorResponse(id, &Error{Code: CodeInternalError, Message: "Internal error", Data: err.Error()})
	}
	if result == nil {
		result = json.RawMessage("null")
	}
	return &Response{JSONRPC: Version, Result: result, ID: id}
}

// call runs h and converts a panic into an error.
func (d *Dispatcher) call(ctx context.Context, method string, h HandlerFunc, params json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("rpc handler panicked", "method", method, "panic", r)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, params)
}

// extractID returns the id of a malformed request object, if it has a usable one.
func extractID(raw json.RawMessage) json.RawMessage {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || !validID(probe.ID) {
		return nil
	}
	return probe.ID
}

// validID reports whether id is absent, null, a string or a number.
func validID(id json.RawMessage) bool {
	if len(id) == 0 {
		return true
	}
	switch c := id[0]; {
	case c == '"', c == '-', c >= '0' && c <= '9':
		return true
	default:
		return string(id) == "null"
	}
}
