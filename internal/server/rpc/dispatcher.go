package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/dmitrijs2005/foxhound/internal/logging"
)

// MaxBodySize caps the request body.
const MaxBodySize = 1 << 20

const jsonContentType = "application/json; charset=UTF-8"

// DebugData is attached to internal errors when debugging is enabled.
type DebugData struct {
	Exception string `json:"exception"`
	Message   string `json:"message"`
	Location  string `json:"location"`
	Trace     string `json:"trace"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Dispatcher is the HTTP endpoint for JSON-RPC calls.
//
// Calls without an id, or with a null id, are notifications: once the
// envelope has been read far enough to know that, the reply is always an
// empty 204 whatever the outcome.
type Dispatcher struct {
	registry *Registry
	logger   logging.Logger
	debug    bool
}

func NewDispatcher(registry *Registry, logger logging.Logger, debug bool) *Dispatcher {
	return &Dispatcher{registry: registry, logger: logger.With("module", "rpc"), debug: debug}
}

// call is a decoded envelope.
type call struct {
	id     json.RawMessage
	method string
	params Params
}

func (c *call) notification() bool {
	return len(c.id) == 0 || isNull(c.id)
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	env, rerr := d.readEnvelope(w, r)
	if rerr != nil {
		WriteError(w, nil, rerr)
		return
	}

	c := &call{}
	if raw, ok := env["id"]; ok && !isNull(raw) {
		c.id = raw
	}

	result, err := d.dispatch(ctx, c, env)
	if c.notification() {
		if err != nil {
			d.logger.Error(ctx, "notification failed", "method", c.method, "error", err)
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		WriteError(w, c.id, d.toRPCError(ctx, c, err))
		return
	}
	d.writeResult(ctx, w, c, result)
}

// readEnvelope returns the top-level members of a JSON-RPC 2.0 request.
// Failures here are reported even for would-be notifications, as the id
// is not known yet.
func (d *Dispatcher) readEnvelope(w http.ResponseWriter, r *http.Request) (map[string]json.RawMessage, *Error) {
	// A request without a Content-Type carries no declared body at all.
	ct := r.Header.Get("Content-Type")
	if r.Body == nil || ct == "" {
		return nil, NewError(CodeParseError, "Request body is empty.")
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, NewError(CodeParseError, "Request body is too large.")
		}
		return nil, NewError(CodeParseError, "Request is not properly-formed JSON.")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, NewError(CodeParseError, "Request body is empty.")
	}
	if !isJSONContentType(ct) {
		return nil, NewError(CodeParseError, "Request does not have a JSON Content-Type.")
	}
	if !json.Valid(body) {
		return nil, NewError(CodeParseError, "Request is not properly-formed JSON.")
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, NewError(CodeInvalidRequest, "Request is not a JSON-RPC 2.0 request.")
	}
	var version string
	if raw, ok := env["jsonrpc"]; !ok || json.Unmarshal(raw, &version) != nil || version != "2.0" {
		return nil, NewError(CodeInvalidRequest, "Request is not a JSON-RPC 2.0 request.")
	}
	return env, nil
}

func isJSONContentType(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "application/json" || (strings.HasPrefix(mt, "application/") && strings.HasSuffix(mt, "+json"))
}

// dispatch validates the rest of the envelope into c and runs the handler.
func (d *Dispatcher) dispatch(ctx context.Context, c *call, env map[string]json.RawMessage) (any, error) {
	raw, ok := env["method"]
	if !ok || json.Unmarshal(raw, &c.method) != nil {
		return nil, NewError(CodeInvalidRequest, "Request does not specify a method.")
	}

	params, rerr := decodeParams(env["params"])
	if rerr != nil {
		return nil, rerr
	}
	c.params = params

	h, ok := d.registry.Lookup(c.method)
	if !ok {
		return nil, NewError(CodeMethodNotFound, "Method does not exist.")
	}
	return invoke(ctx, h, params)
}

// decodeParams accepts an object, or an empty array as an empty object.
func decodeParams(raw json.RawMessage) (Params, *Error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, NewError(CodeInvalidRequest, "Request does not specify params.")
	}
	switch raw[0] {
	case '{':
		var p Params
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, NewError(CodeInvalidRequest, "Request does not specify params.")
		}
		if p == nil {
			p = Params{}
		}
		return p, nil
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil || len(list) > 0 {
			return nil, NewError(CodeInvalidRequest, "Params is not an object.")
		}
		return Params{}, nil
	default:
		return nil, NewError(CodeInvalidRequest, "Request does not specify params.")
	}
}

// panicError carries a recovered panic out of a handler.
type panicError struct {
	value    any
	location string
	stack    []byte
}

func (p *panicError) Error() string {
	return fmt.Sprint(p.value)
}

func invoke(ctx context.Context, h Handler, params Params) (result any, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &panicError{value: v, location: panicLocation(), stack: debug.Stack()}
		}
	}()
	return h.ServeRPC(ctx, params)
}

// panicLocation finds the first frame outside the runtime, which is the
// function that panicked.
func panicLocation() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, "runtime.") {
			return fmt.Sprintf("%s(%d)", f.File, f.Line)
		}
		if !more {
			return "<unknown>(0)"
		}
	}
}

func (d *Dispatcher) toRPCError(ctx context.Context, c *call, err error) *Error {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr
	}

	data := &DebugData{
		Exception: fmt.Sprintf("%T", err),
		Message:   err.Error(),
		Location:  "<unknown>(0)",
	}
	var p *panicError
	if errors.As(err, &p) {
		data.Exception = fmt.Sprintf("%T", p.value)
		data.Location = p.location
		data.Trace = string(p.stack)
	}

	d.logger.Error(ctx, "rpc call failed", "method", c.method, "id", string(c.id),
		"exception", data.Exception, "error", data.Message, "location", data.Location)

	ierr := NewError(CodeInternal, InternalErrorMessage)
	if d.debug {
		ierr.Data = data
	}
	return ierr
}

func (d *Dispatcher) writeResult(ctx context.Context, w http.ResponseWriter, c *call, result any) {
	raw, err := marshal(result)
	if err != nil {
		WriteError(w, c.id, d.toRPCError(ctx, c, fmt.Errorf("encode result: %w", err)))
		return
	}
	writeJSON(w, http.StatusOK, response{JSONRPC: "2.0", ID: c.id, Result: raw})
}

// WriteError sends a standalone error envelope, for layers in front of the
// dispatcher such as authentication.
func WriteError(w http.ResponseWriter, id json.RawMessage, e *Error) {
	writeJSON(w, e.HTTPStatus(), response{JSONRPC: "2.0", ID: id, Error: e})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	raw, err := marshal(v)
	if err != nil {
		raw = []byte(`{"jsonrpc":"2.0","error":{"code":2500,"message":"` + InternalErrorMessage + `"}}`)
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

// marshal encodes without HTML escaping and without the trailing newline.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
