// ABOUTME: HTTP IPC handlers exposing dispatched commands to the UI
// ABOUTME: Provides POST /ipc/{command}, GET /ipc, GET /health and optional metrics

package host

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxArgsBytes = 1 << 20

// IdempotencyHeader names the request header that collapses retried
// invocations onto the first call with the same key.
const IdempotencyHeader = "Idempotency-Key"

// Response is the JSON body returned for every handled IPC call.
// Handler errors are data: ok is false and error carries the text.
type Response struct {
	ID      string `json:"id"`
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	Value   any    `json:"value"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// CommandsResponse is the JSON response for GET /ipc.
type CommandsResponse struct {
	Commands []string `json:"commands"`
}

// kinded is implemented by errors that classify themselves for IPC callers.
type kinded interface {
	ErrorKind() string
}

// Handler returns the runtime's HTTP handler.
func (r *Runtime) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", r.handleHealth)

	ipc := http.NewServeMux()
	ipc.HandleFunc("GET /ipc", r.handleListCommands)
	ipc.HandleFunc("POST /ipc/{command}", r.handleInvoke)

	if len(r.cfg.Secret) > 0 {
		guarded := authMiddleware(NewJWTVerifier(r.cfg.Secret))(ipc)
		mux.Handle("/ipc", guarded)
		mux.Handle("/ipc/", guarded)
	} else {
		mux.Handle("/ipc", ipc)
		mux.Handle("/ipc/", ipc)
	}

	if r.cfg.MetricsPath != "" && r.cfg.Gatherer != nil {
		mux.Handle("GET "+r.cfg.MetricsPath, promhttp.HandlerFor(r.cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}

// handleHealth handles GET /health requests.
func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListCommands handles GET /ipc requests.
func (r *Runtime) handleListCommands(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, CommandsResponse{Commands: r.dispatcher.Commands()})
}

// handleInvoke handles POST /ipc/{command}. The body, if any, is the JSON
// argument object passed to the handler.
func (r *Runtime) handleInvoke(w http.ResponseWriter, req *http.Request) {
	command := req.PathValue("command")

	body, err := io.ReadAll(io.LimitReader(req.Body, maxArgsBytes+1))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > maxArgsBytes {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "arguments too large")
		return
	}

	var args json.RawMessage
	if len(body) > 0 {
		if !json.Valid(body) {
			writeJSONError(w, http.StatusBadRequest, "arguments must be valid JSON")
			return
		}
		args = body
	}

	call := r.dispatch(req, command, args)
	value, err := call.Wait(req.Context())
	if req.Context().Err() != nil {
		// Caller went away; the command keeps running.
		r.logger.Debug("caller disconnected before completion", "call_id", call.ID, "command", command)
		return
	}

	resp := Response{ID: call.ID, Command: command}
	if err != nil {
		if errors.Is(err, ErrUnknownCommand) {
			writeJSONError(w, http.StatusNotFound, "unknown command: "+command)
			return
		}
		resp.Error = err.Error()
		var k kinded
		if errors.As(err, &k) {
			resp.Kind = k.ErrorKind()
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.OK = true
	resp.Value = value
	writeJSON(w, http.StatusOK, resp)
}

// dispatch starts the call, or returns the live call for a repeated
// idempotency key.
func (r *Runtime) dispatch(req *http.Request, command string, args json.RawMessage) *Call {
	key := req.Header.Get(IdempotencyHeader)
	if key == "" {
		return r.dispatcher.Dispatch(req.Context(), command, args)
	}

	call, replayed := r.calls.LoadOrStore(command+"\x00"+key, func() *Call {
		return r.dispatcher.Dispatch(req.Context(), command, args)
	})
	if replayed {
		r.logger.Info("replaying call", "call_id", call.ID, "command", command)
	}
	return call
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
