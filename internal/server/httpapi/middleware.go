package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/foxhound/internal/common"
	"github.com/dmitrijs2005/foxhound/internal/logging"
	"github.com/dmitrijs2005/foxhound/internal/server/rpc"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const msgUnauthorized = "The request didn't contain a required security token, or the token provided has expired. Please try restarting the app."

// requestLogger tags each request with a uuid and logs it on completion.
func (s *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		ctx = logging.ContextWithRequestID(ctx, id)
		w.Header().Set("X-Request-Id", id)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.logger.Info(ctx, "request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}

// requireToken rejects RPC calls without a valid bearer token. The body is
// only read on rejection, to echo the request id back.
func (s *HTTPServer) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if ok {
			err := s.tokens.Verify(ctx, token)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}
			if !errors.Is(err, common.ErrorUnauthorized) {
				s.logger.Error(ctx, "token verification failed", "error", err)
			}
		}

		rpc.WriteError(w, requestID(r), rpc.NewError(rpc.CodeUnauthorized, msgUnauthorized))
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", false
	}
	return token, true
}

// requestID returns the id of a JSON-RPC body when it is a string or a
// number, and null otherwise.
func requestID(r *http.Request) json.RawMessage {
	null := json.RawMessage("null")
	if r.Body == nil {
		return null
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, rpc.MaxBodySize))
	if err != nil {
		return null
	}

	var env struct {
		ID json.RawMessage `json:"id"`
	}
	if json.Unmarshal(body, &env) != nil {
		return null
	}
	dec := json.NewDecoder(bytes.NewReader(env.ID))
	dec.UseNumber()
	var v any
	if dec.Decode(&v) != nil {
		return null
	}
	switch v.(type) {
	case string, json.Number:
		return env.ID
	}
	return null
}
