package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/foxhound/internal/server/auth"
	"github.com/dmitrijs2005/foxhound/internal/server/storage"
	"github.com/go-chi/chi/v5"
)

const maxSecretSize = 64 << 10

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// mintToken exchanges the shared secret, sent as the raw body, for a
// bearer token.
func (s *HTTPServer) mintToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSecretSize))
	if err != nil {
		writeText(w, http.StatusUnauthorized, "The request didn't contain the application secret.\n")
		return
	}
	if s.secret == "" {
		writeText(w, http.StatusInternalServerError,
			"The server is misconfigured and doesn't have an application secret set.\n")
		return
	}
	if !auth.CheckSecret(string(body), s.secret) {
		writeText(w, http.StatusUnauthorized, "The provided application secret is invalid.\n")
		return
	}

	token, err := s.tokens.Mint(ctx)
	if err != nil {
		s.logger.Error(ctx, "mint token", "error", err)
		writeText(w, http.StatusInternalServerError, "An internal server error occured.\n")
		return
	}
	writeText(w, http.StatusOK, token+"\n")
}

func (s *HTTPServer) receiveBlob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := s.blobs.Receive(ctx, chi.URLParam(r, "token"), r.Body)
	switch {
	case errors.Is(err, storage.ErrInvalidBlobToken):
		writeText(w, http.StatusForbidden, "The upload URL is invalid or has expired.\n")
		return
	case err != nil:
		s.logger.Error(ctx, "receive blob", "error", err)
		writeText(w, http.StatusInternalServerError, "An internal server error occured.\n")
		return
	}

	s.logger.Debug(ctx, "blob stored", "bytes", n)
	w.WriteHeader(http.StatusOK)
}

func (s *HTTPServer) sendBlob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rc, err := s.blobs.Open(ctx, chi.URLParam(r, "token"))
	switch {
	case errors.Is(err, storage.ErrInvalidBlobToken):
		writeText(w, http.StatusForbidden, "The download URL is invalid or has expired.\n")
		return
	case errors.Is(err, storage.ErrObjectNotFound):
		writeText(w, http.StatusNotFound, "The file does not exist.\n")
		return
	case err != nil:
		s.logger.Error(ctx, "open blob", "error", err)
		writeText(w, http.StatusInternalServerError, "An internal server error occured.\n")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn(ctx, "send blob", "error", err)
	}
}
