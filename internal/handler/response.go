package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/pkg/logger"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// envelope is the JSON object every endpoint answers with.
type envelope map[string]interface{}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Base().Warn("failed to encode response", zap.Error(err))
	}
}

// writeError maps a domain error kind to its HTTP status. Internal errors are
// logged with their cause and answered with an opaque message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(domain.KindOf(err))
	message := "internal server error"

	var de *domain.Error
	if status != http.StatusInternalServerError && errors.As(err, &de) {
		message = de.Message
	} else {
		logger.Error(r.Context(), "request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}

	writeJSON(w, status, envelope{"error": message})
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into v. An empty or malformed body is InvalidInput.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		return domain.InvalidInput("invalid request body")
	}
	return nil
}

// pageRequest reads page and per_page, clamping per_page to domain.MaxPerPage.
func pageRequest(r *http.Request) domain.PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return domain.NewPageRequest(page, perPage)
}

// writePage answers a collection under key with its pagination block.
func writePage(w http.ResponseWriter, key string, items interface{}, page domain.PageRequest, total int64) {
	writeJSON(w, http.StatusOK, envelope{
		key:          items,
		"pagination": domain.NewPagination(page, total),
	})
}

// queryBool parses a boolean query parameter; absent or malformed values yield nil.
func queryBool(r *http.Request, key string) *bool {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}
