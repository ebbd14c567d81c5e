package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/kalambet/aist/internal/engine"
	"github.com/kalambet/aist/internal/pipeline"
	"github.com/kalambet/aist/internal/retrieval"
	"github.com/kalambet/aist/internal/storage"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

// classify maps a domain error onto an HTTP status and error type.
func classify(err error) (int, string) {
	var exhausted *pipeline.AttemptsExhaustedError
	switch {
	case errors.Is(err, pipeline.ErrEmptyTask), errors.Is(err, retrieval.ErrInvalidExample):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, retrieval.ErrStoreEmpty):
		return http.StatusConflict, "store_empty"
	case errors.Is(err, retrieval.ErrDimensionMismatch):
		return http.StatusConflict, "dimension_mismatch"
	case errors.As(err, &exhausted):
		return http.StatusUnprocessableEntity, "attempts_exhausted"
	case engine.IsProviderError(err):
		return http.StatusBadGateway, "provider_error"
	default:
		return http.StatusInternalServerError, "api_error"
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	code, typ := classify(err)
	httpError(w, code, typ, "%v", err)
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
