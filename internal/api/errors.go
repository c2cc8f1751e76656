package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tatianab/lesson-game/internal/runner"
	"github.com/tatianab/lesson-game/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var phaseErr *runner.PhaseError
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, runner.ErrPlayerNotFound):
		return http.StatusNotFound
	case errors.As(err, &phaseErr),
		errors.Is(err, runner.ErrAlreadyStarted),
		errors.Is(err, runner.ErrPlayerExists),
		errors.Is(err, runner.ErrNotInitialized):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Printf("api: %v", err)
	}
	writeError(w, status, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
