package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mvplabs/process-dispatcher/internal/logging"
)

// noProcessesMessage is the body sent when no process is claimable.
const noProcessesMessage = "No available processes to assign"

// messageBody is the envelope for non-claim responses.
type messageBody struct {
	Message string `json:"message"`
}

func (s *Server) handleAssignProcess(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "supervisor_id")
	supervisorID, err := uuid.Parse(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, messageBody{
			Message: fmt.Sprintf("Invalid supervisor id %q: %v", raw, err),
		})
		return
	}

	claim, err := s.assigner.AssignProcess(r.Context(), supervisorID)
	if err != nil {
		logging.Logger().Error("http: assignment failed",
			"supervisor_id", supervisorID, "error", err)
		writeJSON(w, http.StatusInternalServerError, messageBody{
			Message: fmt.Sprintf("Failed to assign process: %v", err),
		})
		return
	}

	if claim == nil {
		// net/http drops bodies on 204 responses; the write is kept so the
		// contract is visible here and survives a future status change.
		writeJSON(w, http.StatusNoContent, messageBody{Message: noProcessesMessage})
		return
	}

	writeJSON(w, http.StatusOK, claim)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Logger().Warn("http: writing response body failed", "error", err)
	}
}
