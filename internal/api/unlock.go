package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-sentinel/internal/auth"
)

// unlockMethodPIN is recorded as the unlock method and failed-attempt kind.
const unlockMethodPIN = "pin"

// unlockRequest is the request body for POST /unlock.
type unlockRequest struct {
	PIN string `json:"pin"`
}

// unlockResponse is the response body for POST /unlock.
type unlockResponse struct {
	Locked    bool `json:"locked"`
	WasLocked bool `json:"was_locked"`
}

// handleUnlock checks a PIN from the local lock screen. A wrong PIN counts
// as a failed attempt, which may trigger auto-lock.
func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.PIN == "" {
		writeBadRequest(w, "pin is required")
		return
	}
	if s.pinHash == "" {
		writeUnavailable(w, "PIN unlock not configured")
		return
	}

	wasLocked := s.engine.IsLocked()
	credential := auth.PINCredential{Hash: s.pinHash, PIN: req.PIN}
	if !s.engine.UnlockWithPrompt(r.Context(), unlockMethodPIN, credential) {
		s.engine.RecordFailedAttempt(r.Context(), unlockMethodPIN)
		writeUnauthorized(w, "invalid PIN")
		return
	}

	writeJSON(w, http.StatusOK, unlockResponse{Locked: false, WasLocked: wasLocked})
}
