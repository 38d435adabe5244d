package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"update-broadcast-go/internal/broadcast"
	"update-broadcast-go/internal/models"
)

// BroadcastUpdateHandler is the trigger endpoint: it authenticates the
// bearer token, checks the admin role and hands the request to the
// orchestrator. Partial delivery failure is a normal 200; only
// precondition failures map to error statuses.
func (h *Handler) BroadcastUpdateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.Orchestrator == nil || h.Config.PublicKey == "" || h.Config.PrivateKey == "" {
		writeError(w, http.StatusInternalServerError, "push service is not configured")
		return
	}

	user, ok := h.userFromBearer(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
		return
	}

	var req models.BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	summary, err := h.Orchestrator.Broadcast(r.Context(), req, user.Username, user.Role == "admin")
	if err != nil {
		switch {
		case errors.Is(err, broadcast.ErrForbidden):
			writeError(w, http.StatusForbidden, "admin role required")
		case errors.Is(err, broadcast.ErrMissingVersion), errors.Is(err, broadcast.ErrInvalidPriority):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, broadcast.ErrDuplicateVersion):
			writeError(w, http.StatusConflict, "version already broadcast")
		default:
			log.Printf("Broadcast %s failed: %v", req.Version, err)
			writeError(w, http.StatusInternalServerError, "broadcast failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"version":          summary.Version,
		"total_recipients": summary.TotalRecipients,
		"successful_sends": summary.SuccessfulSends,
		"failed_sends":     summary.FailedSends,
		"expired_cleaned":  summary.ExpiredCleaned,
		"update_id":        summary.RecordID,
	})
}
