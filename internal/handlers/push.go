package handlers

import (
	"encoding/json"
	"log"
	"net/http"
)

// GetVAPIDKeyHandler returns the public VAPID key for client registration
func (h *Handler) GetVAPIDKeyHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"publicKey": h.Config.PublicKey,
	})
}

// SubscribePushHandler saves a push subscription
func (h *Handler) SubscribePushHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Session login (browser flow) or bearer token both work here.
	session, _ := sessionStore.Get(r, sessionName)
	userID, ok := session.Values["user_id"].(int)
	if !ok {
		user, authed := h.userFromBearer(r)
		if !authed {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		userID = user.ID
	}

	var req struct {
		Endpoint string `json:"endpoint"`
		TenantID string `json:"tenant_id"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		http.Error(w, "Invalid subscription", http.StatusBadRequest)
		return
	}

	if err := h.Subscriptions.SavePushSubscription(r.Context(), userID, req.TenantID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth); err != nil {
		log.Printf("Failed to save subscription: %v", err)
		http.Error(w, "Failed to save subscription", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
