package handlers

import (
	"encoding/json"
	"net/http"
)

// === User Management ===

func (h *Handler) GetUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.GetUsers(r.Context())
	if err != nil {
		http.Error(w, "Failed to get users", http.StatusInternalServerError)
		return
	}

	respUsers := make([]map[string]any, 0, len(users))
	for _, u := range users {
		respUsers = append(respUsers, map[string]any{
			"id":         u.ID,
			"username":   u.Username,
			"role":       u.Role,
			"created_at": u.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": respUsers})
}

func (h *Handler) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if req.Role != "admin" && req.Role != "user" {
		http.Error(w, "Invalid role", http.StatusBadRequest)
		return
	}

	user, err := h.Users.CreateUser(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// The API token is only shown once, at creation.
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"user":      user,
		"api_token": user.APIToken,
	})
}
