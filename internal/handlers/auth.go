package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"

	"update-broadcast-go/internal/models"

	"github.com/gorilla/sessions"
)

var (
	sessionStore = sessions.NewCookieStore([]byte(sessionSecret()))
	sessionName  = "broadcast-session"
)

func sessionSecret() string {
	if s := os.Getenv("SESSION_SECRET"); s != "" {
		return s
	}
	return "secret-key-change-in-production"
}

// LoginHandler handles session login for the browser subscribe flow
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	user, err := h.Users.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if !user.CheckPassword(req.Password) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	session, _ := sessionStore.Get(r, sessionName)
	session.Values["user_id"] = user.ID
	session.Values["username"] = user.Username
	session.Values["role"] = user.Role
	session.Save(r, w)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

// LogoutHandler handles logout
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionStore.Get(r, sessionName)
	session.Values["user_id"] = nil
	session.Options.MaxAge = -1
	session.Save(r, w)

	w.WriteHeader(http.StatusNoContent)
}

// AuthMiddleware checks if user is authenticated
func AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := sessionStore.Get(r, sessionName)
		userID, ok := session.Values["user_id"].(int)
		if !ok || userID == 0 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// AdminMiddleware checks if user is admin
func AdminMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := sessionStore.Get(r, sessionName)
		role, ok := session.Values["role"].(string)
		if !ok || role != "admin" {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// GetCurrentUser returns the current user from session
func GetCurrentUser(r *http.Request) (int, string, string) {
	session, _ := sessionStore.Get(r, sessionName)
	userID, _ := session.Values["user_id"].(int)
	username, _ := session.Values["username"].(string)
	role, _ := session.Values["role"].(string)
	return userID, username, role
}

// userFromBearer resolves the Authorization bearer token of an API request.
// The bool reports whether a syntactically valid bearer token was present.
func (h *Handler) userFromBearer(r *http.Request) (models.User, bool) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return models.User{}, false
	}
	user, err := h.Users.GetUserByToken(r.Context(), token)
	if err != nil {
		return models.User{}, false
	}
	return user, true
}

// InitUsers creates a default admin user if none exists
func (h *Handler) InitUsers(ctx context.Context) {
	users, err := h.Users.GetUsers(ctx)
	if err != nil || len(users) == 0 {
		user, err := h.Users.CreateUser(ctx, "admin", "admin123", "admin")
		if err != nil {
			log.Println("Failed to create default admin:", err)
		} else {
			log.Printf("Created default admin user: %s / admin123 (API token: %s)", user.Username, user.APIToken)
		}
	}
}
