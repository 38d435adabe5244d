package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"update-broadcast-go/internal/broadcast"
	"update-broadcast-go/internal/store"
	"update-broadcast-go/internal/webpush"
)

type Handler struct {
	Users         store.UserStore
	Subscriptions store.SubscriptionStore
	Events        *store.RedisStore
	Orchestrator  *broadcast.Orchestrator
	Config        webpush.Config
}

func NewHandler(users store.UserStore, subs store.SubscriptionStore, events *store.RedisStore, orch *broadcast.Orchestrator, cfg webpush.Config) *Handler {
	return &Handler{
		Users:         users,
		Subscriptions: subs,
		Events:        events,
		Orchestrator:  orch,
		Config:        cfg,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// SSEHandler streams broadcast events to dashboards.
func (h *Handler) SSEHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	pubsub := h.Events.Subscribe(r.Context())
	defer pubsub.Close()

	ch := pubsub.Channel()

	fmt.Fprintf(w, "data: %s\n\n", "connected")
	w.(http.Flusher).Flush()

	for {
		select {
		case msg := <-ch:
			fmt.Fprintf(w, "data: %s\n\n", msg.Payload)
			w.(http.Flusher).Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// RecentBroadcastsHandler returns the bounded recent-event history.
func (h *Handler) RecentBroadcastsHandler(w http.ResponseWriter, r *http.Request) {
	events, err := h.Events.RecentBroadcastEvents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get recent broadcasts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}
