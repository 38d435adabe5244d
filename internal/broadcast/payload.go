package broadcast

import (
	"encoding/json"
	"fmt"

	"update-broadcast-go/internal/models"
)

type notificationText struct {
	Title string
	Body  string
}

// Localized defaults, used when the request carries no custom title/body.
var defaultTexts = map[string]notificationText{
	"en": {Title: "Update available", Body: "Version %s is ready. Reload to get the latest improvements."},
	"es": {Title: "Actualización disponible", Body: "La versión %s está lista. Recarga para obtener las últimas mejoras."},
	"fr": {Title: "Mise à jour disponible", Body: "La version %s est prête. Rechargez pour profiter des dernières améliorations."},
}

// BuildPayload renders the notification JSON sent to every recipient of a
// broadcast. The tag derives from the version so the OS stacks or replaces
// notifications for the same update; critical broadcasts require user
// interaction to dismiss.
func BuildPayload(req models.BroadcastRequest) ([]byte, error) {
	lang := req.Language
	if lang == "" {
		lang = "en"
	}
	text, ok := defaultTexts[lang]
	if !ok {
		text = defaultTexts["en"]
	}

	title := req.CustomTitle
	if title == "" {
		title = text.Title
	}
	body := req.CustomBody
	if body == "" {
		body = fmt.Sprintf(text.Body, req.Version)
	}

	return json.Marshal(map[string]any{
		"title":              title,
		"body":               body,
		"tag":                "app-update-" + req.Version,
		"requireInteraction": req.Priority == models.PriorityCritical,
		"data": map[string]any{
			"version":       req.Version,
			"release_notes": req.ReleaseNotes,
			"priority":      req.Priority,
		},
	})
}
