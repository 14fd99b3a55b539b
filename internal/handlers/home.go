package handlers

import (
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/chat-playground/internal/models"
)

type homePageData struct {
	SessionID string
}

type modelSelectorData struct {
	Models   []models.Model
	Selected string
	Err      string
}

// HandleHome renders the playground page. Every page load starts a fresh session with an empty
// transcript; the session of a previous load is never resumed.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	data := homePageData{
		SessionID: m.sessions.create(),
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to execute home template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// HandleModels renders the model selector. The page requests it once on load, so the list is fetched
// once per session. The first model is selected by default; a failed fetch renders the error inline and
// leaves nothing selected.
func (m Main) HandleModels(w http.ResponseWriter, r *http.Request) {
	var data modelSelectorData

	ms, err := m.catalog.Models(r.Context())
	if err != nil {
		m.logger.Error("Failed to fetch models", slog.String(errLoggerKey, err.Error()))
		data.Err = err.Error()
	} else {
		data.Models = ms
		if len(ms) > 0 {
			data.Selected = ms[0].Name
		}
	}

	if err := m.templates.ExecuteTemplate(w, "model_selector", data); err != nil {
		m.logger.Error("Failed to execute model_selector template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
