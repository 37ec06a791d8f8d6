package handlers

import (
	"encoding/json"
	"net/http"

	"showcase/internal/pipeline"
)

type avatarRequest struct {
	Description string   `json:"description" validate:"required"`
	Languages   []string `json:"languages" validate:"required,min=1"`
	AvatarID    string   `json:"avatarId"`
}

// ShortFormAvatar queues one presenter-video job per language.
func (a *App) ShortFormAvatar(w http.ResponseWriter, r *http.Request) {
	var req avatarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, err.Error())
		return
	}
	langs, err := normalizeLanguages(req.Languages)
	if err != nil {
		a.fail(w, err)
		return
	}

	outcomes, err := a.Engine.SubmitAvatarVideo(r.Context(), pipeline.AvatarInput{
		Description: req.Description,
		Languages:   langs,
		AvatarID:    req.AvatarID,
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, languageResults(outcomes))
}
