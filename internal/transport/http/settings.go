package httptransport

import (
	"net/http"

	"curation-service/internal/entity"
	"curation-service/internal/service"
)

// GetSettings godoc
// @Summary Get all settings
// @Description Missing settings are returned with their defaults.
// @Tags settings
// @Produce json
// @Success 200 {object} entity.Settings
// @Router /settings [get]
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Settings.Get(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// PatchSettings godoc
// @Summary Update some settings
// @Description Only the settings present in the body are written.
// @Tags settings
// @Accept json
// @Produce json
// @Param request body entity.SettingsPatch true "settings to change"
// @Success 200 {object} entity.Settings
// @Failure 400 {object} apiError
// @Router /settings [patch]
func (h *Handler) PatchSettings(w http.ResponseWriter, r *http.Request) {
	var patch entity.SettingsPatch
	if err := decodeJSON(r, &patch); err != nil {
		h.writeError(w, err)
		return
	}
	s, err := h.svc.Settings.Patch(r.Context(), patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// NoveltyPreview godoc
// @Summary Preview the novelty multiplier
// @Description Evaluates the stored novelty config for a count, or for a category's current rolling count.
// @Tags settings
// @Produce json
// @Param count query number false "topic occurrence count"
// @Param category query string false "category to look up"
// @Success 200 {object} service.NoveltyPreview
// @Failure 400 {object} apiError
// @Router /settings/novelty-preview [get]
func (h *Handler) NoveltyPreview(w http.ResponseWriter, r *http.Request) {
	q := newQueryReader(r)
	req := service.NoveltyPreviewRequest{Count: q.floatPtr("count"), Category: q.str("category")}
	if err := q.err(); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.svc.Settings.NoveltyPreview(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
