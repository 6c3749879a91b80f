package httptransport

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"curation-service/internal/auth"
	"curation-service/internal/entity"
	"curation-service/internal/service"
)

type createConfigDTO struct {
	Name        string         `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Weights     entity.Weights `json:"weights"`
}

type configListResp struct {
	Configs []*entity.WeightConfig `json:"configs"`
}

// CreateConfig godoc
// @Summary Create a weight configuration
// @Tags weight-configs
// @Accept json
// @Produce json
// @Param request body createConfigDTO true "weights, optional name"
// @Success 201 {object} entity.WeightConfig
// @Failure 400 {object} apiError
// @Router /weight-configs [post]
func (h *Handler) CreateConfig(w http.ResponseWriter, r *http.Request) {
	var dto createConfigDTO
	if err := decodeJSON(r, &dto); err != nil {
		h.writeError(w, err)
		return
	}
	cfg, err := h.svc.Configs.Create(r.Context(), service.CreateConfigRequest{
		Name:        dto.Name,
		Description: dto.Description,
		Weights:     dto.Weights,
		CreatedBy:   auth.ActorFrom(r.Context()),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

// ListConfigs godoc
// @Summary List weight configurations
// @Tags weight-configs
// @Produce json
// @Success 200 {object} configListResp
// @Router /weight-configs [get]
func (h *Handler) ListConfigs(w http.ResponseWriter, r *http.Request) {
	cfgs, err := h.svc.Configs.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if cfgs == nil {
		cfgs = []*entity.WeightConfig{}
	}
	writeJSON(w, http.StatusOK, configListResp{Configs: cfgs})
}

// GetActiveConfig godoc
// @Summary Get the active weight configuration
// @Tags weight-configs
// @Produce json
// @Success 200 {object} entity.WeightConfig
// @Failure 409 {object} apiError
// @Router /weight-configs/active [get]
func (h *Handler) GetActiveConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.Configs.Active(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// GetConfig godoc
// @Summary Get a weight configuration
// @Tags weight-configs
// @Produce json
// @Param id path string true "configuration id (uuid)"
// @Success 200 {object} entity.WeightConfig
// @Failure 404 {object} apiError
// @Router /weight-configs/{id} [get]
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	cfg, err := h.svc.Configs.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// ActivateConfig godoc
// @Summary Make a configuration the active one
// @Tags weight-configs
// @Param id path string true "configuration id (uuid)"
// @Success 204
// @Failure 404 {object} apiError
// @Router /weight-configs/{id}/activate [post]
func (h *Handler) ActivateConfig(w http.ResponseWriter, r *http.Request) {
	h.configMutation(w, r, h.svc.Configs.Activate)
}

// DeactivateConfig godoc
// @Summary Clear the active flag of a configuration
// @Tags weight-configs
// @Param id path string true "configuration id (uuid)"
// @Success 204
// @Failure 404 {object} apiError
// @Router /weight-configs/{id}/deactivate [post]
func (h *Handler) DeactivateConfig(w http.ResponseWriter, r *http.Request) {
	h.configMutation(w, r, h.svc.Configs.Deactivate)
}

// DeleteConfig godoc
// @Summary Delete an inactive, unreferenced configuration
// @Tags weight-configs
// @Param id path string true "configuration id (uuid)"
// @Success 204
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /weight-configs/{id} [delete]
func (h *Handler) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	h.configMutation(w, r, h.svc.Configs.Delete)
}

func (h *Handler) configMutation(w http.ResponseWriter, r *http.Request, op func(context.Context, uuid.UUID) error) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := op(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
