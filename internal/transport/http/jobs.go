package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"curation-service/internal/auth"
	"curation-service/internal/entity"
	"curation-service/internal/service"
)

type createJobDTO struct {
	Type       entity.JobType  `json:"type"`
	Params     json.RawMessage `json:"params" swaggertype:"object"`
	MaxRetries *int            `json:"max_retries,omitempty"`
}

type jobListResp struct {
	Jobs []*entity.Job `json:"jobs"`
}

type rescoreDTO struct {
	Weights     entity.Weights `json:"weights,omitempty"`
	UseActive   bool           `json:"use_active,omitempty"`
	Name        string         `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
}

type rescoreResp struct {
	JobID          uuid.UUID `json:"job_id"`
	WeightConfigID uuid.UUID `json:"weight_config_id"`
}

// CreateJob godoc
// @Summary Create a background job
// @Description Inserts a pending job. Params are validated for the job type.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body createJobDTO true "job type and params"
// @Success 201 {object} entity.Job
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs [post]
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var dto createJobDTO
	if err := decodeJSON(r, &dto); err != nil {
		h.writeError(w, err)
		return
	}
	job, err := h.svc.Jobs.Create(r.Context(), service.CreateJobRequest{
		Type:       dto.Type,
		Params:     dto.Params,
		CreatedBy:  auth.ActorFrom(r.Context()),
		MaxRetries: dto.MaxRetries,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// ListJobs godoc
// @Summary List jobs
// @Description Running job first, then pending oldest-first, then finished jobs most recent first.
// @Tags jobs
// @Produce json
// @Param type query string false "comma-separated job types"
// @Param status query string false "comma-separated statuses"
// @Param limit query int false "max jobs (default 50, max 500)"
// @Success 200 {object} jobListResp
// @Failure 400 {object} apiError
// @Router /jobs [get]
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := newQueryReader(r)
	req := service.ListJobsRequest{Limit: q.intVal("limit")}
	for _, t := range q.list("type") {
		req.Types = append(req.Types, entity.JobType(t))
	}
	for _, s := range q.list("status") {
		req.Statuses = append(req.Statuses, entity.JobStatus(s))
	}
	if err := q.err(); err != nil {
		h.writeError(w, err)
		return
	}

	jobs, err := h.svc.Jobs.List(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*entity.Job{}
	}
	writeJSON(w, http.StatusOK, jobListResp{Jobs: jobs})
}

// GetJob godoc
// @Summary Get job by id
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} service.JobDetail
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	job, err := h.svc.Jobs.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CancelJob godoc
// @Summary Cancel a pending or running job
// @Description A running job stops at the worker's next checkpoint.
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} entity.Job
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs/{id}/cancel [post]
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	job, err := h.svc.Jobs.Cancel(r.Context(), id, auth.ActorFrom(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// RetryJob godoc
// @Summary Put a finished job back in the queue
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} entity.Job
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs/{id}/retry [post]
func (h *Handler) RetryJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	job, err := h.svc.Jobs.Retry(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Rescore godoc
// @Summary Recompute final scores
// @Description Creates a weight configuration from the given weights (or uses the active one) and queues a recompute job for it.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body rescoreDTO true "weights or use_active"
// @Success 201 {object} rescoreResp
// @Failure 400 {object} apiError
// @Failure 409 {object} apiError
// @Router /rescore [post]
func (h *Handler) Rescore(w http.ResponseWriter, r *http.Request) {
	var dto rescoreDTO
	if err := decodeJSON(r, &dto); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.svc.Rescore.Create(r.Context(), service.RescoreRequest{
		Weights:     dto.Weights,
		UseActive:   dto.UseActive,
		Name:        dto.Name,
		Description: dto.Description,
		CreatedBy:   auth.ActorFrom(r.Context()),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rescoreResp{JobID: res.Job.ID, WeightConfigID: res.WeightConfigID})
}
