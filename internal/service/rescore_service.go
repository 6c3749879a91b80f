package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"curation-service/internal/apperr"
	"curation-service/internal/entity"
)

type RescoreRequest struct {
	Weights     entity.Weights
	UseActive   bool
	Name        string
	Description *string
	CreatedBy   string
}

type RescoreResult struct {
	Job            *entity.Job `json:"job"`
	WeightConfigID uuid.UUID   `json:"weight_config_id"`
}

// RescoreService turns "recompute with these weights" into a configuration row
// plus a recompute job referencing it.
type RescoreService struct {
	configs *ConfigService
	jobs    *JobService
}

func NewRescoreService(configs *ConfigService, jobs *JobService) *RescoreService {
	return &RescoreService{configs: configs, jobs: jobs}
}

func (s *RescoreService) Create(ctx context.Context, req RescoreRequest) (*RescoreResult, error) {
	var configID uuid.UUID
	switch {
	case req.UseActive && req.Weights != nil:
		return nil, apperr.ValidationFields([]apperr.FieldError{{Field: "use_active", Message: "cannot be combined with weights"}})
	case req.UseActive:
		id, err := s.configs.RequireActive(ctx)
		if err != nil {
			return nil, err
		}
		configID = id
	case req.Weights != nil:
		cfg, err := s.configs.Create(ctx, CreateConfigRequest{
			Name:        req.Name,
			Description: req.Description,
			Weights:     req.Weights,
			CreatedBy:   req.CreatedBy,
		})
		if err != nil {
			return nil, err
		}
		configID = cfg.ID
	default:
		return nil, apperr.ValidationFields([]apperr.FieldError{{Field: "weights", Message: "is required unless use_active is true"}})
	}

	params, _ := json.Marshal(entity.RecomputeParams{WeightConfigID: configID})
	job, err := s.jobs.Create(ctx, CreateJobRequest{
		Type:      entity.JobTypeRecomputeFinalScores,
		Params:    params,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		return nil, err
	}
	return &RescoreResult{Job: job, WeightConfigID: configID}, nil
}
