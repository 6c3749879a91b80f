package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"curation-service/internal/apperr"
	"curation-service/internal/entity"
	"curation-service/internal/logger"
	"curation-service/internal/scoring"
)

// ConfigRepository stores weight configurations (implementation: postgresql.ConfigRepository).
type ConfigRepository interface {
	Create(ctx context.Context, cfg *entity.WeightConfig) (*entity.WeightConfig, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.WeightConfig, error)
	List(ctx context.Context) ([]*entity.WeightConfig, error)
	Count(ctx context.Context) (int, error)
	Activate(ctx context.Context, id uuid.UUID) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ActiveResolver is the read side of ActiveConfigResolver.
type ActiveResolver interface {
	Resolve(ctx context.Context) (uuid.NullUUID, error)
	Invalidate(ctx context.Context)
}

type ConfigService struct {
	repo     ConfigRepository
	resolver ActiveResolver
	now      func() time.Time
	log      *logger.Logger
}

func NewConfigService(repo ConfigRepository, resolver ActiveResolver, log *logger.Logger) *ConfigService {
	return &ConfigService{repo: repo, resolver: resolver, now: time.Now, log: log.With("component", "weight_configs")}
}

type CreateConfigRequest struct {
	Name        string
	Description *string
	Weights     entity.Weights
	CreatedBy   string
}

func (s *ConfigService) Create(ctx context.Context, req CreateConfigRequest) (*entity.WeightConfig, error) {
	if err := scoring.ValidateWeights(req.Weights); err != nil {
		return nil, prefixFields(err, "weights")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = entity.DefaultConfigName(s.now())
	}

	cfg, err := s.repo.Create(ctx, &entity.WeightConfig{
		Name:        name,
		Description: req.Description,
		Weights:     req.Weights,
		CreatedBy:   actorOrUnknown(req.CreatedBy),
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("weight config created", "config_id", cfg.ID, "name", cfg.Name)
	return cfg, nil
}

func (s *ConfigService) Get(ctx context.Context, id uuid.UUID) (*entity.WeightConfig, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ConfigService) List(ctx context.Context) ([]*entity.WeightConfig, error) {
	return s.repo.List(ctx)
}

// Activate makes id the only active configuration. Both cache tiers are dropped
// before returning.
func (s *ConfigService) Activate(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Activate(ctx, id); err != nil {
		return err
	}
	s.resolver.Invalidate(ctx)
	s.log.Info("weight config activated", "config_id", id)
	return nil
}

func (s *ConfigService) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.resolver.Invalidate(ctx)
	s.log.Info("weight config deactivated", "config_id", id)
	return nil
}

func (s *ConfigService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.resolver.Invalidate(ctx)
	s.log.Info("weight config deleted", "config_id", id)
	return nil
}

// RequireActive returns the active configuration id or NoActiveConfiguration,
// telling apart "none active" from "none at all".
func (s *ConfigService) RequireActive(ctx context.Context) (uuid.UUID, error) {
	active, err := s.resolver.Resolve(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	if active.Valid {
		return active.UUID, nil
	}
	n, err := s.repo.Count(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Nil, apperr.NoActiveConfiguration(n > 0)
}

// Active returns the active configuration itself.
func (s *ConfigService) Active(ctx context.Context) (*entity.WeightConfig, error) {
	id, err := s.RequireActive(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// ResolveActive is the non-failing variant: ok is false when none is active.
func (s *ConfigService) ResolveActive(ctx context.Context) (uuid.UUID, bool, error) {
	active, err := s.resolver.Resolve(ctx)
	if err != nil {
		return uuid.Nil, false, err
	}
	return active.UUID, active.Valid, nil
}

// prefixFields nests the field names of a validation error under prefix.
func prefixFields(err error, prefix string) error {
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindValidation || len(ae.Fields) == 0 {
		return err
	}
	fields := make([]apperr.FieldError, len(ae.Fields))
	for i, f := range ae.Fields {
		fields[i] = apperr.FieldError{Field: prefix + "." + f.Field, Message: f.Message}
	}
	return apperr.ValidationFields(fields)
}
