package postgresql

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"curation-service/internal/apperr"
	"curation-service/internal/entity"
)

const configColumns = `id, name, description, weights, is_active, created_by, created_at`

type ConfigRepository struct {
	pool *pgxpool.Pool
}

func NewConfigRepository(pool *pgxpool.Pool) *ConfigRepository {
	return &ConfigRepository{pool: pool}
}

func (r *ConfigRepository) Create(ctx context.Context, cfg *entity.WeightConfig) (*entity.WeightConfig, error) {
	weights, err := json.Marshal(cfg.Weights)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	q := `
INSERT INTO weight_configs (name, description, weights, is_active, created_by)
VALUES ($1, $2, $3, false, $4)
RETURNING ` + configColumns

	created, err := scanConfig(r.pool.QueryRow(ctx, q, cfg.Name, cfg.Description, weights, cfg.CreatedBy))
	if err != nil {
		return nil, storeErr("create weight config", err)
	}
	return created, nil
}

func (r *ConfigRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.WeightConfig, error) {
	q := `SELECT ` + configColumns + ` FROM weight_configs WHERE id = $1`

	cfg, err := scanConfig(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("weight configuration")
		}
		return nil, storeErr("get weight config", err)
	}
	return cfg, nil
}

func (r *ConfigRepository) List(ctx context.Context) ([]*entity.WeightConfig, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+configColumns+` FROM weight_configs ORDER BY created_at DESC`)
	if err != nil {
		return nil, storeErr("list weight configs", err)
	}
	defer rows.Close()

	var out []*entity.WeightConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, storeErr("list weight configs", err)
		}
		out = append(out, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list weight configs", err)
	}
	return out, nil
}

func (r *ConfigRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM weight_configs`).Scan(&n); err != nil {
		return 0, storeErr("count weight configs", err)
	}
	return n, nil
}

// ActiveSetting reads the active_weight_config_id setting. ok is false when the
// setting is absent or does not hold a UUID.
func (r *ConfigRepository) ActiveSetting(ctx context.Context) (uuid.UUID, bool, error) {
	var raw *string
	err := r.pool.QueryRow(ctx, `SELECT value #>> '{}' FROM settings WHERE key = $1`, entity.SettingActiveWeightConfigID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, storeErr("read active config setting", err)
	}
	if raw == nil {
		return uuid.Nil, false, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

func (r *ConfigRepository) SaveActiveSetting(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, upsertSettingSQL, entity.SettingActiveWeightConfigID, jsonString(id.String())); err != nil {
		return storeErr("write active config setting", err)
	}
	return nil
}

// FindActiveFlagged scans for a configuration marked is_active.
func (r *ConfigRepository) FindActiveFlagged(ctx context.Context) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT id FROM weight_configs WHERE is_active ORDER BY created_at DESC LIMIT 1`).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, storeErr("find active weight config", err)
	}
	return id, true, nil
}

// Activate flags id as the only active configuration and points the setting at
// it, in one transaction.
func (r *ConfigRepository) Activate(ctx context.Context, id uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT true FROM weight_configs WHERE id = $1 FOR UPDATE`, id).Scan(&exists); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("weight configuration")
			}
			return storeErr("activate weight config", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE weight_configs SET is_active = false WHERE is_active AND id <> $1`, id); err != nil {
			return storeErr("activate weight config", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE weight_configs SET is_active = true WHERE id = $1`, id); err != nil {
			return storeErr("activate weight config", err)
		}
		if _, err := tx.Exec(ctx, upsertSettingSQL, entity.SettingActiveWeightConfigID, jsonString(id.String())); err != nil {
			return storeErr("activate weight config", err)
		}
		return nil
	})
}

// Deactivate clears the flag and, if the setting points at id, the setting too.
func (r *ConfigRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE weight_configs SET is_active = false WHERE id = $1`, id)
		if err != nil {
			return storeErr("deactivate weight config", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("weight configuration")
		}
		if _, err := tx.Exec(ctx, `DELETE FROM settings WHERE key = $1 AND value #>> '{}' = $2`,
			entity.SettingActiveWeightConfigID, id.String()); err != nil {
			return storeErr("deactivate weight config", err)
		}
		return nil
	})
}

// Delete removes an inactive configuration that no pending or running job
// references. The row lock keeps a concurrent activation from slipping in.
func (r *ConfigRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var active bool
		err := tx.QueryRow(ctx, `
SELECT c.is_active OR EXISTS (
    SELECT 1 FROM settings s WHERE s.key = $2 AND s.value #>> '{}' = c.id::text
)
FROM weight_configs c WHERE c.id = $1 FOR UPDATE OF c`, id, entity.SettingActiveWeightConfigID).Scan(&active)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("weight configuration")
			}
			return storeErr("delete weight config", err)
		}
		if active {
			return apperr.CannotDeleteActive()
		}

		var refs int
		if err := tx.QueryRow(ctx, `
SELECT count(*) FROM background_jobs
WHERE status IN ('pending', 'running') AND params->>'weight_config_id' = $1`, id.String()).Scan(&refs); err != nil {
			return storeErr("delete weight config", err)
		}
		if refs > 0 {
			return apperr.CannotDeleteWithActiveJobs(refs)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM weight_configs WHERE id = $1`, id); err != nil {
			return storeErr("delete weight config", err)
		}
		return nil
	})
}

func scanConfig(row pgx.Row) (*entity.WeightConfig, error) {
	var (
		cfg     entity.WeightConfig
		weights []byte
	)
	if err := row.Scan(&cfg.ID, &cfg.Name, &cfg.Description, &weights, &cfg.IsActive, &cfg.CreatedBy, &cfg.CreatedAt); err != nil {
		return nil, err
	}
	if len(weights) > 0 {
		if err := json.Unmarshal(weights, &cfg.Weights); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func jsonString(s string) []byte {
	b, _ := json.Marshal(s)
	return b
}
