package postgresql

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const upsertSettingSQL = `
INSERT INTO settings (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

// SettingsRepository is the generic key/value store. Values are JSON documents.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// GetMany returns the values present for keys; absent keys are simply missing
// from the map.
func (r *SettingsRepository) GetMany(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM settings WHERE key = ANY($1::text[])`, keys)
	if err != nil {
		return nil, storeErr("read settings", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage, len(keys))
	for rows.Next() {
		var (
			k string
			v []byte
		)
		if err := rows.Scan(&k, &v); err != nil {
			return nil, storeErr("read settings", err)
		}
		out[k] = json.RawMessage(v)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("read settings", err)
	}
	return out, nil
}

// UpsertMany writes every given key in one transaction; keys not given are left alone.
func (r *SettingsRepository) UpsertMany(ctx context.Context, values map[string]json.RawMessage) error {
	if len(values) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for k, v := range values {
			batch.Queue(upsertSettingSQL, k, []byte(v))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return storeErr("write settings", err)
		}
		return nil
	})
}
