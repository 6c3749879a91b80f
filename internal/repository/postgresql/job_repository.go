package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"curation-service/internal/apperr"
	"curation-service/internal/entity"
)

const jobColumns = `id, type, status, params, created_by, cancelled_by, retry_count, max_retries,
progress, total, error_message, created_at, started_at, completed_at, cancelled_at, last_retry_at`

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) (*entity.Job, error) {
	if len(job.Params) == 0 {
		job.Params = json.RawMessage(`{}`)
	}

	q := `
INSERT INTO background_jobs (type, status, params, created_by, retry_count, max_retries)
VALUES ($1, 'pending', $2, $3, 0, $4)
RETURNING ` + jobColumns

	created, err := scanJob(r.pool.QueryRow(ctx, q, string(job.Type), []byte(job.Params), job.CreatedBy, job.MaxRetries))
	if err != nil {
		return nil, storeErr("create job", err)
	}
	return created, nil
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM background_jobs WHERE id = $1`

	job, err := scanJob(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("job")
		}
		return nil, storeErr("get job", err)
	}
	return job, nil
}

// List returns jobs in queue order: running, then pending oldest first, then
// finished jobs most recently finished first.
func (r *JobRepository) List(ctx context.Context, f entity.JobFilter) ([]*entity.Job, error) {
	sql, args, err := buildJobListQuery(f)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storeErr("list jobs", err)
	}
	defer rows.Close()

	var out []*entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, storeErr("list jobs", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list jobs", err)
	}
	return out, nil
}

func buildJobListQuery(f entity.JobFilter) (string, []interface{}, error) {
	b := psql.Select(jobColumns).From("background_jobs")
	if len(f.Types) > 0 {
		b = b.Where(sq.Eq{"type": typesToStrings(f.Types)})
	}
	if len(f.Statuses) > 0 {
		b = b.Where(sq.Eq{"status": statusesToStrings(f.Statuses)})
	}
	b = b.OrderBy(
		"CASE status WHEN 'running' THEN 0 WHEN 'pending' THEN 1 ELSE 2 END",
		"CASE WHEN status IN ('running','pending') THEN created_at END ASC",
		"COALESCE(completed_at, cancelled_at, created_at) DESC",
	)
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	return b.ToSql()
}

// Cancel moves a pending or running job to cancelled. The guard and the write
// are one statement, so a concurrent completion either wins entirely or loses.
func (r *JobRepository) Cancel(ctx context.Context, id uuid.UUID, actor string) (*entity.Job, error) {
	q := `
UPDATE background_jobs
SET status = 'cancelled', cancelled_at = now(), cancelled_by = $2
WHERE id = $1 AND status IN ('pending', 'running')
RETURNING ` + jobColumns

	job, err := scanJob(r.pool.QueryRow(ctx, q, id, actor))
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, storeErr("cancel job", err)
	}
	return nil, r.rejection(ctx, id, entity.StatusCancelled)
}

// Retry re-queues a job whose status is one of from. max_retries is raised when
// needed so retry_count never exceeds it.
func (r *JobRepository) Retry(ctx context.Context, id uuid.UUID, from []entity.JobStatus) (*entity.Job, error) {
	q := `
UPDATE background_jobs
SET status = 'pending',
    retry_count = retry_count + 1,
    max_retries = GREATEST(max_retries, retry_count + 1),
    last_retry_at = now(),
    started_at = NULL,
    completed_at = NULL,
    cancelled_at = NULL,
    cancelled_by = NULL,
    error_message = NULL,
    progress = NULL,
    total = NULL
WHERE id = $1 AND status = ANY($2::text[])
RETURNING ` + jobColumns

	job, err := scanJob(r.pool.QueryRow(ctx, q, id, statusesToStrings(from)))
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, storeErr("retry job", err)
	}
	return nil, r.rejection(ctx, id, entity.StatusPending)
}

// CountActiveBefore counts pending or running jobs created strictly before t.
func (r *JobRepository) CountActiveBefore(ctx context.Context, t time.Time) (int, error) {
	const q = `
SELECT count(*) FROM background_jobs
WHERE status IN ('pending', 'running') AND created_at < $1`

	var n int
	if err := r.pool.QueryRow(ctx, q, t).Scan(&n); err != nil {
		return 0, storeErr("count active jobs", err)
	}
	return n, nil
}

// ClaimNext marks the oldest pending job of the given types as running and
// returns it. ok is false when nothing is pending.
func (r *JobRepository) ClaimNext(ctx context.Context, types []entity.JobType) (*entity.Job, bool, error) {
	q := `
UPDATE background_jobs
SET status = 'running', started_at = now()
WHERE id = (
    SELECT id FROM background_jobs
    WHERE status = 'pending' AND type = ANY($1::text[])
    ORDER BY created_at
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + jobColumns

	job, err := scanJob(r.pool.QueryRow(ctx, q, typesToStrings(types)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, storeErr("claim job", err)
	}
	return job, true, nil
}

func (r *JobRepository) Complete(ctx context.Context, id uuid.UUID, progress *int) error {
	const q = `
UPDATE background_jobs
SET status = 'completed', completed_at = now(), progress = COALESCE($2, progress), error_message = NULL
WHERE id = $1 AND status = 'running'`

	return r.guardedExec(ctx, "complete job", q, id, entity.StatusCompleted, id, progress)
}

func (r *JobRepository) Fail(ctx context.Context, id uuid.UUID, msg string) error {
	const q = `
UPDATE background_jobs
SET status = 'error', completed_at = now(), error_message = $2
WHERE id = $1 AND status = 'running'`

	return r.guardedExec(ctx, "fail job", q, id, entity.StatusError, id, msg)
}

// RequeueForRetry puts a running job back to pending after a transient failure,
// as long as it has automatic retries left.
func (r *JobRepository) RequeueForRetry(ctx context.Context, id uuid.UUID) error {
	const q = `
UPDATE background_jobs
SET status = 'pending',
    retry_count = retry_count + 1,
    last_retry_at = now(),
    started_at = NULL,
    progress = NULL,
    error_message = NULL
WHERE id = $1 AND status = 'running' AND retry_count < max_retries`

	return r.guardedExec(ctx, "requeue job", q, id, entity.StatusPending, id)
}

// UpdateProgress is written by the worker. It is accepted after a cancel as well,
// so the row records how far the job got.
func (r *JobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, progress, total *int) error {
	const q = `
UPDATE background_jobs
SET progress = COALESCE($2, progress), total = COALESCE($3, total)
WHERE id = $1 AND status IN ('running', 'cancelled')`

	if _, err := r.pool.Exec(ctx, q, id, progress, total); err != nil {
		return storeErr("update job progress", err)
	}
	return nil
}

func (r *JobRepository) GetStatus(ctx context.Context, id uuid.UUID) (entity.JobStatus, error) {
	var s string
	if err := r.pool.QueryRow(ctx, `SELECT status FROM background_jobs WHERE id = $1`, id).Scan(&s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound("job")
		}
		return "", storeErr("get job status", err)
	}
	return entity.JobStatus(s), nil
}

func (r *JobRepository) guardedExec(ctx context.Context, op, q string, id uuid.UUID, requested entity.JobStatus, args ...interface{}) error {
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return storeErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return r.rejection(ctx, id, requested)
	}
	return nil
}

// rejection explains why a guarded update touched nothing.
func (r *JobRepository) rejection(ctx context.Context, id uuid.UUID, requested entity.JobStatus) error {
	current, err := r.GetStatus(ctx, id)
	if err != nil {
		return err
	}
	return apperr.InvalidJobStatus(string(current), string(requested))
}

func scanJob(row pgx.Row) (*entity.Job, error) {
	var (
		job    entity.Job
		typ    string
		status string
		params []byte
	)
	if err := row.Scan(
		&job.ID,
		&typ,
		&status,
		&params,
		&job.CreatedBy,
		&job.CancelledBy,
		&job.RetryCount,
		&job.MaxRetries,
		&job.Progress,
		&job.Total,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
		&job.CancelledAt,
		&job.LastRetryAt,
	); err != nil {
		return nil, err
	}
	job.Type = entity.JobType(typ)
	job.Status = entity.JobStatus(status)
	job.Params = json.RawMessage(params)
	return &job, nil
}

func typesToStrings(ts []entity.JobType) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = string(t)
	}
	return out
}

func statusesToStrings(ss []entity.JobStatus) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}
