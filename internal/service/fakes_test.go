package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"curation-service/internal/apperr"
	"curation-service/internal/entity"
	"curation-service/internal/repository/postgresql"
)

// memJobs mirrors the guarded updates of postgresql.JobRepository in memory.
type memJobs struct {
	mu    sync.Mutex
	jobs  map[uuid.UUID]*entity.Job
	clock time.Time
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: map[uuid.UUID]*entity.Job{}, clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (r *memJobs) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *memJobs) put(j *entity.Job) *entity.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	r.jobs[j.ID] = j
	return j
}

func (r *memJobs) Create(_ context.Context, job *entity.Job) (*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	cp.ID = uuid.New()
	cp.Status = entity.StatusPending
	cp.RetryCount = 0
	cp.CreatedAt = r.tick()
	r.jobs[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memJobs) GetByID(_ context.Context, id uuid.UUID) (*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, apperr.NotFound("job")
	}
	cp := *j
	return &cp, nil
}

func (r *memJobs) List(_ context.Context, f entity.JobFilter) ([]*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Job
	for _, j := range r.jobs {
		if len(f.Statuses) > 0 && !hasStatus(f.Statuses, j.Status) {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	// storage returns creation order; the service applies queue order
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memJobs) Cancel(_ context.Context, id uuid.UUID, actor string) (*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, apperr.NotFound("job")
	}
	if !j.Status.IsActive() {
		return nil, apperr.InvalidJobStatus(string(j.Status), string(entity.StatusCancelled))
	}
	now := r.tick()
	j.Status = entity.StatusCancelled
	j.CancelledAt = &now
	j.CancelledBy = &actor
	cp := *j
	return &cp, nil
}

func (r *memJobs) Retry(_ context.Context, id uuid.UUID, from []entity.JobStatus) (*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, apperr.NotFound("job")
	}
	if !hasStatus(from, j.Status) {
		return nil, apperr.InvalidJobStatus(string(j.Status), string(entity.StatusPending))
	}
	now := r.tick()
	j.Status = entity.StatusPending
	j.RetryCount++
	if j.MaxRetries < j.RetryCount {
		j.MaxRetries = j.RetryCount
	}
	j.LastRetryAt = &now
	j.CompletedAt, j.CancelledAt, j.ErrorMessage, j.CancelledBy = nil, nil, nil, nil
	cp := *j
	return &cp, nil
}

func (r *memJobs) CountActiveBefore(_ context.Context, t time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, j := range r.jobs {
		if j.Status.IsActive() && j.CreatedAt.Before(t) {
			n++
		}
	}
	return n, nil
}

func hasStatus(list []entity.JobStatus, s entity.JobStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type recordingNotifier struct {
	types []entity.JobType
	err   error
}

func (n *recordingNotifier) Notify(_ context.Context, t entity.JobType) error {
	n.types = append(n.types, t)
	return n.err
}

// memConfigs mirrors postgresql.ConfigRepository, including the active setting
// and the deletion guards. pendingRefs counts non-terminal jobs per config.
type memConfigs struct {
	mu          sync.Mutex
	configs     map[uuid.UUID]*entity.WeightConfig
	setting     *uuid.UUID
	pendingRefs map[uuid.UUID]int

	settingReads int
	settingSaves int
	saveErr      error
	readErr      error
}

func newMemConfigs() *memConfigs {
	return &memConfigs{configs: map[uuid.UUID]*entity.WeightConfig{}, pendingRefs: map[uuid.UUID]int{}}
}

func (r *memConfigs) Create(_ context.Context, cfg *entity.WeightConfig) (*entity.WeightConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cfg
	cp.ID = uuid.New()
	r.configs[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memConfigs) GetByID(_ context.Context, id uuid.UUID) (*entity.WeightConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.configs[id]
	if !ok {
		return nil, apperr.NotFound("weight configuration")
	}
	cp := *c
	return &cp, nil
}

func (r *memConfigs) List(context.Context) ([]*entity.WeightConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.WeightConfig, 0, len(r.configs))
	for _, c := range r.configs {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memConfigs) Count(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.configs), nil
}

func (r *memConfigs) Activate(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[id]; !ok {
		return apperr.NotFound("weight configuration")
	}
	for cid, c := range r.configs {
		c.IsActive = cid == id
	}
	r.setting = &id
	return nil
}

func (r *memConfigs) Deactivate(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.configs[id]
	if !ok {
		return apperr.NotFound("weight configuration")
	}
	c.IsActive = false
	if r.setting != nil && *r.setting == id {
		r.setting = nil
	}
	return nil
}

func (r *memConfigs) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.configs[id]
	if !ok {
		return apperr.NotFound("weight configuration")
	}
	if c.IsActive || (r.setting != nil && *r.setting == id) {
		return apperr.CannotDeleteActive()
	}
	if n := r.pendingRefs[id]; n > 0 {
		return apperr.CannotDeleteWithActiveJobs(n)
	}
	delete(r.configs, id)
	return nil
}

func (r *memConfigs) ActiveSetting(context.Context) (uuid.UUID, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settingReads++
	if r.readErr != nil {
		return uuid.Nil, false, r.readErr
	}
	if r.setting == nil {
		return uuid.Nil, false, nil
	}
	return *r.setting, true, nil
}

func (r *memConfigs) SaveActiveSetting(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settingSaves++
	if r.saveErr != nil {
		return r.saveErr
	}
	r.setting = &id
	return nil
}

func (r *memConfigs) FindActiveFlagged(context.Context) (uuid.UUID, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.configs {
		if c.IsActive {
			return id, true, nil
		}
	}
	return uuid.Nil, false, nil
}

// failingStore is a cache tier that is down.
type failingStore struct{}

var errCacheDown = errors.New("connection refused")

func (failingStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errCacheDown }
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errCacheDown
}
func (failingStore) Delete(context.Context, string) error { return errCacheDown }

// memPosts backs ranking, bulk actions and search.
type memPosts struct {
	mu       sync.Mutex
	posts    []entity.Post
	failOn   map[uuid.UUID]error
	lastRank postgresql.RankQuery
	ranks    int

	searchVec       []float32
	searchThreshold float64
	searchLimit     int
}

func newMemPosts(n int) *memPosts {
	p := &memPosts{failOn: map[uuid.UUID]error{}}
	for i := 0; i < n; i++ {
		p.posts = append(p.posts, entity.Post{ID: uuid.New(), Text: "post"})
	}
	return p
}

func (p *memPosts) Rank(_ context.Context, q postgresql.RankQuery) (entity.PostPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastRank = q
	p.ranks++
	var matched []entity.Post
	for _, post := range p.posts {
		if q.Filter.UnusedOnly && post.UsedOnEpisode {
			continue
		}
		matched = append(matched, post)
	}
	total := len(matched)
	if q.Offset < len(matched) {
		matched = matched[q.Offset:]
	} else {
		matched = nil
	}
	if q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return entity.PostPage{Posts: matched, Total: total}, nil
}

func (p *memPosts) ApplyAction(_ context.Context, ids []uuid.UUID, action entity.BulkAction) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		if err, ok := p.failOn[id]; ok {
			return 0, err
		}
	}
	col, val, _ := action.Column()
	n := 0
	for i := range p.posts {
		for _, id := range ids {
			if p.posts[i].ID != id {
				continue
			}
			n++
			switch col {
			case "saved":
				p.posts[i].Saved = val
			case "ignored":
				p.posts[i].Ignored = val
			case "used_on_episode":
				p.posts[i].UsedOnEpisode = val
			}
		}
	}
	return n, nil
}

func (p *memPosts) Exists(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := map[uuid.UUID]bool{}
	for _, post := range p.posts {
		for _, id := range ids {
			if post.ID == id {
				out[id] = true
			}
		}
	}
	return out, nil
}

func (p *memPosts) Search(_ context.Context, vec []float32, threshold float64, limit int) ([]entity.Post, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.searchVec, p.searchThreshold, p.searchLimit = vec, threshold, limit
	if limit < len(p.posts) {
		return p.posts[:limit], nil
	}
	return p.posts, nil
}

func (p *memPosts) ids() []uuid.UUID {
	out := make([]uuid.UUID, len(p.posts))
	for i, post := range p.posts {
		out[i] = post.ID
	}
	return out
}

// memSettings is the generic key/value store.
type memSettings struct {
	mu     sync.Mutex
	values map[string]json.RawMessage
}

func newMemSettings() *memSettings {
	return &memSettings{values: map[string]json.RawMessage{}}
}

func (s *memSettings) GetMany(_ context.Context, keys []string) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]json.RawMessage{}
	for _, k := range keys {
		if v, ok := s.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *memSettings) UpsertMany(_ context.Context, values map[string]json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.values[k] = v
	}
	return nil
}

type staticFrequencies map[string]int

func (f staticFrequencies) LookupFrequency(_ context.Context, category string) (int, error) {
	return f[category], nil
}

func validWeights() entity.Weights {
	return entity.Weights{
		entity.DimAbsurdity:          2,
		entity.DimDrama:              1,
		entity.DimDiscussionSpark:    1,
		entity.DimEmotionalIntensity: 1,
		entity.DimNewsValue:          1,
	}
}
