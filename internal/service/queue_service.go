package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"curation-service/internal/entity"
)

// Notifier nudges the worker that a job of the given type became pending.
type Notifier interface {
	Notify(ctx context.Context, t entity.JobType) error
}

// Waiter blocks until a nudge arrives for one of types or timeout elapses.
// woke is false on timeout.
type Waiter interface {
	Wait(ctx context.Context, types []entity.JobType, timeout time.Duration) (woke bool, err error)
}

type Wakeup interface {
	Notifier
	Waiter
}

// The database stays the source of truth; a lost or duplicate nudge only changes
// how soon the worker polls.
type redisWakeup struct {
	rdb       redis.Cmdable
	keyPrefix string
}

func NewRedisWakeup(rdb redis.Cmdable, keyPrefix string) Wakeup {
	return &redisWakeup{rdb: rdb, keyPrefix: keyPrefix}
}

func (w *redisWakeup) key(t entity.JobType) string {
	return w.keyPrefix + string(t)
}

// Notify pushes a token and trims the list so idle periods do not pile them up.
func (w *redisWakeup) Notify(ctx context.Context, t entity.JobType) error {
	key := w.key(t)
	pipe := w.rdb.TxPipeline()
	pipe.LPush(ctx, key, time.Now().UTC().Format(time.RFC3339Nano))
	pipe.LTrim(ctx, key, 0, 15)
	_, err := pipe.Exec(ctx)
	return err
}

func (w *redisWakeup) Wait(ctx context.Context, types []entity.JobType, timeout time.Duration) (bool, error) {
	keys := make([]string, len(types))
	for i, t := range types {
		keys[i] = w.key(t)
	}
	_, err := w.rdb.BRPop(ctx, timeout, keys...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, err
	}
	return true, nil
}

// NoopWakeup is used without Redis: Notify does nothing and Wait just sleeps
// for the poll interval.
type NoopWakeup struct{}

func (NoopWakeup) Notify(context.Context, entity.JobType) error { return nil }

func (NoopWakeup) Wait(ctx context.Context, _ []entity.JobType, timeout time.Duration) (bool, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-t.C:
		return false, nil
	}
}
