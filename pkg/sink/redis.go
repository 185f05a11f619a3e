package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/1000xsh/voteperfx/pkg/detector"
	"github.com/1000xsh/voteperfx/pkg/epoch"
)

// DefaultRedisEventLimit bounds the archived event list.
const DefaultRedisEventLimit = 1000

// RedisArchive keeps the latest performance events in a capped list and every
// closed epoch in a hash keyed by epoch number.
type RedisArchive struct {
	client    *redis.Client
	prefix    string
	maxEvents int64
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewRedisArchive pings client and namespaces keys under the vote account.
func NewRedisArchive(ctx context.Context, client *redis.Client, voteAccount string, maxEvents int) (*RedisArchive, error) {
	if maxEvents <= 0 {
		maxEvents = DefaultRedisEventLimit
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisArchive{
		client:    client,
		prefix:    "voteperfx:" + voteAccount + ":",
		maxEvents: int64(maxEvents),
	}, nil
}

func (r *RedisArchive) Name() string { return "redis" }

func (r *RedisArchive) eventsKey() string { return r.prefix + "events" }
func (r *RedisArchive) epochsKey() string { return r.prefix + "epochs" }

func (r *RedisArchive) HandleEvent(ctx context.Context, ev detector.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.eventsKey(), data)
	pipe.LTrim(ctx, r.eventsKey(), 0, r.maxEvents-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisArchive) HandleEpochClosed(ctx context.Context, w epoch.Window) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("failed to marshal epoch: %w", err)
	}
	return r.client.HSet(ctx, r.epochsKey(), strconv.FormatUint(w.Epoch, 10), data).Err()
}

// RecentEvents returns up to n archived events, newest first.
func (r *RedisArchive) RecentEvents(ctx context.Context, n int) ([]detector.Event, error) {
	if n <= 0 {
		return nil, nil
	}
	items, err := r.client.LRange(ctx, r.eventsKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]detector.Event, 0, len(items))
	for _, item := range items {
		var ev detector.Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// Epoch returns the archived window for epoch, or false when none exists.
func (r *RedisArchive) Epoch(ctx context.Context, ep uint64) (epoch.Window, bool, error) {
	data, err := r.client.HGet(ctx, r.epochsKey(), strconv.FormatUint(ep, 10)).Result()
	if errors.Is(err, redis.Nil) {
		return epoch.Window{}, false, nil
	}
	if err != nil {
		return epoch.Window{}, false, err
	}
	var w epoch.Window
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return epoch.Window{}, false, fmt.Errorf("failed to unmarshal epoch: %w", err)
	}
	return w, true, nil
}

// Epochs returns every archived window in epoch order. Malformed entries are
// skipped.
func (r *RedisArchive) Epochs(ctx context.Context) ([]epoch.Window, error) {
	all, err := r.client.HGetAll(ctx, r.epochsKey()).Result()
	if err != nil {
		return nil, err
	}
	out := make([]epoch.Window, 0, len(all))
	for _, data := range all {
		var w epoch.Window
		if err := json.Unmarshal([]byte(data), &w); err != nil {
			continue
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Epoch < out[j].Epoch })
	return out, nil
}

func (r *RedisArchive) Close() error {
	return r.client.Close()
}
