/*
Copyright 2024 The Statscache Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package redis implements the store on Redis. Each model is a sorted set
// indexed by timestamp (unix milli score) plus a hash holding the values,
// which keeps range queries and deletes O(log n).
package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vivekanand1101/statscache/pkg/model"
	"github.com/vivekanand1101/statscache/pkg/store"
)

type redisStore struct {
	client redis.UniversalClient
}

// NewRedisStore returns a store backed by the given Redis deployment. It
// works with single node, sentinel and cluster setups through the universal
// client, the same way the rest of the ecosystem wires go-redis.
func NewRedisStore(opts *redis.UniversalOptions) store.Store {
	return &redisStore{client: redis.NewUniversalClient(opts)}
}

func idxKey(ident string) string { return "statscache:" + ident + ":idx" }
func valKey(ident string) string { return "statscache:" + ident + ":val" }

// member encodes the natural key of a row inside one model.
func member(ts time.Time, category string) string {
	return strconv.FormatInt(ts.UTC().UnixMilli(), 10) + "/" + category
}

func decodeMember(m string, value float64) (model.Row, error) {
	idx := strings.IndexByte(m, '/')
	if idx < 0 {
		return model.Row{}, fmt.Errorf("malformed row member %q", m)
	}
	ms, err := strconv.ParseInt(m[:idx], 10, 64)
	if err != nil {
		return model.Row{}, fmt.Errorf("malformed row member %q: %w", m, err)
	}
	return model.Row{
		Timestamp: time.UnixMilli(ms).UTC(),
		Category:  m[idx+1:],
		Value:     value,
	}, nil
}

func scoreRange(f store.RowFilter) (string, string) {
	min, max := "-inf", "+inf"
	if !f.Start.IsZero() {
		min = strconv.FormatInt(f.Start.UTC().UnixMilli(), 10)
	}
	if !f.Stop.IsZero() {
		max = strconv.FormatInt(f.Stop.UTC().UnixMilli(), 10)
	}
	return min, max
}

func (s *redisStore) Upsert(ctx context.Context, ident string, rows []model.Row) error {
	if len(rows) == 0 {
		return nil
	}
	pipe := s.client.TxPipeline()
	for _, r := range rows {
		m := member(r.Timestamp, r.Category)
		pipe.ZAdd(ctx, idxKey(ident), redis.Z{Score: float64(r.Timestamp.UTC().UnixMilli()), Member: m})
		pipe.HSet(ctx, valKey(ident), m, r.Value)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to upsert rows for %q: %w", ident, err)
	}
	return nil
}

func (s *redisStore) Query(ctx context.Context, ident string, f store.RowFilter) ([]model.Row, error) {
	min, max := scoreRange(f)
	rangeBy := &redis.ZRangeBy{Min: min, Max: max}
	if f.Limit > 0 {
		rangeBy.Count = int64(f.Limit)
	}
	var (
		members []string
		err     error
	)
	if f.Order == store.OrderDesc {
		members, err = s.client.ZRevRangeByScore(ctx, idxKey(ident), rangeBy).Result()
	} else {
		members, err = s.client.ZRangeByScore(ctx, idxKey(ident), rangeBy).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query index for %q: %w", ident, err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	values, err := s.client.HMGet(ctx, valKey(ident), members...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch values for %q: %w", ident, err)
	}
	out := make([]model.Row, 0, len(members))
	for i, m := range members {
		var v float64
		if raw, ok := values[i].(string); ok {
			v, _ = strconv.ParseFloat(raw, 64)
		}
		row, err := decodeMember(m, v)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *redisStore) DeleteSince(ctx context.Context, ident string, when time.Time) (int64, error) {
	min := strconv.FormatInt(when.UTC().UnixMilli(), 10)
	members, err := s.client.ZRangeByScore(ctx, idxKey(ident), &redis.ZRangeBy{Min: min, Max: "+inf"}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list rows to delete for %q: %w", ident, err)
	}
	if len(members) == 0 {
		return 0, nil
	}
	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, idxKey(ident), min, "+inf")
	pipe.HDel(ctx, valKey(ident), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to delete rows for %q: %w", ident, err)
	}
	return int64(len(members)), nil
}

func (s *redisStore) DeleteBefore(ctx context.Context, ident string, when time.Time) (int64, error) {
	// exclusive upper bound
	max := "(" + strconv.FormatInt(when.UTC().UnixMilli(), 10)
	members, err := s.client.ZRangeByScore(ctx, idxKey(ident), &redis.ZRangeBy{Min: "-inf", Max: max}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list rows to delete for %q: %w", ident, err)
	}
	if len(members) == 0 {
		return 0, nil
	}
	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, idxKey(ident), "-inf", max)
	pipe.HDel(ctx, valKey(ident), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to delete rows for %q: %w", ident, err)
	}
	return int64(len(members)), nil
}

func (s *redisStore) Count(ctx context.Context, ident string, f store.RowFilter) (int64, error) {
	min, max := scoreRange(f)
	n, err := s.client.ZCount(ctx, idxKey(ident), min, max).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count rows for %q: %w", ident, err)
	}
	return n, nil
}

func (s *redisStore) Newest(ctx context.Context, ident string) (time.Time, error) {
	zs, err := s.client.ZRevRangeWithScores(ctx, idxKey(ident), 0, 0).Result()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query newest row for %q: %w", ident, err)
	}
	if len(zs) == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(int64(zs[0].Score)).UTC(), nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
