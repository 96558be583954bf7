/*
Copyright 2024 Fieldsync Authors.

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

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"

	"github.com/fieldcrew/fieldsync/config"
	redis_db "github.com/fieldcrew/fieldsync/internal/redis-db"
)

// Cache interface provides the basic operations for a cache system.
type Cache interface {
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Get decodes the value under key into data. found is false on a cache miss.
	Get(ctx context.Context, key string, data interface{}) (found bool, err error)

	Delete(ctx context.Context, key string) error
}

// RedisCache implements the Cache interface on go-redis/cache: Redis when
// configured, always fronted by an in-process TinyLFU cache.
type RedisCache struct {
	cache *cache.Cache
}

// cacheSize defines the size of the local cache (in number of entries).
const cacheSize = 4096

// NewCache builds the cache for the configuration. Without a Redis DNS the
// cache is local only and keeps entries for the feed cache TTL.
func NewCache(cfg *config.Configuration) (Cache, error) {
	if cfg.Redis.Dns == "" {
		return NewLocalCache(time.Duration(cfg.FeedCacheTTLSec) * time.Second), nil
	}

	client, err := redis_db.NewRedisClient([]string{cfg.Redis.Dns}, cfg.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	return newCache(&cache.Options{
		Redis:      client.Client(),
		LocalCache: cache.NewTinyLFU(cacheSize, time.Minute),
	}), nil
}

func NewLocalCache(ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return newCache(&cache.Options{LocalCache: cache.NewTinyLFU(cacheSize, ttl)})
}

// newCache stores values as JSON so decimal amounts and timestamps survive
// unchanged.
func newCache(opts *cache.Options) *RedisCache {
	opts.Marshal = func(v interface{}) ([]byte, error) {
		if b, ok := v.([]byte); ok {
			return b, nil
		}
		return json.Marshal(v)
	}
	opts.Unmarshal = func(b []byte, v interface{}) error {
		if out, ok := v.(*[]byte); ok {
			*out = append((*out)[:0], b...)
			return nil
		}
		return json.Unmarshal(b, v)
	}
	return &RedisCache{cache: cache.New(opts)}
}

func (r *RedisCache) Set(ctx context.Context, key string, data interface{}, ttl time.Duration) error {
	return r.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: data,
		TTL:   ttl,
	})
}

func (r *RedisCache) Get(ctx context.Context, key string, data interface{}) (bool, error) {
	err := r.cache.Get(ctx, key, data)
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.cache.Delete(ctx, key)
}
