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

package fieldsync

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fieldcrew/fieldsync/internal/apierror"
	"github.com/fieldcrew/fieldsync/internal/cache"
	"github.com/fieldcrew/fieldsync/model"
)

// FeedCache keeps the last confirmed records of each feed so a device that starts
// offline still has something to show. It is best effort: failures are logged.
type FeedCache struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewFeedCache(c cache.Cache, ttl time.Duration) *FeedCache {
	return &FeedCache{cache: c, ttl: ttl}
}

func (f *FeedCache) Store(ctx context.Context, key string, records []model.Record) {
	if f == nil || f.cache == nil {
		return
	}
	if err := f.cache.Set(ctx, key, records, f.ttl); err != nil {
		logrus.Warnf("failed to cache feed %s: %v", key, err)
	}
}

func (f *FeedCache) Load(ctx context.Context, key string) ([]model.Record, bool) {
	if f == nil || f.cache == nil {
		return nil, false
	}
	var records []model.Record
	found, err := f.cache.Get(ctx, key, &records)
	if err != nil {
		logrus.Warnf("failed to read cached feed %s: %v", key, err)
		return nil, false
	}
	return records, found
}

// fetchWithFallback calls fetch and caches what it returns. When the remote store
// is unreachable the cached snapshot is returned instead, with stale set.
func (f *FeedCache) fetchWithFallback(ctx context.Context, key string, fetch func(context.Context) ([]model.Record, error)) (records []model.Record, stale bool, err error) {
	records, err = fetch(ctx)
	if err == nil {
		f.Store(ctx, key, records)
		return records, false, nil
	}
	if !apierror.IsConnectivity(err) {
		return nil, false, err
	}
	cached, found := f.Load(ctx, key)
	if !found {
		return nil, false, err
	}
	logrus.WithField("feed", key).Warnf("remote store unreachable, serving cached feed: %v", err)
	return cached, true, nil
}
