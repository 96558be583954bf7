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

package kvstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldcrew/fieldsync/config"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "offline_upload_queue")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "offline_upload_queue", `[{"id":"temp-1"}]`))
	v, ok, err := s.Get(ctx, "offline_upload_queue")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"temp-1"}]`, v)

	require.NoError(t, s.Set(ctx, "offline_upload_queue", `[]`))
	v, ok, err = s.Get(ctx, "offline_upload_queue")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[]`, v)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", "v1"))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", v)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	s := NewRedisStore(client, "Fieldsync Agent")
	exerciseStore(t, s)

	raw, err := mr.Get("fieldsync_agent:offline_upload_queue")
	require.NoError(t, err)
	assert.Equal(t, `[]`, raw)
	assert.False(t, mr.Exists("offline_upload_queue"))
}

func TestNewSelectsDriver(t *testing.T) {
	s, err := New(&config.Configuration{LocalStore: config.LocalStoreConfig{Driver: "memory"}})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(&config.Configuration{LocalStore: config.LocalStoreConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "x.db")}})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	assert.NoError(t, s.Close())

	mr := miniredis.RunT(t)
	s, err = New(&config.Configuration{LocalStore: config.LocalStoreConfig{Driver: "redis"}, Redis: config.RedisConfig{Dns: mr.Addr()}})
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)

	_, err = New(&config.Configuration{LocalStore: config.LocalStoreConfig{Driver: "bolt"}})
	assert.Error(t, err)
}
