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

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wacul/ptr"
)

func TestValidateAndAddDefaults(t *testing.T) {
	cnf := Configuration{DataSource: DataSourceConfig{Dns: "postgres://localhost:5432"}}
	err := cnf.validateAndAddDefaults()
	assert.EqualError(t, err, "owner id is required")

	cnf = Configuration{OwnerID: "user-1"}
	err = cnf.validateAndAddDefaults()
	assert.EqualError(t, err, "data source DNS is required")

	cnf = Configuration{
		OwnerID:    " user-1 ",
		DataSource: DataSourceConfig{Dns: "postgres://localhost:5432"},
	}
	require.NoError(t, cnf.validateAndAddDefaults())

	assert.Equal(t, "user-1", cnf.OwnerID)
	assert.Equal(t, "Fieldsync Agent", cnf.ProjectName)
	assert.Equal(t, DEFAULT_PORT, cnf.Server.Port)
	assert.Equal(t, "sqlite", cnf.LocalStore.Driver)
	assert.Equal(t, DEFAULT_LOCAL_STORE_PATH, cnf.LocalStore.Path)
	assert.Equal(t, DEFAULT_RECEIPTS_BUCKET, cnf.Storage.Bucket)
	assert.Equal(t, DEFAULT_QUEUE_KEY, cnf.Queue.StorageKey)
	assert.Equal(t, "offline_upload_queue:dropped", cnf.Queue.DeadLetterKey())
	assert.Equal(t, 0, cnf.Queue.MaxAttempts)
	assert.Equal(t, 0, cnf.Queue.MaxIntervalMs)
	assert.Equal(t, float64(2), cnf.Queue.Multiplier)
	assert.Equal(t, DEFAULT_PUSH_QUEUE, cnf.Queue.PushQueue)
	assert.Equal(t, DEFAULT_PROBE_INTERVAL, cnf.Connectivity.ProbeIntervalSec)
	assert.Nil(t, cnf.RateLimit.RequestsPerSecond)
	assert.Nil(t, cnf.RateLimit.Burst)
}

func TestValidateLocalStoreDriver(t *testing.T) {
	base := Configuration{OwnerID: "u", DataSource: DataSourceConfig{Dns: "dns"}}

	cnf := base
	cnf.LocalStore.Driver = "redis"
	assert.EqualError(t, cnf.validateAndAddDefaults(), "redis DNS is required for the redis local store")

	cnf = base
	cnf.LocalStore.Driver = "REDIS"
	cnf.Redis.Dns = "localhost:6379"
	assert.NoError(t, cnf.validateAndAddDefaults())
	assert.Equal(t, "redis", cnf.LocalStore.Driver)

	cnf = base
	cnf.LocalStore.Driver = "leveldb"
	assert.Error(t, cnf.validateAndAddDefaults())

	cnf = base
	cnf.Queue.SharedLock = true
	assert.Error(t, cnf.validateAndAddDefaults())
}

func TestValidateRetryPolicyDefaults(t *testing.T) {
	cnf := Configuration{
		OwnerID:    "u",
		DataSource: DataSourceConfig{Dns: "dns"},
		Queue:      QueueConfig{MaxAttempts: 5, InitialIntervalMs: 1000},
	}
	require.NoError(t, cnf.validateAndAddDefaults())
	assert.Equal(t, 3600000, cnf.Queue.MaxIntervalMs)

	cnf.Queue.MaxAttempts = -1
	assert.EqualError(t, cnf.validateAndAddDefaults(), "queue max attempts cannot be negative")
}

func TestValidateRateLimitDefaults(t *testing.T) {
	cnf := Configuration{
		OwnerID:    "u",
		DataSource: DataSourceConfig{Dns: "dns"},
		RateLimit:  RateLimitConfig{RequestsPerSecond: ptr.Float64(10)},
	}
	require.NoError(t, cnf.validateAndAddDefaults())
	require.NotNil(t, cnf.RateLimit.Burst)
	assert.Equal(t, 20, *cnf.RateLimit.Burst)

	cnf = Configuration{
		OwnerID:    "u",
		DataSource: DataSourceConfig{Dns: "dns"},
		RateLimit:  RateLimitConfig{Burst: ptr.Int(8)},
	}
	require.NoError(t, cnf.validateAndAddDefaults())
	require.NotNil(t, cnf.RateLimit.RequestsPerSecond)
	assert.Equal(t, float64(4), *cnf.RateLimit.RequestsPerSecond)
	assert.Equal(t, 10800, *cnf.RateLimit.CleanupIntervalSec)
}

func TestLoadConfigFromFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "fieldsync.json")

	sampleConfig := Configuration{
		ProjectName: "Temp Project",
		OwnerID:     "user-42",
		DataSource:  DataSourceConfig{Dns: "temp-dns"},
		LocalStore:  LocalStoreConfig{Driver: "memory"},
	}
	data, err := json.Marshal(sampleConfig)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(file, data, 0o600))

	t.Setenv("FIELDSYNC_PROJECT_NAME", "Env Project")
	t.Setenv("FIELDSYNC_QUEUE_MAX_ATTEMPTS", "7")

	require.NoError(t, loadConfigFromFile(file))

	loadedConfig, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "Env Project", loadedConfig.ProjectName)
	assert.Equal(t, "temp-dns", loadedConfig.DataSource.Dns)
	assert.Equal(t, "user-42", loadedConfig.OwnerID)
	assert.Equal(t, 7, loadedConfig.Queue.MaxAttempts)
	assert.Equal(t, "memory", loadedConfig.LocalStore.Driver)
}

func TestLoadConfigFromEnvOnly(t *testing.T) {
	t.Setenv("FIELDSYNC_OWNER_ID", "env-user")
	t.Setenv("FIELDSYNC_DATA_SOURCE_DNS", "postgres://env")
	t.Setenv("FIELDSYNC_LOCAL_STORE_DRIVER", "memory")

	require.NoError(t, InitConfig(filepath.Join(t.TempDir(), "missing.json")))

	loadedConfig, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "env-user", loadedConfig.OwnerID)
	assert.Equal(t, "postgres://env", loadedConfig.DataSource.Dns)
}

func TestLoadConfigFromFileInvalidJSON(t *testing.T) {
	file := filepath.Join(t.TempDir(), "fieldsync.json")
	require.NoError(t, os.WriteFile(file, []byte("{not json"), 0o600))
	assert.Error(t, loadConfigFromFile(file))
}
