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
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT               = "5001"
	DEFAULT_QUEUE_KEY          = "offline_upload_queue"
	DEFAULT_RECEIPTS_BUCKET    = "receipts"
	DEFAULT_PUSH_QUEUE         = "push_notifications"
	DEFAULT_PROBE_INTERVAL     = 15
	DEFAULT_PROBE_TIMEOUT      = 5
	DEFAULT_FEED_CACHE_TTL     = 24 * 60 * 60
	DEFAULT_LOCAL_STORE_PATH   = "fieldsync.db"
	DEFAULT_QUEUE_LOCK_TIMEOUT = 60
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"FIELDSYNC_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"FIELDSYNC_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"FIELDSYNC_SERVER_PORT"`
}

// DataSourceConfig points at the remote Postgres data store.
type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"FIELDSYNC_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"FIELDSYNC_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"FIELDSYNC_REDIS_SKIP_TLS_VERIFY"`
}

// LocalStoreConfig selects the device key-value store that holds the offline queue.
// Driver is one of "sqlite", "redis" or "memory".
type LocalStoreConfig struct {
	Driver string `json:"driver" envconfig:"FIELDSYNC_LOCAL_STORE_DRIVER"`
	Path   string `json:"path" envconfig:"FIELDSYNC_LOCAL_STORE_PATH"`
}

type StorageConfig struct {
	Bucket          string `json:"bucket" envconfig:"FIELDSYNC_STORAGE_BUCKET"`
	Region          string `json:"region" envconfig:"FIELDSYNC_STORAGE_REGION"`
	Endpoint        string `json:"endpoint" envconfig:"FIELDSYNC_STORAGE_ENDPOINT"`
	AccessKeyID     string `json:"access_key_id" envconfig:"FIELDSYNC_STORAGE_ACCESS_KEY_ID"`
	SecretAccessKey string `json:"secret_access_key" envconfig:"FIELDSYNC_STORAGE_SECRET_ACCESS_KEY"`
	PublicBaseURL   string `json:"public_base_url" envconfig:"FIELDSYNC_STORAGE_PUBLIC_BASE_URL"`
	ForcePathStyle  bool   `json:"force_path_style" envconfig:"FIELDSYNC_STORAGE_FORCE_PATH_STYLE"`
}

// QueueConfig holds the offline queue storage key and its retry policy.
// MaxAttempts of zero retries forever; zero intervals retry on the next trigger.
type QueueConfig struct {
	StorageKey        string  `json:"storage_key" envconfig:"FIELDSYNC_QUEUE_STORAGE_KEY"`
	MaxAttempts       int     `json:"max_attempts" envconfig:"FIELDSYNC_QUEUE_MAX_ATTEMPTS"`
	InitialIntervalMs int     `json:"initial_interval_ms" envconfig:"FIELDSYNC_QUEUE_INITIAL_INTERVAL_MS"`
	MaxIntervalMs     int     `json:"max_interval_ms" envconfig:"FIELDSYNC_QUEUE_MAX_INTERVAL_MS"`
	Multiplier        float64 `json:"multiplier" envconfig:"FIELDSYNC_QUEUE_MULTIPLIER"`
	LockTimeoutSec    int     `json:"lock_timeout_sec" envconfig:"FIELDSYNC_QUEUE_LOCK_TIMEOUT_SEC"`
	SharedLock        bool    `json:"shared_lock" envconfig:"FIELDSYNC_QUEUE_SHARED_LOCK"`
	PushQueue         string  `json:"push_queue" envconfig:"FIELDSYNC_QUEUE_PUSH_QUEUE"`
}

type ConnectivityConfig struct {
	ProbeURL         string `json:"probe_url" envconfig:"FIELDSYNC_CONNECTIVITY_PROBE_URL"`
	ProbeIntervalSec int    `json:"probe_interval_sec" envconfig:"FIELDSYNC_CONNECTIVITY_PROBE_INTERVAL_SEC"`
	ProbeTimeoutSec  int    `json:"probe_timeout_sec" envconfig:"FIELDSYNC_CONNECTIVITY_PROBE_TIMEOUT_SEC"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"FIELDSYNC_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"FIELDSYNC_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"FIELDSYNC_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"FIELDSYNC_SLACK_WEBHOOK_URL"`
}

type PushConfig struct {
	Url         string `json:"url" envconfig:"FIELDSYNC_PUSH_URL"`
	AccessToken string `json:"access_token" envconfig:"FIELDSYNC_PUSH_ACCESS_TOKEN"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
	Push  PushConfig   `json:"push"`
}

type Configuration struct {
	ProjectName     string             `json:"project_name" envconfig:"FIELDSYNC_PROJECT_NAME"`
	OwnerID         string             `json:"owner_id" envconfig:"FIELDSYNC_OWNER_ID"`
	OrganizationID  string             `json:"organization_id" envconfig:"FIELDSYNC_ORGANIZATION_ID"`
	Server          ServerConfig       `json:"server"`
	DataSource      DataSourceConfig   `json:"data_source"`
	Redis           RedisConfig        `json:"redis"`
	LocalStore      LocalStoreConfig   `json:"local_store"`
	Storage         StorageConfig      `json:"storage"`
	Queue           QueueConfig        `json:"queue"`
	Connectivity    ConnectivityConfig `json:"connectivity"`
	Notification    Notification       `json:"notification"`
	RateLimit       RateLimitConfig    `json:"rate_limit"`
	FeedCacheTTLSec int                `json:"feed_cache_ttl_sec" envconfig:"FIELDSYNC_FEED_CACHE_TTL_SEC"`
	EnableTelemetry bool               `json:"enable_telemetry" envconfig:"FIELDSYNC_ENABLE_TELEMETRY"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("fieldsync", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called fieldsync.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Fieldsync Agent"
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.OwnerID = strings.TrimSpace(cnf.OwnerID)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.LocalStore.Driver = strings.ToLower(strings.TrimSpace(cnf.LocalStore.Driver))

	if cnf.OwnerID == "" {
		log.Println("Error: Owner ID is empty. It's a required field.")
		return errors.New("owner id is required")
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.LocalStore.Driver == "" {
		cnf.LocalStore.Driver = "sqlite"
	}
	switch cnf.LocalStore.Driver {
	case "sqlite":
		if cnf.LocalStore.Path == "" {
			cnf.LocalStore.Path = DEFAULT_LOCAL_STORE_PATH
		}
	case "redis":
		if cnf.Redis.Dns == "" {
			log.Println("Error: Redis DNS is empty. It's required by the redis local store.")
			return errors.New("redis DNS is required for the redis local store")
		}
	case "memory":
		log.Println("Warning: memory local store does not survive restarts. Use it for tests only.")
	default:
		return errors.New("local store driver must be one of sqlite, redis or memory")
	}

	if cnf.Queue.SharedLock && cnf.Redis.Dns == "" {
		return errors.New("redis DNS is required when the shared queue lock is enabled")
	}

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Storage.Bucket == "" {
		cnf.Storage.Bucket = DEFAULT_RECEIPTS_BUCKET
	}

	if cnf.Queue.StorageKey == "" {
		cnf.Queue.StorageKey = DEFAULT_QUEUE_KEY
	}
	if cnf.Queue.MaxAttempts < 0 {
		return errors.New("queue max attempts cannot be negative")
	}
	if cnf.Queue.Multiplier == 0 {
		cnf.Queue.Multiplier = 2
	}
	if cnf.Queue.InitialIntervalMs > 0 && cnf.Queue.MaxIntervalMs == 0 {
		cnf.Queue.MaxIntervalMs = int(time.Hour / time.Millisecond)
	}
	if cnf.Queue.LockTimeoutSec == 0 {
		cnf.Queue.LockTimeoutSec = DEFAULT_QUEUE_LOCK_TIMEOUT
	}
	if cnf.Queue.PushQueue == "" {
		cnf.Queue.PushQueue = DEFAULT_PUSH_QUEUE
	}

	if cnf.Connectivity.ProbeIntervalSec == 0 {
		cnf.Connectivity.ProbeIntervalSec = DEFAULT_PROBE_INTERVAL
	}
	if cnf.Connectivity.ProbeTimeoutSec == 0 {
		cnf.Connectivity.ProbeTimeoutSec = DEFAULT_PROBE_TIMEOUT
	}

	if cnf.FeedCacheTTLSec == 0 {
		cnf.FeedCacheTTLSec = DEFAULT_FEED_CACHE_TTL
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// DeadLetterKey is where tasks evicted by the retry policy are kept.
func (q QueueConfig) DeadLetterKey() string {
	return q.StorageKey + ":dropped"
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
