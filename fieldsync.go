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
	"embed"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fieldcrew/fieldsync/config"
	"github.com/fieldcrew/fieldsync/database"
	"github.com/fieldcrew/fieldsync/internal/blobstore"
	"github.com/fieldcrew/fieldsync/internal/cache"
	"github.com/fieldcrew/fieldsync/internal/connectivity"
	"github.com/fieldcrew/fieldsync/internal/kvstore"
	redlock "github.com/fieldcrew/fieldsync/internal/lock"
	"github.com/fieldcrew/fieldsync/internal/notification"
	"github.com/fieldcrew/fieldsync/internal/push"
	redis_db "github.com/fieldcrew/fieldsync/internal/redis-db"
	"github.com/fieldcrew/fieldsync/internal/settings"
	"github.com/fieldcrew/fieldsync/model"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

// Components are the external collaborators of a Fieldsync agent. Only
// Datasource and Store are required.
type Components struct {
	Datasource database.IDataSource
	Store      kvstore.Store
	Blobs      blobstore.Store
	Cache      cache.Cache
	Notifier   Notifier
	Locker     ReplayLocker
	Network    *connectivity.Monitor
}

// Fieldsync is the device agent: the offline queue, its replay trigger and the
// domain services built on top of them.
type Fieldsync struct {
	config     *config.Configuration
	store      kvstore.Store
	queue      *Queue
	network    *connectivity.Monitor
	lifecycle  *connectivity.Lifecycle
	trigger    *ReplayTrigger
	settings   *settings.Store
	dispatcher *push.Dispatcher

	Expenses *ExpenseService
	Chat     *ChatService
	Schedule *ScheduleService
	Travel   *TravelService
}

// NewFieldsync builds an agent from the loaded configuration.
func NewFieldsync(db database.IDataSource) (*Fieldsync, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	kv, err := kvstore.New(cnf)
	if err != nil {
		return nil, err
	}

	feedCache, err := cache.NewCache(cnf)
	if err != nil {
		return nil, err
	}

	c := Components{Datasource: db, Store: kv, Cache: feedCache}

	if cnf.Storage.Region != "" || cnf.Storage.Endpoint != "" {
		blobs, err := blobstore.NewS3Store(cnf.Storage)
		if err != nil {
			return nil, err
		}
		c.Blobs = blobs
	} else {
		logrus.Warn("blob storage is not configured, expenses with receipts cannot be synced")
	}

	var dispatcher *push.Dispatcher
	if cnf.Redis.Dns != "" {
		opt, err := redis_db.AsynqOpt(cnf.Redis.Dns, cnf.Redis.SkipTLSVerify)
		if err != nil {
			return nil, err
		}
		dispatcher = push.NewDispatcher(opt, cnf.Queue.PushQueue)
		c.Notifier = dispatcher
	}

	if cnf.Queue.SharedLock {
		client, err := redis_db.NewRedisClient([]string{cnf.Redis.Dns}, cnf.Redis.SkipTLSVerify)
		if err != nil {
			return nil, err
		}
		c.Locker = redlock.NewLocker(client.Client(), cnf.Queue.StorageKey+":replay_lock", model.GenerateUUIDWithSuffix("agent"))
	}

	f := NewWithComponents(cnf, c)
	f.dispatcher = dispatcher
	return f, nil
}

// NewWithComponents assembles an agent from explicit collaborators.
func NewWithComponents(cnf *config.Configuration, c Components) *Fieldsync {
	var execOpts []ExecutorOption
	if c.Notifier != nil {
		execOpts = append(execOpts, WithNotifier(c.Notifier))
	}
	executor := NewRemoteExecutor(c.Datasource, c.Blobs, execOpts...)

	queueOpts := []QueueOption{WithDropNotifier(notification.NotifyError)}
	if c.Locker != nil {
		queueOpts = append(queueOpts, WithReplayLock(c.Locker, time.Duration(cnf.Queue.LockTimeoutSec)*time.Second))
	}
	queue := NewQueue(c.Store, cnf.Queue, executor, queueOpts...)

	network := c.Network
	if network == nil {
		network = connectivity.NewMonitorFromConfig(cnf.Connectivity, true)
	}
	lifecycle := connectivity.NewLifecycle()

	var feeds *FeedCache
	if c.Cache != nil {
		feeds = NewFeedCache(c.Cache, time.Duration(cnf.FeedCacheTTLSec)*time.Second)
	}

	deps := ServiceDeps{
		OwnerID:    cnf.OwnerID,
		Datasource: c.Datasource,
		Executor:   executor,
		Queue:      queue,
		Network:    network,
		Feeds:      feeds,
		Notifier:   c.Notifier,
	}

	return &Fieldsync{
		config:    cnf,
		store:     c.Store,
		queue:     queue,
		network:   network,
		lifecycle: lifecycle,
		trigger:   NewReplayTrigger(queue, network, lifecycle),
		settings:  settings.NewStore(c.Store),
		Expenses:  NewExpenseService(deps),
		Chat:      NewChatService(deps),
		Schedule:  NewScheduleService(deps),
		Travel:    NewTravelService(deps),
	}
}

// Start loads persisted state and begins replaying the queue whenever the
// device comes back online or to the foreground.
func (f *Fieldsync) Start(ctx context.Context) error {
	if err := f.queue.Refresh(ctx); err != nil {
		return err
	}
	if _, err := f.settings.Load(ctx); err != nil {
		logrus.Warnf("failed to load settings: %v", err)
	}
	f.network.Start(ctx)
	f.trigger.Start(ctx)
	logrus.WithField("queued", len(f.queue.Tasks())).Info("Fieldsync agent started")
	return nil
}

func (f *Fieldsync) Stop() {
	f.trigger.Stop()
	f.network.Stop()
	f.Expenses.Close()
	f.Chat.Close()
	f.Travel.Close()
	if f.dispatcher != nil {
		if err := f.dispatcher.Close(); err != nil {
			logrus.Warnf("failed to close push dispatcher: %v", err)
		}
	}
	if err := f.store.Close(); err != nil {
		logrus.Warnf("failed to close local store: %v", err)
	}
}

func (f *Fieldsync) Config() *config.Configuration { return f.config }

func (f *Fieldsync) Queue() *Queue { return f.queue }

func (f *Fieldsync) Network() *connectivity.Monitor { return f.network }

func (f *Fieldsync) Lifecycle() *connectivity.Lifecycle { return f.lifecycle }

func (f *Fieldsync) Settings() *settings.Store { return f.settings }
