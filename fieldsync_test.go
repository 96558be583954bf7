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
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fieldcrew/fieldsync/config"
	"github.com/fieldcrew/fieldsync/database/mocks"
	"github.com/fieldcrew/fieldsync/internal/connectivity"
	"github.com/fieldcrew/fieldsync/internal/kvstore"
	"github.com/fieldcrew/fieldsync/internal/settings"
	"github.com/fieldcrew/fieldsync/model"
)

func TestFieldsync_ReplaysWhenConnectivityReturns(t *testing.T) {
	ds := new(mocks.MockDataSource)
	ds.On("InsertMessage", mock.Anything, mock.Anything).Return(func(_ context.Context, m model.Message) model.Message {
		m.ID = "msg_" + m.ClientRef
		return m
	}, nil)

	kv := kvstore.NewMemoryStore()
	cnf := &config.Configuration{OwnerID: "user_1", Queue: queueConfig()}
	f := NewWithComponents(cnf, Components{Datasource: ds, Store: kv, Network: connectivity.NewMonitor(false)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, f.Start(ctx))
	defer f.Stop()

	sent, err := f.Chat.Send(ctx, "conv_1", "running late")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, sent.Status)
	require.Len(t, f.Queue().Tasks(), 1)

	f.Network().Report(true)
	assert.Eventually(t, func() bool { return len(f.Queue().Tasks()) == 0 }, 2*time.Second, 10*time.Millisecond)

	feed := f.Chat.Feed("conv_1")
	require.Len(t, feed, 1)
	assert.Equal(t, "msg_"+sent.ID, feed[0].ID)
}

func TestFieldsync_StartRestoresPersistedState(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	require.NoError(t, NewTaskStore(kv, config.DEFAULT_QUEUE_KEY).Save(ctx, []model.PendingTask{messageTaskAt(baseTime)}))
	require.NoError(t, settings.NewStore(kv).SetLanguage(ctx, settings.LanguageJapanese))

	cnf := &config.Configuration{OwnerID: "user_1", Queue: queueConfig()}
	f := NewWithComponents(cnf, Components{Datasource: new(mocks.MockDataSource), Store: kv, Network: connectivity.NewMonitor(false)})
	require.NoError(t, f.Start(ctx))
	defer f.Stop()

	assert.Len(t, f.Queue().Tasks(), 1)
	assert.Equal(t, settings.LanguageJapanese, f.Settings().Language())
}

func TestSQLFilesEmbedded(t *testing.T) {
	files, err := fs.Glob(SQLFiles, "sql/*.sql")
	require.NoError(t, err)
	assert.NotEmpty(t, files)
}
