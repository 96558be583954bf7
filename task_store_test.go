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
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldcrew/fieldsync/internal/kvstore"
	"github.com/fieldcrew/fieldsync/model"
)

func TestTaskStore_RoundTripKeepsEveryField(t *testing.T) {
	ctx := context.Background()
	store := NewTaskStore(kvstore.NewMemoryStore(), "queue")

	attempted := baseTime.Add(time.Minute)
	next := baseTime.Add(5 * time.Minute)
	expense := model.NewExpenseTask("user_1", model.ExpensePayload{
		OrganizationID: "org_1",
		ProjectID:      "proj_1",
		Amount:         decimal.RequireFromString("4200.5"),
		Currency:       "JPY",
		Description:    "Taxi from the site office",
		Category:       model.CategoryTransport,
		PaidBy:         model.PaidByCompany,
	}, "file:///receipts/1.jpg", baseTime)
	expense.Attempts = 2
	expense.LastError = "dial tcp: connection refused"
	expense.LastAttemptAt = &attempted
	expense.NextAttemptAt = &next
	expense.UploadedURL = "https://cdn.example.com/receipts/user_1/1.jpg"

	message := messageTaskAt(baseTime.Add(time.Second))

	require.NoError(t, store.Save(ctx, []model.PendingTask{expense, message}))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.PendingTask{expense, message}, loaded)
}

func TestTaskStore_MissingOrCorruptIsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	store := NewTaskStore(kv, "queue")

	tasks, err := store.Load(ctx)
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)

	require.NoError(t, kv.Set(ctx, "queue", "{not json"))
	tasks, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTaskStore_SaveNilWritesEmptyList(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	require.NoError(t, NewTaskStore(kv, "queue").Save(ctx, nil))

	raw, ok, err := kv.Get(ctx, "queue")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", raw)
}

func TestTaskStore_ReadFailureIsReturned(t *testing.T) {
	_, err := NewTaskStore(&brokenKV{}, "queue").Load(context.Background())
	assert.ErrorContains(t, err, "disk I/O error")
}
