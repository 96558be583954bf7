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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldcrew/fieldsync/model"
)

func ids(records []model.DisplayRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func confirmedExpense(id, clientRef string, createdAt time.Time) model.Record {
	return model.Expense{ID: id, ClientRef: clientRef, Currency: "JPY", Status: model.ExpenseStatusPending, CreatedAt: createdAt}.Record()
}

func TestBuildFeed_QueuedTasksAppearPending(t *testing.T) {
	task := expenseTaskAt(baseTime.Add(time.Minute))
	feed := BuildFeed([]model.Record{confirmedExpense("exp_1", "", baseTime)}, []model.PendingTask{task})

	require.Len(t, feed, 2)
	assert.Equal(t, task.ID, feed[0].ID)
	assert.Equal(t, model.StatusPending, feed[0].Status)
	assert.Equal(t, model.ExpenseStatusPending, feed[0].Expense.Status)
	assert.Equal(t, "exp_1", feed[1].ID)
	assert.Equal(t, model.StatusConfirmed, feed[1].Status)
}

func TestBuildFeed_HidesTaskOnceConfirmedByClientRef(t *testing.T) {
	task := expenseTaskAt(baseTime)
	feed := BuildFeed([]model.Record{confirmedExpense("exp_9", task.ID, baseTime)}, []model.PendingTask{task})

	assert.Equal(t, []string{"exp_9"}, ids(feed))
}

func TestBuildFeed_NoContentMatching(t *testing.T) {
	// identical content but no shared identifier: both stay visible
	task := expenseTaskAt(baseTime)
	remote := task.Record()
	remote.ID = "exp_other"
	remote.ClientRef = "temp-someone-else"

	feed := BuildFeed([]model.Record{remote}, []model.PendingTask{task})
	assert.ElementsMatch(t, []string{task.ID, "exp_other"}, ids(feed))
}

func TestMergeFeed_OrderingAndTies(t *testing.T) {
	older := confirmedExpense("exp_old", "", baseTime)
	tied := confirmedExpense("exp_tied", "", baseTime.Add(time.Hour))
	local := expenseTaskAt(baseTime.Add(time.Hour))

	feed := MergeFeed(FeedInput{View: model.Confirmed(older, tied), Queued: []model.PendingTask{local}})
	assert.Equal(t, []string{local.ID, "exp_tied", "exp_old"}, ids(feed))
}

func TestMergeFeed_SyncingStatusAndLastError(t *testing.T) {
	a := expenseTaskAt(baseTime)
	b := expenseTaskAt(baseTime.Add(time.Second))
	b.LastError = "connection refused"

	feed := MergeFeed(FeedInput{Queued: []model.PendingTask{a, b}, Syncing: map[string]bool{a.ID: true}})
	require.Len(t, feed, 2)
	assert.Equal(t, model.StatusPending, feed[0].Status)
	assert.Equal(t, "connection refused", feed[0].Error)
	assert.Equal(t, model.StatusSyncing, feed[1].Status)
}

func TestMergeFeed_OptimisticEntries(t *testing.T) {
	task := expenseTaskAt(baseTime)
	optimisticForTask := model.DisplayRecord{Record: task.Record(), Status: model.StatusPending}
	optimisticForTask.Error = "stale"

	confirmedMsg := model.Message{ID: "msg_1", ClientRef: "temp-abc", CreatedAt: baseTime}.Record()
	optimisticMsg := model.DisplayRecord{Record: model.Message{ID: "temp-abc", ClientRef: "temp-abc", CreatedAt: baseTime}.Record(), Status: model.StatusPending}
	standalone := model.DisplayRecord{Record: model.Message{ID: "temp-xyz", CreatedAt: baseTime.Add(time.Minute)}.Record(), Status: model.StatusFailed}

	feed := MergeFeed(FeedInput{
		View:   append(model.Confirmed(confirmedMsg), optimisticForTask, optimisticMsg, standalone),
		Queued: []model.PendingTask{task},
	})

	assert.Equal(t, []string{"temp-xyz", task.ID, "msg_1"}, ids(feed))
	// the queued task wins over the optimistic entry with the same ID
	assert.Empty(t, feed[1].Error)
}

func TestUpsertRecord(t *testing.T) {
	temp := model.DisplayRecord{Record: model.Message{ID: "temp-1", ClientRef: "temp-1"}.Record(), Status: model.StatusPending}
	other := model.DisplayRecord{Record: model.Message{ID: "msg_0"}.Record(), Status: model.StatusConfirmed}
	view := []model.DisplayRecord{temp, other}

	server := model.DisplayRecord{Record: model.Message{ID: "msg_1", ClientRef: "temp-1"}.Record(), Status: model.StatusConfirmed}
	view = upsertRecord(view, server)
	assert.Equal(t, []string{"msg_1", "msg_0"}, ids(view))

	// a duplicate realtime delivery is idempotent
	view = upsertRecord(view, server)
	assert.Equal(t, []string{"msg_1", "msg_0"}, ids(view))

	fresh := model.DisplayRecord{Record: model.Message{ID: "msg_2"}.Record(), Status: model.StatusConfirmed}
	view = upsertRecord(view, fresh)
	assert.Equal(t, []string{"msg_2", "msg_1", "msg_0"}, ids(view))

	assert.Equal(t, []string{"msg_2", "msg_0"}, ids(removeRecord(view, "msg_1")))
}

func TestFeedListener_FoldsChangesDuringDelivery(t *testing.T) {
	size := 1
	var delivered []int
	var l *feedListener
	l = &feedListener{
		feed: func() []model.DisplayRecord { return make([]model.DisplayRecord, size) },
		fn: func(v []model.DisplayRecord) {
			delivered = append(delivered, len(v))
			if len(delivered) == 1 {
				size = 3
				l.changed()
				l.changed()
			}
		},
	}

	l.changed()
	assert.Equal(t, []int{1, 3}, delivered)
}
