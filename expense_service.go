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

	"github.com/fieldcrew/fieldsync/database"
	"github.com/fieldcrew/fieldsync/internal/apierror"
	"github.com/fieldcrew/fieldsync/model"
)

// Reachability reports whether the remote store is believed to be reachable.
type Reachability interface {
	IsReachable() bool
}

// ServiceDeps are the collaborators shared by the domain services.
type ServiceDeps struct {
	OwnerID    string
	Datasource database.IDataSource
	Executor   TaskExecutor
	Queue      *Queue
	Network    Reachability
	Feeds      *FeedCache
	Notifier   Notifier
	Now        func() time.Time
}

func (d ServiceDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d ServiceDeps) online() bool {
	return d.Network == nil || d.Network.IsReachable()
}

// newView is the coordinator every service keeps its feeds in.
func newView() *Coordinator[[]model.DisplayRecord] {
	return NewCoordinator(emptyView, cloneView)
}

type submitOutcome struct {
	record   *model.Record
	deferred bool
}

// submitTask performs task right away when the device is online and queues it
// when it is not, or when the attempt fails for lack of connectivity. The
// returned record is confirmed, or pending when the task was queued. Any other
// failure rolls the optimistic entry back and is returned.
func submitTask(ctx context.Context, deps ServiceDeps, view *Coordinator[[]model.DisplayRecord], entity string, task model.PendingTask) (model.DisplayRecord, error) {
	pending := model.DisplayRecord{Record: task.Record(), Status: model.StatusPending}

	if !deps.online() {
		if err := deps.Queue.Enqueue(ctx, task); err != nil {
			return model.DisplayRecord{}, err
		}
		return pending, nil
	}

	outcome, err := Perform(ctx, view, Mutation[[]model.DisplayRecord, submitOutcome]{
		Entity: entity,
		Apply: func(s []model.DisplayRecord) []model.DisplayRecord {
			return upsertRecord(s, pending)
		},
		Remote: func(ctx context.Context) (submitOutcome, error) {
			work := task.Clone()
			record, err := deps.Executor.Execute(ctx, &work)
			if err == nil {
				return submitOutcome{record: record}, nil
			}
			if !apierror.IsConnectivity(err) {
				return submitOutcome{}, err
			}
			work.LastError = err.Error()
			if qerr := deps.Queue.Enqueue(ctx, work); qerr != nil {
				return submitOutcome{}, qerr
			}
			pending.Error = work.LastError
			return submitOutcome{deferred: true}, nil
		},
		Reconcile: func(s []model.DisplayRecord, o submitOutcome) []model.DisplayRecord {
			// A queued task is shown from the queue, so the optimistic copy goes.
			if o.deferred {
				return removeRecord(s, task.ID)
			}
			return upsertRecord(s, model.DisplayRecord{Record: *o.record, Status: model.StatusConfirmed})
		},
		RollbackOnError: true,
	})
	if err != nil {
		return model.DisplayRecord{}, err
	}
	if outcome.deferred {
		return pending, nil
	}
	return model.DisplayRecord{Record: *outcome.record, Status: model.StatusConfirmed}, nil
}

// ExpenseService submits and reviews the owner's expenses.
type ExpenseService struct {
	deps        ServiceDeps
	view        *Coordinator[[]model.DisplayRecord]
	unsubscribe func()
}

func NewExpenseService(deps ServiceDeps) *ExpenseService {
	s := &ExpenseService{deps: deps, view: newView()}
	if deps.Queue != nil {
		s.unsubscribe = deps.Queue.OnEvent(s.onQueueEvent)
	}
	return s
}

func (s *ExpenseService) entity() string {
	return "expenses:" + s.deps.OwnerID
}

func (s *ExpenseService) cacheKey() string {
	return "feed:" + s.entity()
}

// onQueueEvent moves a replayed expense into the confirmed view as soon as the
// queue reports it, without waiting for the next refresh.
func (s *ExpenseService) onQueueEvent(ev QueueEvent) {
	if ev.Type != EventTaskSynced || ev.Record == nil || ev.Record.Kind != model.RecordExpense || ev.Task.OwnerID != s.deps.OwnerID {
		return
	}
	confirmed := model.DisplayRecord{Record: *ev.Record, Status: model.StatusConfirmed}
	s.view.Update(s.entity(), func(v []model.DisplayRecord) []model.DisplayRecord {
		return upsertRecord(v, confirmed)
	})
}

// Submit files a new expense with an optional receipt at attachmentRef.
func (s *ExpenseService) Submit(ctx context.Context, payload model.ExpensePayload, attachmentRef string) (model.DisplayRecord, error) {
	if err := payload.Validate(); err != nil {
		return model.DisplayRecord{}, apierror.NewAPIError(apierror.ErrInvalidInput, "invalid expense", err)
	}
	task := model.NewExpenseTask(s.deps.OwnerID, payload, attachmentRef, s.deps.now())
	return submitTask(ctx, s.deps, s.view, s.entity(), task)
}

// UpdateStatus approves or rejects an expense. The new status shows at once and
// is rolled back if the remote store refuses it. Decisions are never queued.
func (s *ExpenseService) UpdateStatus(ctx context.Context, expenseID string, status model.ExpenseStatus) (*model.Expense, error) {
	if err := model.ValidateExpenseDecision(status); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "status must be approved or rejected", err)
	}
	if model.IsTemporaryID(expenseID) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "expense has not been synced yet", nil)
	}

	return Perform(ctx, s.view, Mutation[[]model.DisplayRecord, *model.Expense]{
		Entity: s.entity(),
		Apply: func(v []model.DisplayRecord) []model.DisplayRecord {
			return mapRecord(v, expenseID, func(r model.DisplayRecord) model.DisplayRecord {
				if r.Expense != nil {
					e := *r.Expense
					e.Status = status
					r.Expense = &e
				}
				return r
			})
		},
		Remote: func(ctx context.Context) (*model.Expense, error) {
			return s.deps.Datasource.UpdateExpenseStatus(ctx, expenseID, status)
		},
		Reconcile: func(v []model.DisplayRecord, e *model.Expense) []model.DisplayRecord {
			return upsertRecord(v, model.DisplayRecord{Record: e.Record(), Status: model.StatusConfirmed})
		},
		RollbackOnError: true,
	})
}

// Refresh reloads the owner's expenses. When the remote store is unreachable the
// last cached snapshot is used and stale is true.
func (s *ExpenseService) Refresh(ctx context.Context) (stale bool, err error) {
	records, stale, err := s.deps.Feeds.fetchWithFallback(ctx, s.cacheKey(), func(ctx context.Context) ([]model.Record, error) {
		expenses, err := s.deps.Datasource.GetExpensesByUser(ctx, s.deps.OwnerID, 0)
		if err != nil {
			return nil, err
		}
		records := make([]model.Record, 0, len(expenses))
		for _, e := range expenses {
			records = append(records, e.Record())
		}
		return records, nil
	})
	if err != nil {
		return false, err
	}
	s.view.Reset(s.entity(), model.Confirmed(records...))
	return stale, nil
}

// Feed is the merged list of confirmed, optimistic and queued expenses.
func (s *ExpenseService) Feed() []model.DisplayRecord {
	in := FeedInput{View: s.view.State(s.entity())}
	if s.deps.Queue != nil {
		in.Queued = queuedOfKind(s.deps.Queue.Tasks(), model.TaskCreateExpense, func(t model.PendingTask) bool {
			return t.OwnerID == s.deps.OwnerID
		})
		in.Syncing = s.deps.Queue.Syncing()
	}
	return MergeFeed(in)
}

// Subscribe calls fn with the merged Feed whenever the expenses, the queue or
// a replay in progress changes it.
func (s *ExpenseService) Subscribe(fn func([]model.DisplayRecord)) func() {
	return subscribeFeed(s.view, s.entity(), s.deps.Queue, s.Feed, fn)
}

func (s *ExpenseService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}
