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
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fieldcrew/fieldsync/config"
	"github.com/fieldcrew/fieldsync/internal/apierror"
	"github.com/fieldcrew/fieldsync/internal/kvstore"
	"github.com/fieldcrew/fieldsync/internal/observable"
	"github.com/fieldcrew/fieldsync/model"
)

var (
	tracer = otel.Tracer("fieldsync.queue")
)

func logAndRecordError(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	logrus.Error(msg, err)
	return err
}

// TaskExecutor performs one pending task against the remote stores. It may
// checkpoint progress on task (e.g. UploadedURL) even when it returns an error.
type TaskExecutor interface {
	Execute(ctx context.Context, task *model.PendingTask) (*model.Record, error)
}

// ReplayLocker serializes replays across processes sharing one store.
type ReplayLocker interface {
	WaitLock(ctx context.Context, lockTimeout, waitTimeout time.Duration) error
	Unlock(ctx context.Context) error
}

type QueueEventType string

const (
	EventTaskEnqueued   QueueEventType = "task.enqueued"
	EventTaskSynced     QueueEventType = "task.synced"
	EventTaskFailed     QueueEventType = "task.failed"
	EventTaskDropped    QueueEventType = "task.dropped"
	EventTaskRequeued   QueueEventType = "task.requeued"
	EventReplayFinished QueueEventType = "replay.finished"
)

type QueueEvent struct {
	Type   QueueEventType
	Task   model.PendingTask
	Record *model.Record
	Err    error
	Result *ReplayResult
}

// ReplayResult summarizes one pass over the queue.
type ReplayResult struct {
	Attempted int      `json:"attempted"`
	Succeeded []string `json:"succeeded"`
	Failed    []string `json:"failed"`
	Dropped   []string `json:"dropped"`
	Deferred  int      `json:"deferred"`
	Remaining int      `json:"remaining"`
}

type outcomeKind int

const (
	outcomeSucceeded outcomeKind = iota
	outcomeFailed
	outcomeDropped
)

type outcome struct {
	kind outcomeKind
	task model.PendingTask
}

// Queue is the offline write queue. Enqueue and the commit step of Replay are
// read-modify-write cycles on the TaskStore under one mutex, so tasks added while
// a replay is executing survive it.
type Queue struct {
	store       *TaskStore
	dropped     *deadLetters
	executor    TaskExecutor
	policy      RetryPolicy
	locker      ReplayLocker
	lockTimeout time.Duration
	onDrop      func(error)
	now         func() time.Time

	mu       sync.Mutex
	replayMu sync.Mutex

	tasks   *observable.Observable[[]model.PendingTask]
	syncing *observable.Observable[map[string]bool]
	events  *observable.Observable[QueueEvent]
}

type QueueOption func(*Queue)

// WithReplayLock makes Replay hold a cross-process lock for its whole pass.
func WithReplayLock(locker ReplayLocker, timeout time.Duration) QueueOption {
	return func(q *Queue) {
		q.locker = locker
		q.lockTimeout = timeout
	}
}

func WithRetryPolicy(policy RetryPolicy) QueueOption {
	return func(q *Queue) { q.policy = policy }
}

// WithDropNotifier is called with a descriptive error for every task the policy evicts.
func WithDropNotifier(fn func(error)) QueueOption {
	return func(q *Queue) { q.onDrop = fn }
}

func WithClock(now func() time.Time) QueueOption {
	return func(q *Queue) { q.now = now }
}

func NewQueue(kv kvstore.Store, cfg config.QueueConfig, executor TaskExecutor, opts ...QueueOption) *Queue {
	q := &Queue{
		store:    NewTaskStore(kv, cfg.StorageKey),
		dropped:  &deadLetters{kv: kv, key: cfg.DeadLetterKey()},
		executor: executor,
		policy:   RetryPolicyFromConfig(cfg),
		now:      time.Now,
		tasks:    observable.New([]model.PendingTask{}),
		syncing:  observable.New(map[string]bool{}),
		events:   observable.New(QueueEvent{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Refresh reloads the reactive view from the store, e.g. after process start.
func (q *Queue) Refresh(ctx context.Context) error {
	q.mu.Lock()
	tasks, err := q.store.Load(ctx)
	q.mu.Unlock()
	if err != nil {
		return err
	}
	q.publish(tasks)
	return nil
}

// Tasks returns the current queue contents in stored order.
func (q *Queue) Tasks() []model.PendingTask {
	return cloneTasks(q.tasks.Get())
}

// Syncing reports which task IDs a replay is executing right now.
func (q *Queue) Syncing() map[string]bool {
	current := q.syncing.Get()
	out := make(map[string]bool, len(current))
	for k, v := range current {
		out[k] = v
	}
	return out
}

// Subscribe notifies fn with the full task list after every change.
func (q *Queue) Subscribe(fn func([]model.PendingTask)) (unsubscribe func()) {
	return q.tasks.Subscribe(func(tasks []model.PendingTask) { fn(cloneTasks(tasks)) })
}

func (q *Queue) OnEvent(fn func(QueueEvent)) (unsubscribe func()) {
	return q.events.Subscribe(fn)
}

// OnSyncing notifies fn whenever a replay starts or stops executing a task.
func (q *Queue) OnSyncing(fn func(map[string]bool)) (unsubscribe func()) {
	return q.syncing.Subscribe(func(current map[string]bool) {
		out := make(map[string]bool, len(current))
		for k, v := range current {
			out[k] = v
		}
		fn(out)
	})
}

// Enqueue appends task to the persisted list.
func (q *Queue) Enqueue(ctx context.Context, task model.PendingTask) error {
	ctx, span := tracer.Start(ctx, "Enqueue pending task")
	defer span.End()
	span.SetAttributes(attribute.String("task.id", task.ID), attribute.String("task.kind", string(task.Kind)))

	if err := task.Validate(); err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "invalid pending task", err)
	}

	q.mu.Lock()
	tasks, err := q.store.Load(ctx)
	if err != nil {
		q.mu.Unlock()
		return logAndRecordError(span, "failed to load queue for enqueue: ", err)
	}
	for _, existing := range tasks {
		if existing.ID == task.ID {
			q.mu.Unlock()
			return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("task %s is already queued", task.ID), nil)
		}
	}
	tasks = append(tasks, task.Clone())
	if err := q.store.Save(ctx, tasks); err != nil {
		q.mu.Unlock()
		return logAndRecordError(span, "failed to persist queue on enqueue: ", err)
	}
	q.mu.Unlock()

	q.publish(tasks)
	q.events.Set(QueueEvent{Type: EventTaskEnqueued, Task: task.Clone()})
	logrus.WithFields(logrus.Fields{"task_id": task.ID, "kind": task.Kind, "queued": len(tasks)}).Info(" [*] Task queued for replay")
	return nil
}

// Replay executes every due task oldest first. A failing task stays queued and the
// pass continues with the next one; succeeded tasks are removed in one save at the end.
// Concurrent calls run one after the other.
func (q *Queue) Replay(ctx context.Context) (ReplayResult, error) {
	q.replayMu.Lock()
	defer q.replayMu.Unlock()

	ctx, span := tracer.Start(ctx, "Replaying offline queue")
	defer span.End()

	result := ReplayResult{Succeeded: []string{}, Failed: []string{}, Dropped: []string{}}

	if q.locker != nil {
		if err := q.locker.WaitLock(ctx, q.lockTimeout, q.lockTimeout); err != nil {
			return result, logAndRecordError(span, "failed to acquire replay lock: ", err)
		}
		defer func() {
			if err := q.locker.Unlock(context.Background()); err != nil {
				logrus.Warnf("failed to release replay lock: %v", err)
			}
		}()
	}

	q.mu.Lock()
	tasks, err := q.store.Load(ctx)
	q.mu.Unlock()
	if err != nil {
		return result, logAndRecordError(span, "failed to load queue for replay: ", err)
	}
	if len(tasks) == 0 {
		return result, nil
	}

	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })

	outcomes := make(map[string]outcome, len(tasks))
	var synced []QueueEvent
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		now := q.now()
		if !task.Due(now) {
			result.Deferred++
			continue
		}

		result.Attempted++
		work := task.Clone()
		q.setSyncing(work.ID, true)
		record, execErr := q.executor.Execute(ctx, &work)
		q.setSyncing(work.ID, false)

		if execErr == nil {
			outcomes[work.ID] = outcome{kind: outcomeSucceeded}
			result.Succeeded = append(result.Succeeded, work.ID)
			synced = append(synced, QueueEvent{Type: EventTaskSynced, Task: work, Record: record})
			logrus.WithFields(logrus.Fields{"task_id": work.ID, "kind": work.Kind}).Info(" [*] Task replayed")
			continue
		}

		work.Attempts++
		work.LastError = execErr.Error()
		work.LastAttemptAt = &now
		work.NextAttemptAt = nil
		if q.policy.Exhausted(work.Attempts) {
			outcomes[work.ID] = outcome{kind: outcomeDropped, task: work}
			result.Dropped = append(result.Dropped, work.ID)
		} else {
			if delay := q.policy.Delay(work.Attempts); delay > 0 {
				next := now.Add(delay)
				work.NextAttemptAt = &next
			}
			outcomes[work.ID] = outcome{kind: outcomeFailed, task: work}
			result.Failed = append(result.Failed, work.ID)
		}
		logrus.WithFields(logrus.Fields{
			"task_id":  work.ID,
			"kind":     work.Kind,
			"attempts": work.Attempts,
			"class":    apierror.Classify(execErr),
		}).Warnf("task replay failed: %v", execErr)
		q.events.Set(QueueEvent{Type: EventTaskFailed, Task: work.Clone(), Err: execErr})
	}

	remaining, droppedTasks, err := q.commit(ctx, outcomes)
	if err != nil {
		return result, logAndRecordError(span, "failed to persist replay results: ", err)
	}
	result.Remaining = len(remaining)
	span.SetAttributes(
		attribute.Int("replay.attempted", result.Attempted),
		attribute.Int("replay.succeeded", len(result.Succeeded)),
		attribute.Int("replay.remaining", result.Remaining),
	)

	// Synced records reach the views before their tasks leave the list, so a
	// merged feed never drops the entry in between.
	for _, ev := range synced {
		q.events.Set(ev)
	}
	q.publish(remaining)
	for _, d := range droppedTasks {
		dropErr := fmt.Errorf("task %s (%s) dropped after %d attempts: %s", d.Task.ID, d.Task.Kind, d.Task.Attempts, d.Reason)
		q.events.Set(QueueEvent{Type: EventTaskDropped, Task: d.Task, Err: dropErr})
		if q.onDrop != nil {
			q.onDrop(dropErr)
		}
	}
	q.events.Set(QueueEvent{Type: EventReplayFinished, Result: &result})
	logrus.Infof(" [*] Replay finished: %d attempted, %d succeeded, %d remaining", result.Attempted, len(result.Succeeded), result.Remaining)
	return result, nil
}

// commit folds replay outcomes into the list as it is stored now, which may
// contain tasks enqueued during the replay.
func (q *Queue) commit(ctx context.Context, outcomes map[string]outcome) ([]model.PendingTask, []model.DroppedTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	current, err := q.store.Load(ctx)
	if err != nil {
		return nil, nil, err
	}

	remaining := make([]model.PendingTask, 0, len(current))
	var dropped []model.DroppedTask
	for _, task := range current {
		o, ok := outcomes[task.ID]
		if !ok {
			remaining = append(remaining, task)
			continue
		}
		switch o.kind {
		case outcomeSucceeded:
		case outcomeFailed:
			remaining = append(remaining, o.task)
		case outcomeDropped:
			dropped = append(dropped, model.DroppedTask{Task: o.task, Reason: o.task.LastError, DroppedAt: q.now()})
		}
	}

	if len(dropped) > 0 {
		existing, err := q.dropped.load(ctx)
		if err != nil {
			return nil, nil, err
		}
		// dead letters are written first so a crash in between duplicates, never loses
		if err := q.dropped.save(ctx, append(existing, dropped...)); err != nil {
			return nil, nil, err
		}
	}
	if err := q.store.Save(ctx, remaining); err != nil {
		return nil, nil, err
	}
	return remaining, dropped, nil
}

// Dropped lists tasks the retry policy evicted.
func (q *Queue) Dropped(ctx context.Context) ([]model.DroppedTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped.load(ctx)
}

// Requeue moves a dropped task back into the queue with fresh bookkeeping.
// A receipt that was already uploaded is not uploaded again.
func (q *Queue) Requeue(ctx context.Context, id string) error {
	q.mu.Lock()
	dropped, err := q.dropped.load(ctx)
	if err != nil {
		q.mu.Unlock()
		return err
	}

	idx := -1
	for i, d := range dropped {
		if d.Task.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		q.mu.Unlock()
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("dropped task %s not found", id), nil)
	}

	task := dropped[idx].Task.Clone()
	task.Attempts = 0
	task.LastError = ""
	task.LastAttemptAt = nil
	task.NextAttemptAt = nil

	tasks, err := q.store.Load(ctx)
	if err != nil {
		q.mu.Unlock()
		return err
	}
	tasks = append(tasks, task)
	if err := q.store.Save(ctx, tasks); err != nil {
		q.mu.Unlock()
		return err
	}
	if err := q.dropped.save(ctx, append(dropped[:idx:idx], dropped[idx+1:]...)); err != nil {
		q.mu.Unlock()
		return err
	}
	q.mu.Unlock()

	q.publish(tasks)
	q.events.Set(QueueEvent{Type: EventTaskRequeued, Task: task})
	return nil
}

func (q *Queue) publish(tasks []model.PendingTask) {
	q.tasks.Set(cloneTasks(tasks))
}

func (q *Queue) setSyncing(id string, on bool) {
	q.syncing.Update(func(current map[string]bool) map[string]bool {
		next := make(map[string]bool, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		if on {
			next[id] = true
		} else {
			delete(next, id)
		}
		return next
	})
}

func cloneTasks(tasks []model.PendingTask) []model.PendingTask {
	out := make([]model.PendingTask, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
