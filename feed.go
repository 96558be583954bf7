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
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fieldcrew/fieldsync/model"
)

// FeedInput is everything a merged feed is built from.
type FeedInput struct {
	// View holds confirmed records plus optimistic entries from the coordinator.
	View []model.DisplayRecord
	// Queued are tasks waiting in the offline queue.
	Queued []model.PendingTask
	// Syncing marks queued task IDs a replay is executing right now.
	Syncing map[string]bool
}

// BuildFeed merges confirmed remote records with queued tasks.
func BuildFeed(remote []model.Record, queued []model.PendingTask) []model.DisplayRecord {
	return MergeFeed(FeedInput{View: model.Confirmed(remote...), Queued: queued})
}

// MergeFeed composes the feed shown to the user. Confirmed records always win.
// A queued or optimistic entry disappears once a confirmed record carries its ID,
// either as ID or as ClientRef. Newest first; on equal timestamps local entries
// come before confirmed ones.
func MergeFeed(in FeedInput) []model.DisplayRecord {
	confirmed := make(map[string]bool)
	for _, r := range in.View {
		if r.Status != model.StatusConfirmed {
			continue
		}
		confirmed[r.ID] = true
		if r.ClientRef != "" {
			confirmed[r.ClientRef] = true
		}
	}

	out := make([]model.DisplayRecord, 0, len(in.View)+len(in.Queued))
	seen := make(map[string]bool)
	add := func(r model.DisplayRecord) {
		if seen[r.ID] {
			return
		}
		seen[r.ID] = true
		out = append(out, r)
	}

	for _, r := range in.View {
		if r.Status == model.StatusConfirmed {
			add(r)
		}
	}

	for _, task := range in.Queued {
		if confirmed[task.ID] {
			continue
		}
		status := model.StatusPending
		if in.Syncing[task.ID] {
			status = model.StatusSyncing
		}
		add(model.DisplayRecord{Record: task.Record(), Status: status, Error: task.LastError})
	}

	for _, r := range in.View {
		if r.Status == model.StatusConfirmed || confirmed[r.ID] || (r.ClientRef != "" && confirmed[r.ClientRef]) {
			continue
		}
		add(r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Status != model.StatusConfirmed && b.Status == model.StatusConfirmed
	})
	return out
}

// feedListener hands a freshly merged feed to fn whenever one of its inputs
// changes. Deliveries never overlap: a change arriving while fn runs is folded
// into one more delivery of the then-current feed.
type feedListener struct {
	mu      sync.Mutex
	running bool
	dirty   bool
	feed    func() []model.DisplayRecord
	fn      func([]model.DisplayRecord)
}

func (l *feedListener) changed() {
	l.mu.Lock()
	if l.running {
		l.dirty = true
		l.mu.Unlock()
		return
	}
	l.running = true
	for {
		l.dirty = false
		l.mu.Unlock()
		l.deliver()
		l.mu.Lock()
		if !l.dirty {
			l.running = false
			l.mu.Unlock()
			return
		}
	}
}

func (l *feedListener) deliver() {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("feed listener panicked: %v", r)
		}
	}()
	l.fn(l.feed())
}

// subscribeFeed calls fn with feed() after every change to entity in view and
// every change to queue's tasks or syncing set.
func subscribeFeed(view *Coordinator[[]model.DisplayRecord], entity string, queue *Queue, feed func() []model.DisplayRecord, fn func([]model.DisplayRecord)) (unsubscribe func()) {
	l := &feedListener{feed: feed, fn: fn}
	unsubs := []func(){
		view.Subscribe(func(c EntityChange[[]model.DisplayRecord]) {
			if c.Entity == entity {
				l.changed()
			}
		}),
	}
	if queue != nil {
		unsubs = append(unsubs,
			queue.Subscribe(func([]model.PendingTask) { l.changed() }),
			queue.OnSyncing(func(map[string]bool) { l.changed() }),
		)
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func queuedOfKind(tasks []model.PendingTask, kind model.TaskKind, keep func(model.PendingTask) bool) []model.PendingTask {
	out := make([]model.PendingTask, 0, len(tasks))
	for _, t := range tasks {
		if t.Kind == kind && (keep == nil || keep(t)) {
			out = append(out, t)
		}
	}
	return out
}

func cloneView(view []model.DisplayRecord) []model.DisplayRecord {
	return append([]model.DisplayRecord(nil), view...)
}

func emptyView() []model.DisplayRecord {
	return []model.DisplayRecord{}
}

// upsertRecord replaces the entry with r's ID, or the temporary entry r was
// created from, and otherwise prepends r.
func upsertRecord(view []model.DisplayRecord, r model.DisplayRecord) []model.DisplayRecord {
	out := make([]model.DisplayRecord, 0, len(view)+1)
	replaced := false
	for _, existing := range view {
		if existing.ID == r.ID || (r.ClientRef != "" && existing.ID == r.ClientRef) {
			if !replaced {
				out = append(out, r)
				replaced = true
			}
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append([]model.DisplayRecord{r}, out...)
	}
	return out
}

func removeRecord(view []model.DisplayRecord, id string) []model.DisplayRecord {
	out := make([]model.DisplayRecord, 0, len(view))
	for _, r := range view {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

// mapRecord applies fn to the entry with id, leaving the others untouched.
func mapRecord(view []model.DisplayRecord, id string, fn func(model.DisplayRecord) model.DisplayRecord) []model.DisplayRecord {
	out := make([]model.DisplayRecord, len(view))
	for i, r := range view {
		if r.ID == id {
			r = fn(r)
		}
		out[i] = r
	}
	return out
}
