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
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/fieldcrew/fieldsync/internal/kvstore"
	"github.com/fieldcrew/fieldsync/model"
)

// TaskStore persists the whole pending-task list as one JSON document under one key.
// Every write replaces the list.
type TaskStore struct {
	kv  kvstore.Store
	key string
}

func NewTaskStore(kv kvstore.Store, key string) *TaskStore {
	return &TaskStore{kv: kv, key: key}
}

// Load returns the persisted list. A missing key or an undecodable value yields an
// empty list; only a failure of the store itself is returned as an error, so callers
// never overwrite a list they could not read.
func (s *TaskStore) Load(ctx context.Context) ([]model.PendingTask, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, errors.Wrapf(err, "read task list %s", s.key)
	}
	if !ok || raw == "" {
		return []model.PendingTask{}, nil
	}

	var tasks []model.PendingTask
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		logrus.WithFields(logrus.Fields{"key": s.key, "error": err}).Warn("stored task list is corrupt, treating it as empty")
		return []model.PendingTask{}, nil
	}
	if tasks == nil {
		tasks = []model.PendingTask{}
	}
	return tasks, nil
}

// Save replaces the persisted list with tasks.
func (s *TaskStore) Save(ctx context.Context, tasks []model.PendingTask) error {
	if tasks == nil {
		tasks = []model.PendingTask{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return errors.Wrap(err, "encode task list")
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		return errors.Wrapf(err, "write task list %s", s.key)
	}
	return nil
}

// deadLetters keeps tasks evicted by the retry policy so they are never silently lost.
type deadLetters struct {
	kv  kvstore.Store
	key string
}

func (d *deadLetters) load(ctx context.Context) ([]model.DroppedTask, error) {
	raw, ok, err := d.kv.Get(ctx, d.key)
	if err != nil {
		return nil, errors.Wrapf(err, "read dropped tasks %s", d.key)
	}
	if !ok || raw == "" {
		return []model.DroppedTask{}, nil
	}
	var dropped []model.DroppedTask
	if err := json.Unmarshal([]byte(raw), &dropped); err != nil {
		logrus.WithFields(logrus.Fields{"key": d.key, "error": err}).Warn("stored dropped task list is corrupt, treating it as empty")
		return []model.DroppedTask{}, nil
	}
	if dropped == nil {
		dropped = []model.DroppedTask{}
	}
	return dropped, nil
}

func (d *deadLetters) save(ctx context.Context, dropped []model.DroppedTask) error {
	if dropped == nil {
		dropped = []model.DroppedTask{}
	}
	data, err := json.Marshal(dropped)
	if err != nil {
		return errors.Wrap(err, "encode dropped tasks")
	}
	return errors.Wrapf(d.kv.Set(ctx, d.key, string(data)), "write dropped tasks %s", d.key)
}
