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

	"github.com/fieldcrew/fieldsync/internal/apierror"
	"github.com/fieldcrew/fieldsync/model"
)

// ScheduleService manages project schedules. Schedule edits need a live
// connection: they are shown optimistically and rolled back on any failure.
type ScheduleService struct {
	deps ServiceDeps
	view *Coordinator[[]model.DisplayRecord]
}

func NewScheduleService(deps ServiceDeps) *ScheduleService {
	return &ScheduleService{deps: deps, view: newView()}
}

func projectEntity(projectID string) string {
	return "schedule:" + projectID
}

func (s *ScheduleService) Create(ctx context.Context, item model.ScheduleItem) (model.ScheduleItem, error) {
	if item.UserID == "" {
		item.UserID = s.deps.OwnerID
	}
	if err := item.Validate(); err != nil {
		return model.ScheduleItem{}, apierror.NewAPIError(apierror.ErrInvalidInput, "invalid schedule item", err)
	}
	item.ID = model.NewTemporaryID()
	item.ClientRef = item.ID
	item.CreatedAt = s.deps.now()

	optimistic := model.DisplayRecord{Record: item.Record(), Status: model.StatusPending}
	created, err := Perform(ctx, s.view, Mutation[[]model.DisplayRecord, model.ScheduleItem]{
		Entity: projectEntity(item.ProjectID),
		Apply: func(v []model.DisplayRecord) []model.DisplayRecord {
			return upsertRecord(v, optimistic)
		},
		Remote: func(ctx context.Context) (model.ScheduleItem, error) {
			return s.deps.Datasource.InsertScheduleItem(ctx, item)
		},
		Reconcile: func(v []model.DisplayRecord, created model.ScheduleItem) []model.DisplayRecord {
			return upsertRecord(v, model.DisplayRecord{Record: created.Record(), Status: model.StatusConfirmed})
		},
		RollbackOnError: true,
	})
	if err != nil {
		return model.ScheduleItem{}, err
	}
	notifyConfirmed(ctx, s.deps.Notifier, s.deps.OwnerID, created.Record())
	return created, nil
}

func (s *ScheduleService) Refresh(ctx context.Context, projectID string) (stale bool, err error) {
	entity := projectEntity(projectID)
	records, stale, err := s.deps.Feeds.fetchWithFallback(ctx, "feed:"+entity, func(ctx context.Context) ([]model.Record, error) {
		items, err := s.deps.Datasource.GetScheduleByProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		out := make([]model.Record, 0, len(items))
		for _, it := range items {
			out = append(out, it.Record())
		}
		return out, nil
	})
	if err != nil {
		return false, err
	}
	s.view.Reset(entity, model.Confirmed(records...))
	return stale, nil
}

func (s *ScheduleService) Feed(projectID string) []model.DisplayRecord {
	return MergeFeed(FeedInput{View: s.view.State(projectEntity(projectID))})
}
