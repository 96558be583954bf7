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
	"sort"

	"github.com/fieldcrew/fieldsync/internal/apierror"
	"github.com/fieldcrew/fieldsync/model"
)

// TravelService books transport tickets onto projects. A ticket photo is
// uploaded before the ticket is stored, and both are queued while offline.
type TravelService struct {
	deps        ServiceDeps
	view        *Coordinator[[]model.DisplayRecord]
	unsubscribe func()
}

func NewTravelService(deps ServiceDeps) *TravelService {
	s := &TravelService{deps: deps, view: newView()}
	if deps.Queue != nil {
		s.unsubscribe = deps.Queue.OnEvent(s.onQueueEvent)
	}
	return s
}

func ticketsEntity(projectID string) string {
	return "tickets:" + projectID
}

func (s *TravelService) onQueueEvent(ev QueueEvent) {
	if ev.Type != EventTaskSynced || ev.Record == nil || ev.Record.Ticket == nil {
		return
	}
	confirmed := model.DisplayRecord{Record: *ev.Record, Status: model.StatusConfirmed}
	s.view.Update(ticketsEntity(ev.Record.Ticket.ProjectID), func(v []model.DisplayRecord) []model.DisplayRecord {
		return upsertRecord(v, confirmed)
	})
}

// Submit adds a ticket with an optional photo at attachmentRef.
func (s *TravelService) Submit(ctx context.Context, payload model.TicketPayload, attachmentRef string) (model.DisplayRecord, error) {
	if err := payload.Validate(); err != nil {
		return model.DisplayRecord{}, apierror.NewAPIError(apierror.ErrInvalidInput, "invalid ticket", err)
	}
	task := model.NewTravelTicketTask(s.deps.OwnerID, payload, attachmentRef, s.deps.now())
	return submitTask(ctx, s.deps, s.view, ticketsEntity(payload.ProjectID), task)
}

func (s *TravelService) Refresh(ctx context.Context, projectID string) (stale bool, err error) {
	entity := ticketsEntity(projectID)
	records, stale, err := s.deps.Feeds.fetchWithFallback(ctx, "feed:"+entity, func(ctx context.Context) ([]model.Record, error) {
		tickets, err := s.deps.Datasource.GetTravelTicketsByProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		out := make([]model.Record, 0, len(tickets))
		for _, t := range tickets {
			out = append(out, t.Record())
		}
		return out, nil
	})
	if err != nil {
		return false, err
	}
	s.view.Reset(entity, model.Confirmed(records...))
	return stale, nil
}

// Feed lists a project's tickets, queued ones included, by departure time.
func (s *TravelService) Feed(projectID string) []model.DisplayRecord {
	in := FeedInput{View: s.view.State(ticketsEntity(projectID))}
	if s.deps.Queue != nil {
		in.Queued = queuedOfKind(s.deps.Queue.Tasks(), model.TaskCreateTravelTicket, func(t model.PendingTask) bool {
			return t.Ticket != nil && t.Ticket.ProjectID == projectID
		})
		in.Syncing = s.deps.Queue.Syncing()
	}
	feed := MergeFeed(in)
	sort.SliceStable(feed, func(i, j int) bool {
		a, b := feed[i].Ticket, feed[j].Ticket
		if a == nil || b == nil {
			return false
		}
		return a.DepartureTime.Before(b.DepartureTime)
	})
	return feed
}

func (s *TravelService) Subscribe(projectID string, fn func([]model.DisplayRecord)) func() {
	return subscribeFeed(s.view, ticketsEntity(projectID), s.deps.Queue, func() []model.DisplayRecord {
		return s.Feed(projectID)
	}, fn)
}

func (s *TravelService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}
