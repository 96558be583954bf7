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

// ChatService sends and receives conversation messages.
type ChatService struct {
	deps        ServiceDeps
	view        *Coordinator[[]model.DisplayRecord]
	unsubscribe func()
}

func NewChatService(deps ServiceDeps) *ChatService {
	s := &ChatService{deps: deps, view: newView()}
	if deps.Queue != nil {
		s.unsubscribe = deps.Queue.OnEvent(s.onQueueEvent)
	}
	return s
}

func conversationEntity(conversationID string) string {
	return "conversation:" + conversationID
}

func (s *ChatService) onQueueEvent(ev QueueEvent) {
	if ev.Type != EventTaskSynced || ev.Record == nil || ev.Record.Message == nil {
		return
	}
	s.Receive(ev.Record.Message.ConversationID, *ev.Record.Message)
}

// Send posts text to a conversation. It shows up immediately with a temporary ID
// and is queued when the device is offline.
func (s *ChatService) Send(ctx context.Context, conversationID, text string) (model.DisplayRecord, error) {
	payload := model.MessagePayload{ConversationID: conversationID, Content: text}
	if err := payload.Validate(); err != nil {
		return model.DisplayRecord{}, apierror.NewAPIError(apierror.ErrInvalidInput, "message cannot be empty", err)
	}
	task := model.NewMessageTask(s.deps.OwnerID, payload, s.deps.now())
	return submitTask(ctx, s.deps, s.view, conversationEntity(conversationID), task)
}

// Receive applies a message delivered by the realtime channel. It replaces the
// temporary entry the message was sent under, if this device sent it.
func (s *ChatService) Receive(conversationID string, m model.Message) {
	confirmed := model.DisplayRecord{Record: m.Record(), Status: model.StatusConfirmed}
	s.view.Update(conversationEntity(conversationID), func(v []model.DisplayRecord) []model.DisplayRecord {
		return upsertRecord(v, confirmed)
	})
}

// Refresh reloads the latest messages of a conversation, falling back to the
// cached snapshot when the remote store is unreachable.
func (s *ChatService) Refresh(ctx context.Context, conversationID string) (stale bool, err error) {
	entity := conversationEntity(conversationID)
	records, stale, err := s.deps.Feeds.fetchWithFallback(ctx, "feed:"+entity, func(ctx context.Context) ([]model.Record, error) {
		messages, err := s.deps.Datasource.GetMessagesByConversation(ctx, conversationID, 0)
		if err != nil {
			return nil, err
		}
		out := make([]model.Record, 0, len(messages))
		for _, m := range messages {
			out = append(out, m.Record())
		}
		return out, nil
	})
	if err != nil {
		return false, err
	}
	s.view.Reset(entity, model.Confirmed(records...))
	return stale, nil
}

// Feed returns a conversation oldest first, the order a chat is read in.
func (s *ChatService) Feed(conversationID string) []model.DisplayRecord {
	in := FeedInput{View: s.view.State(conversationEntity(conversationID))}
	if s.deps.Queue != nil {
		in.Queued = queuedOfKind(s.deps.Queue.Tasks(), model.TaskSendMessage, func(t model.PendingTask) bool {
			return t.Message != nil && t.Message.ConversationID == conversationID
		})
		in.Syncing = s.deps.Queue.Syncing()
	}
	feed := MergeFeed(in)
	sort.SliceStable(feed, func(i, j int) bool { return feed[i].CreatedAt.Before(feed[j].CreatedAt) })
	return feed
}

// Subscribe calls fn with the conversation's Feed after every change to it,
// including messages queued or replayed while offline.
func (s *ChatService) Subscribe(conversationID string, fn func([]model.DisplayRecord)) func() {
	return subscribeFeed(s.view, conversationEntity(conversationID), s.deps.Queue, func() []model.DisplayRecord {
		return s.Feed(conversationID)
	}, fn)
}

func (s *ChatService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}
