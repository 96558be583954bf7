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

// Package push tells the owner's other devices that a record was confirmed.
// Dispatch is asynchronous through an asynq queue so a slow push service never
// holds up a queue replay.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/fieldcrew/fieldsync/model"
)

const TaskRecordConfirmed = "push:record_confirmed"

// Notification is the payload of one push message.
type Notification struct {
	OwnerID   string           `json:"owner_id"`
	Kind      model.RecordKind `json:"kind"`
	RecordID  string           `json:"record_id"`
	ClientRef string           `json:"client_ref,omitempty"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
}

// NotificationFor describes a confirmed record.
func NotificationFor(ownerID string, r model.Record) Notification {
	n := Notification{OwnerID: ownerID, Kind: r.Kind, RecordID: r.ID, ClientRef: r.ClientRef}
	switch r.Kind {
	case model.RecordExpense:
		n.Title = "Expense submitted"
		if r.Expense != nil {
			n.Body = fmt.Sprintf("%s %s: %s", r.Expense.Amount.StringFixed(2), r.Expense.Currency, r.Expense.Description)
		}
	case model.RecordMessage:
		n.Title = "New message"
		if r.Message != nil {
			n.Body = r.Message.ContentOriginal
		}
	case model.RecordSchedule:
		n.Title = "Schedule updated"
		if r.Schedule != nil {
			n.Body = fmt.Sprintf("%s %s", r.Schedule.Date, r.Schedule.Type)
		}
	case model.RecordTicket:
		n.Title = "Travel ticket added"
		if r.Ticket != nil {
			n.Body = r.Ticket.TransportName
			if r.Ticket.DepartureStation != "" && r.Ticket.ArrivalStation != "" {
				n.Body += fmt.Sprintf(": %s to %s", r.Ticket.DepartureStation, r.Ticket.ArrivalStation)
			}
		}
	}
	return n
}

type Dispatcher struct {
	client *asynq.Client
	queue  string
}

func NewDispatcher(opt asynq.RedisClientOpt, queue string) *Dispatcher {
	return &Dispatcher{client: asynq.NewClient(opt), queue: queue}
}

// Dispatch enqueues n. The task ID is derived from the record so a record
// confirmed twice, e.g. by an idempotent replay, is only pushed once.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskRecordConfirmed, payload)
	info, err := d.client.EnqueueContext(ctx, task,
		asynq.Queue(d.queue),
		asynq.TaskID(fmt.Sprintf("%s:%s", n.Kind, n.RecordID)),
		asynq.MaxRetry(5),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return err
	}

	logrus.Infof(" [*] Push queued %s %s", info.ID, info.Queue)
	return nil
}

func (d *Dispatcher) Close() error {
	return d.client.Close()
}
