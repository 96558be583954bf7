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

package model

import "time"

type RecordKind string

const (
	RecordExpense  RecordKind = "expense"
	RecordMessage  RecordKind = "message"
	RecordSchedule RecordKind = "schedule"
	RecordTicket   RecordKind = "travel_ticket"
)

// SyncStatus tells the UI how far a record has travelled towards the remote store.
type SyncStatus string

const (
	StatusPending   SyncStatus = "pending"
	StatusSyncing   SyncStatus = "syncing"
	StatusConfirmed SyncStatus = "confirmed"
	StatusFailed    SyncStatus = "failed"
)

// Record is a feed entry. ClientRef carries the temporary ID the record was
// created under, which is how queued and optimistic entries are reconciled.
type Record struct {
	ID        string        `json:"id"`
	ClientRef string        `json:"client_ref,omitempty"`
	Kind      RecordKind    `json:"kind"`
	CreatedAt time.Time     `json:"created_at"`
	Expense   *Expense      `json:"expense,omitempty"`
	Message   *Message      `json:"message,omitempty"`
	Schedule  *ScheduleItem `json:"schedule,omitempty"`
	Ticket    *TravelTicket `json:"ticket,omitempty"`
}

type DisplayRecord struct {
	Record
	Status SyncStatus `json:"sync_status"`
	Error  string     `json:"sync_error,omitempty"`
}

func (e Expense) Record() Record {
	return Record{ID: e.ID, ClientRef: e.ClientRef, Kind: RecordExpense, CreatedAt: e.CreatedAt, Expense: &e}
}

func (m Message) Record() Record {
	return Record{ID: m.ID, ClientRef: m.ClientRef, Kind: RecordMessage, CreatedAt: m.CreatedAt, Message: &m}
}

func (s ScheduleItem) Record() Record {
	return Record{ID: s.ID, ClientRef: s.ClientRef, Kind: RecordSchedule, CreatedAt: s.CreatedAt, Schedule: &s}
}

func (t TravelTicket) Record() Record {
	return Record{ID: t.ID, ClientRef: t.ClientRef, Kind: RecordTicket, CreatedAt: t.CreatedAt, Ticket: &t}
}

// Record renders a queued task as the feed entry it will become once replayed.
func (t PendingTask) Record() Record {
	r := Record{ID: t.ID, ClientRef: t.ID, CreatedAt: t.CreatedAt}
	switch t.Kind {
	case TaskCreateExpense:
		r.Kind = RecordExpense
		if t.Expense != nil {
			e := t.Expense.ToExpense(t.OwnerID, t.ID, t.UploadedURL, t.CreatedAt)
			e.ID = t.ID
			r.Expense = &e
		}
	case TaskSendMessage:
		r.Kind = RecordMessage
		if t.Message != nil {
			m := t.Message.ToMessage(t.OwnerID, t.ID, t.CreatedAt)
			m.ID = t.ID
			r.Message = &m
		}
	case TaskCreateTravelTicket:
		r.Kind = RecordTicket
		if t.Ticket != nil {
			tk := t.Ticket.ToTicket(t.OwnerID, t.ID, t.UploadedURL, t.CreatedAt)
			tk.ID = t.ID
			r.Ticket = &tk
		}
	}
	return r
}

// Confirmed wraps records read from the remote store.
func Confirmed(records ...Record) []DisplayRecord {
	out := make([]DisplayRecord, 0, len(records))
	for _, r := range records {
		out = append(out, DisplayRecord{Record: r, Status: StatusConfirmed})
	}
	return out
}
