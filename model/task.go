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

import (
	"errors"
	"fmt"
	"time"
)

// TaskKind selects which payload a PendingTask carries and how it is replayed.
type TaskKind string

const (
	TaskCreateExpense      TaskKind = "expense.create"
	TaskSendMessage        TaskKind = "message.send"
	TaskCreateTravelTicket TaskKind = "travel_ticket.create"
)

// PendingTask is a write the device could not deliver and must replay later.
// Exactly one payload field is set and it must match Kind.
//
// Attempts, LastError, NextAttemptAt and UploadedURL are replay bookkeeping;
// they change between attempts while the payload itself never does.
type PendingTask struct {
	ID            string          `json:"id"`
	Kind          TaskKind        `json:"kind"`
	OwnerID       string          `json:"owner_id"`
	Expense       *ExpensePayload `json:"expense,omitempty"`
	Message       *MessagePayload `json:"message,omitempty"`
	Ticket        *TicketPayload  `json:"ticket,omitempty"`
	AttachmentRef string          `json:"attachment_ref,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`

	Attempts      int        `json:"attempts,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	UploadedURL   string     `json:"uploaded_url,omitempty"`
}

// NewExpenseTask wraps an expense submission, with an optional local attachment, in a pending task.
func NewExpenseTask(ownerID string, payload ExpensePayload, attachmentRef string, createdAt time.Time) PendingTask {
	return PendingTask{
		ID:            NewTemporaryID(),
		Kind:          TaskCreateExpense,
		OwnerID:       ownerID,
		Expense:       &payload,
		AttachmentRef: attachmentRef,
		CreatedAt:     createdAt,
	}
}

func NewMessageTask(ownerID string, payload MessagePayload, createdAt time.Time) PendingTask {
	return PendingTask{
		ID:        NewTemporaryID(),
		Kind:      TaskSendMessage,
		OwnerID:   ownerID,
		Message:   &payload,
		CreatedAt: createdAt,
	}
}

// NewTravelTicketTask wraps a ticket, with an optional photo of it, in a pending task.
func NewTravelTicketTask(ownerID string, payload TicketPayload, attachmentRef string, createdAt time.Time) PendingTask {
	return PendingTask{
		ID:            NewTemporaryID(),
		Kind:          TaskCreateTravelTicket,
		OwnerID:       ownerID,
		Ticket:        &payload,
		AttachmentRef: attachmentRef,
		CreatedAt:     createdAt,
	}
}

func (t *PendingTask) payloads() int {
	n := 0
	if t.Expense != nil {
		n++
	}
	if t.Message != nil {
		n++
	}
	if t.Ticket != nil {
		n++
	}
	return n
}

// Validate checks that the task is well formed: a known kind with exactly the matching payload.
func (t *PendingTask) Validate() error {
	if t.ID == "" {
		return errors.New("task id is required")
	}
	if t.CreatedAt.IsZero() {
		return errors.New("task created_at is required")
	}
	switch t.Kind {
	case TaskCreateExpense:
		if t.Expense == nil || t.payloads() != 1 {
			return fmt.Errorf("task %s: %s requires exactly an expense payload", t.ID, t.Kind)
		}
		return t.Expense.Validate()
	case TaskCreateTravelTicket:
		if t.Ticket == nil || t.payloads() != 1 {
			return fmt.Errorf("task %s: %s requires exactly a ticket payload", t.ID, t.Kind)
		}
		return t.Ticket.Validate()
	case TaskSendMessage:
		if t.Message == nil || t.payloads() != 1 {
			return fmt.Errorf("task %s: %s requires exactly a message payload", t.ID, t.Kind)
		}
		if t.AttachmentRef != "" {
			return fmt.Errorf("task %s: %s does not take an attachment", t.ID, t.Kind)
		}
		return t.Message.Validate()
	default:
		return fmt.Errorf("task %s: unknown kind %q", t.ID, t.Kind)
	}
}

// Due reports whether the retry policy allows the task to be attempted at now.
func (t *PendingTask) Due(now time.Time) bool {
	return t.NextAttemptAt == nil || !now.Before(*t.NextAttemptAt)
}

// Clone returns a deep copy so bookkeeping changes on the copy never leak into shared state.
func (t PendingTask) Clone() PendingTask {
	c := t
	if t.Expense != nil {
		e := *t.Expense
		c.Expense = &e
	}
	if t.Message != nil {
		m := *t.Message
		c.Message = &m
	}
	if t.Ticket != nil {
		p := *t.Ticket
		c.Ticket = &p
	}
	if t.LastAttemptAt != nil {
		v := *t.LastAttemptAt
		c.LastAttemptAt = &v
	}
	if t.NextAttemptAt != nil {
		v := *t.NextAttemptAt
		c.NextAttemptAt = &v
	}
	return c
}

// DroppedTask is a task evicted from the queue after exhausting its retry policy.
type DroppedTask struct {
	Task      PendingTask `json:"task"`
	Reason    string      `json:"reason"`
	DroppedAt time.Time   `json:"dropped_at"`
}
