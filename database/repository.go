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

package database

import (
	"context"

	"github.com/fieldcrew/fieldsync/model"
)

// IDataSource defines the interface for remote data store operations, grouping related functionalities.
type IDataSource interface {
	expense  // Interface for expense-related operations
	message  // Interface for chat message operations
	schedule // Interface for project schedule operations
	travel   // Interface for travel ticket operations
}

// expense defines methods for handling expenses.
type expense interface {
	// InsertExpense is idempotent on client_ref: a repeat returns the stored row.
	InsertExpense(ctx context.Context, e model.Expense) (model.Expense, error)
	GetExpenseByClientRef(ctx context.Context, clientRef string) (*model.Expense, error)
	// GetExpensesByUser returns newest first.
	GetExpensesByUser(ctx context.Context, userID string, limit int) ([]model.Expense, error)
	UpdateExpenseStatus(ctx context.Context, id string, status model.ExpenseStatus) (*model.Expense, error)
}

// message defines methods for handling chat messages.
type message interface {
	InsertMessage(ctx context.Context, m model.Message) (model.Message, error)
	GetMessageByClientRef(ctx context.Context, clientRef string) (*model.Message, error)
	GetMessagesByConversation(ctx context.Context, conversationID string, limit int) ([]model.Message, error)
}

// schedule defines methods for handling project schedules.
type schedule interface {
	InsertScheduleItem(ctx context.Context, item model.ScheduleItem) (model.ScheduleItem, error)
	GetScheduleByProject(ctx context.Context, projectID string) ([]model.ScheduleItem, error)
}

// travel defines methods for handling travel tickets.
type travel interface {
	// InsertTravelTicket is idempotent on client_ref: a repeat returns the stored row.
	InsertTravelTicket(ctx context.Context, t model.TravelTicket) (model.TravelTicket, error)
	GetTravelTicketByClientRef(ctx context.Context, clientRef string) (*model.TravelTicket, error)
	GetTravelTicketsByProject(ctx context.Context, projectID string) ([]model.TravelTicket, error)
}
