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

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/fieldcrew/fieldsync/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Expense methods

func (m *MockDataSource) InsertExpense(ctx context.Context, e model.Expense) (model.Expense, error) {
	args := m.Called(ctx, e)
	if fn, ok := args.Get(0).(func(context.Context, model.Expense) model.Expense); ok {
		return fn(ctx, e), args.Error(1)
	}
	return args.Get(0).(model.Expense), args.Error(1)
}

func (m *MockDataSource) GetExpenseByClientRef(ctx context.Context, clientRef string) (*model.Expense, error) {
	args := m.Called(ctx, clientRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Expense), args.Error(1)
}

func (m *MockDataSource) GetExpensesByUser(ctx context.Context, userID string, limit int) ([]model.Expense, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Expense), args.Error(1)
}

func (m *MockDataSource) UpdateExpenseStatus(ctx context.Context, id string, status model.ExpenseStatus) (*model.Expense, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Expense), args.Error(1)
}

// Message methods

func (m *MockDataSource) InsertMessage(ctx context.Context, msg model.Message) (model.Message, error) {
	args := m.Called(ctx, msg)
	if fn, ok := args.Get(0).(func(context.Context, model.Message) model.Message); ok {
		return fn(ctx, msg), args.Error(1)
	}
	return args.Get(0).(model.Message), args.Error(1)
}

func (m *MockDataSource) GetMessageByClientRef(ctx context.Context, clientRef string) (*model.Message, error) {
	args := m.Called(ctx, clientRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockDataSource) GetMessagesByConversation(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	args := m.Called(ctx, conversationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

// Schedule methods

func (m *MockDataSource) InsertScheduleItem(ctx context.Context, item model.ScheduleItem) (model.ScheduleItem, error) {
	args := m.Called(ctx, item)
	if fn, ok := args.Get(0).(func(context.Context, model.ScheduleItem) model.ScheduleItem); ok {
		return fn(ctx, item), args.Error(1)
	}
	return args.Get(0).(model.ScheduleItem), args.Error(1)
}

func (m *MockDataSource) GetScheduleByProject(ctx context.Context, projectID string) ([]model.ScheduleItem, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ScheduleItem), args.Error(1)
}

// Travel methods

func (m *MockDataSource) InsertTravelTicket(ctx context.Context, t model.TravelTicket) (model.TravelTicket, error) {
	args := m.Called(ctx, t)
	if fn, ok := args.Get(0).(func(context.Context, model.TravelTicket) model.TravelTicket); ok {
		return fn(ctx, t), args.Error(1)
	}
	return args.Get(0).(model.TravelTicket), args.Error(1)
}

func (m *MockDataSource) GetTravelTicketByClientRef(ctx context.Context, clientRef string) (*model.TravelTicket, error) {
	args := m.Called(ctx, clientRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TravelTicket), args.Error(1)
}

func (m *MockDataSource) GetTravelTicketsByProject(ctx context.Context, projectID string) ([]model.TravelTicket, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TravelTicket), args.Error(1)
}
