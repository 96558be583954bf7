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
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/fieldcrew/fieldsync/internal/connectivity"
	"github.com/fieldcrew/fieldsync/model"
)

type SubmitExpense struct {
	OrganizationID string          `json:"organization_id"`
	ProjectID      string          `json:"project_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Description    string          `json:"description"`
	Category       string          `json:"category"`
	PaidBy         string          `json:"paid_by"`
	AttachmentRef  string          `json:"attachment_ref"`
}

type UpdateExpenseStatus struct {
	Status string `json:"status"`
}

type SendMessage struct {
	Content string `json:"content"`
}

type CreateScheduleItem struct {
	ProjectID    string `json:"project_id"`
	UserID       string `json:"user_id"`
	Date         string `json:"date"`
	Type         string `json:"type"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	LocationName string `json:"location_name"`
	Notes        string `json:"notes"`
}

type AddTravelTicket struct {
	ProjectID        string    `json:"project_id"`
	UserID           string    `json:"user_id"`
	TransportName    string    `json:"transport_name"`
	DepartureStation string    `json:"departure_station"`
	ArrivalStation   string    `json:"arrival_station"`
	SeatNumber       string    `json:"seat_number"`
	DepartureTime    time.Time `json:"departure_time"`
	AttachmentRef    string    `json:"attachment_ref"`
}

type DeviceConnectivity struct {
	Reachable *bool `json:"reachable"`
}

type DeviceLifecycle struct {
	State string `json:"state"`
}

type SetLanguage struct {
	Language string `json:"language"`
}

func (e *SubmitExpense) ValidateSubmitExpense() error {
	return validation.ValidateStruct(e,
		validation.Field(&e.OrganizationID, validation.Required),
		validation.Field(&e.Currency, validation.Required),
		validation.Field(&e.Description, validation.Required),
		validation.Field(&e.Category, validation.Required),
		validation.Field(&e.PaidBy, validation.Required),
	)
}

func (e *SubmitExpense) ToExpensePayload() model.ExpensePayload {
	return model.ExpensePayload{
		OrganizationID: e.OrganizationID,
		ProjectID:      e.ProjectID,
		Amount:         e.Amount,
		Currency:       strings.ToUpper(e.Currency),
		Description:    e.Description,
		Category:       model.ExpenseCategory(e.Category),
		PaidBy:         model.PaidBy(e.PaidBy),
	}
}

func (u *UpdateExpenseStatus) ValidateUpdateExpenseStatus() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.Status, validation.Required, validation.In(string(model.ExpenseStatusApproved), string(model.ExpenseStatusRejected))),
	)
}

func (s *SendMessage) ValidateSendMessage() error {
	if strings.TrimSpace(s.Content) == "" {
		return errors.New("content cannot be blank")
	}
	return nil
}

func (s *CreateScheduleItem) ValidateCreateScheduleItem() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.ProjectID, validation.Required),
		validation.Field(&s.Date, validation.Required),
		validation.Field(&s.Type, validation.Required),
	)
}

func (s *CreateScheduleItem) ToScheduleItem() model.ScheduleItem {
	return model.ScheduleItem{
		ProjectID:    s.ProjectID,
		UserID:       s.UserID,
		Date:         s.Date,
		Type:         model.ScheduleType(s.Type),
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		LocationName: s.LocationName,
		Notes:        s.Notes,
	}
}

func (t *AddTravelTicket) ValidateAddTravelTicket() error {
	return validation.ValidateStruct(t,
		validation.Field(&t.ProjectID, validation.Required),
		validation.Field(&t.TransportName, validation.Required),
		validation.Field(&t.DepartureTime, validation.Required),
	)
}

func (t *AddTravelTicket) ToTicketPayload() model.TicketPayload {
	return model.TicketPayload{
		ProjectID:        t.ProjectID,
		UserID:           t.UserID,
		TransportName:    t.TransportName,
		DepartureStation: t.DepartureStation,
		ArrivalStation:   t.ArrivalStation,
		SeatNumber:       t.SeatNumber,
		DepartureTime:    t.DepartureTime,
	}
}

func (d *DeviceConnectivity) ValidateDeviceConnectivity() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.Reachable, validation.NotNil),
	)
}

func (d *DeviceLifecycle) ValidateDeviceLifecycle() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.State, validation.Required, validation.In(string(connectivity.StateForeground), string(connectivity.StateBackground))),
	)
}

func (s *SetLanguage) ValidateSetLanguage() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Language, validation.Required),
	)
}
