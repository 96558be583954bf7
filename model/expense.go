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
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

type ExpenseCategory string

const (
	CategoryTransport     ExpenseCategory = "transport"
	CategoryAccommodation ExpenseCategory = "accommodation"
	CategoryFuel          ExpenseCategory = "fuel"
	CategoryParking       ExpenseCategory = "parking"
	CategoryMeals         ExpenseCategory = "meals"
	CategoryOther         ExpenseCategory = "other"
)

type PaidBy string

const (
	PaidByEmployee PaidBy = "employee"
	PaidByCompany  PaidBy = "company"
)

type ExpenseStatus string

const (
	ExpenseStatusPending  ExpenseStatus = "pending"
	ExpenseStatusApproved ExpenseStatus = "approved"
	ExpenseStatusRejected ExpenseStatus = "rejected"
)

// Expense is a confirmed expense row as stored by the remote data store.
type Expense struct {
	ID             string          `json:"id"`
	ClientRef      string          `json:"client_ref,omitempty"`
	OrganizationID string          `json:"organization_id"`
	ProjectID      string          `json:"project_id,omitempty"`
	UserID         string          `json:"user_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Description    string          `json:"description"`
	Category       ExpenseCategory `json:"category"`
	PaidBy         PaidBy          `json:"paid_by"`
	ReceiptURL     string          `json:"receipt_url,omitempty"`
	Status         ExpenseStatus   `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ExpensePayload is what the user fills in on the expense form.
type ExpensePayload struct {
	OrganizationID string          `json:"organization_id"`
	ProjectID      string          `json:"project_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Description    string          `json:"description"`
	Category       ExpenseCategory `json:"category"`
	PaidBy         PaidBy          `json:"paid_by"`
}

func positiveAmount(value interface{}) error {
	amount, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("invalid type for amount")
	}
	if !amount.IsPositive() {
		return errors.New("must be greater than zero")
	}
	return nil
}

func (p *ExpensePayload) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.OrganizationID, validation.Required),
		validation.Field(&p.Amount, validation.By(positiveAmount)),
		validation.Field(&p.Currency, validation.Required, validation.Length(3, 3)),
		validation.Field(&p.Description, validation.Required, validation.Length(1, 500)),
		validation.Field(&p.Category, validation.Required, validation.In(
			CategoryTransport, CategoryAccommodation, CategoryFuel, CategoryParking, CategoryMeals, CategoryOther,
		)),
		validation.Field(&p.PaidBy, validation.Required, validation.In(PaidByEmployee, PaidByCompany)),
	)
}

// ToExpense builds the row inserted on behalf of userID. New expenses always start pending.
func (p ExpensePayload) ToExpense(userID, clientRef, receiptURL string, createdAt time.Time) Expense {
	return Expense{
		ClientRef:      clientRef,
		OrganizationID: p.OrganizationID,
		ProjectID:      p.ProjectID,
		UserID:         userID,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Description:    p.Description,
		Category:       p.Category,
		PaidBy:         p.PaidBy,
		ReceiptURL:     receiptURL,
		Status:         ExpenseStatusPending,
		CreatedAt:      createdAt,
	}
}

// ValidateExpenseDecision checks the status an approver may move an expense to.
func ValidateExpenseDecision(status ExpenseStatus) error {
	return validation.Validate(status, validation.Required, validation.In(ExpenseStatusApproved, ExpenseStatusRejected))
}
