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
	"database/sql"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fieldcrew/fieldsync/internal/apierror"
	"github.com/fieldcrew/fieldsync/model"
)

const defaultListLimit = 100

const expenseColumns = `expense_id, client_ref, organization_id, project_id, user_id, amount, currency,
		description, category, paid_by, receipt_url, status, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func scanExpense(row rowScanner) (model.Expense, error) {
	var e model.Expense
	var clientRef, projectID, receiptURL sql.NullString
	err := row.Scan(&e.ID, &clientRef, &e.OrganizationID, &projectID, &e.UserID, &e.Amount, &e.Currency,
		&e.Description, &e.Category, &e.PaidBy, &receiptURL, &e.Status, &e.CreatedAt)
	if err != nil {
		return model.Expense{}, err
	}
	e.ClientRef = clientRef.String
	e.ProjectID = projectID.String
	e.ReceiptURL = receiptURL.String
	return e, nil
}

// InsertExpense stores e under a new expense ID. When a row with the same
// client_ref already exists, that row is returned instead, so replaying a task
// whose first insert reached the store never creates a duplicate.
func (d Datasource) InsertExpense(ctx context.Context, e model.Expense) (model.Expense, error) {
	e.ID = model.GenerateUUIDWithSuffix("exp")
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = model.ExpenseStatusPending
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO fieldsync.expenses (expense_id, client_ref, organization_id, project_id, user_id, amount,
			currency, description, category, paid_by, receipt_url, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, e.ID, nullString(e.ClientRef), e.OrganizationID, nullString(e.ProjectID), e.UserID, e.Amount,
		e.Currency, e.Description, e.Category, e.PaidBy, nullString(e.ReceiptURL), e.Status, e.CreatedAt)
	if err != nil {
		if e.ClientRef != "" && isClientRefViolation(err) {
			logrus.WithField("client_ref", e.ClientRef).Info("expense already stored, returning existing row")
			existing, getErr := d.GetExpenseByClientRef(ctx, e.ClientRef)
			if getErr != nil {
				return model.Expense{}, getErr
			}
			return *existing, nil
		}
		return model.Expense{}, wrapError(err, "failed to create expense")
	}

	return e, nil
}

func (d Datasource) GetExpenseByClientRef(ctx context.Context, clientRef string) (*model.Expense, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+expenseColumns+`
		FROM fieldsync.expenses
		WHERE client_ref = $1
	`, clientRef)

	e, err := scanExpense(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Expense not found", err)
		}
		return nil, wrapError(err, "failed to retrieve expense")
	}
	return &e, nil
}

func (d Datasource) GetExpensesByUser(ctx context.Context, userID string, limit int) ([]model.Expense, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+expenseColumns+`
		FROM fieldsync.expenses
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, wrapError(err, "failed to retrieve expenses")
	}
	defer rows.Close()

	expenses := []model.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, wrapError(err, "failed to scan expense data")
		}
		expenses = append(expenses, e)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapError(err, "error occurred while iterating over expenses")
	}
	return expenses, nil
}

func (d Datasource) UpdateExpenseStatus(ctx context.Context, id string, status model.ExpenseStatus) (*model.Expense, error) {
	row := d.Conn.QueryRowContext(ctx, `
		UPDATE fieldsync.expenses
		SET status = $1
		WHERE expense_id = $2
		RETURNING `+expenseColumns, status, id)

	e, err := scanExpense(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Expense not found", err)
		}
		return nil, wrapError(err, "failed to update expense status")
	}
	return &e, nil
}
