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
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldcrew/fieldsync/internal/apierror"
	"github.com/fieldcrew/fieldsync/model"
)

var createdAt = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

var expenseRowColumns = []string{"expense_id", "client_ref", "organization_id", "project_id", "user_id", "amount",
	"currency", "description", "category", "paid_by", "receipt_url", "status", "created_at"}

func newMockDatasource(t *testing.T) (Datasource, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return Datasource{Conn: db}, mock
}

func sampleExpense() model.Expense {
	return model.Expense{
		ClientRef:      "temp-1",
		OrganizationID: "org_1",
		UserID:         "user_1",
		Amount:         decimal.RequireFromString("1280.50"),
		Currency:       "JPY",
		Description:    "Taxi to site",
		Category:       model.CategoryTransport,
		PaidBy:         model.PaidByEmployee,
		ReceiptURL:     "https://cdn.example.com/receipts/user_1/1.jpg",
		CreatedAt:      createdAt,
	}
}

func TestInsertExpense_Success(t *testing.T) {
	ds, mock := newMockDatasource(t)
	e := sampleExpense()

	mock.ExpectExec("INSERT INTO fieldsync.expenses").
		WithArgs(sqlmock.AnyArg(), "temp-1", "org_1", nil, "user_1", sqlmock.AnyArg(), "JPY", "Taxi to site",
			"transport", "employee", e.ReceiptURL, "pending", createdAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	got, err := ds.InsertExpense(context.Background(), e)
	require.NoError(t, err)
	assert.Contains(t, got.ID, "exp_")
	assert.Equal(t, model.ExpenseStatusPending, got.Status)
	assert.True(t, got.Amount.Equal(e.Amount))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertExpense_DuplicateClientRefReturnsExisting(t *testing.T) {
	ds, mock := newMockDatasource(t)
	e := sampleExpense()

	mock.ExpectExec("INSERT INTO fieldsync.expenses").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "expenses_client_ref_key", Message: "duplicate key value"})
	mock.ExpectQuery("SELECT (.+) FROM fieldsync.expenses WHERE client_ref = \\$1").
		WithArgs("temp-1").
		WillReturnRows(sqlmock.NewRows(expenseRowColumns).
			AddRow("exp_existing", "temp-1", "org_1", nil, "user_1", "1280.50", "JPY", "Taxi to site",
				"transport", "employee", e.ReceiptURL, "pending", createdAt))

	got, err := ds.InsertExpense(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, "exp_existing", got.ID)
	assert.Equal(t, "temp-1", got.ClientRef)
	assert.Empty(t, got.ProjectID)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("1280.50")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertExpense_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code apierror.ErrorCode
	}{
		{"check violation", &pq.Error{Code: "23514", Message: "amount must be positive"}, apierror.ErrInvalidInput},
		{"row level security", &pq.Error{Code: "42501", Message: "permission denied"}, apierror.ErrForbidden},
		{"connection failure", &pq.Error{Code: "08006", Message: "connection failure"}, apierror.ErrConnectivity},
		{"other unique violation", &pq.Error{Code: "23505", Constraint: "expenses_expense_id_key"}, apierror.ErrConflict},
		{"unknown", errors.New("boom"), apierror.ErrInternalServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, mock := newMockDatasource(t)
			mock.ExpectExec("INSERT INTO fieldsync.expenses").WillReturnError(tt.err)

			_, err := ds.InsertExpense(context.Background(), sampleExpense())
			assert.Equal(t, tt.code, apierror.CodeOf(err))
		})
	}
}

func TestGetExpensesByUser(t *testing.T) {
	ds, mock := newMockDatasource(t)

	mock.ExpectQuery("SELECT (.+) FROM fieldsync.expenses WHERE user_id = \\$1 ORDER BY created_at DESC LIMIT \\$2").
		WithArgs("user_1", defaultListLimit).
		WillReturnRows(sqlmock.NewRows(expenseRowColumns).
			AddRow("exp_2", nil, "org_1", "prj_1", "user_1", "20.00", "USD", "Lunch", "meals", "company", nil, "approved", createdAt.Add(time.Hour)).
			AddRow("exp_1", "temp-1", "org_1", nil, "user_1", "5.00", "USD", "Bus", "transport", "employee", nil, "pending", createdAt))

	got, err := ds.GetExpensesByUser(context.Background(), "user_1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "exp_2", got[0].ID)
	assert.Equal(t, "prj_1", got[0].ProjectID)
	assert.Equal(t, model.ExpenseStatusApproved, got[0].Status)
	assert.Equal(t, "temp-1", got[1].ClientRef)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateExpenseStatus(t *testing.T) {
	ds, mock := newMockDatasource(t)

	mock.ExpectQuery("UPDATE fieldsync.expenses SET status = \\$1 WHERE expense_id = \\$2 RETURNING").
		WithArgs("approved", "exp_1").
		WillReturnRows(sqlmock.NewRows(expenseRowColumns).
			AddRow("exp_1", nil, "org_1", nil, "user_1", "5.00", "USD", "Bus", "transport", "employee", nil, "approved", createdAt))

	got, err := ds.UpdateExpenseStatus(context.Background(), "exp_1", model.ExpenseStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, model.ExpenseStatusApproved, got.Status)

	mock.ExpectQuery("UPDATE fieldsync.expenses").
		WithArgs("rejected", "exp_missing").
		WillReturnRows(sqlmock.NewRows(expenseRowColumns))

	_, err = ds.UpdateExpenseStatus(context.Background(), "exp_missing", model.ExpenseStatusRejected)
	assert.Equal(t, apierror.ErrNotFound, apierror.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
