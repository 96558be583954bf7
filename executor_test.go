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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fieldcrew/fieldsync/database/mocks"
	"github.com/fieldcrew/fieldsync/internal/apierror"
	"github.com/fieldcrew/fieldsync/internal/blobstore"
	"github.com/fieldcrew/fieldsync/internal/push"
	"github.com/fieldcrew/fieldsync/model"
)

type fakeBlobs struct {
	mu      sync.Mutex
	uploads []string
	err     error
}

func (f *fakeBlobs) Upload(_ context.Context, path string, _ []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, path)
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.example.com/receipts/" + path, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []push.Notification
	err  error
}

func (f *fakeNotifier) Dispatch(_ context.Context, n push.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return f.err
}

func (f *fakeNotifier) Sent() []push.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]push.Notification(nil), f.sent...)
}

func pngAttachment(string) (blobstore.Attachment, error) {
	return blobstore.Attachment{Data: []byte("\x89PNG\r\n\x1a\n"), ContentType: "image/png", Extension: ".png"}, nil
}

func unreachable(msg string) error {
	return apierror.NewAPIError(apierror.ErrConnectivity, msg, nil)
}

// storedExpense mimics the row the data source returns for e.
func storedExpense(e model.Expense) model.Expense {
	e.ID = "exp_" + e.ClientRef
	return e
}

func TestRemoteExecutor_CreatesExpenseWithReceipt(t *testing.T) {
	ds := new(mocks.MockDataSource)
	blobs := &fakeBlobs{}
	notifier := &fakeNotifier{}
	exec := NewRemoteExecutor(ds, blobs, WithAttachmentReader(pngAttachment), WithNotifier(notifier))

	task := expenseTaskAt(baseTime)
	task.AttachmentRef = "file:///tmp/receipt.png"
	wantKey := "user_1/1714554000000.png"

	ds.On("InsertExpense", mock.Anything, mock.MatchedBy(func(e model.Expense) bool {
		return e.ClientRef == task.ID && e.ReceiptURL == "https://cdn.example.com/receipts/"+wantKey && e.Status == model.ExpenseStatusPending
	})).Return(func(_ context.Context, e model.Expense) model.Expense { return storedExpense(e) }, nil)

	record, err := exec.Execute(context.Background(), &task)
	require.NoError(t, err)

	assert.Equal(t, "exp_"+task.ID, record.ID)
	assert.Equal(t, task.ID, record.ClientRef)
	assert.Equal(t, []string{wantKey}, blobs.uploads)
	assert.Equal(t, "https://cdn.example.com/receipts/"+wantKey, task.UploadedURL)
	require.Len(t, notifier.Sent(), 1)
	assert.Equal(t, record.ID, notifier.Sent()[0].RecordID)
	ds.AssertExpectations(t)
}

func TestRemoteExecutor_RetryAfterFailedInsertSkipsUpload(t *testing.T) {
	ds := new(mocks.MockDataSource)
	blobs := &fakeBlobs{}
	exec := NewRemoteExecutor(ds, blobs, WithAttachmentReader(pngAttachment))

	task := expenseTaskAt(baseTime)
	task.AttachmentRef = "/tmp/receipt.png"

	ds.On("InsertExpense", mock.Anything, mock.Anything).Return(model.Expense{}, unreachable("connection refused")).Once()
	_, err := exec.Execute(context.Background(), &task)
	require.Error(t, err)
	assert.True(t, apierror.IsConnectivity(err))
	require.NotEmpty(t, task.UploadedURL)

	ds.On("InsertExpense", mock.Anything, mock.Anything).Return(func(_ context.Context, e model.Expense) model.Expense { return storedExpense(e) }, nil).Once()
	record, err := exec.Execute(context.Background(), &task)
	require.NoError(t, err)
	assert.Equal(t, task.UploadedURL, record.Expense.ReceiptURL)
	assert.Len(t, blobs.uploads, 1)
}

func TestRemoteExecutor_FailedUploadDoesNotInsert(t *testing.T) {
	ds := new(mocks.MockDataSource)
	exec := NewRemoteExecutor(ds, &fakeBlobs{err: unreachable("upload timed out")}, WithAttachmentReader(pngAttachment))

	task := expenseTaskAt(baseTime)
	task.AttachmentRef = "/tmp/receipt.png"

	_, err := exec.Execute(context.Background(), &task)
	assert.True(t, apierror.IsConnectivity(err))
	assert.Empty(t, task.UploadedURL)
	ds.AssertNotCalled(t, "InsertExpense", mock.Anything, mock.Anything)
}

func TestRemoteExecutor_ReceiptWithoutStorage(t *testing.T) {
	exec := NewRemoteExecutor(new(mocks.MockDataSource), nil, WithAttachmentReader(pngAttachment))

	task := expenseTaskAt(baseTime)
	task.AttachmentRef = "/tmp/receipt.png"

	_, err := exec.Execute(context.Background(), &task)
	assert.Equal(t, apierror.ErrInternalServer, apierror.CodeOf(err))
}

func TestRemoteExecutor_SendsMessage(t *testing.T) {
	ds := new(mocks.MockDataSource)
	notifier := &fakeNotifier{err: errors.New("redis: connection pool timeout")}
	exec := NewRemoteExecutor(ds, nil, WithNotifier(notifier))

	task := messageTaskAt(baseTime)
	ds.On("InsertMessage", mock.Anything, mock.MatchedBy(func(m model.Message) bool {
		return m.ClientRef == task.ID && m.ConversationID == "conv_1" && m.SenderID == "user_1"
	})).Return(func(_ context.Context, m model.Message) model.Message {
		m.ID = "msg_1"
		return m
	}, nil)

	record, err := exec.Execute(context.Background(), &task)
	require.NoError(t, err, "a failed push must not fail the write")
	assert.Equal(t, "msg_1", record.ID)
	assert.Equal(t, model.RecordMessage, record.Kind)
	assert.Len(t, notifier.Sent(), 1)
}

func ticketTaskAt(createdAt time.Time) model.PendingTask {
	return model.NewTravelTicketTask("user_1", model.TicketPayload{
		ProjectID:        "proj_1",
		TransportName:    "Shinkansen Nozomi 123",
		DepartureStation: "Tokyo",
		ArrivalStation:   "Shin-Osaka",
		SeatNumber:       "12A",
		DepartureTime:    createdAt.Add(24 * time.Hour),
	}, "", createdAt)
}

func storedTicket(t model.TravelTicket) model.TravelTicket {
	t.ID = "tkt_" + t.ClientRef
	return t
}

func TestRemoteExecutor_CreatesTravelTicketWithPhoto(t *testing.T) {
	ds := new(mocks.MockDataSource)
	blobs := &fakeBlobs{}
	exec := NewRemoteExecutor(ds, blobs, WithAttachmentReader(pngAttachment))

	task := ticketTaskAt(baseTime)
	task.AttachmentRef = "/tmp/ticket.png"
	wantKey := "tickets/user_1/1714554000000.png"

	ds.On("InsertTravelTicket", mock.Anything, mock.Anything).Return(model.TravelTicket{}, unreachable("connection refused")).Once()
	_, err := exec.Execute(context.Background(), &task)
	require.Error(t, err)
	assert.Equal(t, "https://cdn.example.com/receipts/"+wantKey, task.UploadedURL)

	ds.On("InsertTravelTicket", mock.Anything, mock.MatchedBy(func(tk model.TravelTicket) bool {
		return tk.ClientRef == task.ID && tk.CreatedBy == "user_1" && tk.ProjectID == "proj_1" && tk.TicketFileURL == task.UploadedURL
	})).Return(func(_ context.Context, tk model.TravelTicket) model.TravelTicket { return storedTicket(tk) }, nil).Once()

	record, err := exec.Execute(context.Background(), &task)
	require.NoError(t, err)
	assert.Equal(t, model.RecordTicket, record.Kind)
	assert.Equal(t, "tkt_"+task.ID, record.ID)
	assert.Equal(t, []string{wantKey}, blobs.uploads, "the photo is uploaded once across retries")
	ds.AssertExpectations(t)
}

func TestRemoteExecutor_TicketWithoutPhoto(t *testing.T) {
	ds := new(mocks.MockDataSource)
	exec := NewRemoteExecutor(ds, nil)

	task := ticketTaskAt(baseTime)
	ds.On("InsertTravelTicket", mock.Anything, mock.MatchedBy(func(tk model.TravelTicket) bool { return tk.TicketFileURL == "" })).
		Return(func(_ context.Context, tk model.TravelTicket) model.TravelTicket { return storedTicket(tk) }, nil)

	record, err := exec.Execute(context.Background(), &task)
	require.NoError(t, err)
	require.NotNil(t, record.Ticket)
	assert.Equal(t, "Shinkansen Nozomi 123", record.Ticket.TransportName)
}

func TestRemoteExecutor_UnknownKind(t *testing.T) {
	exec := NewRemoteExecutor(new(mocks.MockDataSource), nil)
	task := model.PendingTask{ID: "temp-1", Kind: "profile.update", CreatedAt: baseTime}

	_, err := exec.Execute(context.Background(), &task)
	assert.Equal(t, apierror.ErrInvalidInput, apierror.CodeOf(err))
}
