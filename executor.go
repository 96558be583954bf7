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
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fieldcrew/fieldsync/database"
	"github.com/fieldcrew/fieldsync/internal/apierror"
	"github.com/fieldcrew/fieldsync/internal/blobstore"
	"github.com/fieldcrew/fieldsync/internal/push"
	"github.com/fieldcrew/fieldsync/model"
)

// Notifier fans a confirmed record out to the owner's other devices.
type Notifier interface {
	Dispatch(ctx context.Context, n push.Notification) error
}

// AttachmentReader loads a local attachment for upload.
type AttachmentReader func(ref string) (blobstore.Attachment, error)

// RemoteExecutor performs pending tasks against the remote data store and blob storage.
type RemoteExecutor struct {
	datasource     database.IDataSource
	blobs          blobstore.Store
	readAttachment AttachmentReader
	notifier       Notifier
}

type ExecutorOption func(*RemoteExecutor)

func WithAttachmentReader(read AttachmentReader) ExecutorOption {
	return func(e *RemoteExecutor) { e.readAttachment = read }
}

// WithNotifier pushes every record the executor confirms.
func WithNotifier(n Notifier) ExecutorOption {
	return func(e *RemoteExecutor) { e.notifier = n }
}

// NewRemoteExecutor builds an executor. blobs may be nil when no task carries an attachment.
func NewRemoteExecutor(datasource database.IDataSource, blobs blobstore.Store, opts ...ExecutorOption) *RemoteExecutor {
	e := &RemoteExecutor{
		datasource:     datasource,
		blobs:          blobs,
		readAttachment: blobstore.ReadAttachment,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute performs task. The task ID travels as the client reference so a repeat
// after an unobserved success returns the row already written instead of a duplicate.
// An attachment (expense receipt or ticket photo) is uploaded first and
// checkpointed on task.UploadedURL, so a retry after a failed insert does not
// upload it again.
func (e *RemoteExecutor) Execute(ctx context.Context, task *model.PendingTask) (*model.Record, error) {
	ctx, span := tracer.Start(ctx, "Executing pending task")
	defer span.End()
	span.SetAttributes(attribute.String("task.id", task.ID), attribute.String("task.kind", string(task.Kind)))

	var (
		record model.Record
		err    error
	)
	switch task.Kind {
	case model.TaskCreateExpense:
		record, err = e.createExpense(ctx, task)
	case model.TaskSendMessage:
		record, err = e.sendMessage(ctx, task)
	case model.TaskCreateTravelTicket:
		record, err = e.createTravelTicket(ctx, task)
	default:
		err = apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("unknown task kind %q", task.Kind), nil)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	notifyConfirmed(ctx, e.notifier, task.OwnerID, record)
	return &record, nil
}

func (e *RemoteExecutor) createExpense(ctx context.Context, task *model.PendingTask) (model.Record, error) {
	if task.Expense == nil {
		return model.Record{}, apierror.NewAPIError(apierror.ErrInvalidInput, "expense task has no payload", nil)
	}

	if err := e.ensureUploaded(ctx, task, ""); err != nil {
		return model.Record{}, errors.Wrap(err, "upload receipt")
	}

	expense := task.Expense.ToExpense(task.OwnerID, task.ID, task.UploadedURL, task.CreatedAt)
	inserted, err := e.datasource.InsertExpense(ctx, expense)
	if err != nil {
		return model.Record{}, errors.Wrap(err, "insert expense")
	}
	return inserted.Record(), nil
}

func (e *RemoteExecutor) createTravelTicket(ctx context.Context, task *model.PendingTask) (model.Record, error) {
	if task.Ticket == nil {
		return model.Record{}, apierror.NewAPIError(apierror.ErrInvalidInput, "ticket task has no payload", nil)
	}

	if err := e.ensureUploaded(ctx, task, ticketKeyPrefix); err != nil {
		return model.Record{}, errors.Wrap(err, "upload ticket photo")
	}

	ticket := task.Ticket.ToTicket(task.OwnerID, task.ID, task.UploadedURL, task.CreatedAt)
	inserted, err := e.datasource.InsertTravelTicket(ctx, ticket)
	if err != nil {
		return model.Record{}, errors.Wrap(err, "insert travel ticket")
	}
	return inserted.Record(), nil
}

// Ticket photos share the bucket with receipts under their own prefix.
const ticketKeyPrefix = "tickets/"

// ensureUploaded uploads the task's attachment once and records its URL on the task.
func (e *RemoteExecutor) ensureUploaded(ctx context.Context, task *model.PendingTask, keyPrefix string) error {
	if task.AttachmentRef == "" || task.UploadedURL != "" {
		return nil
	}
	if e.blobs == nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "blob storage is not configured", nil)
	}
	attachment, err := e.readAttachment(task.AttachmentRef)
	if err != nil {
		return err
	}
	key := keyPrefix + blobstore.ObjectKey(task.OwnerID, task.CreatedAt, attachment.Extension)
	url, err := e.blobs.Upload(ctx, key, attachment.Data, attachment.ContentType)
	if err != nil {
		return err
	}
	task.UploadedURL = url
	return nil
}

func (e *RemoteExecutor) sendMessage(ctx context.Context, task *model.PendingTask) (model.Record, error) {
	if task.Message == nil {
		return model.Record{}, apierror.NewAPIError(apierror.ErrInvalidInput, "message task has no payload", nil)
	}
	inserted, err := e.datasource.InsertMessage(ctx, task.Message.ToMessage(task.OwnerID, task.ID, task.CreatedAt))
	if err != nil {
		return model.Record{}, errors.Wrap(err, "insert message")
	}
	return inserted.Record(), nil
}

// notifyConfirmed is best effort: the record is already stored, so a failed
// push is logged and never fails the write.
func notifyConfirmed(ctx context.Context, n Notifier, ownerID string, record model.Record) {
	if n == nil {
		return
	}
	if err := n.Dispatch(ctx, push.NotificationFor(ownerID, record)); err != nil {
		logrus.WithFields(logrus.Fields{"record_id": record.ID, "kind": record.Kind}).Warnf("failed to dispatch push notification: %v", err)
	}
}
