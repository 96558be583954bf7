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

	"github.com/fieldcrew/fieldsync/internal/apierror"
	"github.com/fieldcrew/fieldsync/model"
)

const messageColumns = `message_id, client_ref, conversation_id, sender_id, content_original,
		content_translated, original_language, created_at`

func scanMessage(row rowScanner) (model.Message, error) {
	var m model.Message
	var clientRef, translated, language sql.NullString
	err := row.Scan(&m.ID, &clientRef, &m.ConversationID, &m.SenderID, &m.ContentOriginal, &translated, &language, &m.CreatedAt)
	if err != nil {
		return model.Message{}, err
	}
	m.ClientRef = clientRef.String
	m.ContentTranslated = translated.String
	m.OriginalLanguage = language.String
	return m, nil
}

func (d Datasource) InsertMessage(ctx context.Context, m model.Message) (model.Message, error) {
	m.ID = model.GenerateUUIDWithSuffix("msg")
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO fieldsync.messages (message_id, client_ref, conversation_id, sender_id, content_original,
			content_translated, original_language, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.ID, nullString(m.ClientRef), m.ConversationID, m.SenderID, m.ContentOriginal,
		nullString(m.ContentTranslated), nullString(m.OriginalLanguage), m.CreatedAt)
	if err != nil {
		if m.ClientRef != "" && isClientRefViolation(err) {
			existing, getErr := d.GetMessageByClientRef(ctx, m.ClientRef)
			if getErr != nil {
				return model.Message{}, getErr
			}
			return *existing, nil
		}
		return model.Message{}, wrapError(err, "failed to send message")
	}
	return m, nil
}

func (d Datasource) GetMessageByClientRef(ctx context.Context, clientRef string) (*model.Message, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM fieldsync.messages
		WHERE client_ref = $1
	`, clientRef)

	m, err := scanMessage(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Message not found", err)
		}
		return nil, wrapError(err, "failed to retrieve message")
	}
	return &m, nil
}

// GetMessagesByConversation returns the latest limit messages, oldest first.
func (d Datasource) GetMessagesByConversation(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT * FROM (
			SELECT `+messageColumns+`
			FROM fieldsync.messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) latest
		ORDER BY created_at ASC
	`, conversationID, limit)
	if err != nil {
		return nil, wrapError(err, "failed to retrieve messages")
	}
	defer rows.Close()

	messages := []model.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, wrapError(err, "failed to scan message data")
		}
		messages = append(messages, m)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapError(err, "error occurred while iterating over messages")
	}
	return messages, nil
}
