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
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Message struct {
	ID                string    `json:"id"`
	ClientRef         string    `json:"client_ref,omitempty"`
	ConversationID    string    `json:"conversation_id"`
	SenderID          string    `json:"sender_id"`
	ContentOriginal   string    `json:"content_original"`
	ContentTranslated string    `json:"content_translated,omitempty"`
	OriginalLanguage  string    `json:"original_language,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type MessagePayload struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	Language       string `json:"language,omitempty"`
}

func (p *MessagePayload) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.ConversationID, validation.Required),
		validation.Field(&p.Content, validation.By(func(value interface{}) error {
			s, _ := value.(string)
			return validation.Validate(strings.TrimSpace(s), validation.Required)
		})),
	)
}

func (p MessagePayload) ToMessage(senderID, clientRef string, createdAt time.Time) Message {
	return Message{
		ClientRef:        clientRef,
		ConversationID:   p.ConversationID,
		SenderID:         senderID,
		ContentOriginal:  strings.TrimSpace(p.Content),
		OriginalLanguage: p.Language,
		CreatedAt:        createdAt,
	}
}
