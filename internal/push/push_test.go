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

package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/jarcoal/httpmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldcrew/fieldsync/config"
	"github.com/fieldcrew/fieldsync/model"
)

const relayURL = "https://push.example.com/send"

func newTask(t *testing.T, n Notification) *asynq.Task {
	payload, err := json.Marshal(n)
	require.NoError(t, err)
	return asynq.NewTask(TaskRecordConfirmed, payload)
}

func TestNotificationFor(t *testing.T) {
	e := model.Expense{ID: "exp_1", ClientRef: "temp-1", Amount: decimal.RequireFromString("12.5"), Currency: "USD", Description: "Parking"}
	n := NotificationFor("user_1", e.Record())
	assert.Equal(t, "Expense submitted", n.Title)
	assert.Equal(t, "12.50 USD: Parking", n.Body)
	assert.Equal(t, "temp-1", n.ClientRef)

	m := NotificationFor("user_1", model.Message{ID: "msg_1", ContentOriginal: "Arrived"}.Record())
	assert.Equal(t, "New message", m.Title)
	assert.Equal(t, "Arrived", m.Body)

	tk := NotificationFor("user_1", model.TravelTicket{ID: "tkt_1", TransportName: "Nozomi 123", DepartureStation: "Tokyo", ArrivalStation: "Shin-Osaka"}.Record())
	assert.Equal(t, "Travel ticket added", tk.Title)
	assert.Equal(t, "Nozomi 123: Tokyo to Shin-Osaka", tk.Body)
	assert.Equal(t, model.RecordTicket, tk.Kind)
}

func TestHandler_ProcessTask(t *testing.T) {
	h := NewHandler(config.PushConfig{Url: relayURL, AccessToken: "secret"})
	httpmock.ActivateNonDefault(h.client)
	defer httpmock.DeactivateAndReset()

	var got message
	httpmock.RegisterResponder(http.MethodPost, relayURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		return httpmock.NewStringResponse(200, `{"ok":true}`), nil
	})

	err := h.ProcessTask(context.Background(), newTask(t, Notification{OwnerID: "user_1", Kind: model.RecordMessage, RecordID: "msg_1", Title: "New message", Body: "Hi"}))
	require.NoError(t, err)
	assert.Equal(t, "user_1", got.UserID)
	assert.Equal(t, "msg_1", got.Data["record_id"])
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestHandler_ProcessTask_Failures(t *testing.T) {
	h := NewHandler(config.PushConfig{Url: relayURL})
	httpmock.ActivateNonDefault(h.client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, relayURL, httpmock.NewStringResponder(400, "bad token"))
	err := h.ProcessTask(context.Background(), newTask(t, Notification{RecordID: "x"}))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	httpmock.RegisterResponder(http.MethodPost, relayURL, httpmock.NewStringResponder(502, ""))
	err = h.ProcessTask(context.Background(), newTask(t, Notification{RecordID: "x"}))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))

	err = h.ProcessTask(context.Background(), asynq.NewTask(TaskRecordConfirmed, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandler_NoURLConfigured(t *testing.T) {
	h := NewHandler(config.PushConfig{})
	assert.NoError(t, h.ProcessTask(context.Background(), newTask(t, Notification{RecordID: "x"})))
}
