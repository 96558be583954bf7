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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/fieldcrew/fieldsync/config"
)

// message is the body posted to the push relay.
type message struct {
	UserID string            `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// Handler processes push tasks on the workers side.
type Handler struct {
	url    string
	token  string
	client *http.Client
}

func NewHandler(cnf config.PushConfig) *Handler {
	return &Handler{url: cnf.Url, token: cnf.AccessToken, client: &http.Client{Timeout: 10 * time.Second}}
}

// ProcessTask posts the notification. Rejections by the relay are not retried.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("fieldsync.push.worker").Start(ctx, "Process push notification")
	defer span.End()

	var n Notification
	if err := json.Unmarshal(t.Payload(), &n); err != nil {
		logrus.Error(err)
		return fmt.Errorf("invalid push payload: %v: %w", err, asynq.SkipRetry)
	}
	if h.url == "" {
		logrus.Warn("push url not configured, dropping notification")
		return nil
	}

	body, err := json.Marshal(message{
		UserID: n.OwnerID,
		Title:  n.Title,
		Body:   n.Body,
		Data:   map[string]string{"kind": string(n.Kind), "record_id": n.RecordID},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logrus.Error(err)
		}
	}(resp.Body)

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("push relay returned %d", resp.StatusCode)
	case resp.StatusCode >= 300:
		return fmt.Errorf("push relay rejected notification with %d: %w", resp.StatusCode, asynq.SkipRetry)
	}

	logrus.Infof(" [*] Push sent for %s %s", n.Kind, n.RecordID)
	return nil
}
