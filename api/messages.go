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

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	model2 "github.com/fieldcrew/fieldsync/api/model"
	"github.com/fieldcrew/fieldsync/model"
)

func (a Api) SendMessage(c *gin.Context) {
	conversationID := c.Param("id")

	var req model2.SendMessage
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateSendMessage(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.fieldsync.Chat.Send(c.Request.Context(), conversationID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Status != model.StatusConfirmed {
		status = http.StatusAccepted
	}
	c.JSON(status, resp)
}

func (a Api) GetMessages(c *gin.Context) {
	conversationID := c.Param("id")

	stale := false
	if c.Query("refresh") == "true" {
		var err error
		stale, err = a.fieldsync.Chat.Refresh(c.Request.Context(), conversationID)
		if err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"stale": stale, "records": a.fieldsync.Chat.Feed(conversationID)})
}
