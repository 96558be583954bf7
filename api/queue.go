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
)

// GetQueue lists the tasks still owed to the remote store.
func (a Api) GetQueue(c *gin.Context) {
	q := a.fieldsync.Queue()
	c.JSON(http.StatusOK, gin.H{"tasks": q.Tasks(), "syncing": q.Syncing()})
}

// ReplayQueue runs a replay pass now instead of waiting for a trigger.
func (a Api) ReplayQueue(c *gin.Context) {
	resp, err := a.fieldsync.Queue().Replay(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) GetDroppedTasks(c *gin.Context) {
	resp, err := a.fieldsync.Queue().Dropped(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) RequeueTask(c *gin.Context) {
	id := c.Param("id")
	if err := a.fieldsync.Queue().Requeue(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task requeued", "id": id})
}
