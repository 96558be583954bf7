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
)

func (a Api) CreateScheduleItem(c *gin.Context) {
	var req model2.CreateScheduleItem
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateCreateScheduleItem(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.fieldsync.Schedule.Create(c.Request.Context(), req.ToScheduleItem())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetSchedule(c *gin.Context) {
	projectID := c.Param("id")

	stale := false
	if c.Query("refresh") == "true" {
		var err error
		stale, err = a.fieldsync.Schedule.Refresh(c.Request.Context(), projectID)
		if err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"stale": stale, "records": a.fieldsync.Schedule.Feed(projectID)})
}
