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

func (a Api) SubmitExpense(c *gin.Context) {
	var newExpense model2.SubmitExpense
	if err := c.ShouldBindJSON(&newExpense); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := newExpense.ValidateSubmitExpense(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.fieldsync.Expenses.Submit(c.Request.Context(), newExpense.ToExpensePayload(), newExpense.AttachmentRef)
	if err != nil {
		respondError(c, err)
		return
	}

	// A pending record was accepted for later delivery, not created.
	status := http.StatusCreated
	if resp.Status != model.StatusConfirmed {
		status = http.StatusAccepted
	}
	c.JSON(status, resp)
}

// GetExpenses returns the merged expense feed. ?refresh=true reloads from the
// remote store first; a stale response is flagged when the cached feed was used.
func (a Api) GetExpenses(c *gin.Context) {
	stale := false
	if c.Query("refresh") == "true" {
		var err error
		stale, err = a.fieldsync.Expenses.Refresh(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"stale": stale, "records": a.fieldsync.Expenses.Feed()})
}

func (a Api) UpdateExpenseStatus(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var req model2.UpdateExpenseStatus
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateUpdateExpenseStatus(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.fieldsync.Expenses.UpdateStatus(c.Request.Context(), id, model.ExpenseStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
