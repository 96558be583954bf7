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
	"github.com/fieldcrew/fieldsync/internal/connectivity"
	"github.com/fieldcrew/fieldsync/internal/settings"
)

// ReportConnectivity lets the host platform push reachability changes.
func (a Api) ReportConnectivity(c *gin.Context) {
	var req model2.DeviceConnectivity
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateDeviceConnectivity(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	a.fieldsync.Network().Report(*req.Reachable)
	c.JSON(http.StatusOK, gin.H{"reachable": a.fieldsync.Network().IsReachable()})
}

func (a Api) ReportLifecycle(c *gin.Context) {
	var req model2.DeviceLifecycle
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateDeviceLifecycle(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	a.fieldsync.Lifecycle().Report(connectivity.AppState(req.State))
	c.JSON(http.StatusOK, gin.H{"state": a.fieldsync.Lifecycle().State()})
}

func (a Api) GetLanguage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"language": a.fieldsync.Settings().Language()})
}

func (a Api) SetLanguage(c *gin.Context) {
	var req model2.SetLanguage
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateSetLanguage(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := a.fieldsync.Settings().SetLanguage(c.Request.Context(), settings.Language(req.Language)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"language": a.fieldsync.Settings().Language()})
}
