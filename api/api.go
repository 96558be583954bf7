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
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/fieldcrew/fieldsync"
	"github.com/fieldcrew/fieldsync/api/middleware"
	"github.com/fieldcrew/fieldsync/internal/apierror"
)

type Api struct {
	fieldsync *fieldsync.Fieldsync
	router    *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/expenses", a.SubmitExpense)
	router.GET("/expenses", a.GetExpenses)
	router.PATCH("/expenses/:id/status", a.UpdateExpenseStatus)

	router.POST("/conversations/:id/messages", a.SendMessage)
	router.GET("/conversations/:id/messages", a.GetMessages)

	router.POST("/schedule", a.CreateScheduleItem)
	router.GET("/projects/:id/schedule", a.GetSchedule)

	router.POST("/travel/tickets", a.AddTravelTicket)
	router.GET("/projects/:id/travel/tickets", a.GetTravelTickets)

	router.GET("/queue", a.GetQueue)
	router.POST("/queue/replay", a.ReplayQueue)
	router.GET("/queue/dropped", a.GetDroppedTasks)
	router.POST("/queue/dropped/:id/requeue", a.RequeueTask)

	router.POST("/device/connectivity", a.ReportConnectivity)
	router.POST("/device/lifecycle", a.ReportLifecycle)

	router.GET("/settings/language", a.GetLanguage)
	router.PUT("/settings/language", a.SetLanguage)
	return a.router
}

func NewAPI(f *fieldsync.Fieldsync) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf := f.Config()

	r := gin.Default()
	r.Use(otelgin.Middleware(conf.ProjectName))
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{fieldsync: f, router: r}
}

// respondError writes err with the status its error code maps to.
func respondError(c *gin.Context, err error) {
	c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
}
