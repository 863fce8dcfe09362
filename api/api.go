/*
Copyright 2024 Blnk Finance Authors.

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
	"github.com/blnkfinance/recon"
	"github.com/blnkfinance/recon/api/middleware"
	"github.com/blnkfinance/recon/config"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Api struct {
	recon  *recon.Recon
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.GET("/statement-lines", a.GetStatementLines)
	router.POST("/statement-lines/filter", a.FilterStatementLines)
	router.GET("/statement-lines/:id", a.GetStatementLine)
	router.POST("/statement-lines/:id/match", a.MatchStatementLine)

	router.GET("/companies/:id/reconcile-models", a.GetReconcileModels)
	router.DELETE("/companies/:id/reconcile-models/cache", a.InvalidateReconcileModels)

	router.POST("/auto-reconcile", a.StartAutoReconcile)
	router.GET("/auto-reconcile/runs", a.GetRuns)
	router.POST("/auto-reconcile/runs/filter", a.FilterRuns)
	router.GET("/auto-reconcile/runs/:id", a.GetRun)
	router.GET("/auto-reconcile/queues", a.GetQueueStats)
	return a.router
}

func NewAPI(r *recon.Recon) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	router := gin.Default()
	router.Use(otelgin.Middleware(conf.ProjectName))
	router.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		router.Use(middleware.SecretKeyAuthMiddleware())
	}

	router.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{recon: r, router: router}
}
