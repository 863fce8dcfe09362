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
	"net/http"
	"time"

	model2 "github.com/blnkfinance/recon/api/model"
	"github.com/blnkfinance/recon/internal/apierror"
	"github.com/blnkfinance/recon/internal/filter"

	"github.com/gin-gonic/gin"
)

// StartAutoReconcile queues an auto-reconcile run for a company, or runs it inline when the
// request sets wait.
func (a Api) StartAutoReconcile(c *gin.Context) {
	var req model2.AutoReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := req.ValidateAutoReconcileRequest(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if req.Wait {
		run, err := a.recon.AutoReconcile(c.Request.Context(), req.CompanyID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, run)
		return
	}

	queue := a.recon.Queue()
	if queue == nil {
		respondWithError(c, apierror.NewAPIError(apierror.ErrInternalServer, "task queue is not configured", nil))
		return
	}

	if err := queue.EnqueueAutoReconcile(c.Request.Context(), req.CompanyID, req.Delay()); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, model2.AutoReconcileQueued{
		CompanyID:   req.CompanyID,
		Status:      "queued",
		ScheduledAt: time.Now().Add(req.Delay()).UTC(),
	})
}

// GetRun returns a run together with the proposals it recorded.
func (a Api) GetRun(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	run, err := a.recon.GetRun(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, run)
}

// GetRuns lists runs, filtered by query parameters such as company_id_eq=1 or status_eq=timed_out.
func (a Api) GetRuns(c *gin.Context) {
	filters, errs := ParseFiltersFromContext(c, nil)
	if len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
		return
	}
	limit, offset := ParsePagination(c)

	runs, err := a.recon.GetRuns(c.Request.Context(), filters, ParseQueryOptions(c), limit, offset)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, FilterResponse{Data: runs})
}

func (a Api) FilterRuns(c *gin.Context) {
	filters, opts, limit, offset, err := ParseFiltersFromBody(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := filter.Validate(filters, filter.TableRuns); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runs, err := a.recon.GetRuns(c.Request.Context(), filters, opts, limit, offset)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, FilterResponse{Data: runs})
}

// GetQueueStats reports the pending, active and retrying task counts of the worker queues.
func (a Api) GetQueueStats(c *gin.Context) {
	queue := a.recon.Queue()
	if queue == nil {
		respondWithError(c, apierror.NewAPIError(apierror.ErrInternalServer, "task queue is not configured", nil))
		return
	}

	stats, err := queue.Stats()
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
