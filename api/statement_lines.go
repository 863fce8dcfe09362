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

	model2 "github.com/blnkfinance/recon/api/model"
	"github.com/blnkfinance/recon/internal/filter"

	"github.com/gin-gonic/gin"
)

// GetStatementLines lists statement lines, filtered by query parameters such as
// journal_id_eq=10 or amount_gte=100.
func (a Api) GetStatementLines(c *gin.Context) {
	filters, errs := ParseFiltersFromContext(c, nil)
	if len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
		return
	}
	limit, offset := ParsePagination(c)

	lines, err := a.recon.ListStatementLines(c.Request.Context(), filters, ParseQueryOptions(c), limit, offset)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, FilterResponse{Data: lines})
}

// FilterStatementLines lists statement lines using filters passed in the JSON body.
func (a Api) FilterStatementLines(c *gin.Context) {
	filters, opts, limit, offset, err := ParseFiltersFromBody(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := filter.Validate(filters, filter.TableStatementLines); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lines, err := a.recon.ListStatementLines(c.Request.Context(), filters, opts, limit, offset)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, FilterResponse{Data: lines})
}

func (a Api) GetStatementLine(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	stLine, err := a.recon.GetStatementLine(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stLine)
}

// MatchStatementLine runs the company's reconcile models against a statement line and returns
// the proposal, if any. Nothing is written.
func (a Api) MatchStatementLine(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	stLine, outcome, err := a.recon.MatchStatementLine(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, model2.NewMatchResponse(stLine, outcome))
}
