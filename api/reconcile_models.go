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

	"github.com/gin-gonic/gin"
)

func (a Api) GetReconcileModels(c *gin.Context) {
	companyID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	rules, err := a.recon.GetReconcileModels(c.Request.Context(), companyID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, rules)
}

// InvalidateReconcileModels clears the cached rules of a company after they were edited upstream.
func (a Api) InvalidateReconcileModels(c *gin.Context) {
	companyID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := a.recon.InvalidateReconcileModels(c.Request.Context(), companyID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "reconcile model cache cleared"})
}
