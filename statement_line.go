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
package recon

import (
	"context"

	"github.com/blnkfinance/recon/internal/filter"
	"github.com/blnkfinance/recon/model"
)

func (r *Recon) GetStatementLine(ctx context.Context, id int64) (*model.StatementLine, error) {
	return r.datasource.GetStatementLine(ctx, id)
}

// ListStatementLines returns statement lines matching filters, validated against the statement line columns.
func (r *Recon) ListStatementLines(ctx context.Context, filters *filter.QueryFilterSet, opts *filter.QueryOptions, limit, offset int) ([]*model.StatementLine, error) {
	return r.datasource.ListStatementLines(ctx, filters, opts, limit, offset)
}

// GetReconcileModels returns every active rule of a company, writeoff_button rules included.
func (r *Recon) GetReconcileModels(ctx context.Context, companyID int64) ([]*model.ReconcileModel, error) {
	return r.datasource.GetReconcileModels(ctx, companyID)
}

// InvalidateReconcileModels drops the cached rule set of a company so the next match reloads it.
func (r *Recon) InvalidateReconcileModels(ctx context.Context, companyID int64) error {
	return r.datasource.InvalidateReconcileModels(ctx, companyID)
}
