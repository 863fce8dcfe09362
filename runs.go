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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GetRun retrieves an auto-reconcile run together with the proposals it recorded.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - runID string: The run_id of the run.
//
// Returns:
// - *model.Run: The run with its proposals attached.
// - error: A NOT_FOUND APIError if the run does not exist, or the read failure.
func (r *Recon) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	ctx, span := otel.Tracer("Recon").Start(ctx, "Fetching run", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	run, err := r.datasource.GetRun(ctx, runID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	proposals, err := r.datasource.GetProposalsByRunID(ctx, runID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	run.Proposals = proposals
	return run, nil
}

func (r *Recon) GetRuns(ctx context.Context, filters *filter.QueryFilterSet, opts *filter.QueryOptions, limit, offset int) ([]*model.Run, error) {
	return r.datasource.GetRuns(ctx, filters, opts, limit, offset)
}
