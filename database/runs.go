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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/blnkfinance/recon/internal/apierror"
	"github.com/blnkfinance/recon/internal/filter"
	"github.com/blnkfinance/recon/model"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
)

const runColumns = `run_id, company_id, status, processed_lines, proposed_lines, skipped_lines,
	deadline_reached, started_at, completed_at`

// RecordRun inserts a new auto-reconcile run.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - run *model.Run: The run to save. Its RunID must be unique.
//
// Returns:
// - error: A CONFLICT error if the run id already exists, or an internal error.
func (d Datasource) RecordRun(ctx context.Context, run *model.Run) error {
	ctx, span := otel.Tracer("Run").Start(ctx, "Saving run to db")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO recon.reconcile_runs(`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.RunID, run.CompanyID, run.Status, run.ProcessedLines, run.ProposedLines, run.SkippedLines,
		run.DeadlineReached, run.StartedAt, run.CompletedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apierror.NewAPIError(apierror.ErrConflict, "run with this ID already exists", err)
		}
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to record run", err)
	}
	return nil
}

// UpdateRun stores the counters, status and completion time of a run.
func (d Datasource) UpdateRun(ctx context.Context, run *model.Run) error {
	ctx, span := otel.Tracer("Run").Start(ctx, "Updating run")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE recon.reconcile_runs
		SET status = $2, processed_lines = $3, proposed_lines = $4, skipped_lines = $5,
			deadline_reached = $6, completed_at = $7
		WHERE run_id = $1`,
		run.RunID, run.Status, run.ProcessedLines, run.ProposedLines, run.SkippedLines,
		run.DeadlineReached, run.CompletedAt,
	)
	if err != nil {
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to update run", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to get rows affected", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("run with ID '%s' not found", run.RunID), nil)
	}
	return nil
}

func scanRun(row rowScanner) (*model.Run, error) {
	run := &model.Run{}
	var completedAt sql.NullTime
	err := row.Scan(
		&run.RunID, &run.CompanyID, &run.Status, &run.ProcessedLines, &run.ProposedLines, &run.SkippedLines,
		&run.DeadlineReached, &run.StartedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return run, nil
}

// GetRun retrieves a run by its run_id.
func (d Datasource) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	ctx, span := otel.Tracer("Run").Start(ctx, "Fetching run from db")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `SELECT `+runColumns+` FROM recon.reconcile_runs WHERE run_id = $1`, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("run with ID '%s' not found", runID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve run", err)
	}
	return run, nil
}

// GetRuns lists runs with filtering, sorting and pagination. Runs are sorted by start time by default.
func (d Datasource) GetRuns(ctx context.Context, filters *filter.QueryFilterSet, opts *filter.QueryOptions, limit, offset int) ([]*model.Run, error) {
	ctx, span := otel.Tracer("Run").Start(ctx, "Listing runs")
	defer span.End()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	result, err := filter.BuildWithOptions(filters, filter.TableRuns, "", 1, opts)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("Invalid filter: %s", err.Error()), err)
	}

	query := `SELECT ` + runColumns + ` FROM recon.reconcile_runs`
	if len(result.Conditions) > 0 {
		query += " WHERE " + strings.Join(result.Conditions, " AND ")
	}
	query += " ORDER BY " + result.OrderBy
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", result.NextArgPos, result.NextArgPos+1)

	args := append(result.Args, limit, offset)
	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve runs", err)
	}
	defer func() { _ = rows.Close() }()

	runs := make([]*model.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan run", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "error occurred while iterating over runs", err)
	}
	return runs, nil
}

// RecordProposal inserts a proposal produced by a run.
func (d Datasource) RecordProposal(ctx context.Context, proposal *model.Proposal) error {
	ctx, span := otel.Tracer("Run").Start(ctx, "Saving proposal to db")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO recon.match_proposals(proposal_id, run_id, statement_line_id, model_id, aml_ids, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		proposal.ProposalID, proposal.RunID, proposal.StatementLineID, proposal.ModelID,
		pq.Array(proposal.MoveLineIDs), proposal.Status, proposal.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to record proposal", err)
	}
	return nil
}

// GetProposalsByRunID returns the proposals of a run in creation order.
func (d Datasource) GetProposalsByRunID(ctx context.Context, runID string) ([]model.Proposal, error) {
	ctx, span := otel.Tracer("Run").Start(ctx, "Fetching proposals by run ID")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT proposal_id, run_id, statement_line_id, model_id, aml_ids, status, created_at
		FROM recon.match_proposals
		WHERE run_id = $1
		ORDER BY created_at ASC, id ASC
	`, runID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve proposals", err)
	}
	defer func() { _ = rows.Close() }()

	proposals := make([]model.Proposal, 0)
	for rows.Next() {
		var proposal model.Proposal
		var amlIDs pq.Int64Array
		err = rows.Scan(&proposal.ProposalID, &proposal.RunID, &proposal.StatementLineID, &proposal.ModelID,
			&amlIDs, &proposal.Status, &proposal.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan proposal", err)
		}
		proposal.MoveLineIDs = amlIDs
		proposals = append(proposals, proposal)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "error occurred while iterating over proposals", err)
	}
	return proposals, nil
}
