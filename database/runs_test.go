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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/blnkfinance/recon/internal/apierror"
	"github.com/blnkfinance/recon/internal/filter"
	"github.com/blnkfinance/recon/model"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runRowColumns = []string{"run_id", "company_id", "status", "processed_lines", "proposed_lines", "skipped_lines",
	"deadline_reached", "started_at", "completed_at"}

func TestRecordRun_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	run := &model.Run{RunID: "run_1", CompanyID: 1, Status: model.RunStatusStarted, StartedAt: time.Now()}

	mock.ExpectExec("INSERT INTO recon.reconcile_runs").
		WithArgs(run.RunID, run.CompanyID, run.Status, 0, 0, 0, false, run.StartedAt, run.CompletedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assert.NoError(t, ds.RecordRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRun_Conflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	run := &model.Run{RunID: "run_1", CompanyID: 1, Status: model.RunStatusStarted, StartedAt: time.Now()}

	mock.ExpectExec("INSERT INTO recon.reconcile_runs").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	err = ds.RecordRun(context.Background(), run)
	code, ok := apierror.CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, code)
}

func TestUpdateRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	completed := time.Now()
	run := &model.Run{RunID: "run_1", Status: model.RunStatusCompleted, ProcessedLines: 4, ProposedLines: 2, SkippedLines: 2, CompletedAt: &completed}

	mock.ExpectExec("UPDATE recon.reconcile_runs").
		WithArgs("run_1", model.RunStatusCompleted, 4, 2, 2, false, &completed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, ds.UpdateRun(context.Background(), run))

	mock.ExpectExec("UPDATE recon.reconcile_runs").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = ds.UpdateRun(context.Background(), run)
	code, _ := apierror.CodeOf(err)
	assert.Equal(t, apierror.ErrNotFound, code)
}

func TestGetRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM recon.reconcile_runs WHERE run_id = \\$1").
		WithArgs("run_1").
		WillReturnRows(sqlmock.NewRows(runRowColumns).
			AddRow("run_1", int64(1), "timed_out", 10, 3, 7, true, started, nil))

	run, err := ds.GetRun(context.Background(), "run_1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusTimedOut, run.Status)
	assert.True(t, run.DeadlineReached)
	assert.Nil(t, run.CompletedAt)

	mock.ExpectQuery("FROM recon.reconcile_runs WHERE run_id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = ds.GetRun(context.Background(), "missing")
	var apiErr apierror.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestGetRuns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	filters := &filter.QueryFilterSet{Filters: []filter.QueryFilter{
		{Field: "company_id", Operator: filter.OpEqual, Value: int64(1)},
	}}

	mock.ExpectQuery("WHERE company_id = \\$1 ORDER BY started_at DESC LIMIT \\$2 OFFSET \\$3").
		WithArgs(int64(1), 10, 0).
		WillReturnRows(sqlmock.NewRows(runRowColumns))

	runs, err := ds.GetRuns(context.Background(), filters, nil, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAndGetProposals(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	createdAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	proposal := &model.Proposal{ProposalID: "prop_1", RunID: "run_1", StatementLineID: 10, ModelID: 1,
		MoveLineIDs: []int64{5, 6}, Status: model.OutcomeStatusWriteOff, CreatedAt: createdAt}

	mock.ExpectExec("INSERT INTO recon.match_proposals").
		WithArgs("prop_1", "run_1", int64(10), int64(1), sqlmock.AnyArg(), model.OutcomeStatusWriteOff, createdAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, ds.RecordProposal(context.Background(), proposal))

	mock.ExpectQuery("FROM recon.match_proposals").
		WithArgs("run_1").
		WillReturnRows(sqlmock.NewRows([]string{"proposal_id", "run_id", "statement_line_id", "model_id", "aml_ids", "status", "created_at"}).
			AddRow("prop_1", "run_1", int64(10), int64(1), "{5,6}", "write_off", createdAt))

	proposals, err := ds.GetProposalsByRunID(context.Background(), "run_1")
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, []int64{5, 6}, proposals[0].MoveLineIDs)
	assert.Equal(t, model.OutcomeStatusWriteOff, proposals[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
