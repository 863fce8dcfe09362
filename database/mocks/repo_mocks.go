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
package mocks

import (
	"context"
	"time"

	"github.com/blnkfinance/recon/database"
	"github.com/blnkfinance/recon/internal/filter"
	"github.com/blnkfinance/recon/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface.
// The statement-line helpers are pure, so the real ones are embedded instead of mocked.
type MockDataSource struct {
	database.StatementLines
	mock.Mock
}

// Statement line methods

func (m *MockDataSource) GetStatementLine(ctx context.Context, id int64) (*model.StatementLine, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StatementLine), args.Error(1)
}

func (m *MockDataSource) GetStatementLinesToReconcile(ctx context.Context, companyID int64, limit int) ([]*model.StatementLine, error) {
	args := m.Called(ctx, companyID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.StatementLine), args.Error(1)
}

func (m *MockDataSource) ListStatementLines(ctx context.Context, filters *filter.QueryFilterSet, opts *filter.QueryOptions, limit, offset int) ([]*model.StatementLine, error) {
	args := m.Called(ctx, filters, opts, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.StatementLine), args.Error(1)
}

func (m *MockDataSource) GetCompaniesToReconcile(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockDataSource) MarkStatementLinesChecked(ctx context.Context, ids []int64, checkedAt time.Time) error {
	args := m.Called(ctx, ids, checkedAt)
	return args.Error(0)
}

// Move line methods

func (m *MockDataSource) SelectMoveLineIDs(ctx context.Context, query *filter.Query) ([]int64, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockDataSource) GetMoveLines(ctx context.Context, ids []int64) ([]*model.MoveLine, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.MoveLine), args.Error(1)
}

// Rule methods

func (m *MockDataSource) GetReconcileModels(ctx context.Context, companyID int64) ([]*model.ReconcileModel, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ReconcileModel), args.Error(1)
}

func (m *MockDataSource) InvalidateReconcileModels(ctx context.Context, companyID int64) error {
	args := m.Called(ctx, companyID)
	return args.Error(0)
}

// Partner methods

func (m *MockDataSource) GetPartner(ctx context.Context, id int64) (*model.Partner, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Partner), args.Error(1)
}

// Run methods

func (m *MockDataSource) RecordRun(ctx context.Context, run *model.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockDataSource) UpdateRun(ctx context.Context, run *model.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockDataSource) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *MockDataSource) GetRuns(ctx context.Context, filters *filter.QueryFilterSet, opts *filter.QueryOptions, limit, offset int) ([]*model.Run, error) {
	args := m.Called(ctx, filters, opts, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Run), args.Error(1)
}

func (m *MockDataSource) RecordProposal(ctx context.Context, proposal *model.Proposal) error {
	args := m.Called(ctx, proposal)
	return args.Error(0)
}

func (m *MockDataSource) GetProposalsByRunID(ctx context.Context, runID string) ([]model.Proposal, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Proposal), args.Error(1)
}

var _ database.IDataSource = (*MockDataSource)(nil)
