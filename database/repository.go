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
	"time"

	"github.com/blnkfinance/recon/internal/filter"
	"github.com/blnkfinance/recon/model"
	"github.com/shopspring/decimal"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	StatementLineReader // Statement lines and their pure helpers
	AmlReader           // Open journal items
	ruleStore           // Reconcile models
	partnerStore        // Partners
	runStore            // Auto-reconcile bookkeeping
}

// StatementLineReader exposes statement lines together with the helpers the matching engine
// derives from them. The helpers never touch the database.
type StatementLineReader interface {
	AmlsMatchingDomain(stLine *model.StatementLine) *filter.QueryFilterSet                                  // Base open-item filter for a statement line
	PrepareMoveLineDefaultVals(stLine *model.StatementLine) []model.MoveLineVals                            // Amounts of the journal entry backing the line
	PrepareCounterpartAmountsUsingStLineRate(stLine *model.StatementLine, currency *model.Currency, balance, amountCurrency decimal.Decimal) model.CounterpartAmounts // AML residual at the line's rate
	StLineStringsForMatching(stLine *model.StatementLine, locations []model.TextLocation) []string           // Text fields used by rules
	GetStatementLine(ctx context.Context, id int64) (*model.StatementLine, error)                           // Retrieves a statement line by ID
	GetStatementLinesToReconcile(ctx context.Context, companyID int64, limit int) ([]*model.StatementLine, error) // Unreconciled lines, oldest first
	ListStatementLines(ctx context.Context, filters *filter.QueryFilterSet, opts *filter.QueryOptions, limit, offset int) ([]*model.StatementLine, error) // Filtered listing
	GetCompaniesToReconcile(ctx context.Context) ([]int64, error)                                           // Companies holding unreconciled lines
	MarkStatementLinesChecked(ctx context.Context, ids []int64, checkedAt time.Time) error                 // Records an auto-reconcile check
}

// AmlReader executes candidate queries and loads the matched journal items.
type AmlReader interface {
	SelectMoveLineIDs(ctx context.Context, query *filter.Query) ([]int64, error) // Runs a builder-produced query, preserving row order
	GetMoveLines(ctx context.Context, ids []int64) ([]*model.MoveLine, error)    // Loads AMLs in the requested order
}

type ruleStore interface {
	GetReconcileModels(ctx context.Context, companyID int64) ([]*model.ReconcileModel, error) // Active rules of a company
	InvalidateReconcileModels(ctx context.Context, companyID int64) error                     // Drops the cached rule set
}

type partnerStore interface {
	GetPartner(ctx context.Context, id int64) (*model.Partner, error) // Retrieves a partner with its categories
}

type runStore interface {
	RecordRun(ctx context.Context, run *model.Run) error                                   // Inserts a run
	UpdateRun(ctx context.Context, run *model.Run) error                                   // Stores the counters and final status
	GetRun(ctx context.Context, runID string) (*model.Run, error)                          // Retrieves a run by its run_id
	GetRuns(ctx context.Context, filters *filter.QueryFilterSet, opts *filter.QueryOptions, limit, offset int) ([]*model.Run, error) // Filtered listing
	RecordProposal(ctx context.Context, proposal *model.Proposal) error                    // Inserts a proposal
	GetProposalsByRunID(ctx context.Context, runID string) ([]model.Proposal, error)       // Proposals of a run in creation order
}
