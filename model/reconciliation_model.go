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

package model

import "time"

type RunStatus string

const (
	RunStatusStarted   RunStatus = "started"
	RunStatusCompleted RunStatus = "completed"
	RunStatusTimedOut  RunStatus = "timed_out"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the bookkeeping record of one auto-reconcile pass over a company's statement lines.
type Run struct {
	ID              int64      `json:"-"`
	RunID           string     `json:"run_id"`
	CompanyID       int64      `json:"company_id"`
	Status          RunStatus  `json:"status"`
	ProcessedLines  int        `json:"processed_lines"`
	ProposedLines   int        `json:"proposed_lines"`
	SkippedLines    int        `json:"skipped_lines"`
	DeadlineReached bool       `json:"deadline_reached"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	Proposals       []Proposal `json:"proposals,omitempty"`
}

// Proposal is an auto-reconcilable outcome recorded by a run and published for posting.
type Proposal struct {
	ProposalID      string        `json:"proposal_id"`
	RunID           string        `json:"run_id"`
	StatementLineID int64         `json:"statement_line_id"`
	ModelID         int64         `json:"model_id"`
	MoveLineIDs     []int64       `json:"aml_ids"`
	Status          OutcomeStatus `json:"status,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// NewProposal turns an outcome for statementLineID into a proposal of runID.
func NewProposal(runID string, statementLineID int64, outcome *Outcome, createdAt time.Time) Proposal {
	return Proposal{
		ProposalID:      GenerateUUIDWithSuffix("prop"),
		RunID:           runID,
		StatementLineID: statementLineID,
		ModelID:         outcome.ModelID,
		MoveLineIDs:     outcome.MoveLineIDs,
		Status:          outcome.Status,
		CreatedAt:       createdAt,
	}
}
