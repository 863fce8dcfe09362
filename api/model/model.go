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

import (
	"errors"
	"time"

	"github.com/blnkfinance/recon/model"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// AutoReconcileRequest asks for an auto-reconcile run of one company. By default the run is
// queued for the workers; Wait runs it inline and answers with the finished run.
type AutoReconcileRequest struct {
	CompanyID int64 `json:"company_id"`
	DelaySec  int   `json:"delay_sec"`
	Wait      bool  `json:"wait"`
}

// AutoReconcileQueued acknowledges a run handed to the workers.
type AutoReconcileQueued struct {
	CompanyID   int64     `json:"company_id"`
	Status      string    `json:"status"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// MatchResponse carries the outcome of matching a single statement line.
type MatchResponse struct {
	StatementLine *model.StatementLine `json:"statement_line"`
	Matched       bool                 `json:"matched"`
	Outcome       *model.Outcome       `json:"outcome,omitempty"`
}

func waitOrDelayValidation(r *AutoReconcileRequest) validation.RuleFunc {
	return func(value interface{}) error {
		if r.Wait && r.DelaySec > 0 {
			return errors.New("delay_sec cannot be combined with wait")
		}
		return nil
	}
}

func (r *AutoReconcileRequest) ValidateAutoReconcileRequest() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.CompanyID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.DelaySec, validation.Min(0), validation.By(waitOrDelayValidation(r))),
	)
}

func (r AutoReconcileRequest) Delay() time.Duration {
	return time.Duration(r.DelaySec) * time.Second
}

func NewMatchResponse(stLine *model.StatementLine, outcome *model.Outcome) MatchResponse {
	return MatchResponse{
		StatementLine: stLine,
		Matched:       outcome != nil,
		Outcome:       outcome,
	}
}
