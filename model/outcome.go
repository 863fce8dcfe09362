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

type OutcomeStatus string

// OutcomeStatusWriteOff marks an outcome that needs a write-off line to balance the statement line.
// An outcome without status reconciles the statement line with the selected AMLs alone.
const OutcomeStatusWriteOff OutcomeStatus = "write_off"

// Outcome is the proposal produced for one statement line.
type Outcome struct {
	MoveLineIDs   []int64         `json:"aml_ids"`
	Model         *ReconcileModel `json:"-"`
	ModelID       int64           `json:"model_id"`
	ModelName     string          `json:"model_name"`
	Status        OutcomeStatus   `json:"status,omitempty"`
	AutoReconcile bool            `json:"auto_reconcile"`
}

// NewOutcome builds an outcome attributed to rule.
func NewOutcome(rule *ReconcileModel, amlIDs []int64) *Outcome {
	return &Outcome{
		MoveLineIDs: amlIDs,
		Model:       rule,
		ModelID:     rule.ID,
		ModelName:   rule.Name,
	}
}

// IsWriteOff reports whether the outcome asks for a write-off.
func (o *Outcome) IsWriteOff() bool {
	return o.Status == OutcomeStatusWriteOff
}

// Postable reports whether the outcome can be handed to a poster: a write-off outcome needs
// a rule with write-off template lines.
func (o *Outcome) Postable() bool {
	if !o.IsWriteOff() {
		return true
	}
	return o.Model != nil && o.Model.HasWriteOffLines()
}
