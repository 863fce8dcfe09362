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
	"fmt"

	"github.com/blnkfinance/recon/internal/apierror"
	"github.com/blnkfinance/recon/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Match evaluates the active reconcile models of the statement line's company and returns the
// first outcome a model produces, or nil when none applies.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - stLine *model.StatementLine: The statement line to match.
// - partner *model.Partner: The counterparty of the line, or nil when unknown.
//
// Returns:
// - *model.Outcome: The proposal, or nil.
// - error: If a model is invalid or a read fails.
func (r *Recon) Match(ctx context.Context, stLine *model.StatementLine, partner *model.Partner) (*model.Outcome, error) {
	rules, err := r.datasource.GetReconcileModels(ctx, stLine.CompanyID)
	if err != nil {
		return nil, errors.Wrapf(err, "loading reconcile models of company %d", stLine.CompanyID)
	}
	return r.ApplyRules(ctx, rules, stLine, partner)
}

// MatchStatementLine loads a statement line, resolves its partner and matches it.
// It returns the line alongside the outcome so callers can report both.
func (r *Recon) MatchStatementLine(ctx context.Context, id int64) (*model.StatementLine, *model.Outcome, error) {
	ctx, span := otel.Tracer("Recon").Start(ctx, "Matching statement line", trace.WithAttributes(attribute.Int64("statement_line_id", id)))
	defer span.End()

	stLine, err := r.datasource.GetStatementLine(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	rules, err := r.datasource.GetReconcileModels(ctx, stLine.CompanyID)
	if err != nil {
		span.RecordError(err)
		return nil, nil, errors.Wrapf(err, "loading reconcile models of company %d", stLine.CompanyID)
	}

	partner, err := r.RetrievePartner(ctx, stLine, rules)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	outcome, err := r.ApplyRules(ctx, rules, stLine, partner)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	return stLine, outcome, nil
}

// ApplyRules runs rules against the statement line in sequence order. writeoff_button rules are
// never evaluated. A writeoff_suggestion rule that applies ends the evaluation with a write-off
// outcome; an invoice_matching rule ends it once one of its candidate methods yields an accepted
// proposition.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - rules []*model.ReconcileModel: The rules to evaluate, in any order.
// - stLine *model.StatementLine: The statement line to match.
// - partner *model.Partner: The counterparty of the line, or nil when unknown.
//
// Returns:
// - *model.Outcome: The first outcome produced, or nil.
// - error: An INVALID_INPUT APIError when a rule fails validation, or the read failure.
func (r *Recon) ApplyRules(ctx context.Context, rules []*model.ReconcileModel, stLine *model.StatementLine, partner *model.Partner) (*model.Outcome, error) {
	ctx, span := otel.Tracer("Recon").Start(ctx, "Applying reconcile models", trace.WithAttributes(attribute.Int64("statement_line_id", stLine.ID)))
	defer span.End()

	if !stLine.IsMatchable() {
		logrus.WithField("statement_line_id", stLine.ID).Warn("statement line cannot be matched, skipping")
		return nil, nil
	}

	sorted := model.SortReconcileModels(rules)
	for _, rule := range sorted {
		if err := rule.Validate(); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("reconcile model %d is invalid", rule.ID), err)
		}
	}

	for _, rule := range sorted {
		if !isApplicable(rule, stLine, partner) {
			continue
		}

		switch rule.RuleType {
		case model.RuleTypeWriteoffSuggestion:
			outcome := model.NewOutcome(rule, nil)
			outcome.Status = model.OutcomeStatusWriteOff
			outcome.AutoReconcile = rule.AutoReconcile
			logOutcome(stLine, outcome, nil)
			return outcome, nil

		case model.RuleTypeInvoiceMatching:
			for _, method := range r.matchingRules.ordered() {
				candidates, err := method(ctx, rule, stLine, partner)
				if err != nil {
					span.RecordError(err)
					return nil, err
				}
				if candidates == nil || len(candidates.AMLs) == 0 {
					continue
				}

				outcome, propositions := r.invoiceMatchingResult(rule, stLine, candidates)
				if outcome != nil {
					logOutcome(stLine, outcome, propositions)
					return outcome, nil
				}
			}
		}
	}

	return nil, nil
}

// invoiceMatchingResult narrows candidates to a batch and labels it. It returns a nil outcome
// when the rule rejects the batch.
func (r *Recon) invoiceMatchingResult(rule *model.ReconcileModel, stLine *model.StatementLine, candidates *amlCandidates) (*model.Outcome, *rulePropositions) {
	selection := r.matchBatchAmls(stLine, candidates.AMLs)
	propositions := r.checkRulePropositions(rule, stLine, selection.values)
	if propositions.rejected {
		logrus.WithFields(logrus.Fields{
			"statement_line_id": stLine.ID,
			"model_id":          rule.ID,
			"delta":             propositions.delta.String(),
		}).Debug("reconcile model rejected the candidates")
		return nil, &propositions
	}

	ids := make([]int64, 0, len(selection.values))
	for _, v := range selection.values {
		ids = append(ids, v.aml.ID)
	}

	outcome := model.NewOutcome(rule, ids)
	if propositions.writeOff && rule.HasWriteOffLines() {
		outcome.Status = model.OutcomeStatusWriteOff
	}
	if propositions.autoReconcile && candidates.AllowAutoReconcile && rule.AutoReconcile {
		outcome.AutoReconcile = true
	}
	return outcome, &propositions
}

func logOutcome(stLine *model.StatementLine, outcome *model.Outcome, propositions *rulePropositions) {
	fields := logrus.Fields{
		"statement_line_id": stLine.ID,
		"model_id":          outcome.ModelID,
		"model":             outcome.ModelName,
		"aml_ids":           outcome.MoveLineIDs,
		"status":            outcome.Status,
		"auto_reconcile":    outcome.AutoReconcile,
	}
	if propositions != nil {
		fields["delta"] = propositions.delta.String()
	}
	logrus.WithFields(fields).Info("statement line matched")
}
