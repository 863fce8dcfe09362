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
	"github.com/blnkfinance/recon/model"
	"github.com/shopspring/decimal"
)

// rulePropositions is the verdict of a rule on its selected AMLs.
type rulePropositions struct {
	rejected      bool
	writeOff      bool
	autoReconcile bool
	delta         decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// checkRulePropositions decides whether the AMLs kept for the statement line are an acceptable
// proposition for rule. delta is the statement amount left uncovered by the AMLs, signed like
// the statement amount: a positive delta is an overpayment and is always accepted. An
// underpayment is accepted with a write-off when it fits within the rule's payment tolerance.
func (r *Recon) checkRulePropositions(rule *model.ReconcileModel, stLine *model.StatementLine, values []amlValue) rulePropositions {
	if rule.Invoice == nil || !rule.Invoice.AllowPaymentTolerance {
		return rulePropositions{writeOff: true, autoReconcile: true}
	}

	currency := stLine.TransactionCurrency()
	stAmount := r.datasource.PrepareMoveLineDefaultVals(stLine)[1].AmountCurrency
	sign := decimal.NewFromInt(-1)
	if stAmount.IsPositive() {
		sign = decimal.NewFromInt(1)
	}

	amlsAmount := decimal.Zero
	for _, v := range values {
		counterpart := r.datasource.PrepareCounterpartAmountsUsingStLineRate(stLine, v.aml.Currency, v.amountResidual, v.amountResidualCurrency)
		amlsAmount = amlsAmount.Add(counterpart.AmountCurrency)
	}

	delta := currency.Round(sign.Mul(amlsAmount.Add(stAmount)))
	switch {
	case currency.IsZero(delta):
		return rulePropositions{autoReconcile: true, delta: delta}
	case delta.IsPositive():
		return rulePropositions{autoReconcile: true, delta: delta}
	}

	param := rule.Invoice.PaymentToleranceParam
	if param.IsZero() {
		return rulePropositions{rejected: true, delta: delta}
	}

	switch rule.Invoice.PaymentToleranceType {
	case model.ToleranceFixedAmount:
		if delta.Neg().LessThanOrEqual(param) {
			return rulePropositions{writeOff: true, autoReconcile: true, delta: delta}
		}
	case model.TolerancePercentage:
		if amlsAmount.IsZero() {
			return rulePropositions{rejected: true, delta: delta}
		}
		if delta.Div(amlsAmount).Abs().Mul(hundred).LessThanOrEqual(param) {
			return rulePropositions{writeOff: true, autoReconcile: true, delta: delta}
		}
	}
	return rulePropositions{rejected: true, delta: delta}
}
