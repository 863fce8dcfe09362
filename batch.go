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
	"time"

	"github.com/blnkfinance/recon/model"
	"github.com/shopspring/decimal"
)

// amlValue is the residual pair the batch selection works on. It copies the AML residuals so
// an early payment discount can be applied without touching the AML itself.
type amlValue struct {
	aml                    *model.MoveLine
	amountResidual         decimal.Decimal
	amountResidualCurrency decimal.Decimal
}

// batchStatus tells how the selected AMLs settle the statement line.
type batchStatus string

const (
	batchNone    batchStatus = ""
	batchPerfect batchStatus = "perfect"
	batchPartial batchStatus = "partial"
)

// batchSelection is the subset of candidates kept for a rule proposition.
type batchSelection struct {
	status batchStatus
	values []amlValue
}

func amlValuesOf(amls []*model.MoveLine) []amlValue {
	values := make([]amlValue, 0, len(amls))
	for _, aml := range amls {
		values = append(values, amlValue{
			aml:                    aml,
			amountResidual:         aml.AmountResidual,
			amountResidualCurrency: aml.AmountResidualCurrency,
		})
	}
	return values
}

// earlyPaymentValues returns the residuals of values with the discount applied to every AML
// eligible at paymentDate. The second result is false when no AML is eligible.
func earlyPaymentValues(values []amlValue, paymentDate time.Time, companyCurrency *model.Currency) ([]amlValue, bool) {
	discounted := make([]amlValue, 0, len(values))
	applied := false
	for _, v := range values {
		if v.aml.EarlyPaymentDiscountApplies(paymentDate) {
			discount := v.aml.DiscountAmountCurrency.Decimal
			v.amountResidualCurrency = discount
			v.amountResidual = companyCurrency.Round(discount.Div(v.aml.ForeignRate()))
			applied = true
		}
		discounted = append(discounted, v)
	}
	return discounted, applied
}

// selectBatch walks values in candidate order and keeps the AMLs that fit in the statement
// amount. An AML whose residual alone settles the amount is returned as a perfect match on its own.
func selectBatch(values []amlValue, stAmount decimal.Decimal, currency *model.Currency) batchSelection {
	sign := decimal.NewFromInt(-1)
	if stAmount.IsPositive() {
		sign = decimal.NewFromInt(1)
	}

	kept := make([]amlValue, 0, len(values))
	sum := decimal.Zero
	for _, v := range values {
		if currency.CompareAmounts(stAmount, v.amountResidualCurrency.Neg()) == 0 {
			return batchSelection{status: batchPerfect, values: []amlValue{v}}
		}
		if currency.CompareAmounts(sign.Mul(stAmount.Add(sum)), decimal.Zero) > 0 {
			kept = append(kept, v)
			sum = sum.Add(v.amountResidualCurrency)
		}
	}

	switch {
	case len(kept) > 0 && currency.IsZero(stAmount.Add(sum)):
		return batchSelection{status: batchPerfect, values: kept}
	case len(kept) > 0:
		return batchSelection{status: batchPartial, values: kept}
	default:
		return batchSelection{status: batchNone}
	}
}

// matchBatchAmls picks the AMLs of candidates a rule proposes for the statement line.
// Selection only runs when every candidate shares the statement transaction currency;
// otherwise every candidate is proposed. A perfect match on discounted residuals wins, then the plain residual selection, and
// otherwise every candidate is proposed.
func (r *Recon) matchBatchAmls(stLine *model.StatementLine, amls []*model.MoveLine) batchSelection {
	values := amlValuesOf(amls)
	if len(values) == 0 {
		return batchSelection{status: batchNone}
	}

	currency := stLine.TransactionCurrency()
	for _, v := range values {
		if !v.aml.Currency.Equal(currency) {
			return batchSelection{status: batchNone, values: values}
		}
	}

	stAmount := r.datasource.PrepareMoveLineDefaultVals(stLine)[1].AmountCurrency

	if discounted, ok := earlyPaymentValues(values, stLine.Date, stLine.CompanyCurrency); ok {
		if selection := selectBatch(discounted, stAmount, currency); selection.status == batchPerfect {
			return selection
		}
	}

	if selection := selectBatch(values, stAmount, currency); selection.status != batchNone {
		return selection
	}
	return batchSelection{status: batchNone, values: values}
}
