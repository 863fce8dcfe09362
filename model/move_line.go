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
	"time"

	"github.com/shopspring/decimal"
)

// MoveType is the kind of journal entry an AML belongs to.
type MoveType string

const (
	MoveTypeEntry      MoveType = "entry"
	MoveTypeOutInvoice MoveType = "out_invoice"
	MoveTypeOutRefund  MoveType = "out_refund"
	MoveTypeInInvoice  MoveType = "in_invoice"
	MoveTypeInRefund   MoveType = "in_refund"
	MoveTypeOutReceipt MoveType = "out_receipt"
	MoveTypeInReceipt  MoveType = "in_receipt"
)

// IsInvoiceOrReceipt reports whether the move is a customer or supplier invoice or receipt.
// Refunds and miscellaneous entries are excluded.
func (t MoveType) IsInvoiceOrReceipt() bool {
	switch t {
	case MoveTypeOutInvoice, MoveTypeOutReceipt, MoveTypeInInvoice, MoveTypeInReceipt:
		return true
	}
	return false
}

// MoveLine is an open journal item (AML) a statement line can be matched against.
// Balance and AmountResidual are in company currency; AmountCurrency and
// AmountResidualCurrency are in Currency.
type MoveLine struct {
	ID                     int64               `json:"id"`
	MoveID                 int64               `json:"move_id"`
	MoveName               string              `json:"move_name"`
	MoveRef                string              `json:"move_ref"`
	MoveType               MoveType            `json:"move_type"`
	Name                   string              `json:"name"`
	PartnerID              *int64              `json:"partner_id,omitempty"`
	AccountID              int64               `json:"account_id"`
	CompanyID              int64               `json:"company_id"`
	Currency               *Currency           `json:"currency"`
	Balance                decimal.Decimal     `json:"balance"`
	AmountCurrency         decimal.Decimal     `json:"amount_currency"`
	AmountResidual         decimal.Decimal     `json:"amount_residual"`
	AmountResidualCurrency decimal.Decimal     `json:"amount_residual_currency"`
	Date                   time.Time           `json:"date"`
	DateMaturity           *time.Time          `json:"date_maturity,omitempty"`
	DiscountDate           *time.Time          `json:"discount_date,omitempty"`
	DiscountAmountCurrency decimal.NullDecimal `json:"discount_amount_currency"`
	MatchedDebitIDs        []int64             `json:"matched_debit_ids,omitempty"`
	MatchedCreditIDs       []int64             `json:"matched_credit_ids,omitempty"`
}

// HasPartialReconciliations reports whether the AML is already partly reconciled.
func (l *MoveLine) HasPartialReconciliations() bool {
	return len(l.MatchedDebitIDs) > 0 || len(l.MatchedCreditIDs) > 0
}

// EarlyPaymentDiscountApplies reports whether a payment dated paymentDate may settle the AML
// at its discounted amount: the move is an invoice or receipt, nothing is reconciled on it yet,
// and the discount deadline is on or after paymentDate.
func (l *MoveLine) EarlyPaymentDiscountApplies(paymentDate time.Time) bool {
	if !l.MoveType.IsInvoiceOrReceipt() || l.HasPartialReconciliations() {
		return false
	}
	if l.DiscountDate == nil || !l.DiscountAmountCurrency.Valid {
		return false
	}
	return !truncateToDay(paymentDate).After(truncateToDay(*l.DiscountDate))
}

// ForeignRate returns |amount_currency| / |balance|, or 1 when the balance is zero.
func (l *MoveLine) ForeignRate() decimal.Decimal {
	if l.Balance.IsZero() {
		return decimal.NewFromInt(1)
	}
	return l.AmountCurrency.Abs().Div(l.Balance.Abs())
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
