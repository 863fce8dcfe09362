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

	"github.com/blnkfinance/recon/internal/plaintext"
)

// TextLocation names a statement-line text field rules can read.
type TextLocation string

const (
	TextLocationLabel     TextLocation = "payment_ref"
	TextLocationNote      TextLocation = "narration"
	TextLocationReference TextLocation = "ref"
)

// StatementLine is one imported bank statement row.
//
// Amount is expressed in the journal currency (Currency). When ForeignCurrency is set,
// AmountCurrency holds the same movement in that currency. CompanyAmount is the movement
// in company currency and is only read when neither the journal nor the foreign currency
// is the company currency. AmountResidual is the open balance in the transaction currency.
type StatementLine struct {
	ID              int64           `json:"id"`
	MoveID          int64           `json:"move_id"`
	JournalID       int64           `json:"journal_id"`
	CompanyID       int64           `json:"company_id"`
	PartnerID       *int64          `json:"partner_id,omitempty"`
	Date            time.Time       `json:"date"`
	Amount          decimal.Decimal `json:"amount"`
	AmountCurrency  decimal.Decimal `json:"amount_currency"`
	AmountResidual  decimal.Decimal `json:"amount_residual"`
	CompanyAmount   decimal.Decimal `json:"company_amount"`
	Currency        *Currency       `json:"currency"`
	CompanyCurrency *Currency       `json:"company_currency"`
	ForeignCurrency *Currency       `json:"foreign_currency,omitempty"`
	PaymentRef      string          `json:"payment_ref"`
	Narration       string          `json:"narration"`
	Ref             string          `json:"ref"`
	TransactionType string          `json:"transaction_type"`
	IsReconciled    bool            `json:"is_reconciled"`
}

// MoveLineVals is the amount pair of one line of the journal entry a statement line produces.
type MoveLineVals struct {
	CurrencyID     int64           `json:"currency_id"`
	AmountCurrency decimal.Decimal `json:"amount_currency"`
	Balance        decimal.Decimal `json:"balance"`
}

// CounterpartAmounts is an AML residual expressed at the statement line's rate.
type CounterpartAmounts struct {
	AmountCurrency decimal.Decimal `json:"amount_currency"`
	Balance        decimal.Decimal `json:"balance"`
}

// JournalCurrency returns the currency Amount is expressed in.
func (s *StatementLine) JournalCurrency() *Currency {
	if s.Currency != nil {
		return s.Currency
	}
	return s.CompanyCurrency
}

// TransactionCurrency returns the foreign currency when set, the journal currency otherwise.
func (s *StatementLine) TransactionCurrency() *Currency {
	if s.ForeignCurrency != nil {
		return s.ForeignCurrency
	}
	return s.JournalCurrency()
}

// TransactionAmount returns the movement in the transaction currency.
func (s *StatementLine) TransactionAmount() decimal.Decimal {
	if s.ForeignCurrency != nil && !s.ForeignCurrency.Equal(s.JournalCurrency()) {
		return s.AmountCurrency
	}
	return s.Amount
}

// CompanyCurrencyAmount returns the movement in the company currency.
func (s *StatementLine) CompanyCurrencyAmount() decimal.Decimal {
	switch {
	case s.JournalCurrency().Equal(s.CompanyCurrency):
		return s.Amount
	case s.TransactionCurrency().Equal(s.CompanyCurrency):
		return s.TransactionAmount()
	default:
		return s.CompanyAmount
	}
}

// IsMatchable reports whether the line satisfies the invariants matching relies on:
// currencies are known, the amount is non-zero in both journal and transaction currency and the residual carries the amount's sign.
func (s *StatementLine) IsMatchable() bool {
	if s.JournalCurrency() == nil || s.CompanyCurrency == nil {
		return false
	}
	if s.Amount.IsZero() || s.TransactionAmount().IsZero() {
		return false
	}
	return s.AmountResidual.IsZero() || s.Amount.Sign() == s.AmountResidual.Sign()
}

// PrepareMoveLineDefaultVals returns the amounts of the journal entry backing the statement line.
// Element 0 is the liquidity line in journal currency. Element 1 is the transaction line whose
// AmountCurrency is the movement in the transaction currency.
func (s *StatementLine) PrepareMoveLineDefaultVals() []MoveLineVals {
	companyAmount := s.CompanyCurrencyAmount()
	return []MoveLineVals{
		{
			CurrencyID:     s.JournalCurrency().ID,
			AmountCurrency: s.Amount,
			Balance:        companyAmount,
		},
		{
			CurrencyID:     s.TransactionCurrency().ID,
			AmountCurrency: s.TransactionAmount(),
			Balance:        companyAmount,
		},
	}
}

// PrepareCounterpartAmountsUsingStLineRate converts an AML residual into the statement line's
// transaction currency and company currency using the rates implied by the line's own amounts.
//
// Parameters:
// - currency *Currency: The AML currency.
// - balance decimal.Decimal: The AML residual in company currency.
// - amountCurrency decimal.Decimal: The AML residual in its own currency.
//
// Returns:
// - CounterpartAmounts: The residual at the statement line's rate.
func (s *StatementLine) PrepareCounterpartAmountsUsingStLineRate(currency *Currency, balance, amountCurrency decimal.Decimal) CounterpartAmounts {
	companyCurrency := s.CompanyCurrency
	journalCurrency := s.JournalCurrency()
	foreignCurrency := s.TransactionCurrency()

	journalAmount := s.Amount
	transactionAmount := s.TransactionAmount()
	companyAmount := s.CompanyCurrencyAmount()

	rateJournalToForeign := decimal.Zero
	if !journalAmount.IsZero() {
		rateJournalToForeign = transactionAmount.Abs().Div(journalAmount.Abs())
	}
	rateCompanyToJournal := decimal.Zero
	if !companyAmount.IsZero() {
		rateCompanyToJournal = journalAmount.Abs().Div(companyAmount.Abs())
	}

	var transAmountCurrency, newBalance decimal.Decimal
	switch {
	case currency.Equal(foreignCurrency):
		transAmountCurrency = amountCurrency
		journAmountCurrency := decimal.Zero
		if !rateJournalToForeign.IsZero() {
			journAmountCurrency = journalCurrency.Round(transAmountCurrency.Div(rateJournalToForeign))
		}
		newBalance = decimal.Zero
		if !rateCompanyToJournal.IsZero() {
			newBalance = companyCurrency.Round(journAmountCurrency.Div(rateCompanyToJournal))
		}
	case currency.Equal(journalCurrency):
		transAmountCurrency = foreignCurrency.Round(amountCurrency.Mul(rateJournalToForeign))
		newBalance = decimal.Zero
		if !rateCompanyToJournal.IsZero() {
			newBalance = companyCurrency.Round(amountCurrency.Div(rateCompanyToJournal))
		}
	default:
		journAmountCurrency := journalCurrency.Round(balance.Mul(rateCompanyToJournal))
		transAmountCurrency = foreignCurrency.Round(journAmountCurrency.Mul(rateJournalToForeign))
		newBalance = balance
	}

	return CounterpartAmounts{AmountCurrency: transAmountCurrency, Balance: newBalance}
}

// StringsForMatching returns the requested text fields in payment_ref, narration, ref order.
// The narration is converted to plain text. Empty fields are kept as empty strings.
func (s *StatementLine) StringsForMatching(locations []TextLocation) []string {
	wanted := make(map[TextLocation]bool, len(locations))
	for _, l := range locations {
		wanted[l] = true
	}

	values := make([]string, 0, 3)
	if wanted[TextLocationLabel] {
		values = append(values, s.PaymentRef)
	}
	if wanted[TextLocationNote] {
		values = append(values, plaintext.FromHTML(s.Narration))
	}
	if wanted[TextLocationReference] {
		values = append(values, s.Ref)
	}
	return values
}
