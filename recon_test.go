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
	"testing"
	"time"

	"github.com/blnkfinance/recon/config"
	"github.com/blnkfinance/recon/database/mocks"
	"github.com/blnkfinance/recon/model"
	"github.com/shopspring/decimal"
)

var (
	eur = &model.Currency{ID: 1, Name: "EUR", DecimalPlaces: 2}
	usd = &model.Currency{ID: 2, Name: "USD", DecimalPlaces: 2}

	fixedNow = time.Date(2024, time.March, 31, 9, 0, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestRecon(ds *mocks.MockDataSource) *Recon {
	r := newRecon(ds)
	r.now = func() time.Time { return fixedNow }
	return r
}

func mockMatchingConfig(t *testing.T) *config.Configuration {
	t.Helper()
	cnf := &config.Configuration{
		Matching: config.MatchingConfig{
			AutoReconcileDeadlineSec: 180,
			AutoReconcileBatchSize:   100,
			LockTimeoutSec:           600,
		},
	}
	config.MockConfig(cnf)
	return cnf
}

// statementLine returns a EUR statement line of company 1 on journal 10 whose residual is its amount.
func statementLine(amount string) *model.StatementLine {
	return &model.StatementLine{
		ID:              501,
		MoveID:          9001,
		JournalID:       10,
		CompanyID:       1,
		Date:            time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC),
		Amount:          dec(amount),
		AmountResidual:  dec(amount),
		Currency:        eur,
		CompanyCurrency: eur,
	}
}

// openItem returns a EUR AML whose residual is its whole balance.
func openItem(id int64, residual string) *model.MoveLine {
	return &model.MoveLine{
		ID:                     id,
		MoveID:                 id * 10,
		MoveName:               "INV/2024/" + decimal.NewFromInt(id).String(),
		MoveType:               model.MoveTypeOutInvoice,
		CompanyID:              1,
		Currency:               eur,
		Balance:                dec(residual),
		AmountCurrency:         dec(residual),
		AmountResidual:         dec(residual),
		AmountResidualCurrency: dec(residual),
		Date:                   time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
	}
}

func invoiceRule(id int64, sequence int) *model.ReconcileModel {
	return &model.ReconcileModel{
		ID:            id,
		Name:          "Invoices",
		Sequence:      sequence,
		CompanyID:     1,
		RuleType:      model.RuleTypeInvoiceMatching,
		AutoReconcile: true,
		Conditions:    model.MatchConditions{Nature: model.MatchNatureBoth},
		Invoice: &model.InvoiceMatching{
			TextLocationLabel: true,
			MatchingOrder:     model.MatchingOrderOldFirst,
		},
	}
}

func writeoffRule(id int64, sequence int) *model.ReconcileModel {
	return &model.ReconcileModel{
		ID:            id,
		Name:          "Bank fees",
		Sequence:      sequence,
		CompanyID:     1,
		RuleType:      model.RuleTypeWriteoffSuggestion,
		AutoReconcile: true,
		Conditions:    model.MatchConditions{Nature: model.MatchNatureBoth},
		Lines:         []model.WriteOffLine{{ID: 1, AccountID: 627, Label: "Bank fees", AmountType: "percentage", AmountString: "100"}},
	}
}

func withTolerance(rule *model.ReconcileModel, toleranceType model.ToleranceType, param string) *model.ReconcileModel {
	rule.Invoice.AllowPaymentTolerance = true
	rule.Invoice.PaymentToleranceType = toleranceType
	rule.Invoice.PaymentToleranceParam = dec(param)
	rule.Lines = []model.WriteOffLine{{ID: 7, AccountID: 658, Label: "Payment difference", AmountType: "percentage", AmountString: "100"}}
	return rule
}
