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

	"github.com/blnkfinance/recon/model"
	"github.com/stretchr/testify/assert"
)

func TestIsApplicable(t *testing.T) {
	partner := &model.Partner{ID: 7, Name: "Acme", CategoryIDs: []int64{3}}

	tests := []struct {
		name       string
		conditions model.MatchConditions
		amount     string
		partner    *model.Partner
		adjust     func(*model.StatementLine)
		want       bool
	}{
		{name: "no condition", conditions: model.MatchConditions{}, amount: "100", want: true},
		{name: "journal in set", conditions: model.MatchConditions{JournalIDs: []int64{10, 11}}, amount: "100", want: true},
		{name: "journal outside set", conditions: model.MatchConditions{JournalIDs: []int64{11}}, amount: "100", want: false},
		{name: "received rejects payments", conditions: model.MatchConditions{Nature: model.MatchNatureReceived}, amount: "-100", want: false},
		{name: "paid rejects receipts", conditions: model.MatchConditions{Nature: model.MatchNaturePaid}, amount: "100", want: false},
		{name: "paid accepts payments", conditions: model.MatchConditions{Nature: model.MatchNaturePaid}, amount: "-100", want: true},
		{name: "lower than max", conditions: model.MatchConditions{Amount: model.AmountLower, AmountMax: dec("150")}, amount: "-100", want: true},
		{name: "lower is strict", conditions: model.MatchConditions{Amount: model.AmountLower, AmountMax: dec("100")}, amount: "100", want: false},
		{name: "greater is strict", conditions: model.MatchConditions{Amount: model.AmountGreater, AmountMin: dec("100")}, amount: "100", want: false},
		{name: "greater than min", conditions: model.MatchConditions{Amount: model.AmountGreater, AmountMin: dec("50")}, amount: "-100", want: true},
		{name: "between is inclusive", conditions: model.MatchConditions{Amount: model.AmountBetween, AmountMin: dec("100"), AmountMax: dec("200")}, amount: "200", want: true},
		{name: "outside between", conditions: model.MatchConditions{Amount: model.AmountBetween, AmountMin: dec("100"), AmountMax: dec("200")}, amount: "99.99", want: false},
		{name: "partner required", conditions: model.MatchConditions{Partner: true}, amount: "100", want: false},
		{name: "partner given", conditions: model.MatchConditions{Partner: true}, amount: "100", partner: partner, want: true},
		{name: "partner not listed", conditions: model.MatchConditions{Partner: true, PartnerIDs: []int64{8}}, amount: "100", partner: partner, want: false},
		{name: "partner category listed", conditions: model.MatchConditions{Partner: true, PartnerCategoryIDs: []int64{2, 3}}, amount: "100", partner: partner, want: true},
		{name: "partner category disjoint", conditions: model.MatchConditions{Partner: true, PartnerCategoryIDs: []int64{4}}, amount: "100", partner: partner, want: false},
		{
			name:       "label contains ignores case",
			conditions: model.MatchConditions{Label: model.TextPredicate{Condition: model.TextContains, Param: "acme"}},
			amount:     "100",
			adjust:     func(l *model.StatementLine) { l.PaymentRef = "Payment ACME Corp" },
			want:       true,
		},
		{
			name:       "label not contains",
			conditions: model.MatchConditions{Label: model.TextPredicate{Condition: model.TextNotContains, Param: "Refund"}},
			amount:     "100",
			adjust:     func(l *model.StatementLine) { l.PaymentRef = "REFUND 42" },
			want:       false,
		},
		{
			name:       "note is read as plain text",
			conditions: model.MatchConditions{Note: model.TextPredicate{Condition: model.TextContains, Param: "invoice 42"}},
			amount:     "100",
			adjust:     func(l *model.StatementLine) { l.Narration = "<p>Invoice 42</p>" },
			want:       true,
		},
		{
			name:       "transaction type regex matches a prefix",
			conditions: model.MatchConditions{TransactionType: model.TextPredicate{Condition: model.TextMatchRegex, Param: "sepa"}},
			amount:     "100",
			adjust:     func(l *model.StatementLine) { l.TransactionType = "SEPA-CT" },
			want:       true,
		},
		{
			name:       "regex anchored at the start",
			conditions: model.MatchConditions{Label: model.TextPredicate{Condition: model.TextMatchRegex, Param: `INV\d+`}},
			amount:     "100",
			adjust:     func(l *model.StatementLine) { l.PaymentRef = "Paid INV42" },
			want:       false,
		},
		{
			name:       "invalid regex never matches",
			conditions: model.MatchConditions{Label: model.TextPredicate{Condition: model.TextMatchRegex, Param: "("}},
			amount:     "100",
			adjust:     func(l *model.StatementLine) { l.PaymentRef = "(" },
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := invoiceRule(1, 10)
			rule.Conditions = tt.conditions
			stLine := statementLine(tt.amount)
			if tt.adjust != nil {
				tt.adjust(stLine)
			}

			assert.Equal(t, tt.want, isApplicable(rule, stLine, tt.partner))
		})
	}
}

func TestCompilePattern_Caches(t *testing.T) {
	first, err := compilePattern("(?i)", "abc")
	assert.NoError(t, err)
	second, err := compilePattern("(?i)", "abc")
	assert.NoError(t, err)
	assert.Same(t, first, second)

	other, err := compilePattern("", "abc")
	assert.NoError(t, err)
	assert.NotSame(t, first, other)
}
