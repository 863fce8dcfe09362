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

	"github.com/blnkfinance/recon/database/mocks"
	"github.com/blnkfinance/recon/model"
	"github.com/stretchr/testify/assert"
)

func TestCheckRulePropositions(t *testing.T) {
	tests := []struct {
		name      string
		rule      func() *model.ReconcileModel
		stAmount  string
		residuals []string
		want      rulePropositions
		delta     string
	}{
		{
			name:      "no tolerance allows a write-off",
			rule:      func() *model.ReconcileModel { return invoiceRule(1, 10) },
			stAmount:  "90",
			residuals: []string{"-100"},
			want:      rulePropositions{writeOff: true, autoReconcile: true},
			delta:     "0",
		},
		{
			name:      "exact amount",
			rule:      func() *model.ReconcileModel { return withTolerance(invoiceRule(1, 10), model.ToleranceFixedAmount, "1") },
			stAmount:  "150",
			residuals: []string{"-100", "-50"},
			want:      rulePropositions{autoReconcile: true},
			delta:     "0",
		},
		{
			name:      "overpayment never writes off",
			rule:      func() *model.ReconcileModel { return withTolerance(invoiceRule(1, 10), model.ToleranceFixedAmount, "1") },
			stAmount:  "120",
			residuals: []string{"-100"},
			want:      rulePropositions{autoReconcile: true},
			delta:     "20",
		},
		{
			name:      "zero tolerance rejects underpayments",
			rule:      func() *model.ReconcileModel { return withTolerance(invoiceRule(1, 10), model.ToleranceFixedAmount, "0") },
			stAmount:  "99.50",
			residuals: []string{"-100"},
			want:      rulePropositions{rejected: true},
			delta:     "-0.5",
		},
		{
			name:      "fixed tolerance covers the difference",
			rule:      func() *model.ReconcileModel { return withTolerance(invoiceRule(1, 10), model.ToleranceFixedAmount, "1") },
			stAmount:  "99.50",
			residuals: []string{"-100"},
			want:      rulePropositions{writeOff: true, autoReconcile: true},
			delta:     "-0.5",
		},
		{
			name:      "fixed tolerance boundary is inclusive",
			rule:      func() *model.ReconcileModel { return withTolerance(invoiceRule(1, 10), model.ToleranceFixedAmount, "0.50") },
			stAmount:  "99.50",
			residuals: []string{"-100"},
			want:      rulePropositions{writeOff: true, autoReconcile: true},
			delta:     "-0.5",
		},
		{
			name:      "fixed tolerance exceeded",
			rule:      func() *model.ReconcileModel { return withTolerance(invoiceRule(1, 10), model.ToleranceFixedAmount, "0.49") },
			stAmount:  "99.50",
			residuals: []string{"-100"},
			want:      rulePropositions{rejected: true},
			delta:     "-0.5",
		},
		{
			name:      "percentage tolerance exceeded",
			rule:      func() *model.ReconcileModel { return withTolerance(invoiceRule(1, 10), model.TolerancePercentage, "5") },
			stAmount:  "90",
			residuals: []string{"-100"},
			want:      rulePropositions{rejected: true},
			delta:     "-10",
		},
		{
			name:      "percentage tolerance covers the difference",
			rule:      func() *model.ReconcileModel { return withTolerance(invoiceRule(1, 10), model.TolerancePercentage, "10") },
			stAmount:  "90",
			residuals: []string{"-100"},
			want:      rulePropositions{writeOff: true, autoReconcile: true},
			delta:     "-10",
		},
		{
			name:      "paid amount underpayment",
			rule:      func() *model.ReconcileModel { return withTolerance(invoiceRule(1, 10), model.ToleranceFixedAmount, "1") },
			stAmount:  "-99.20",
			residuals: []string{"100"},
			want:      rulePropositions{writeOff: true, autoReconcile: true},
			delta:     "-0.8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRecon(new(mocks.MockDataSource))
			amls := make([]*model.MoveLine, 0, len(tt.residuals))
			for i, residual := range tt.residuals {
				amls = append(amls, openItem(int64(i+1), residual))
			}

			got := r.checkRulePropositions(tt.rule(), statementLine(tt.stAmount), amlValuesOf(amls))
			assert.True(t, dec(tt.delta).Equal(got.delta), "delta %s", got.delta)
			got.delta = tt.want.delta
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckRulePropositions_ToleranceIsMonotonic(t *testing.T) {
	r := newTestRecon(new(mocks.MockDataSource))
	values := amlValuesOf([]*model.MoveLine{openItem(1, "-100")})
	stLine := statementLine("97")

	accepted := false
	for _, param := range []string{"1", "2", "3", "4", "10", "50"} {
		got := r.checkRulePropositions(withTolerance(invoiceRule(1, 10), model.ToleranceFixedAmount, param), stLine, values)
		if accepted {
			assert.False(t, got.rejected, "param %s", param)
		}
		accepted = accepted || got.writeOff
	}
	assert.True(t, accepted)
}
