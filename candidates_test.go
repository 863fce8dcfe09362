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
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/blnkfinance/recon/database/mocks"
	"github.com/blnkfinance/recon/internal/filter"
	"github.com/blnkfinance/recon/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func rankedQuery() interface{} {
	return mock.MatchedBy(func(q *filter.Query) bool { return q.Ranked })
}

func exactAmountQuery() interface{} {
	return mock.MatchedBy(func(q *filter.Query) bool { return !q.Ranked && strings.Contains(q.SQL, "ROUND(") })
}

func domainQuery() interface{} {
	return mock.MatchedBy(func(q *filter.Query) bool { return !q.Ranked && !strings.Contains(q.SQL, "ROUND(") })
}

func TestSubtractMonths(t *testing.T) {
	tests := []struct {
		from   time.Time
		months int
		want   time.Time
	}{
		{time.Date(2024, time.March, 31, 9, 0, 0, 0, time.UTC), 1, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)},
		{time.Date(2023, time.March, 31, 0, 0, 0, 0, time.UTC), 1, time.Date(2023, time.February, 28, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC), 3, time.Date(2023, time.October, 15, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, time.May, 31, 0, 0, 0, 0, time.UTC), 0, time.Date(2024, time.May, 31, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, subtractMonths(tt.from, tt.months))
	}
}

func TestInvoiceMatchingRules_Ordered(t *testing.T) {
	var calls []string
	method := func(name string) invoiceMatchingMethod {
		return func(ctx context.Context, rule *model.ReconcileModel, stLine *model.StatementLine, partner *model.Partner) (*amlCandidates, error) {
			calls = append(calls, name)
			return nil, nil
		}
	}

	rules := newInvoiceMatchingRules()
	rules.register(20, method("late"))
	rules.register(10, method("first"))
	rules.register(10, method("second"))

	for _, m := range rules.ordered() {
		_, _ = m(context.Background(), nil, nil, nil)
	}
	assert.Equal(t, []string{"first", "second", "late"}, calls)
}

func TestInvoiceMatchingDomain(t *testing.T) {
	ds := new(mocks.MockDataSource)
	r := newTestRecon(ds)
	base := len(ds.AmlsMatchingDomain(statementLine("100")).Filters)

	t.Run("received amount looks for credit balances", func(t *testing.T) {
		domain := r.invoiceMatchingDomain(invoiceRule(1, 10), statementLine("100"), nil)
		require.Len(t, domain.Filters, base+1)
		assert.Equal(t, filter.QueryFilter{Field: "balance", Operator: filter.OpLessThan, Value: 0}, domain.Filters[base])
	})

	t.Run("paid amount looks for debit balances", func(t *testing.T) {
		domain := r.invoiceMatchingDomain(invoiceRule(1, 10), statementLine("-100"), nil)
		assert.Equal(t, filter.QueryFilter{Field: "balance", Operator: filter.OpGreaterThan, Value: 0}, domain.Filters[base])
	})

	t.Run("currency partner and age restrictions", func(t *testing.T) {
		rule := invoiceRule(1, 10)
		rule.Invoice.SameCurrency = true
		months := 1
		rule.Invoice.PastMonthsLimit = &months

		stLine := statementLine("100")
		stLine.ForeignCurrency = usd

		domain := r.invoiceMatchingDomain(rule, stLine, &model.Partner{ID: 7})
		require.Len(t, domain.Filters, base+4)
		assert.Equal(t, filter.QueryFilter{Field: "currency_id", Operator: filter.OpEqual, Value: usd.ID}, domain.Filters[base+1])
		assert.Equal(t, filter.QueryFilter{Field: "partner_id", Operator: filter.OpEqual, Value: int64(7)}, domain.Filters[base+2])
		assert.Equal(t, filter.QueryFilter{
			Field:    "date",
			Operator: filter.OpGreaterThanOrEqual,
			Value:    time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
		}, domain.Filters[base+3])
	})
}

func TestInvoiceMatchingAmlsCandidates_TokenPath(t *testing.T) {
	ds := new(mocks.MockDataSource)
	r := newTestRecon(ds)

	stLine := statementLine("100")
	stLine.PaymentRef = "Wire INV/2024/0042 thx"
	aml := openItem(11, "-100")

	ds.On("SelectMoveLineIDs", mock.Anything, mock.MatchedBy(func(q *filter.Query) bool {
		return q.Ranked && strings.HasPrefix(q.SQL, "WITH aml_cte AS")
	})).Return([]int64{11}, nil)
	ds.On("GetMoveLines", mock.Anything, []int64{11}).Return([]*model.MoveLine{aml}, nil)

	candidates, err := r.invoiceMatchingAmlsCandidates(context.Background(), invoiceRule(1, 10), stLine, nil)
	require.NoError(t, err)
	require.NotNil(t, candidates)
	assert.Equal(t, []*model.MoveLine{aml}, candidates.AMLs)
	assert.True(t, candidates.AllowAutoReconcile)
	ds.AssertExpectations(t)
}

func TestInvoiceMatchingAmlsCandidates_TokenMissShortCircuits(t *testing.T) {
	ds := new(mocks.MockDataSource)
	r := newTestRecon(ds)

	stLine := statementLine("100")
	stLine.PaymentRef = "Wire INV/2024/0042 thx"

	ds.On("SelectMoveLineIDs", mock.Anything, rankedQuery()).Return([]int64{}, nil)

	candidates, err := r.invoiceMatchingAmlsCandidates(context.Background(), invoiceRule(1, 10), stLine, nil)
	require.NoError(t, err)
	assert.Nil(t, candidates)
	ds.AssertNumberOfCalls(t, "SelectMoveLineIDs", 1)
	ds.AssertNotCalled(t, "GetMoveLines", mock.Anything, mock.Anything)
}

func TestInvoiceMatchingAmlsCandidates_NoTokensFallsBackToExactAmount(t *testing.T) {
	ds := new(mocks.MockDataSource)
	r := newTestRecon(ds)

	stLine := statementLine("100")
	aml := openItem(12, "-100")

	ds.On("SelectMoveLineIDs", mock.Anything, mock.MatchedBy(func(q *filter.Query) bool {
		n := len(q.Args)
		return strings.Contains(q.SQL, "account_move_line.amount_residual, $") && n >= 2 && q.Args[n-2] == "-100" && q.Args[n-1] == 2
	})).Return([]int64{12}, nil)
	ds.On("GetMoveLines", mock.Anything, []int64{12}).Return([]*model.MoveLine{aml}, nil)

	candidates, err := r.invoiceMatchingAmlsCandidates(context.Background(), invoiceRule(1, 10), stLine, nil)
	require.NoError(t, err)
	require.NotNil(t, candidates)
	assert.Equal(t, []*model.MoveLine{aml}, candidates.AMLs)
	assert.False(t, candidates.AllowAutoReconcile)
	ds.AssertExpectations(t)
}

func TestInvoiceMatchingAmlsCandidates_ForeignCurrencyComparesResidualCurrency(t *testing.T) {
	ds := new(mocks.MockDataSource)
	r := newTestRecon(ds)

	rule := invoiceRule(1, 10)
	rule.Invoice.TextLocationLabel = false

	stLine := statementLine("100")
	stLine.Currency = usd

	ds.On("SelectMoveLineIDs", mock.Anything, mock.MatchedBy(func(q *filter.Query) bool {
		return strings.Contains(q.SQL, "account_move_line.amount_residual_currency, $")
	})).Return([]int64{}, nil)

	candidates, err := r.invoiceMatchingAmlsCandidates(context.Background(), rule, stLine, nil)
	require.NoError(t, err)
	assert.Nil(t, candidates)
	ds.AssertExpectations(t)
}

func TestInvoiceMatchingAmlsCandidates_PartnerFallback(t *testing.T) {
	ds := new(mocks.MockDataSource)
	r := newTestRecon(ds)

	rule := invoiceRule(1, 10)
	rule.Invoice.TextLocationLabel = false
	rule.Invoice.MatchingOrder = model.MatchingOrderNewFirst
	aml := openItem(13, "-40")

	ds.On("SelectMoveLineIDs", mock.Anything, mock.MatchedBy(func(q *filter.Query) bool {
		return !q.Ranked && strings.HasSuffix(q.SQL, "DESC") && q.Args[len(q.Args)-1] == int64(7)
	})).Return([]int64{13}, nil)
	ds.On("GetMoveLines", mock.Anything, []int64{13}).Return([]*model.MoveLine{aml}, nil)

	candidates, err := r.invoiceMatchingAmlsCandidates(context.Background(), rule, statementLine("100"), &model.Partner{ID: 7})
	require.NoError(t, err)
	require.NotNil(t, candidates)
	assert.Equal(t, []*model.MoveLine{aml}, candidates.AMLs)
	assert.False(t, candidates.AllowAutoReconcile)
	ds.AssertNotCalled(t, "SelectMoveLineIDs", mock.Anything, exactAmountQuery())
}

func TestInvoiceMatchingAmlsCandidates_ReadError(t *testing.T) {
	ds := new(mocks.MockDataSource)
	r := newTestRecon(ds)

	rule := invoiceRule(1, 10)
	rule.Invoice.TextLocationLabel = false

	ds.On("SelectMoveLineIDs", mock.Anything, domainQuery()).Return(nil, errors.New("connection reset"))

	_, err := r.invoiceMatchingAmlsCandidates(context.Background(), rule, statementLine("100"), &model.Partner{ID: 7})
	assert.ErrorContains(t, err, "connection reset")
}
