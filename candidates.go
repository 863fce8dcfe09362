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
	"sort"
	"time"

	"github.com/blnkfinance/recon/internal/filter"
	"github.com/blnkfinance/recon/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// amlCandidates is the ordered list of AMLs a candidate method found for a statement line.
// AllowAutoReconcile is only set by the token lookup.
type amlCandidates struct {
	AMLs               []*model.MoveLine
	AllowAutoReconcile bool
}

// invoiceMatchingMethod produces the candidates of an invoice_matching rule. A nil result means
// the method has nothing to propose and the next one is tried.
type invoiceMatchingMethod func(ctx context.Context, rule *model.ReconcileModel, stLine *model.StatementLine, partner *model.Partner) (*amlCandidates, error)

// invoiceMatchingRules keys candidate methods by priority. Lower priorities run first and
// methods sharing a priority run in registration order.
type invoiceMatchingRules struct {
	byPriority map[int][]invoiceMatchingMethod
}

func newInvoiceMatchingRules() *invoiceMatchingRules {
	return &invoiceMatchingRules{byPriority: map[int][]invoiceMatchingMethod{}}
}

func (m *invoiceMatchingRules) register(priority int, method invoiceMatchingMethod) {
	m.byPriority[priority] = append(m.byPriority[priority], method)
}

func (m *invoiceMatchingRules) ordered() []invoiceMatchingMethod {
	priorities := make([]int, 0, len(m.byPriority))
	for priority := range m.byPriority {
		priorities = append(priorities, priority)
	}
	sort.Ints(priorities)

	methods := make([]invoiceMatchingMethod, 0)
	for _, priority := range priorities {
		methods = append(methods, m.byPriority[priority]...)
	}
	return methods
}

// subtractMonths moves t back by months calendar months, clamping the day to the end of the
// target month: 31 March minus one month is the last day of February.
func subtractMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month-time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, t.Location())
}

// invoiceMatchingDomain narrows the statement line's base domain for rule: AMLs on the opposite
// side of the statement amount, in the transaction currency when the rule requires it, of the
// partner when one is known and not older than the rule's month limit.
func (r *Recon) invoiceMatchingDomain(rule *model.ReconcileModel, stLine *model.StatementLine, partner *model.Partner) *filter.QueryFilterSet {
	var extra []filter.QueryFilter

	if stLine.Amount.IsPositive() {
		extra = append(extra, filter.QueryFilter{Field: "balance", Operator: filter.OpLessThan, Value: 0})
	} else {
		extra = append(extra, filter.QueryFilter{Field: "balance", Operator: filter.OpGreaterThan, Value: 0})
	}

	if rule.Invoice.SameCurrency {
		extra = append(extra, filter.QueryFilter{Field: "currency_id", Operator: filter.OpEqual, Value: stLine.TransactionCurrency().ID})
	}

	if partner != nil {
		extra = append(extra, filter.QueryFilter{Field: "partner_id", Operator: filter.OpEqual, Value: partner.ID})
	}

	if rule.Invoice.PastMonthsLimit != nil {
		limit := subtractMonths(r.now(), *rule.Invoice.PastMonthsLimit)
		extra = append(extra, filter.QueryFilter{Field: "date", Operator: filter.OpGreaterThanOrEqual, Value: limit})
	}

	return r.datasource.AmlsMatchingDomain(stLine).With(extra...)
}

// invoiceMatchingAmlsCandidates looks up the AMLs matching the statement line text first.
// When the text lookup finds nothing although tokens were extracted, the rule has nothing to propose.
// Without tokens it falls back to AMLs whose residual equals the statement residual when the partner
// is unknown, or to every AML of the partner otherwise.
func (r *Recon) invoiceMatchingAmlsCandidates(ctx context.Context, rule *model.ReconcileModel, stLine *model.StatementLine, partner *model.Partner) (*amlCandidates, error) {
	ctx, span := otel.Tracer("Recon").Start(ctx, "Finding invoice matching candidates",
		trace.WithAttributes(attribute.Int64("model_id", rule.ID), attribute.Int64("statement_line_id", stLine.ID)))
	defer span.End()

	domain := r.invoiceMatchingDomain(rule, stLine, partner)
	newFirst := rule.Invoice.MatchingOrder == model.MatchingOrderNewFirst

	if rule.Invoice.AnyTextLocation() {
		tokens := tokenize(r.datasource.StLineStringsForMatching(stLine, rule.Invoice.TextLocations()))
		if !tokens.Empty() {
			query, err := filter.TokenCandidateQuery(domain, tokens.Lookup(), newFirst)
			if err != nil {
				return nil, errors.Wrap(err, "building token candidate query")
			}
			amls, err := r.fetchCandidates(ctx, query)
			if err != nil {
				return nil, err
			}
			if len(amls) > 0 {
				return &amlCandidates{AMLs: amls, AllowAutoReconcile: true}, nil
			}

			logrus.WithFields(logrus.Fields{
				"statement_line_id": stLine.ID,
				"model_id":          rule.ID,
				"tokens":            len(tokens.Lookup()),
			}).Debug("text lookup found no candidate, skipping fallbacks")
			return nil, nil
		}
	}

	if partner == nil {
		currency := stLine.TransactionCurrency()
		residualField := "amount_residual_currency"
		if currency.Equal(stLine.CompanyCurrency) {
			residualField = "amount_residual"
		}

		exactDomain := domain.With(filter.QueryFilter{Field: "currency_id", Operator: filter.OpEqual, Value: currency.ID})
		query, err := filter.ExactAmountQuery(exactDomain, residualField, stLine.AmountResidual.Neg(), currency.DecimalPlaces, newFirst)
		if err != nil {
			return nil, errors.Wrap(err, "building exact amount query")
		}
		amls, err := r.fetchCandidates(ctx, query)
		if err != nil {
			return nil, err
		}
		if len(amls) > 0 {
			return &amlCandidates{AMLs: amls}, nil
		}
		return nil, nil
	}

	query, err := filter.DomainSearchQuery(domain, newFirst)
	if err != nil {
		return nil, errors.Wrap(err, "building partner candidate query")
	}
	amls, err := r.fetchCandidates(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(amls) == 0 {
		return nil, nil
	}
	return &amlCandidates{AMLs: amls}, nil
}

func (r *Recon) fetchCandidates(ctx context.Context, query *filter.Query) ([]*model.MoveLine, error) {
	ids, err := r.datasource.SelectMoveLineIDs(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "selecting candidate move lines")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	amls, err := r.datasource.GetMoveLines(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "reading candidate move lines")
	}
	return amls, nil
}
