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

package database

import (
	"context"
	"database/sql"

	"github.com/blnkfinance/recon/internal/apierror"
	"github.com/blnkfinance/recon/internal/filter"
	"github.com/blnkfinance/recon/model"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SelectMoveLineIDs executes a candidate query built by the filter package and returns the AML ids
// in row order. Ranked queries carry a match count next to the id; it only drives the ordering.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - query *filter.Query: The parameterized query.
//
// Returns:
// - []int64: The AML ids, possibly empty.
// - error: An internal error if the query fails.
func (d Datasource) SelectMoveLineIDs(ctx context.Context, query *filter.Query) ([]int64, error) {
	ctx, span := otel.Tracer("MoveLine").Start(ctx, "Selecting candidate move lines",
		trace.WithAttributes(attribute.Bool("ranked", query.Ranked)))
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, query.SQL, query.Args...)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to select move lines", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if query.Ranked {
			var matches int64
			err = rows.Scan(&id, &matches)
		} else {
			err = rows.Scan(&id)
		}
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan move line id", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "error occurred while iterating over move lines", err)
	}

	span.SetAttributes(attribute.Int("candidates", len(ids)))
	return ids, nil
}

// GetMoveLines loads the AMLs with the given ids together with their move, currency and
// partial reconciliation links. The result follows the order of ids; unknown ids are skipped.
func (d Datasource) GetMoveLines(ctx context.Context, ids []int64) ([]*model.MoveLine, error) {
	ctx, span := otel.Tracer("MoveLine").Start(ctx, "Fetching move lines from db")
	defer span.End()

	if len(ids) == 0 {
		return []*model.MoveLine{}, nil
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT aml.id, aml.move_id, COALESCE(m.name, ''), COALESCE(m.ref, ''), m.move_type,
			COALESCE(aml.name, ''), aml.partner_id, aml.account_id, aml.company_id,
			cur.id, cur.name, cur.decimal_places,
			aml.balance, aml.amount_currency, aml.amount_residual, aml.amount_residual_currency,
			aml.date, aml.date_maturity, aml.discount_date, aml.discount_amount_currency,
			ARRAY(SELECT p.id FROM recon.account_partial_reconcile p WHERE p.credit_move_id = aml.id ORDER BY p.id),
			ARRAY(SELECT p.id FROM recon.account_partial_reconcile p WHERE p.debit_move_id = aml.id ORDER BY p.id)
		FROM recon.account_move_line aml
		JOIN recon.account_move m ON m.id = aml.move_id
		JOIN recon.res_currency cur ON cur.id = aml.currency_id
		WHERE aml.id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve move lines", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[int64]*model.MoveLine, len(ids))
	for rows.Next() {
		line := &model.MoveLine{Currency: &model.Currency{}}
		var partnerID sql.NullInt64
		var dateMaturity, discountDate sql.NullTime
		var matchedDebitIDs, matchedCreditIDs pq.Int64Array

		err = rows.Scan(
			&line.ID, &line.MoveID, &line.MoveName, &line.MoveRef, &line.MoveType,
			&line.Name, &partnerID, &line.AccountID, &line.CompanyID,
			&line.Currency.ID, &line.Currency.Name, &line.Currency.DecimalPlaces,
			&line.Balance, &line.AmountCurrency, &line.AmountResidual, &line.AmountResidualCurrency,
			&line.Date, &dateMaturity, &discountDate, &line.DiscountAmountCurrency,
			&matchedDebitIDs, &matchedCreditIDs,
		)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan move line", err)
		}

		if partnerID.Valid {
			id := partnerID.Int64
			line.PartnerID = &id
		}
		if dateMaturity.Valid {
			t := dateMaturity.Time
			line.DateMaturity = &t
		}
		if discountDate.Valid {
			t := discountDate.Time
			line.DiscountDate = &t
		}
		line.MatchedDebitIDs = matchedDebitIDs
		line.MatchedCreditIDs = matchedCreditIDs
		byID[line.ID] = line
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "error occurred while iterating over move lines", err)
	}

	lines := make([]*model.MoveLine, 0, len(byID))
	for _, id := range ids {
		if line, ok := byID[id]; ok {
			lines = append(lines, line)
		}
	}
	return lines, nil
}
