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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blnkfinance/recon/internal/apierror"
	"github.com/blnkfinance/recon/internal/filter"
	"github.com/blnkfinance/recon/model"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
)

const (
	stLineColumns = `l.id, l.move_id, l.journal_id, l.company_id, l.partner_id, l.date,
		l.amount, l.amount_currency, l.amount_residual, l.company_amount,
		l.payment_ref, l.narration, l.ref, l.transaction_type, l.is_reconciled,
		jc.id, jc.name, jc.decimal_places,
		cc.id, cc.name, cc.decimal_places,
		fc.id, fc.name, fc.decimal_places`

	stLineFrom = `recon.account_bank_statement_line l
		JOIN recon.account_journal j ON j.id = l.journal_id
		JOIN recon.res_company c ON c.id = l.company_id
		JOIN recon.res_currency cc ON cc.id = c.currency_id
		LEFT JOIN recon.res_currency jc ON jc.id = COALESCE(l.currency_id, j.currency_id)
		LEFT JOIN recon.res_currency fc ON fc.id = l.foreign_currency_id`
)

var (
	receivablePayableTypes = []interface{}{"asset_receivable", "liability_payable"}
	liquidityTypes         = []interface{}{"asset_cash", "liability_credit_card"}
	nonAccountingLines     = []interface{}{"line_section", "line_note"}
)

// StatementLines holds the statement-line helpers that only read the record itself.
// Datasource embeds it so the helpers are part of IDataSource.
type StatementLines struct{}

// AmlsMatchingDomain returns the filters selecting the open journal items stLine can be matched with:
// posted items of the same company that are neither reconciled nor already tied to a statement line,
// on a receivable/payable account or on any other reconcilable account that is not a liquidity account.
//
// Parameters:
// - stLine *model.StatementLine: The statement line being matched.
//
// Returns:
// - *filter.QueryFilterSet: The base domain, validated against account_move_line.
func (StatementLines) AmlsMatchingDomain(stLine *model.StatementLine) *filter.QueryFilterSet {
	return &filter.QueryFilterSet{Filters: []filter.QueryFilter{
		{Field: "company_id", Operator: filter.OpEqual, Value: stLine.CompanyID},
		{Field: "parent_state", Operator: filter.OpEqual, Value: "posted"},
		{Field: "reconciled", Operator: filter.OpEqual, Value: false},
		{Field: "statement_line_id", Operator: filter.OpIsNull},
		filter.AnyOf(
			filter.QueryFilterSet{Filters: []filter.QueryFilter{
				{Field: "display_type", Operator: filter.OpIsNull},
			}},
			filter.QueryFilterSet{Filters: []filter.QueryFilter{
				{Field: "display_type", Operator: filter.OpNotIn, Values: nonAccountingLines},
			}},
		),
		filter.AnyOf(
			filter.QueryFilterSet{Filters: []filter.QueryFilter{
				{Field: "amount_residual", Operator: filter.OpNotEqual, Value: 0},
			}},
			filter.QueryFilterSet{Filters: []filter.QueryFilter{
				{Field: "amount_residual_currency", Operator: filter.OpNotEqual, Value: 0},
			}},
		),
		filter.AnyOf(
			filter.QueryFilterSet{Filters: []filter.QueryFilter{
				{Field: "account_type", Operator: filter.OpIn, Values: receivablePayableTypes},
			}},
			filter.QueryFilterSet{Filters: []filter.QueryFilter{
				{Field: "account_reconcile", Operator: filter.OpEqual, Value: true},
				{Field: "account_type", Operator: filter.OpNotIn, Values: liquidityTypes},
			}},
		),
	}}
}

func (StatementLines) PrepareMoveLineDefaultVals(stLine *model.StatementLine) []model.MoveLineVals {
	return stLine.PrepareMoveLineDefaultVals()
}

func (StatementLines) PrepareCounterpartAmountsUsingStLineRate(stLine *model.StatementLine, currency *model.Currency, balance, amountCurrency decimal.Decimal) model.CounterpartAmounts {
	return stLine.PrepareCounterpartAmountsUsingStLineRate(currency, balance, amountCurrency)
}

func (StatementLines) StLineStringsForMatching(stLine *model.StatementLine, locations []model.TextLocation) []string {
	return stLine.StringsForMatching(locations)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type nullCurrency struct {
	id     sql.NullInt64
	name   sql.NullString
	places sql.NullInt32
}

func (n *nullCurrency) targets() []interface{} {
	return []interface{}{&n.id, &n.name, &n.places}
}

func (n *nullCurrency) currency() *model.Currency {
	if !n.id.Valid {
		return nil
	}
	return &model.Currency{ID: n.id.Int64, Name: n.name.String, DecimalPlaces: n.places.Int32}
}

func scanStatementLine(row rowScanner) (*model.StatementLine, error) {
	stLine := &model.StatementLine{}
	var partnerID sql.NullInt64
	var journalCurrency, companyCurrency, foreignCurrency nullCurrency

	dest := []interface{}{
		&stLine.ID, &stLine.MoveID, &stLine.JournalID, &stLine.CompanyID, &partnerID, &stLine.Date,
		&stLine.Amount, &stLine.AmountCurrency, &stLine.AmountResidual, &stLine.CompanyAmount,
		&stLine.PaymentRef, &stLine.Narration, &stLine.Ref, &stLine.TransactionType, &stLine.IsReconciled,
	}
	dest = append(dest, journalCurrency.targets()...)
	dest = append(dest, companyCurrency.targets()...)
	dest = append(dest, foreignCurrency.targets()...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if partnerID.Valid {
		id := partnerID.Int64
		stLine.PartnerID = &id
	}
	stLine.Currency = journalCurrency.currency()
	stLine.CompanyCurrency = companyCurrency.currency()
	stLine.ForeignCurrency = foreignCurrency.currency()
	return stLine, nil
}

// GetStatementLine retrieves a statement line with its journal, company and foreign currencies.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - id int64: The ID of the statement line.
//
// Returns:
// - *model.StatementLine: The statement line.
// - error: A NOT_FOUND error if no line has this ID, or an internal error.
func (d Datasource) GetStatementLine(ctx context.Context, id int64) (*model.StatementLine, error) {
	ctx, span := otel.Tracer("StatementLine").Start(ctx, "Fetching statement line from db")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE l.id = $1`, stLineColumns, stLineFrom), id)
	stLine, err := scanStatementLine(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("statement line with ID '%d' not found", id), err)
		}
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve statement line", err)
	}

	return stLine, nil
}

// GetStatementLinesToReconcile returns up to limit unreconciled statement lines of a company.
// Lines never checked by an auto-reconcile run come first, then the least recently checked ones,
// so lines that keep failing to match do not starve the rest.
func (d Datasource) GetStatementLinesToReconcile(ctx context.Context, companyID int64, limit int) ([]*model.StatementLine, error) {
	ctx, span := otel.Tracer("StatementLine").Start(ctx, "Fetching statement lines to reconcile")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM %s
		LEFT JOIN recon.statement_line_checks ck ON ck.statement_line_id = l.id
		WHERE l.company_id = $1 AND NOT l.is_reconciled
		ORDER BY ck.last_checked_at ASC NULLS FIRST, l.date ASC, l.id ASC
		LIMIT $2`, stLineColumns, stLineFrom), companyID, limit)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve statement lines", err)
	}
	defer func() { _ = rows.Close() }()

	return collectStatementLines(rows)
}

// MarkStatementLinesChecked records that an auto-reconcile run looked at the given lines at checkedAt.
func (d Datasource) MarkStatementLinesChecked(ctx context.Context, ids []int64, checkedAt time.Time) error {
	ctx, span := otel.Tracer("StatementLine").Start(ctx, "Marking statement lines as checked")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO recon.statement_line_checks (statement_line_id, last_checked_at)
		SELECT UNNEST($1::bigint[]), $2
		ON CONFLICT (statement_line_id) DO UPDATE SET last_checked_at = EXCLUDED.last_checked_at`,
		pq.Array(ids), checkedAt)
	if err != nil {
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to mark statement lines as checked", err)
	}
	return nil
}

// ListStatementLines retrieves statement lines with filtering, sorting and pagination.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - filters *filter.QueryFilterSet: The filter conditions on account_bank_statement_line.
// - opts *filter.QueryOptions: Sorting options. Defaults to date descending.
// - limit int: Maximum number of lines, defaults to 20 and is capped at 100.
// - offset int: Number of lines to skip.
//
// Returns:
// - []*model.StatementLine: The matching lines.
// - error: A BAD_REQUEST error for invalid filters or sort fields, or an internal error.
func (d Datasource) ListStatementLines(ctx context.Context, filters *filter.QueryFilterSet, opts *filter.QueryOptions, limit, offset int) ([]*model.StatementLine, error) {
	ctx, span := otel.Tracer("StatementLine").Start(ctx, "Listing statement lines")
	defer span.End()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	result, err := filter.BuildWithOptions(filters, filter.TableStatementLines, "l", 1, opts)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("Invalid filter: %s", err.Error()), err)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", stLineColumns, stLineFrom)
	if len(result.Conditions) > 0 {
		query += " WHERE " + strings.Join(result.Conditions, " AND ")
	}
	query += " ORDER BY " + result.OrderBy + ", l.id DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", result.NextArgPos, result.NextArgPos+1)

	args := append(result.Args, limit, offset)
	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve statement lines", err)
	}
	defer func() { _ = rows.Close() }()

	return collectStatementLines(rows)
}

func collectStatementLines(rows *sql.Rows) ([]*model.StatementLine, error) {
	lines := make([]*model.StatementLine, 0)
	for rows.Next() {
		stLine, err := scanStatementLine(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan statement line", err)
		}
		lines = append(lines, stLine)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "error occurred while iterating over statement lines", err)
	}
	return lines, nil
}

// GetCompaniesToReconcile returns the companies holding at least one unreconciled statement line.
func (d Datasource) GetCompaniesToReconcile(ctx context.Context) ([]int64, error) {
	ctx, span := otel.Tracer("StatementLine").Start(ctx, "Fetching companies to reconcile")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT DISTINCT company_id FROM recon.account_bank_statement_line
		WHERE NOT is_reconciled
		ORDER BY company_id`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve companies", err)
	}
	defer func() { _ = rows.Close() }()

	var companies []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan company", err)
		}
		companies = append(companies, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "error occurred while iterating over companies", err)
	}
	return companies, nil
}
