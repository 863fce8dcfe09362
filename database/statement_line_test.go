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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/blnkfinance/recon/internal/apierror"
	"github.com/blnkfinance/recon/internal/filter"
	"github.com/blnkfinance/recon/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stLineRowColumns = []string{
	"id", "move_id", "journal_id", "company_id", "partner_id", "date",
	"amount", "amount_currency", "amount_residual", "company_amount",
	"payment_ref", "narration", "ref", "transaction_type", "is_reconciled",
	"jc_id", "jc_name", "jc_decimal_places",
	"cc_id", "cc_name", "cc_decimal_places",
	"fc_id", "fc_name", "fc_decimal_places",
}

func decimalFromString(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestAmlsMatchingDomain(t *testing.T) {
	stLine := &model.StatementLine{ID: 1, CompanyID: 7}
	domain := StatementLines{}.AmlsMatchingDomain(stLine)

	require.NoError(t, filter.Validate(domain, filter.TableMoveLines))

	built, err := filter.Build(domain, filter.TableMoveLines, "aml", 1)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"aml.company_id = $1",
		"aml.parent_state = $2",
		"aml.reconciled = $3",
		"aml.statement_line_id IS NULL",
		"((aml.display_type IS NULL) OR (NOT (aml.display_type = ANY($4))))",
		"((aml.amount_residual != $5) OR (aml.amount_residual_currency != $6))",
		"((aml.account_type = ANY($7)) OR (aml.account_reconcile = $8 AND NOT (aml.account_type = ANY($9))))",
	}, built.Conditions)
	assert.Equal(t, int64(7), built.Args[0])
	assert.Equal(t, "posted", built.Args[1])
	assert.Equal(t, false, built.Args[2])
	assert.Equal(t, 10, built.NextArgPos)
}

func TestStatementLineHelpersDelegate(t *testing.T) {
	usd := &model.Currency{ID: 1, Name: "USD", DecimalPlaces: 2}
	stLine := &model.StatementLine{
		Amount:          decimalFromString("100.00"),
		AmountResidual:  decimalFromString("100.00"),
		Currency:        usd,
		CompanyCurrency: usd,
		PaymentRef:      "INV/2024/0042",
		Narration:       "<p>paid</p>",
	}

	helpers := StatementLines{}
	vals := helpers.PrepareMoveLineDefaultVals(stLine)
	require.Len(t, vals, 2)
	assert.True(t, vals[1].AmountCurrency.Equal(decimalFromString("100")))

	counterpart := helpers.PrepareCounterpartAmountsUsingStLineRate(stLine, usd, decimalFromString("-40"), decimalFromString("-40"))
	assert.True(t, counterpart.AmountCurrency.Equal(decimalFromString("-40")))

	assert.Equal(t, []string{"INV/2024/0042", "paid"},
		helpers.StLineStringsForMatching(stLine, []model.TextLocation{model.TextLocationLabel, model.TextLocationNote}))
}

func TestGetStatementLine_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(stLineRowColumns).AddRow(
		int64(10), int64(100), int64(3), int64(1), int64(42), date,
		"120.50", "0", "120.50", "0",
		"INV/2024/0042", "<p>thanks</p>", "REF-1", "transfer", false,
		int64(2), "EUR", int32(2),
		int64(1), "USD", int32(2),
		nil, nil, nil,
	)
	mock.ExpectQuery("SELECT (.+) FROM recon.account_bank_statement_line l").
		WithArgs(int64(10)).
		WillReturnRows(rows)

	stLine, err := ds.GetStatementLine(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, int64(10), stLine.ID)
	assert.Equal(t, int64(42), *stLine.PartnerID)
	assert.Equal(t, "EUR", stLine.Currency.Name)
	assert.Equal(t, "USD", stLine.CompanyCurrency.Name)
	assert.Nil(t, stLine.ForeignCurrency)
	assert.True(t, stLine.Amount.Equal(decimalFromString("120.5")))
	assert.Equal(t, "INV/2024/0042", stLine.PaymentRef)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStatementLine_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	mock.ExpectQuery("SELECT (.+) FROM recon.account_bank_statement_line l").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	stLine, err := ds.GetStatementLine(context.Background(), 99)
	assert.Nil(t, stLine)
	require.Error(t, err)

	var apiErr apierror.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStatementLinesToReconcile(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(stLineRowColumns).
		AddRow(int64(1), int64(100), int64(3), int64(1), nil, date,
			"50", "45", "50", "0", "a", "", "", "", false,
			int64(1), "USD", int32(2), int64(1), "USD", int32(2), int64(2), "EUR", int32(2)).
		AddRow(int64(2), int64(101), int64(3), int64(1), nil, date.AddDate(0, 0, 1),
			"-20", "0", "-20", "0", "b", "", "", "", false,
			int64(1), "USD", int32(2), int64(1), "USD", int32(2), nil, nil, nil)

	mock.ExpectQuery("ORDER BY ck.last_checked_at ASC NULLS FIRST").
		WithArgs(int64(1), 50).
		WillReturnRows(rows)

	lines, err := ds.GetStatementLinesToReconcile(context.Background(), 1, 50)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Nil(t, lines[0].PartnerID)
	assert.Equal(t, "EUR", lines[0].ForeignCurrency.Name)
	assert.Nil(t, lines[1].ForeignCurrency)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListStatementLines(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	filters := &filter.QueryFilterSet{Filters: []filter.QueryFilter{
		{Field: "company_id", Operator: filter.OpEqual, Value: int64(1)},
		{Field: "is_reconciled", Operator: filter.OpEqual, Value: false},
	}}

	mock.ExpectQuery("WHERE l.company_id = \\$1 AND l.is_reconciled = \\$2 ORDER BY l.amount ASC, l.id DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs(int64(1), false, 20, 0).
		WillReturnRows(sqlmock.NewRows(stLineRowColumns))

	lines, err := ds.ListStatementLines(context.Background(), filters, &filter.QueryOptions{SortBy: "amount", SortOrder: filter.SortAsc}, 0, -5)
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListStatementLines_InvalidFilter(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	filters := &filter.QueryFilterSet{Filters: []filter.QueryFilter{
		{Field: "narration; DROP TABLE", Operator: filter.OpEqual, Value: "x"},
	}}

	_, err = ds.ListStatementLines(context.Background(), filters, nil, 10, 0)
	require.Error(t, err)
	code, ok := apierror.CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrBadRequest, code)
}

func TestGetCompaniesToReconcile(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	mock.ExpectQuery("SELECT DISTINCT company_id FROM recon.account_bank_statement_line").
		WillReturnRows(sqlmock.NewRows([]string{"company_id"}).AddRow(int64(1)).AddRow(int64(4)))

	companies, err := ds.GetCompaniesToReconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, companies)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkStatementLinesChecked(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	checkedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO recon.statement_line_checks").
		WithArgs(sqlmock.AnyArg(), checkedAt).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, ds.MarkStatementLinesChecked(context.Background(), []int64{1, 2}, checkedAt))
	require.NoError(t, ds.MarkStatementLinesChecked(context.Background(), nil, checkedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}
