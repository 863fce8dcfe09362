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
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/blnkfinance/recon/internal/apierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPartner(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	mock.ExpectQuery("FROM recon.res_partner p").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category_ids"}).AddRow(int64(42), "Acme Corp", "{3,9}"))

	partner, err := ds.GetPartner(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", partner.Name)
	assert.Equal(t, []int64{3, 9}, partner.CategoryIDs)
	assert.True(t, partner.HasAnyCategory([]int64{9}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPartner_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	mock.ExpectQuery("FROM recon.res_partner p").
		WithArgs(int64(1)).
		WillReturnError(sql.ErrNoRows)

	partner, err := ds.GetPartner(context.Background(), 1)
	assert.Nil(t, partner)
	code, ok := apierror.CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, code)
}
