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

	"github.com/blnkfinance/recon/internal/apierror"
	"github.com/blnkfinance/recon/model"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
)

// GetPartner retrieves a partner and its category ids.
func (d Datasource) GetPartner(ctx context.Context, id int64) (*model.Partner, error) {
	ctx, span := otel.Tracer("Partner").Start(ctx, "Fetching partner from db")
	defer span.End()

	partner := &model.Partner{}
	var categoryIDs pq.Int64Array
	err := d.Conn.QueryRowContext(ctx, `
		SELECT p.id, p.name,
			ARRAY(SELECT r.category_id FROM recon.res_partner_category_rel r WHERE r.partner_id = p.id ORDER BY r.category_id)
		FROM recon.res_partner p
		WHERE p.id = $1
	`, id).Scan(&partner.ID, &partner.Name, &categoryIDs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("partner with ID '%d' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve partner", err)
	}

	partner.CategoryIDs = categoryIDs
	return partner, nil
}
