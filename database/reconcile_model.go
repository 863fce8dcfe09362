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
	"time"

	"github.com/blnkfinance/recon/internal/apierror"
	"github.com/blnkfinance/recon/internal/cache"
	"github.com/blnkfinance/recon/model"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultRuleCacheTTL = 5 * time.Minute

func reconcileModelsCacheKey(companyID int64) string {
	return fmt.Sprintf("recon:reconcile-models:%d", companyID)
}

func (d Datasource) ruleCacheTTL() time.Duration {
	if d.RuleCacheTTL > 0 {
		return d.RuleCacheTTL
	}
	return defaultRuleCacheTTL
}

// GetReconcileModels returns the active reconcile models of a company ordered by sequence, with their
// journal, partner and partner category restrictions, write-off lines and partner mappings.
// The result is cached per company.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - companyID int64: The company owning the rules.
//
// Returns:
// - []*model.ReconcileModel: The rules, possibly empty.
// - error: An internal error if any of the reads fail.
func (d Datasource) GetReconcileModels(ctx context.Context, companyID int64) ([]*model.ReconcileModel, error) {
	ctx, span := otel.Tracer("ReconcileModel").Start(ctx, "Fetching reconcile models")
	defer span.End()

	cacheKey := reconcileModelsCacheKey(companyID)
	if d.Cache != nil {
		var cached []*model.ReconcileModel
		err := d.Cache.Get(ctx, cacheKey, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logrus.WithError(err).WithField("company_id", companyID).Warn("failed to read reconcile models from cache")
		}
	}

	models, err := d.loadReconcileModels(ctx, companyID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if d.Cache != nil {
		if err := d.Cache.Set(ctx, cacheKey, models, d.ruleCacheTTL()); err != nil {
			logrus.WithError(err).WithField("company_id", companyID).Warn("failed to cache reconcile models")
		}
	}

	return models, nil
}

// InvalidateReconcileModels drops the cached rule set of a company.
func (d Datasource) InvalidateReconcileModels(ctx context.Context, companyID int64) error {
	if d.Cache == nil {
		return nil
	}
	return d.Cache.Delete(ctx, reconcileModelsCacheKey(companyID))
}

func (d Datasource) loadReconcileModels(ctx context.Context, companyID int64) ([]*model.ReconcileModel, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, name, sequence, company_id, rule_type, auto_reconcile,
			match_nature, match_amount, match_amount_min, match_amount_max,
			match_label, match_label_param, match_note, match_note_param,
			match_transaction_type, match_transaction_type_param, match_partner,
			match_text_location_label, match_text_location_note, match_text_location_reference,
			match_same_currency, past_months_limit, matching_order,
			allow_payment_tolerance, payment_tolerance_type, payment_tolerance_param
		FROM recon.account_reconcile_model
		WHERE company_id = $1 AND active
		ORDER BY sequence, id
	`, companyID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve reconcile models", err)
	}
	defer func() { _ = rows.Close() }()

	models := make([]*model.ReconcileModel, 0)
	byID := make(map[int64]*model.ReconcileModel)
	ids := make([]int64, 0)
	for rows.Next() {
		m := &model.ReconcileModel{}
		var invoice model.InvoiceMatching
		var pastMonthsLimit sql.NullInt64

		err = rows.Scan(
			&m.ID, &m.Name, &m.Sequence, &m.CompanyID, &m.RuleType, &m.AutoReconcile,
			&m.Conditions.Nature, &m.Conditions.Amount, &m.Conditions.AmountMin, &m.Conditions.AmountMax,
			&m.Conditions.Label.Condition, &m.Conditions.Label.Param,
			&m.Conditions.Note.Condition, &m.Conditions.Note.Param,
			&m.Conditions.TransactionType.Condition, &m.Conditions.TransactionType.Param,
			&m.Conditions.Partner,
			&invoice.TextLocationLabel, &invoice.TextLocationNote, &invoice.TextLocationReference,
			&invoice.SameCurrency, &pastMonthsLimit, &invoice.MatchingOrder,
			&invoice.AllowPaymentTolerance, &invoice.PaymentToleranceType, &invoice.PaymentToleranceParam,
		)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan reconcile model", err)
		}

		if m.RuleType == model.RuleTypeInvoiceMatching {
			if pastMonthsLimit.Valid {
				limit := int(pastMonthsLimit.Int64)
				invoice.PastMonthsLimit = &limit
			}
			m.Invoice = &invoice
		}

		models = append(models, m)
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "error occurred while iterating over reconcile models", err)
	}

	if len(ids) == 0 {
		return models, nil
	}

	if err := d.loadReconcileModelLinks(ctx, ids, byID); err != nil {
		return nil, err
	}
	if err := d.loadWriteOffLines(ctx, ids, byID); err != nil {
		return nil, err
	}
	if err := d.loadPartnerMappings(ctx, ids, byID); err != nil {
		return nil, err
	}

	return models, nil
}

func (d Datasource) loadReconcileModelLinks(ctx context.Context, ids []int64, byID map[int64]*model.ReconcileModel) error {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT model_id, 'journal' AS kind, journal_id AS target_id FROM recon.account_reconcile_model_journal_rel WHERE model_id = ANY($1)
		UNION ALL
		SELECT model_id, 'partner', partner_id FROM recon.account_reconcile_model_partner_rel WHERE model_id = ANY($1)
		UNION ALL
		SELECT model_id, 'category', category_id FROM recon.account_reconcile_model_partner_category_rel WHERE model_id = ANY($1)
		ORDER BY 1, 2, 3
	`, pq.Array(ids))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve reconcile model restrictions", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var modelID, targetID int64
		var kind string
		if err := rows.Scan(&modelID, &kind, &targetID); err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan reconcile model restriction", err)
		}
		m, ok := byID[modelID]
		if !ok {
			continue
		}
		switch kind {
		case "journal":
			m.Conditions.JournalIDs = append(m.Conditions.JournalIDs, targetID)
		case "partner":
			m.Conditions.PartnerIDs = append(m.Conditions.PartnerIDs, targetID)
		case "category":
			m.Conditions.PartnerCategoryIDs = append(m.Conditions.PartnerCategoryIDs, targetID)
		}
	}
	if err := rows.Err(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "error occurred while iterating over reconcile model restrictions", err)
	}
	return nil
}

func (d Datasource) loadWriteOffLines(ctx context.Context, ids []int64, byID map[int64]*model.ReconcileModel) error {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, model_id, account_id, label, amount_type, amount_string, sequence
		FROM recon.account_reconcile_model_line
		WHERE model_id = ANY($1)
		ORDER BY sequence, id
	`, pq.Array(ids))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve reconcile model lines", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var line model.WriteOffLine
		var modelID int64
		if err := rows.Scan(&line.ID, &modelID, &line.AccountID, &line.Label, &line.AmountType, &line.AmountString, &line.Sequence); err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan reconcile model line", err)
		}
		if m, ok := byID[modelID]; ok {
			m.Lines = append(m.Lines, line)
		}
	}
	if err := rows.Err(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "error occurred while iterating over reconcile model lines", err)
	}
	return nil
}

func (d Datasource) loadPartnerMappings(ctx context.Context, ids []int64, byID map[int64]*model.ReconcileModel) error {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, model_id, partner_id, payment_ref_regex, narration_regex
		FROM recon.account_reconcile_model_partner_mapping
		WHERE model_id = ANY($1)
		ORDER BY id
	`, pq.Array(ids))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve partner mappings", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var mapping model.PartnerMapping
		var modelID int64
		if err := rows.Scan(&mapping.ID, &modelID, &mapping.PartnerID, &mapping.PaymentRefRegex, &mapping.NarrationRegex); err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan partner mapping", err)
		}
		if m, ok := byID[modelID]; ok {
			m.PartnerMappings = append(m.PartnerMappings, mapping)
		}
	}
	if err := rows.Err(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "error occurred while iterating over partner mappings", err)
	}
	return nil
}
