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
	"strings"

	"github.com/blnkfinance/recon/internal/plaintext"
	"github.com/blnkfinance/recon/model"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

// partnerMappingFor returns the first partner mapping of rule matching the statement line text.
// payment_ref_regex is matched against the payment reference and narration_regex against the
// narration converted to plain text, in dot-all mode. A missing regex always matches, a missing
// payment reference never matches a regex.
func partnerMappingFor(rule *model.ReconcileModel, stLine *model.StatementLine) (*model.PartnerMapping, bool) {
	if rule.RuleType != model.RuleTypeInvoiceMatching && rule.RuleType != model.RuleTypeWriteoffSuggestion {
		return nil, false
	}

	narration := strings.TrimRight(plaintext.FromHTML(stLine.Narration), " \t\r\n")
	for i := range rule.PartnerMappings {
		mapping := &rule.PartnerMappings[i]

		if mapping.PaymentRefRegex != "" {
			if stLine.PaymentRef == "" || !matchPrefix("", mapping.PaymentRefRegex, stLine.PaymentRef) {
				continue
			}
		}
		if mapping.NarrationRegex != "" && !matchPrefix("(?s)", mapping.NarrationRegex, narration) {
			continue
		}
		return mapping, true
	}
	return nil, false
}

// partnerFromMapping resolves the partner a rule maps the statement line to.
// It returns nil when the line already has a partner or no mapping matches.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - rule *model.ReconcileModel: The rule holding the partner mappings.
// - stLine *model.StatementLine: The statement line to resolve.
//
// Returns:
// - *model.Partner: The mapped partner, or nil.
// - error: If the mapped partner cannot be read.
func (r *Recon) partnerFromMapping(ctx context.Context, rule *model.ReconcileModel, stLine *model.StatementLine) (*model.Partner, error) {
	if stLine.PartnerID != nil {
		return nil, nil
	}

	mapping, ok := partnerMappingFor(rule, stLine)
	if !ok {
		return nil, nil
	}

	partner, err := r.datasource.GetPartner(ctx, mapping.PartnerID)
	if err != nil {
		return nil, errors.Wrapf(err, "reading partner %d mapped by reconcile model %d", mapping.PartnerID, rule.ID)
	}
	return partner, nil
}

// RetrievePartner returns the partner to match a statement line with: the line's own partner when set,
// otherwise the partner mapped by the first rule, in sequence order, that maps one and is applicable
// with it. It returns nil when no partner is found.
func (r *Recon) RetrievePartner(ctx context.Context, stLine *model.StatementLine, rules []*model.ReconcileModel) (*model.Partner, error) {
	ctx, span := otel.Tracer("Recon").Start(ctx, "Retrieving partner")
	defer span.End()

	if stLine.PartnerID != nil {
		partner, err := r.datasource.GetPartner(ctx, *stLine.PartnerID)
		if err != nil {
			return nil, errors.Wrapf(err, "reading partner %d of statement line %d", *stLine.PartnerID, stLine.ID)
		}
		return partner, nil
	}

	for _, rule := range model.SortReconcileModels(rules) {
		partner, err := r.partnerFromMapping(ctx, rule, stLine)
		if err != nil {
			return nil, err
		}
		if partner != nil && isApplicable(rule, stLine, partner) {
			return partner, nil
		}
	}
	return nil, nil
}
