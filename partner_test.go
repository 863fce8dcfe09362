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
	"testing"

	"github.com/blnkfinance/recon/database/mocks"
	"github.com/blnkfinance/recon/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPartnerMappingFor(t *testing.T) {
	tests := []struct {
		name       string
		ruleType   model.RuleType
		mappings   []model.PartnerMapping
		paymentRef string
		narration  string
		wantID     int64
		wantOK     bool
	}{
		{
			name:       "payment ref regex",
			ruleType:   model.RuleTypeInvoiceMatching,
			mappings:   []model.PartnerMapping{{ID: 1, PartnerID: 7, PaymentRefRegex: `ACME`}},
			paymentRef: "ACME CORP 42",
			wantID:     7,
			wantOK:     true,
		},
		{
			name:       "payment ref regex is case sensitive",
			ruleType:   model.RuleTypeInvoiceMatching,
			mappings:   []model.PartnerMapping{{ID: 1, PartnerID: 7, PaymentRefRegex: `ACME`}},
			paymentRef: "acme corp",
		},
		{
			name:     "payment ref regex needs a payment ref",
			ruleType: model.RuleTypeInvoiceMatching,
			mappings: []model.PartnerMapping{{ID: 1, PartnerID: 7, PaymentRefRegex: `.*`}},
		},
		{
			name:      "narration regex spans lines",
			ruleType:  model.RuleTypeWriteoffSuggestion,
			mappings:  []model.PartnerMapping{{ID: 1, PartnerID: 9, NarrationRegex: `Order.*Globex`}},
			narration: "<p>Order 1</p><p>Globex</p>",
			wantID:    9,
			wantOK:    true,
		},
		{
			name:       "first matching mapping wins",
			ruleType:   model.RuleTypeInvoiceMatching,
			mappings:   []model.PartnerMapping{{ID: 1, PartnerID: 7, PaymentRefRegex: `NOPE`}, {ID: 2, PartnerID: 8}, {ID: 3, PartnerID: 9}},
			paymentRef: "ACME",
			wantID:     8,
			wantOK:     true,
		},
		{
			name:       "writeoff_button rules never map",
			ruleType:   model.RuleTypeWriteoffButton,
			mappings:   []model.PartnerMapping{{ID: 1, PartnerID: 7}},
			paymentRef: "ACME",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := invoiceRule(1, 10)
			rule.RuleType = tt.ruleType
			rule.PartnerMappings = tt.mappings
			stLine := statementLine("100")
			stLine.PaymentRef = tt.paymentRef
			stLine.Narration = tt.narration

			mapping, ok := partnerMappingFor(rule, stLine)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantID, mapping.PartnerID)
			}
		})
	}
}

func TestRetrievePartner_OwnPartner(t *testing.T) {
	ds := new(mocks.MockDataSource)
	r := newTestRecon(ds)

	partnerID := int64(7)
	stLine := statementLine("100")
	stLine.PartnerID = &partnerID
	ds.On("GetPartner", mock.Anything, partnerID).Return(&model.Partner{ID: 7}, nil)

	partner, err := r.RetrievePartner(context.Background(), stLine, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), partner.ID)
	ds.AssertExpectations(t)
}

func TestRetrievePartner_FromMapping(t *testing.T) {
	ds := new(mocks.MockDataSource)
	r := newTestRecon(ds)

	stLine := statementLine("100")
	stLine.PaymentRef = "GLOBEX 2024"

	restricted := invoiceRule(1, 5)
	restricted.Conditions.Partner = true
	restricted.Conditions.PartnerIDs = []int64{99}
	restricted.PartnerMappings = []model.PartnerMapping{{ID: 1, PartnerID: 8, PaymentRefRegex: "GLOBEX"}}

	open := invoiceRule(2, 10)
	open.PartnerMappings = []model.PartnerMapping{{ID: 2, PartnerID: 9, PaymentRefRegex: "GLOBEX"}}

	ds.On("GetPartner", mock.Anything, int64(8)).Return(&model.Partner{ID: 8}, nil)
	ds.On("GetPartner", mock.Anything, int64(9)).Return(&model.Partner{ID: 9}, nil)

	partner, err := r.RetrievePartner(context.Background(), stLine, []*model.ReconcileModel{open, restricted})
	require.NoError(t, err)
	require.NotNil(t, partner)
	assert.Equal(t, int64(9), partner.ID)
}

func TestRetrievePartner_NoMapping(t *testing.T) {
	ds := new(mocks.MockDataSource)
	r := newTestRecon(ds)

	partner, err := r.RetrievePartner(context.Background(), statementLine("100"), []*model.ReconcileModel{invoiceRule(1, 10)})
	require.NoError(t, err)
	assert.Nil(t, partner)
	ds.AssertNotCalled(t, "GetPartner")
}

func TestRetrievePartner_ReadError(t *testing.T) {
	ds := new(mocks.MockDataSource)
	r := newTestRecon(ds)

	rule := invoiceRule(1, 10)
	rule.PartnerMappings = []model.PartnerMapping{{ID: 1, PartnerID: 8}}
	ds.On("GetPartner", mock.Anything, int64(8)).Return(nil, errors.New("connection reset"))

	_, err := r.RetrievePartner(context.Background(), statementLine("100"), []*model.ReconcileModel{rule})
	assert.ErrorContains(t, err, "connection reset")
}
