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

package model

import (
	"errors"
	"regexp"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

type RuleType string

const (
	RuleTypeInvoiceMatching    RuleType = "invoice_matching"
	RuleTypeWriteoffSuggestion RuleType = "writeoff_suggestion"
	RuleTypeWriteoffButton     RuleType = "writeoff_button"
)

type MatchNature string

const (
	MatchNatureReceived MatchNature = "amount_received"
	MatchNaturePaid     MatchNature = "amount_paid"
	MatchNatureBoth     MatchNature = "both"
)

type AmountCondition string

const (
	AmountLower   AmountCondition = "lower"
	AmountGreater AmountCondition = "greater"
	AmountBetween AmountCondition = "between"
)

type TextCondition string

const (
	TextContains    TextCondition = "contains"
	TextNotContains TextCondition = "not_contains"
	TextMatchRegex  TextCondition = "match_regex"
)

type MatchingOrder string

const (
	MatchingOrderOldFirst MatchingOrder = "old_first"
	MatchingOrderNewFirst MatchingOrder = "new_first"
)

type ToleranceType string

const (
	ToleranceFixedAmount ToleranceType = "fixed_amount"
	TolerancePercentage  ToleranceType = "percentage"
)

// TextPredicate is one contains / not_contains / match_regex condition on a statement-line field.
// An empty Condition disables the predicate.
type TextPredicate struct {
	Condition TextCondition `json:"condition,omitempty"`
	Param     string        `json:"param,omitempty"`
}

// MatchConditions are the non-match predicates shared by every rule type.
type MatchConditions struct {
	JournalIDs         []int64         `json:"match_journal_ids,omitempty"`
	Nature             MatchNature     `json:"match_nature"`
	Amount             AmountCondition `json:"match_amount,omitempty"`
	AmountMin          decimal.Decimal `json:"match_amount_min"`
	AmountMax          decimal.Decimal `json:"match_amount_max"`
	Label              TextPredicate   `json:"match_label"`
	Note               TextPredicate   `json:"match_note"`
	TransactionType    TextPredicate   `json:"match_transaction_type"`
	Partner            bool            `json:"match_partner"`
	PartnerIDs         []int64         `json:"match_partner_ids,omitempty"`
	PartnerCategoryIDs []int64         `json:"match_partner_category_ids,omitempty"`
}

// InvoiceMatching holds the settings only invoice_matching rules carry.
type InvoiceMatching struct {
	TextLocationLabel     bool            `json:"match_text_location_label"`
	TextLocationNote      bool            `json:"match_text_location_note"`
	TextLocationReference bool            `json:"match_text_location_reference"`
	SameCurrency          bool            `json:"match_same_currency"`
	PastMonthsLimit       *int            `json:"past_months_limit,omitempty"`
	MatchingOrder         MatchingOrder   `json:"matching_order"`
	AllowPaymentTolerance bool            `json:"allow_payment_tolerance"`
	PaymentToleranceType  ToleranceType   `json:"payment_tolerance_type,omitempty"`
	PaymentToleranceParam decimal.Decimal `json:"payment_tolerance_param"`
}

// TextLocations returns the statement-line fields the rule tokenizes.
func (im *InvoiceMatching) TextLocations() []TextLocation {
	var locations []TextLocation
	if im.TextLocationLabel {
		locations = append(locations, TextLocationLabel)
	}
	if im.TextLocationNote {
		locations = append(locations, TextLocationNote)
	}
	if im.TextLocationReference {
		locations = append(locations, TextLocationReference)
	}
	return locations
}

// AnyTextLocation reports whether the rule declared a textual matching intent.
func (im *InvoiceMatching) AnyTextLocation() bool {
	return im.TextLocationLabel || im.TextLocationNote || im.TextLocationReference
}

// WriteOffLine is a write-off template line of a rule.
type WriteOffLine struct {
	ID           int64  `json:"id"`
	AccountID    int64  `json:"account_id"`
	Label        string `json:"label"`
	AmountType   string `json:"amount_type"`
	AmountString string `json:"amount_string"`
	Sequence     int    `json:"sequence"`
}

// PartnerMapping maps statement-line text to a partner. An empty regex always matches.
type PartnerMapping struct {
	ID              int64  `json:"id"`
	PartnerID       int64  `json:"partner_id"`
	PaymentRefRegex string `json:"payment_ref_regex,omitempty"`
	NarrationRegex  string `json:"narration_regex,omitempty"`
}

// ReconcileModel is a declarative matching rule. RuleType tags the variant: Invoice is set
// exactly when RuleType is invoice_matching.
type ReconcileModel struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	Sequence        int              `json:"sequence"`
	CompanyID       int64            `json:"company_id"`
	RuleType        RuleType         `json:"rule_type"`
	AutoReconcile   bool             `json:"auto_reconcile"`
	Conditions      MatchConditions  `json:"conditions"`
	Invoice         *InvoiceMatching `json:"invoice_matching,omitempty"`
	Lines           []WriteOffLine   `json:"line_ids,omitempty"`
	PartnerMappings []PartnerMapping `json:"partner_mapping_lines,omitempty"`
}

// HasWriteOffLines reports whether the rule can generate a write-off.
func (m *ReconcileModel) HasWriteOffLines() bool {
	return len(m.Lines) > 0
}

func validRegex(value interface{}) error {
	pattern, _ := value.(string)
	if pattern == "" {
		return nil
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return errors.New("must be a valid regular expression")
	}
	return nil
}

func nonNegative(value interface{}) error {
	d, ok := value.(decimal.Decimal)
	if ok && d.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
}

// Validate checks the rule definition. A rule failing validation cannot be evaluated.
func (m *ReconcileModel) Validate() error {
	return validation.ValidateStruct(m,
		validation.Field(&m.RuleType, validation.Required, validation.In(RuleTypeInvoiceMatching, RuleTypeWriteoffSuggestion, RuleTypeWriteoffButton)),
		validation.Field(&m.Conditions),
		validation.Field(&m.Invoice,
			validation.When(m.RuleType == RuleTypeInvoiceMatching, validation.Required.Error("is required for invoice_matching rules")),
			validation.When(m.RuleType != RuleTypeInvoiceMatching, validation.Nil.Error("is only allowed on invoice_matching rules")),
		),
		validation.Field(&m.PartnerMappings),
	)
}

// Validate checks the shared predicates.
func (c MatchConditions) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Nature, validation.In(MatchNatureReceived, MatchNaturePaid, MatchNatureBoth)),
		validation.Field(&c.Amount, validation.In(AmountLower, AmountGreater, AmountBetween)),
		validation.Field(&c.AmountMin, validation.By(nonNegative)),
		validation.Field(&c.AmountMax, validation.By(nonNegative), validation.By(func(value interface{}) error {
			if c.Amount == AmountBetween && c.AmountMin.GreaterThan(c.AmountMax) {
				return errors.New("must not be lower than match_amount_min")
			}
			return nil
		})),
		validation.Field(&c.Label),
		validation.Field(&c.Note),
		validation.Field(&c.TransactionType),
	)
}

// Validate checks the predicate condition and, for match_regex, the pattern.
func (p TextPredicate) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Condition, validation.In(TextContains, TextNotContains, TextMatchRegex)),
		validation.Field(&p.Param, validation.When(p.Condition == TextMatchRegex, validation.By(validRegex))),
	)
}

// Validate checks the invoice-matching settings.
func (im InvoiceMatching) Validate() error {
	return validation.ValidateStruct(&im,
		validation.Field(&im.MatchingOrder, validation.In(MatchingOrderOldFirst, MatchingOrderNewFirst)),
		validation.Field(&im.PastMonthsLimit, validation.Min(0)),
		validation.Field(&im.PaymentToleranceType,
			validation.When(im.AllowPaymentTolerance, validation.Required),
			validation.In(ToleranceFixedAmount, TolerancePercentage),
		),
		validation.Field(&im.PaymentToleranceParam, validation.By(nonNegative), validation.By(func(value interface{}) error {
			if im.PaymentToleranceType == TolerancePercentage && im.PaymentToleranceParam.GreaterThan(decimal.NewFromInt(100)) {
				return errors.New("must not exceed 100 for percentage tolerances")
			}
			return nil
		})),
	)
}

// Validate checks both regexes compile.
func (pm PartnerMapping) Validate() error {
	return validation.ValidateStruct(&pm,
		validation.Field(&pm.PaymentRefRegex, validation.By(validRegex)),
		validation.Field(&pm.NarrationRegex, validation.By(validRegex)),
	)
}

// SortReconcileModels returns the rules the engine evaluates, ordered by sequence.
// writeoff_button rules are dropped and rules sharing a sequence keep their input order.
// The input slice is left untouched.
func SortReconcileModels(models []*ReconcileModel) []*ReconcileModel {
	sorted := make([]*ReconcileModel, 0, len(models))
	for _, m := range models {
		if m.RuleType == RuleTypeWriteoffButton {
			continue
		}
		sorted = append(sorted, m)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Sequence < sorted[j].Sequence
	})
	return sorted
}
