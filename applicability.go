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
	"regexp"
	"strings"
	"sync"

	"github.com/blnkfinance/recon/internal/plaintext"
	"github.com/blnkfinance/recon/model"
)

var compiledPatterns sync.Map

// compilePattern compiles and caches a regex. The pattern only has to match a prefix of the subject.
func compilePattern(flags, pattern string) (*regexp.Regexp, error) {
	key := flags + "\x00" + pattern
	if cached, ok := compiledPatterns.Load(key); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(flags + `^(?:` + pattern + `)`)
	if err != nil {
		return nil, err
	}
	compiledPatterns.Store(key, re)
	return re, nil
}

// matchPrefix reports whether pattern matches at the start of subject.
// Patterns are validated with the rule, so a pattern that fails to compile simply does not match.
func matchPrefix(flags, pattern, subject string) bool {
	re, err := compilePattern(flags, pattern)
	if err != nil {
		return false
	}
	return re.MatchString(subject)
}

// isApplicable reports whether none of the rule's non-match conditions holds for the statement line
// and partner. partner may be nil.
func isApplicable(rule *model.ReconcileModel, stLine *model.StatementLine, partner *model.Partner) bool {
	conditions := rule.Conditions

	if len(conditions.JournalIDs) > 0 && !containsID(conditions.JournalIDs, stLine.JournalID) {
		return false
	}

	switch conditions.Nature {
	case model.MatchNatureReceived:
		if stLine.Amount.IsNegative() {
			return false
		}
	case model.MatchNaturePaid:
		if stLine.Amount.IsPositive() {
			return false
		}
	}

	absAmount := stLine.Amount.Abs()
	switch conditions.Amount {
	case model.AmountLower:
		if absAmount.GreaterThanOrEqual(conditions.AmountMax) {
			return false
		}
	case model.AmountGreater:
		if absAmount.LessThanOrEqual(conditions.AmountMin) {
			return false
		}
	case model.AmountBetween:
		if absAmount.LessThan(conditions.AmountMin) || absAmount.GreaterThan(conditions.AmountMax) {
			return false
		}
	}

	if conditions.Partner {
		if partner == nil {
			return false
		}
		if len(conditions.PartnerIDs) > 0 && !containsID(conditions.PartnerIDs, partner.ID) {
			return false
		}
		if len(conditions.PartnerCategoryIDs) > 0 && !partner.HasAnyCategory(conditions.PartnerCategoryIDs) {
			return false
		}
	}

	textChecks := []struct {
		predicate model.TextPredicate
		value     string
	}{
		{conditions.Label, stLine.PaymentRef},
		{conditions.Note, plaintext.FromHTML(stLine.Narration)},
		{conditions.TransactionType, stLine.TransactionType},
	}
	for _, check := range textChecks {
		if !textPredicateHolds(check.predicate, check.value) {
			return false
		}
	}

	return true
}

// textPredicateHolds evaluates one text predicate with both sides case-folded.
// Regexes keep their pattern and run with the (?i) flag.
func textPredicateHolds(predicate model.TextPredicate, value string) bool {
	field := strings.ToLower(value)
	param := strings.ToLower(predicate.Param)

	switch predicate.Condition {
	case model.TextContains:
		return strings.Contains(field, param)
	case model.TextNotContains:
		return !strings.Contains(field, param)
	case model.TextMatchRegex:
		return matchPrefix("(?i)", predicate.Param, value)
	}
	return true
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
