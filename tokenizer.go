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
	"unicode/utf8"
)

// significantTokenSize is the minimum length of a word or digit run used for matching.
const significantTokenSize = 4

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
	nonDigit        = regexp.MustCompile(`\D`)
	digitRun        = regexp.MustCompile(`\d+`)
)

// matchingTokens are the lookup keys derived from statement-line text.
//
// Exact tokens are the selected fields themselves plus every significant word.
// Text tokens are the significant words reduced to ASCII letters and digits.
// Numerical tokens are the digits of each text token, plus every significant run of digits
// found in the words, so "INV/2024/0042" yields 20240042, 2024 and 0042.
type matchingTokens struct {
	Exact     []string
	Text      []string
	Numerical []string
}

// tokenize splits the text values into matching tokens. Every list is deduplicated and keeps
// the order in which tokens first appear.
func tokenize(values []string) matchingTokens {
	exact := newTokenSet()
	text := newTokenSet()
	numerical := newTokenSet()

	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		exact.add(value)

		for _, word := range strings.Fields(value) {
			if utf8.RuneCountInString(word) >= significantTokenSize {
				exact.add(word)
			}

			stripped := nonAlphanumeric.ReplaceAllString(word, "")
			if len(stripped) < significantTokenSize {
				continue
			}
			text.add(stripped)

			if digits := nonDigit.ReplaceAllString(stripped, ""); len(digits) >= significantTokenSize {
				numerical.add(digits)
			}
			for _, run := range digitRun.FindAllString(word, -1) {
				if len(run) >= significantTokenSize {
					numerical.add(run)
				}
			}
		}
	}

	return matchingTokens{Exact: exact.values, Text: text.values, Numerical: numerical.values}
}

// Empty reports whether no lookup key was found.
func (t matchingTokens) Empty() bool {
	return len(t.Exact) == 0 && len(t.Numerical) == 0
}

// Lookup returns the numerical and exact tokens, deduplicated, as sent to the candidate query.
func (t matchingTokens) Lookup() []string {
	all := newTokenSet()
	for _, token := range t.Numerical {
		all.add(token)
	}
	for _, token := range t.Exact {
		all.add(token)
	}
	return all.values
}

type tokenSet struct {
	seen   map[string]struct{}
	values []string
}

func newTokenSet() *tokenSet {
	return &tokenSet{seen: map[string]struct{}{}, values: []string{}}
}

func (s *tokenSet) add(token string) {
	if _, ok := s.seen[token]; ok {
		return
	}
	s.seen[token] = struct{}{}
	s.values = append(s.values, token)
}
