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

import "github.com/shopspring/decimal"

// Currency carries the precision amounts in that currency are rounded and compared at.
type Currency struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	DecimalPlaces int32  `json:"decimal_places"`
}

// Round rounds amount half away from zero to the currency's decimal places.
func (c *Currency) Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(c.DecimalPlaces)
}

// IsZero reports whether amount is zero once rounded to the currency's precision.
func (c *Currency) IsZero(amount decimal.Decimal) bool {
	return c.Round(amount).IsZero()
}

// CompareAmounts compares a and b at the currency's precision.
// It returns -1 when a < b, 0 when they are equal and 1 when a > b.
func (c *Currency) CompareAmounts(a, b decimal.Decimal) int {
	return c.Round(a.Sub(b)).Sign()
}

// Equal reports whether both currencies are set and share the same id.
func (c *Currency) Equal(other *Currency) bool {
	if c == nil || other == nil {
		return false
	}
	return c.ID == other.ID
}
