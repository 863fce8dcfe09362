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

// Partner is the counterparty of a statement line or AML.
type Partner struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	CategoryIDs []int64 `json:"category_ids,omitempty"`
}

// HasAnyCategory reports whether the partner carries at least one of categoryIDs.
func (p *Partner) HasAnyCategory(categoryIDs []int64) bool {
	for _, own := range p.CategoryIDs {
		for _, id := range categoryIDs {
			if own == id {
				return true
			}
		}
	}
	return false
}
