package filter

import (
	"fmt"
)

func Validate(filters *QueryFilterSet, table string) error {
	if filters == nil {
		return nil
	}

	validFields := GetValidFieldsForTable(table)
	if len(validFields) == 0 {
		return fmt.Errorf("unsupported table for advanced filtering: %s", table)
	}

	for _, f := range filters.Filters {
		if len(f.Any) > 0 {
			for i := range f.Any {
				if err := Validate(&f.Any[i], table); err != nil {
					return err
				}
			}
			continue
		}

		if !validFields[f.Field] {
			return fmt.Errorf("invalid field '%s' for table '%s'", f.Field, table)
		}
	}

	return nil
}

func GetValidFieldsForTable(table string) map[string]bool {
	switch table {
	case TableMoveLines:
		return map[string]bool{
			"id":                       true,
			"move_id":                  true,
			"name":                     true,
			"partner_id":               true,
			"account_id":               true,
			"company_id":               true,
			"currency_id":              true,
			"balance":                  true,
			"amount_currency":          true,
			"amount_residual":          true,
			"amount_residual_currency": true,
			"date":                     true,
			"date_maturity":            true,
			"reconciled":               true,
			"parent_state":             true,
			"account_type":             true,
			"account_reconcile":        true,
			"display_type":             true,
			"statement_line_id":        true,
		}
	case TableStatementLines:
		return map[string]bool{
			"id":                  true,
			"journal_id":          true,
			"company_id":          true,
			"partner_id":          true,
			"currency_id":         true,
			"foreign_currency_id": true,
			"date":                true,
			"amount":              true,
			"amount_residual":     true,
			"payment_ref":         true,
			"ref":                 true,
			"transaction_type":    true,
			"is_reconciled":       true,
		}
	case TableRuns:
		return map[string]bool{
			"run_id":       true,
			"company_id":   true,
			"status":       true,
			"started_at":   true,
			"completed_at": true,
		}
	default:
		return map[string]bool{}
	}
}

// GetSortableFieldsForTable returns fields that can be sorted.
// All filterable fields are sortable.
func GetSortableFieldsForTable(table string) map[string]bool {
	return GetValidFieldsForTable(table)
}

// ValidateSortField validates that the sort field is allowed for the table.
func ValidateSortField(sortBy, table string) error {
	if sortBy == "" {
		return nil
	}

	sortableFields := GetSortableFieldsForTable(table)
	if len(sortableFields) == 0 {
		return fmt.Errorf("sorting not supported for table: %s", table)
	}

	if !sortableFields[sortBy] {
		return fmt.Errorf("cannot sort by '%s' for table '%s': field is not filterable", sortBy, table)
	}

	return nil
}

// GetDefaultSortField returns the default sort field for a table.
func GetDefaultSortField(table string) string {
	switch table {
	case TableRuns:
		return "started_at"
	default:
		return "date"
	}
}
