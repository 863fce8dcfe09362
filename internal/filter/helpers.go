package filter

import (
	"fmt"
	"strings"
)

func isStringArray(values []interface{}) bool {
	for _, v := range values {
		if _, ok := v.(string); !ok {
			return false
		}
	}
	return true
}

func convertToStringArray(values []interface{}) []string {
	result := make([]string, len(values))
	for i, v := range values {
		result[i] = fmt.Sprintf("%v", v)
	}
	return result
}

func extractValueForSQL(value interface{}) interface{} {
	if tsVal, ok := value.(TimestampValue); ok {
		return tsVal.Time
	}
	return value
}

// whereClause joins conditions with AND, or returns TRUE when there are none.
func whereClause(conditions []string) string {
	if len(conditions) == 0 {
		return "TRUE"
	}
	return strings.Join(conditions, " AND ")
}
