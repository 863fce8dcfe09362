package filter

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// parseValue converts a raw query value into the type compared against the column. Whole
// numbers become int64 ids, other numbers become decimals so amount filters keep their scale.
func parseValue(value string) interface{} {
	if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
		return intVal
	}

	if strings.ContainsAny(value, ".eE") {
		if amount, err := decimal.NewFromString(value); err == nil {
			return amount
		}
	}

	switch value {
	case "true":
		return true
	case "false":
		return false
	}

	if timeVal, err := ParseDateTime(value); err == nil {
		return TimestampValue{
			Time:      timeVal,
			Original:  value,
			Precision: precisionOfString(value),
		}
	}

	return value
}
