package filter

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestPrecisionOfString(t *testing.T) {
	tests := []struct {
		input    string
		expected Precision
	}{
		{"2024-03-15", PrecisionDay},
		{"15.03.2024", PrecisionDay},
		{"2024-03-15T10", PrecisionHour},
		{"2024-03-15 10:30", PrecisionMinute},
		{"2024-03-15T10:30:00Z", PrecisionSecond},
		{"2024-03-15T10:30:00.123Z", PrecisionMillisecond},
		{"2024-03-15T10:30:00.123456+01:00", PrecisionMicrosecond},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := precisionOfString(tt.input); got != tt.expected {
				t.Errorf("precisionOfString(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTimestampRange(t *testing.T) {
	at := time.Date(2024, time.March, 15, 10, 30, 45, 0, time.UTC)

	floor, ceiling := timestampRange(TimestampValue{Time: at, Precision: PrecisionDay})
	if !floor.Equal(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)) || !ceiling.Equal(time.Date(2024, time.March, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected day range [%s, %s)", floor, ceiling)
	}

	floor, ceiling = timestampRange(TimestampValue{Time: at, Precision: PrecisionMinute})
	if !floor.Equal(time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)) || ceiling.Sub(floor) != time.Minute {
		t.Errorf("unexpected minute range [%s, %s)", floor, ceiling)
	}

	floor, ceiling = timestampRange(TimestampValue{Time: at})
	if !floor.Equal(at) || ceiling.Sub(floor) != time.Second {
		t.Errorf("unknown precision should cover one second, got [%s, %s)", floor, ceiling)
	}
}

func TestParseValue(t *testing.T) {
	if v, ok := parseValue("42").(int64); !ok || v != 42 {
		t.Errorf("expected int64 42, got %#v", parseValue("42"))
	}

	amount, ok := parseValue("99.50").(decimal.Decimal)
	if !ok || !amount.Equal(decimal.RequireFromString("99.50")) {
		t.Errorf("expected decimal 99.50, got %#v", parseValue("99.50"))
	}

	if v, ok := parseValue("true").(bool); !ok || !v {
		t.Errorf("expected true, got %#v", parseValue("true"))
	}

	ts, ok := parseValue("15.03.2024").(TimestampValue)
	if !ok || ts.Precision != PrecisionDay || ts.Time.Month() != time.March {
		t.Errorf("expected a day timestamp, got %#v", parseValue("15.03.2024"))
	}

	if v, ok := parseValue("INV/2024/0042").(string); !ok || v != "INV/2024/0042" {
		t.Errorf("expected the raw string, got %#v", parseValue("INV/2024/0042"))
	}
}
