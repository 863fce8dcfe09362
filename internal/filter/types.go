package filter

import "time"

// Operator represents supported filter operators.
type Operator string

const (
	OpEqual              Operator = "eq"
	OpNotEqual           Operator = "ne"
	OpGreaterThan        Operator = "gt"
	OpGreaterThanOrEqual Operator = "gte"
	OpLessThan           Operator = "lt"
	OpLessThanOrEqual    Operator = "lte"
	OpIn                 Operator = "in"
	OpNotIn              Operator = "nin"
	OpBetween            Operator = "between"
	OpLike               Operator = "like"
	OpILike              Operator = "ilike"
	OpIsNull             Operator = "isnull"
	OpIsNotNull          Operator = "isnotnull"
)

// TimestampValue represents a parsed timestamp with its original string format.
type TimestampValue struct {
	Time      time.Time
	Original  string
	Precision Precision
}

// QueryFilter is one predicate on a whitelisted column.
// When Any is set the filter is a group instead: it holds when at least one of the sets holds,
// and Field, Operator and values are ignored.
type QueryFilter struct {
	Field    string           `json:"field"`
	Operator Operator         `json:"operator"`
	Value    interface{}      `json:"value,omitempty"`
	Values   []interface{}    `json:"values,omitempty"`
	Any      []QueryFilterSet `json:"any,omitempty"`
}

// QueryFilterSet is a conjunction of filters.
type QueryFilterSet struct {
	Filters []QueryFilter `json:"filters"`
}

// With returns a new set holding the receiver's filters followed by extra.
// The receiver is left untouched, so a base domain can be narrowed per rule.
func (s *QueryFilterSet) With(extra ...QueryFilter) *QueryFilterSet {
	var base []QueryFilter
	if s != nil {
		base = s.Filters
	}
	filters := make([]QueryFilter, 0, len(base)+len(extra))
	filters = append(filters, base...)
	filters = append(filters, extra...)
	return &QueryFilterSet{Filters: filters}
}

// AnyOf builds a group filter that holds when one of the sets holds.
func AnyOf(sets ...QueryFilterSet) QueryFilter {
	return QueryFilter{Any: sets}
}

// SortOrder represents the sort direction.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// QueryOptions contains sorting and pagination options for queries.
type QueryOptions struct {
	SortBy       string    `json:"sort_by,omitempty"`
	SortOrder    SortOrder `json:"sort_order,omitempty"`
	IncludeCount bool      `json:"include_count,omitempty"`
}

// DefaultSortOrder returns desc if empty, otherwise validates and returns the order.
func (o *QueryOptions) DefaultSortOrder() SortOrder {
	if o.SortOrder == "" || (o.SortOrder != SortAsc && o.SortOrder != SortDesc) {
		return SortDesc
	}
	return o.SortOrder
}

type BuildResult struct {
	Conditions []string
	Args       []interface{}
	NextArgPos int
	OrderBy    string // The ORDER BY clause (without "ORDER BY" prefix)
}

// Query is a complete parameterized statement. Values only ever travel in Args.
// Ranked queries return (id, nb_match) rows, the others return bare ids.
type Query struct {
	SQL    string
	Args   []interface{}
	Ranked bool
}

type ParseOptions struct {
	MaxFilters  int // default 20
	MaxInValues int // default 100
	MaxCharLen  int // default 1000
}

type ParseError struct {
	Param   string
	Message string
}

type ParseResult struct {
	Filters *QueryFilterSet
	Errors  []ParseError
}
