package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const (
	moveLineAlias = "account_move_line"
	moveAlias     = "account_move_line__move_id"

	moveLineFrom = "recon.account_move_line " + moveLineAlias +
		" JOIN recon.account_move " + moveAlias + " ON " + moveAlias + ".id = " + moveLineAlias + ".move_id"
)

// tokenFields are the CTE columns searched for tokens: the AML label, the move name and the move reference.
var tokenFields = []string{"aml_name", "move_name", "move_ref"}

var ErrNoTokens = errors.New("token candidate query needs at least one token")

// orderDirection maps the newest-first flag onto the SQL direction of the tie-breaker.
func orderDirection(newFirst bool) string {
	if newFirst {
		return "DESC"
	}
	return "ASC"
}

func tieBreaker(alias string, newFirst bool) string {
	dir := orderDirection(newFirst)
	return fmt.Sprintf("%[1]s.date_maturity %[2]s, %[1]s.date %[2]s, %[1]s.id %[2]s", alias, dir)
}

// TokenCandidateQuery builds the aggregated token lookup over the AMLs in domain.
// The filtered AMLs are materialized in aml_cte, every searched field contributes a numerical
// sub-query (non digits stripped, split on whitespace) and an exact sub-query (the whole value),
// and the rows whose token is one of tokens are counted per AML.
//
// Parameters:
// - domain *QueryFilterSet: The AML filters, validated against account_move_line.
// - tokens []string: The numerical and exact tokens to look up.
// - newFirst bool: Whether the tie-breaker prefers the most recent AMLs.
//
// Returns:
// - *Query: A ranked query yielding (id, nb_match) rows, best match first.
// - error: If the domain is invalid or tokens is empty.
func TokenCandidateQuery(domain *QueryFilterSet, tokens []string, newFirst bool) (*Query, error) {
	if len(tokens) == 0 {
		return nil, ErrNoTokens
	}

	built, err := Build(domain, TableMoveLines, moveLineAlias, 1)
	if err != nil {
		return nil, err
	}

	subQueries := make([]string, 0, 2*len(tokenFields))
	for _, field := range tokenFields {
		subQueries = append(subQueries, fmt.Sprintf(
			`SELECT aml_cte.account_move_line_id AS id, aml_cte.date, aml_cte.date_maturity, `+
				`UNNEST(REGEXP_SPLIT_TO_ARRAY(SUBSTRING(REGEXP_REPLACE(aml_cte.%[1]s, '[^0-9\s]', '', 'g'), '\S(?:.*\S)*'), '\s+')) AS token `+
				`FROM aml_cte WHERE aml_cte.%[1]s IS NOT NULL`, field))
	}
	for _, field := range tokenFields {
		subQueries = append(subQueries, fmt.Sprintf(
			`SELECT aml_cte.account_move_line_id AS id, aml_cte.date, aml_cte.date_maturity, aml_cte.%[1]s AS token `+
				`FROM aml_cte WHERE COALESCE(aml_cte.%[1]s, '') != ''`, field))
	}

	var sql strings.Builder
	fmt.Fprintf(&sql, "WITH aml_cte AS (SELECT %[1]s.id AS account_move_line_id, %[1]s.date, %[1]s.date_maturity, "+
		"%[1]s.name AS aml_name, %[2]s.name AS move_name, %[2]s.ref AS move_ref FROM %[3]s WHERE %[4]s) ",
		moveLineAlias, moveAlias, moveLineFrom, whereClause(built.Conditions))
	fmt.Fprintf(&sql, "SELECT sub.id, COUNT(*) AS nb_match FROM (%s) AS sub ", strings.Join(subQueries, " UNION ALL "))
	fmt.Fprintf(&sql, "WHERE sub.token = ANY($%d) ", built.NextArgPos)
	sql.WriteString("GROUP BY sub.date_maturity, sub.date, sub.id HAVING COUNT(*) > 0 ")
	fmt.Fprintf(&sql, "ORDER BY nb_match DESC, %s", tieBreaker("sub", newFirst))

	args := append(built.Args, pq.Array(tokens))
	return &Query{SQL: sql.String(), Args: args, Ranked: true}, nil
}

// ExactAmountQuery builds the lookup of AMLs in domain whose residual equals amount
// once both sides are rounded to decimalPlaces.
//
// Parameters:
// - domain *QueryFilterSet: The AML filters.
// - residualField string: amount_residual or amount_residual_currency.
// - amount decimal.Decimal: The residual to look for, already negated from the statement line.
// - decimalPlaces int32: The rounding precision of the compared currency.
// - newFirst bool: Whether the tie-breaker prefers the most recent AMLs.
//
// Returns:
// - *Query: A query yielding AML ids.
// - error: If the domain or the residual field is invalid.
func ExactAmountQuery(domain *QueryFilterSet, residualField string, amount decimal.Decimal, decimalPlaces int32, newFirst bool) (*Query, error) {
	column := safeColumnForTableAndField(TableMoveLines, residualField)
	if column != "amount_residual" && column != "amount_residual_currency" {
		return nil, fmt.Errorf("invalid residual field '%s'", residualField)
	}

	built, err := Build(domain, TableMoveLines, moveLineAlias, 1)
	if err != nil {
		return nil, err
	}

	amountPos := built.NextArgPos
	precisionPos := amountPos + 1
	sql := fmt.Sprintf("SELECT %[1]s.id FROM %[2]s WHERE %[3]s AND ROUND(%[1]s.%[4]s, $%[6]d) = ROUND($%[5]d::numeric, $%[6]d) ORDER BY %[7]s",
		moveLineAlias, moveLineFrom, whereClause(built.Conditions), column, amountPos, precisionPos, tieBreaker(moveLineAlias, newFirst))

	args := append(built.Args, amount.String(), int(decimalPlaces))
	return &Query{SQL: sql, Args: args}, nil
}

// DomainSearchQuery builds the plain search of AMLs in domain ordered by the tie-breaker.
func DomainSearchQuery(domain *QueryFilterSet, newFirst bool) (*Query, error) {
	built, err := Build(domain, TableMoveLines, moveLineAlias, 1)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf("SELECT %[1]s.id FROM %[2]s WHERE %[3]s ORDER BY %[4]s",
		moveLineAlias, moveLineFrom, whereClause(built.Conditions), tieBreaker(moveLineAlias, newFirst))
	return &Query{SQL: sql, Args: built.Args}, nil
}
