package market

import (
	"fmt"
	"strings"
)

// Compile maps an intent to a parameterized query for its shape. Unknown
// query types fall back to the plain price trend over the full filter set.
// Comparison shapes with an empty membership list compile to the zero
// CompiledQuery: nothing selected yet, nothing to run.
func Compile(intent Intent) CompiledQuery {
	f := intent.Filters

	switch intent.QueryType {
	case QueryPriceTrend:
		return buildTrendQuery(f, "MEDIAN(price_aed)", "median_price", "price_aed > 0")
	case QueryRateTrend:
		return buildTrendQuery(f, "MEDIAN(rate_per_sqm)", "median_rate", "rate_per_sqm > 0")
	case QueryVolumeTrend:
		return buildVolumeQuery(f)
	case QueryProjectComparison:
		return buildComparisonQuery("project_name", f.Projects, f)
	case QueryDistrictComparison:
		return buildComparisonQuery("district", f.Districts, f)
	case QueryLayoutDistribution:
		return buildComparisonQuery("layout", f.Layouts, f)
	default:
		return buildTrendQuery(f, "MEDIAN(price_aed)", "median_price", "price_aed > 0")
	}
}

// whereClause builds a WHERE clause from the full filter set. Every
// placeholder appended to the text has its value appended to params in the
// same left-to-right order; execution binds by position, not name.
func whereClause(f FilterSet) (string, []any) {
	var conditions []string
	var params []any

	if from := NormalizeDateFrom(f.DateFrom); from != "" {
		conditions = append(conditions, "sale_date >= ?")
		params = append(params, from)
	}
	if to := NormalizeDateTo(f.DateTo); to != "" {
		conditions = append(conditions, "sale_date <= ?")
		params = append(params, to)
	}

	membership := []struct {
		column string
		values []string
	}{
		{"district", f.Districts},
		{"property_type", f.PropertyTypes},
		{"layout", dropAll(f.Layouts)},
		{"sale_type", dropAll(f.SaleTypes)},
		{"sale_sequence", dropAll(f.SaleSequences)},
	}
	for _, m := range membership {
		if len(m.values) == 0 {
			continue
		}
		conditions = append(conditions, fmt.Sprintf("%s IN (%s)", m.column, placeholders(len(m.values))))
		for _, v := range m.values {
			params = append(params, v)
		}
	}

	if f.PriceMin != nil {
		conditions = append(conditions, "price_aed >= ?")
		params = append(params, *f.PriceMin)
	}
	if f.PriceMax != nil {
		conditions = append(conditions, "price_aed <= ?")
		params = append(params, *f.PriceMax)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), params
}

func buildTrendQuery(f FilterSet, aggregate, alias, valueFilter string) CompiledQuery {
	where, params := whereClause(f)
	filter := "WHERE " + valueFilter
	if where != "" {
		filter = "AND " + valueFilter
	}
	sql := fmt.Sprintf(`
SELECT
  strftime(sale_date, '%%Y-%%m') AS month,
  %s                             AS %s,
  CAST(COUNT(*) AS INTEGER)      AS tx_count
FROM sales
%s
%s
GROUP BY month
ORDER BY month`, aggregate, alias, where, filter)
	return CompiledQuery{SQL: sql, Params: params}
}

func buildVolumeQuery(f FilterSet) CompiledQuery {
	where, params := whereClause(f)
	sql := fmt.Sprintf(`
SELECT
  strftime(sale_date, '%%Y-%%m') AS month,
  CAST(COUNT(*) AS INTEGER)      AS tx_count
FROM sales
%s
GROUP BY month
ORDER BY month`, where)
	return CompiledQuery{SQL: sql, Params: params}
}

// buildComparisonQuery scopes by date bounds plus the named entities only.
// The rest of the filter set is deliberately ignored: comparison answers
// "these specific entities", not the ambient filter context.
func buildComparisonQuery(dimension string, members []string, f FilterSet) CompiledQuery {
	if len(members) == 0 {
		return CompiledQuery{}
	}

	var conditions []string
	var params []any

	if from := NormalizeDateFrom(f.DateFrom); from != "" {
		conditions = append(conditions, "sale_date >= ?")
		params = append(params, from)
	}
	if to := NormalizeDateTo(f.DateTo); to != "" {
		conditions = append(conditions, "sale_date <= ?")
		params = append(params, to)
	}
	conditions = append(conditions, fmt.Sprintf("%s IN (%s)", dimension, placeholders(len(members))))
	for _, m := range members {
		params = append(params, m)
	}
	conditions = append(conditions, "price_aed > 0")

	sql := fmt.Sprintf(`
SELECT
  strftime(sale_date, '%%Y-%%m') AS month,
  %s,
  MEDIAN(price_aed)              AS median_price,
  CAST(COUNT(*) AS INTEGER)      AS tx_count
FROM sales
WHERE %s
GROUP BY month, %s
ORDER BY month`, dimension, strings.Join(conditions, " AND "), dimension)
	return CompiledQuery{SQL: sql, Params: params}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// dropAll filters out the "all" sentinel the model sometimes emits for an
// unconstrained dimension.
func dropAll(values []string) []string {
	for _, v := range values {
		if v == "all" {
			return nil
		}
	}
	return values
}
