package market

import (
	"fmt"
	"math"
	"sort"
)

// ChartSeries is the chart-ready reshaping of raw query rows.
type ChartSeries struct {
	// ChartData is ordered by period ascending. For comparison shapes each
	// record holds the period plus one field per series name.
	ChartData []Row `json:"chartData"`
	// ChartKeys lists the series names in first-seen order. First-seen
	// ordering keeps chart legends stable while a user narrows the date
	// range; it is documented behavior, not an accident.
	ChartKeys []string `json:"chartKeys"`
}

// Pivot reshapes flat multi-series rows into period-keyed records with one
// field per series. Single-series shapes pass rows through unchanged with
// empty ChartKeys. Empty input yields empty output, not an error.
func Pivot(rows []Row, intent Intent) ChartSeries {
	key := pivotKey(intent.QueryType)
	if key == "" {
		return ChartSeries{ChartData: rows, ChartKeys: []string{}}
	}

	byMonth := make(map[string]Row)
	var months []string
	var keys []string
	seen := make(map[string]bool)

	for _, row := range rows {
		month := asString(row["month"])
		series := asString(row[key])
		record, ok := byMonth[month]
		if !ok {
			record = Row{"month": month}
			byMonth[month] = record
			months = append(months, month)
		}
		record[series] = int64(math.Round(asFloat(row["median_price"])))
		if !seen[series] {
			seen[series] = true
			keys = append(keys, series)
		}
	}

	sort.Strings(months)
	chartData := make([]Row, 0, len(months))
	for _, m := range months {
		chartData = append(chartData, byMonth[m])
	}
	if keys == nil {
		keys = []string{}
	}
	return ChartSeries{ChartData: chartData, ChartKeys: keys}
}

// asFloat coerces the numeric column types DuckDB hands back through
// database/sql into a float64.
func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case int:
		return float64(n)
	case uint64:
		return float64(n)
	default:
		return 0
	}
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
