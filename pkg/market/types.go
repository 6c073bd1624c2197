// Package market turns a structured analytical intent into parameterized
// DuckDB queries over the sales dataset, and reshapes the resulting rows
// into chart-ready series and summary statistics.
package market

// QueryType selects one of the fixed set of query shapes.
type QueryType string

const (
	QueryPriceTrend         QueryType = "price_trend"
	QueryRateTrend          QueryType = "rate_trend"
	QueryVolumeTrend        QueryType = "volume_trend"
	QueryProjectComparison  QueryType = "project_comparison"
	QueryDistrictComparison QueryType = "district_comparison"
	QueryLayoutDistribution QueryType = "layout_distribution"

	// QueryConversational marks a reply that needs no chart at all; the
	// pipeline skips querying and explains against the parent's statistics.
	QueryConversational QueryType = "conversational"
)

// FilterSet scopes a query. Date bounds may be a bare YYYY-MM month or a
// full YYYY-MM-DD date; bare months are expanded before compilation.
type FilterSet struct {
	Projects      []string `json:"projects,omitempty"`
	Districts     []string `json:"districts,omitempty"`
	PropertyTypes []string `json:"propertyTypes,omitempty"`
	Layouts       []string `json:"layouts,omitempty"`
	SaleTypes     []string `json:"saleTypes,omitempty"`
	SaleSequences []string `json:"saleSequences,omitempty"`
	DateFrom      string   `json:"dateFrom,omitempty"`
	DateTo        string   `json:"dateTo,omitempty"`
	PriceMin      *float64 `json:"priceMin,omitempty"`
	PriceMax      *float64 `json:"priceMax,omitempty"`
}

// Intent is the model-produced structured representation of a user's
// analytical question. It is untrusted input: shape-validate before use.
type Intent struct {
	QueryType QueryType `json:"queryType"`
	Filters   FilterSet `json:"filters"`
	ChartType string    `json:"chartType,omitempty"`
	Title     string    `json:"title,omitempty"`
}

// CompiledQuery pairs query text with positionally bound parameters.
// Params order exactly matches placeholder order in SQL.
type CompiledQuery struct {
	SQL    string
	Params []any
}

// Empty reports whether compilation produced no query. This is a valid
// outcome for comparison shapes with no entities selected, not an error.
func (q CompiledQuery) Empty() bool {
	return q.SQL == ""
}

// Row is one raw result row keyed by column name.
type Row = map[string]any

// pivotKey returns the series-discriminator column for comparison shapes,
// or "" for single-series shapes.
func pivotKey(t QueryType) string {
	switch t {
	case QueryProjectComparison:
		return "project_name"
	case QueryDistrictComparison:
		return "district"
	case QueryLayoutDistribution:
		return "layout"
	default:
		return ""
	}
}
