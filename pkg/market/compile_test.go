package market

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileTrendShapes(t *testing.T) {
	t.Parallel()

	t.Run("price_trend_with_full_filter_set", func(t *testing.T) {
		t.Parallel()
		priceMin := 500000.0
		q := Compile(Intent{
			QueryType: QueryPriceTrend,
			Filters: FilterSet{
				DateFrom:  "2023-01",
				DateTo:    "2023-06",
				Districts: []string{"Al Reem Island", "Yas Island"},
				Layouts:   []string{"2BR"},
				PriceMin:  &priceMin,
			},
		})
		require.Contains(t, q.SQL, "MEDIAN(price_aed)")
		require.Contains(t, q.SQL, "GROUP BY month")
		require.Contains(t, q.SQL, "ORDER BY month")

		// Positional params match placeholder order left to right.
		require.Equal(t, []any{
			"2023-01-01", "2023-06-30",
			"Al Reem Island", "Yas Island",
			"2BR",
			500000.0,
		}, q.Params)
		require.Equal(t, len(q.Params), strings.Count(q.SQL, "?"))
	})

	t.Run("rate_trend_uses_rate_column", func(t *testing.T) {
		t.Parallel()
		q := Compile(Intent{QueryType: QueryRateTrend})
		require.Contains(t, q.SQL, "MEDIAN(rate_per_sqm)")
		require.Contains(t, q.SQL, "median_rate")
		require.Contains(t, q.SQL, "WHERE rate_per_sqm > 0")
		require.Empty(t, q.Params)
	})

	t.Run("volume_trend_counts_only", func(t *testing.T) {
		t.Parallel()
		q := Compile(Intent{QueryType: QueryVolumeTrend, Filters: FilterSet{DateFrom: "2024-02"}})
		require.Contains(t, q.SQL, "tx_count")
		require.NotContains(t, q.SQL, "MEDIAN")
		require.Equal(t, []any{"2024-02-01"}, q.Params)
	})

	t.Run("unfiltered_trend_still_excludes_nonpositive_prices", func(t *testing.T) {
		t.Parallel()
		q := Compile(Intent{QueryType: QueryPriceTrend})
		require.Contains(t, q.SQL, "WHERE price_aed > 0")
	})

	t.Run("all_sentinel_skips_membership_predicate", func(t *testing.T) {
		t.Parallel()
		q := Compile(Intent{
			QueryType: QueryPriceTrend,
			Filters:   FilterSet{SaleTypes: []string{"all"}, Layouts: []string{"all"}},
		})
		require.NotContains(t, q.SQL, "sale_type")
		require.NotContains(t, q.SQL, "layout")
	})

	t.Run("unknown_query_type_falls_back_to_price_trend", func(t *testing.T) {
		t.Parallel()
		q := Compile(Intent{
			QueryType: QueryType("scatter_matrix"),
			Filters:   FilterSet{Districts: []string{"Saadiyat Island"}},
		})
		require.Contains(t, q.SQL, "MEDIAN(price_aed)")
		require.Equal(t, []any{"Saadiyat Island"}, q.Params)
	})
}

func TestCompileComparisonShapes(t *testing.T) {
	t.Parallel()

	t.Run("project_comparison_scopes_to_dates_and_projects_only", func(t *testing.T) {
		t.Parallel()
		priceMax := 900000.0
		q := Compile(Intent{
			QueryType: QueryProjectComparison,
			Filters: FilterSet{
				Projects:  []string{"Noya - Phase 1", "Al Raha Gardens"},
				Districts: []string{"Yas Island"}, // deliberately ignored
				SaleTypes: []string{"Resale"},     // deliberately ignored
				PriceMax:  &priceMax,              // deliberately ignored
				DateFrom:  "2023-01",
				DateTo:    "2023-12",
			},
		})
		require.Contains(t, q.SQL, "project_name IN (?,?)")
		require.Contains(t, q.SQL, "GROUP BY month, project_name")
		require.NotContains(t, q.SQL, "district")
		require.NotContains(t, q.SQL, "sale_type")
		require.NotContains(t, q.SQL, "price_aed <= ?")
		require.Equal(t, []any{"2023-01-01", "2023-12-31", "Noya - Phase 1", "Al Raha Gardens"}, q.Params)
	})

	t.Run("district_comparison_groups_by_district", func(t *testing.T) {
		t.Parallel()
		q := Compile(Intent{
			QueryType: QueryDistrictComparison,
			Filters:   FilterSet{Districts: []string{"Al Reem Island", "Saadiyat Island"}},
		})
		require.Contains(t, q.SQL, "district IN (?,?)")
		require.Contains(t, q.SQL, "GROUP BY month, district")
		require.Equal(t, []any{"Al Reem Island", "Saadiyat Island"}, q.Params)
	})

	t.Run("layout_distribution_groups_by_layout", func(t *testing.T) {
		t.Parallel()
		q := Compile(Intent{
			QueryType: QueryLayoutDistribution,
			Filters:   FilterSet{Layouts: []string{"1BR", "2BR", "3BR"}},
		})
		require.Contains(t, q.SQL, "layout IN (?,?,?)")
		require.Equal(t, []any{"1BR", "2BR", "3BR"}, q.Params)
	})

	t.Run("empty_membership_list_compiles_to_no_query", func(t *testing.T) {
		t.Parallel()
		for _, qt := range []QueryType{QueryProjectComparison, QueryDistrictComparison, QueryLayoutDistribution} {
			q := Compile(Intent{QueryType: qt, Filters: FilterSet{DateFrom: "2023-01"}})
			require.True(t, q.Empty())
			require.Empty(t, q.Params)
		}
	})
}
