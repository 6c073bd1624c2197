package market

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPivot(t *testing.T) {
	t.Parallel()

	t.Run("two_projects_two_months", func(t *testing.T) {
		t.Parallel()
		rows := []Row{
			{"month": "2024-01", "project_name": "ProjectA", "median_price": 1000000.0, "tx_count": int64(5)},
			{"month": "2024-01", "project_name": "ProjectB", "median_price": 1500000.0, "tx_count": int64(3)},
			{"month": "2024-02", "project_name": "ProjectB", "median_price": 1550000.4, "tx_count": int64(4)},
			{"month": "2024-02", "project_name": "ProjectA", "median_price": 1100000.0, "tx_count": int64(6)},
		}
		out := Pivot(rows, Intent{QueryType: QueryProjectComparison})

		require.Len(t, out.ChartData, 2)
		require.Equal(t, []string{"ProjectA", "ProjectB"}, out.ChartKeys)

		jan := out.ChartData[0]
		require.Equal(t, "2024-01", jan["month"])
		require.Equal(t, int64(1000000), jan["ProjectA"])
		require.Equal(t, int64(1500000), jan["ProjectB"])

		feb := out.ChartData[1]
		require.Equal(t, int64(1100000), feb["ProjectA"])
		require.Equal(t, int64(1550000), feb["ProjectB"])
	})

	t.Run("chart_keys_keep_first_seen_order", func(t *testing.T) {
		t.Parallel()
		rows := []Row{
			{"month": "2024-03", "district": "Yas Island", "median_price": 900000.0, "tx_count": int64(1)},
			{"month": "2024-03", "district": "Al Reem Island", "median_price": 800000.0, "tx_count": int64(2)},
			{"month": "2024-04", "district": "Al Reem Island", "median_price": 820000.0, "tx_count": int64(2)},
		}
		out := Pivot(rows, Intent{QueryType: QueryDistrictComparison})
		require.Equal(t, []string{"Yas Island", "Al Reem Island"}, out.ChartKeys)
	})

	t.Run("chart_data_sorted_by_period_even_when_input_is_not", func(t *testing.T) {
		t.Parallel()
		rows := []Row{
			{"month": "2024-05", "layout": "2BR", "median_price": 700000.0, "tx_count": int64(1)},
			{"month": "2024-01", "layout": "2BR", "median_price": 650000.0, "tx_count": int64(1)},
			{"month": "2024-03", "layout": "2BR", "median_price": 680000.0, "tx_count": int64(1)},
		}
		out := Pivot(rows, Intent{QueryType: QueryLayoutDistribution})
		require.Equal(t, "2024-01", out.ChartData[0]["month"])
		require.Equal(t, "2024-03", out.ChartData[1]["month"])
		require.Equal(t, "2024-05", out.ChartData[2]["month"])
	})

	t.Run("single_series_shapes_pass_through", func(t *testing.T) {
		t.Parallel()
		rows := []Row{
			{"month": "2024-01", "median_price": 2000000.0, "tx_count": int64(10)},
		}
		out := Pivot(rows, Intent{QueryType: QueryPriceTrend})
		require.Equal(t, rows, out.ChartData)
		require.Empty(t, out.ChartKeys)
	})

	t.Run("empty_input_yields_empty_output", func(t *testing.T) {
		t.Parallel()
		out := Pivot(nil, Intent{QueryType: QueryProjectComparison})
		require.Empty(t, out.ChartData)
		require.Empty(t, out.ChartKeys)
	})
}
