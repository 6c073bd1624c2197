package analyst

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LambaLab/abudhabi-sales-explorer/pkg/logger"
	"github.com/LambaLab/abudhabi-sales-explorer/pkg/market"
)

func newExplainer(t *testing.T, llm LLMClient) *Explainer {
	t.Helper()
	e, err := NewExplainer(ExplainConfig{Logger: logger.NewTest(), LLM: llm})
	require.NoError(t, err)
	return e
}

func strPtr(s string) *string { return &s }

func TestStreamExplanation(t *testing.T) {
	t.Parallel()

	intent := market.Intent{
		QueryType: market.QueryPriceTrend,
		Filters:   market.FilterSet{Districts: []string{"Yas Island"}},
	}
	stats := market.SummaryStats{
		Series: []market.SeriesStats{
			{Name: "All", First: 1000000, Last: 1200000, PctChange: 20.0, Peak: 1250000, PeakMonth: "2024-05", TxCount: 42},
		},
		DateRange: market.DateRange{From: strPtr("2024-01"), To: strPtr("2024-06")},
	}

	t.Run("streams_chunks_and_returns_full_text", func(t *testing.T) {
		t.Parallel()
		llm := &fakeLLM{streamText: "Prices on Yas Island rose 20% over the period."}
		e := newExplainer(t, llm)

		var got strings.Builder
		full, err := e.StreamExplanation(context.Background(), ModeFull, "yas prices", intent, stats, func(s string) { got.WriteString(s) })
		require.NoError(t, err)
		require.Equal(t, llm.streamText, full)
		require.Equal(t, llm.streamText, got.String())
		require.Contains(t, llm.lastSystem, "2-3 paragraphs")
		require.Contains(t, llm.lastUser, "KEY DATA")
		require.Contains(t, llm.lastUser, `"Yas Island"`)
	})

	t.Run("short_mode_uses_teaser_prompt", func(t *testing.T) {
		t.Parallel()
		llm := &fakeLLM{streamText: "Prices rose 20%."}
		e := newExplainer(t, llm)

		_, err := e.StreamExplanation(context.Background(), ModeShort, "yas prices", intent, stats, func(string) {})
		require.NoError(t, err)
		require.Contains(t, llm.lastSystem, "exactly 1 sentence")
	})

	t.Run("missing_prompt_is_validation_error", func(t *testing.T) {
		t.Parallel()
		e := newExplainer(t, &fakeLLM{})
		_, err := e.StreamExplanation(context.Background(), ModeFull, "", intent, stats, func(string) {})
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("stream_failure_is_upstream_error", func(t *testing.T) {
		t.Parallel()
		e := newExplainer(t, &fakeLLM{streamErr: errors.New("connection reset")})
		_, err := e.StreamExplanation(context.Background(), ModeFull, "yas prices", intent, stats, func(string) {})
		require.ErrorIs(t, err, ErrUpstream)
	})
}

func TestClarify(t *testing.T) {
	t.Parallel()

	t.Run("parses_model_output", func(t *testing.T) {
		t.Parallel()
		llm := &fakeLLM{completeText: `{"question":"What data would help most?","options":["Price growth by project","Transaction volume"]}`}
		e := newExplainer(t, llm)

		c := e.Clarify(context.Background(), "which project should I buy?")
		require.Equal(t, "What data would help most?", c.Question)
		require.Len(t, c.Options, 2)
	})

	t.Run("strips_markdown_fence", func(t *testing.T) {
		t.Parallel()
		llm := &fakeLLM{completeText: "```json\n{\"question\":\"What data interests you?\",\"options\":[\"Price trends\"]}\n```"}
		e := newExplainer(t, llm)

		c := e.Clarify(context.Background(), "hm")
		require.Equal(t, "What data interests you?", c.Question)
	})

	t.Run("falls_back_on_model_error", func(t *testing.T) {
		t.Parallel()
		e := newExplainer(t, &fakeLLM{completeErr: errors.New("overloaded")})
		c := e.Clarify(context.Background(), "hm")
		require.Equal(t, clarifyFallback, c)
	})

	t.Run("falls_back_on_unparseable_output", func(t *testing.T) {
		t.Parallel()
		e := newExplainer(t, &fakeLLM{completeText: "Sorry, I can't."})
		c := e.Clarify(context.Background(), "hm")
		require.Equal(t, clarifyFallback, c)
	})
}

func TestFormatStats(t *testing.T) {
	t.Parallel()

	t.Run("volume", func(t *testing.T) {
		t.Parallel()
		stats := market.SummaryStats{
			TotalTransactions: 12500,
			AvgMonthly:        1042,
			PeakMonth:         "2024-03",
			PeakCount:         1800,
			DateRange:         market.DateRange{From: strPtr("2024-01"), To: strPtr("2024-12")},
		}
		out := FormatStats(stats, market.QueryVolumeTrend)
		require.Contains(t, out, "Date range: 2024-01 to 2024-12")
		require.Contains(t, out, "Total transactions in period: 12,500")
		require.Contains(t, out, "Monthly average: 1,042")
		require.Contains(t, out, "Peak month: 2024-03 with 1,800 transactions")
	})

	t.Run("single_series_rate_uses_sqm_unit", func(t *testing.T) {
		t.Parallel()
		stats := market.SummaryStats{
			Series: []market.SeriesStats{
				{Name: "All", First: 12000, Last: 13500, PctChange: 12.5, Peak: 13500, PeakMonth: "2024-02", TxCount: 9},
			},
			DateRange: market.DateRange{From: strPtr("2024-01"), To: strPtr("2024-02")},
		}
		out := FormatStats(stats, market.QueryRateTrend)
		require.Contains(t, out, "Starting value: AED/sqm 12,000")
		require.Contains(t, out, "Change:         +12.5% over the period")
		require.Contains(t, out, "Peak:           AED/sqm 13,500 (2024-02)")
	})

	t.Run("multi_series_lists_each_series", func(t *testing.T) {
		t.Parallel()
		stats := market.SummaryStats{
			Series: []market.SeriesStats{
				{Name: "ProjectA", First: 1000000, Last: 1100000, PctChange: 10, Peak: 1100000, PeakMonth: "2024-02", TxCount: 12},
				{Name: "ProjectB", First: 2000000, Last: 1900000, PctChange: -5, Peak: 2000000, PeakMonth: "2024-01", TxCount: 3},
			},
		}
		out := FormatStats(stats, market.QueryProjectComparison)
		require.Contains(t, out, "Series: ProjectA")
		require.Contains(t, out, "Series: ProjectB")
		require.Contains(t, out, "Change:         +10% over the period")
		require.Contains(t, out, "Change:         -5% over the period")
	})

	t.Run("empty_series", func(t *testing.T) {
		t.Parallel()
		out := FormatStats(market.SummaryStats{Series: []market.SeriesStats{}}, market.QueryPriceTrend)
		require.Contains(t, out, "No series data available.")
	})
}

func TestGroupInt(t *testing.T) {
	t.Parallel()

	require.Equal(t, "0", groupInt(0))
	require.Equal(t, "999", groupInt(999))
	require.Equal(t, "1,000", groupInt(1000))
	require.Equal(t, "1,234,567", groupInt(1234567))
	require.Equal(t, "-12,500", groupInt(-12500))
}
