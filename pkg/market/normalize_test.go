package market

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeDates(t *testing.T) {
	t.Parallel()

	t.Run("bare_month_from_expands_to_first_day", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, "2023-05-01", NormalizeDateFrom("2023-05"))
	})

	t.Run("bare_month_to_expands_to_last_day", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, "2023-04-30", NormalizeDateTo("2023-04"))
		require.Equal(t, "2023-12-31", NormalizeDateTo("2023-12"))
		require.Equal(t, "2023-02-28", NormalizeDateTo("2023-02"))
	})

	t.Run("leap_february", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, "2024-02-29", NormalizeDateTo("2024-02"))
		require.Equal(t, "2000-02-29", NormalizeDateTo("2000-02"))
		require.Equal(t, "1900-02-28", NormalizeDateTo("1900-02"))
	})

	t.Run("full_dates_pass_through", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, "2024-02-15", NormalizeDateFrom("2024-02-15"))
		require.Equal(t, "2024-02-15", NormalizeDateTo("2024-02-15"))
	})

	t.Run("empty_input_stays_empty", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, "", NormalizeDateFrom(""))
		require.Equal(t, "", NormalizeDateTo(""))
	})

	t.Run("malformed_input_passes_through", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, "not-a-date", NormalizeDateFrom("not-a-date"))
		require.Equal(t, "2024-13", NormalizeDateTo("2024-13"))
	})
}
