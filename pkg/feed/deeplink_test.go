package feed

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LambaLab/abudhabi-sales-explorer/pkg/market"
)

func sharablePost() Post {
	full := "Prices rose 20% over the period, led by Yas Island."
	from, to := "2024-01", "2024-06"
	return Post{
		ID:           "8b3d2c1a",
		CreatedAt:    1717200000000,
		Prompt:       "yas island prices last 6 months",
		Title:        "Yas Island prices",
		Status:       StatusDone,
		AnalysisText: "Prices rose 20%.",
		FullText:     &full,
		IsExpanded:   true,
		Intent: market.Intent{
			QueryType: market.QueryPriceTrend,
			Filters:   market.FilterSet{Districts: []string{"Yas Island"}, DateFrom: "2024-01", DateTo: "2024-06"},
			ChartType: "line",
			Title:     "Yas Island prices",
		},
		ChartData: []market.Row{
			{"month": "2024-01", "median_price": 1000000.0, "tx_count": 12.0},
			{"month": "2024-06", "median_price": 1200000.0, "tx_count": 9.0},
		},
		ChartKeys: []string{},
		SummaryStats: market.SummaryStats{
			Series:    []market.SeriesStats{{Name: "All", First: 1000000, Last: 1200000, PctChange: 20, Peak: 1200000, PeakMonth: "2024-06", TxCount: 21}},
			DateRange: market.DateRange{From: &from, To: &to},
		},
		Replies: []Reply{},
	}
}

func TestDeepLinkRoundTrip(t *testing.T) {
	t.Parallel()

	post := sharablePost()
	encoded, err := EncodePost(post)
	require.NoError(t, err)

	// URL-safe without further escaping.
	require.Equal(t, url.QueryEscape(encoded), encoded)

	decoded, err := DecodePost(encoded)
	require.NoError(t, err)
	require.Equal(t, post, decoded)
}

func TestDecodePostRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := DecodePost("")
	require.Error(t, err)

	_, err = DecodePost("not!base64url!")
	require.Error(t, err)

	_, err = DecodePost("aGVsbG8gd29ybGQ")
	require.Error(t, err)
}

func TestBuildShareURL(t *testing.T) {
	t.Parallel()

	post := sharablePost()
	link, err := BuildShareURL("https://example.com/explorer", post)
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link, "https://example.com/explorer?"))
	require.Equal(t, post.ID, u.Query().Get("post"))

	decoded, err := DecodePost(u.Query().Get("d"))
	require.NoError(t, err)
	require.Equal(t, post, decoded)

	_, err = BuildShareURL("https://example.com", Post{})
	require.Error(t, err)
}
