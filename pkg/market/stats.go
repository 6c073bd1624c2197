package market

import (
	"math"
	"sort"
)

// SeriesStats summarizes one chronological series.
type SeriesStats struct {
	Name      string  `json:"name"`
	First     int64   `json:"first"`
	Last      int64   `json:"last"`
	PctChange float64 `json:"pctChange"`
	Peak      int64   `json:"peak"`
	PeakMonth string  `json:"peakMonth"`
	TxCount   int64   `json:"txCount"`
}

// DateRange spans the periods present in the input rows.
type DateRange struct {
	From *string `json:"from"`
	To   *string `json:"to"`
}

// SummaryStats feeds the explanation service. Its shape varies by intent:
// volume trends fill the aggregate fields, trend and comparison shapes fill
// Series (one entry named "All" for single-series trends).
type SummaryStats struct {
	TotalTransactions int64         `json:"totalTransactions,omitempty"`
	AvgMonthly        int64         `json:"avgMonthly,omitempty"`
	PeakMonth         string        `json:"peakMonth,omitempty"`
	PeakCount         int64         `json:"peakCount,omitempty"`
	Series            []SeriesStats `json:"series,omitempty"`
	DateRange         DateRange     `json:"dateRange"`
}

type statPoint struct {
	month string
	value float64
	count int64
}

// ComputeSummaryStats derives descriptive statistics from raw rows for the
// originating intent. Empty input yields an empty series list and a nil
// date range uniformly across shapes.
func ComputeSummaryStats(rows []Row, intent Intent) SummaryStats {
	if len(rows) == 0 {
		return SummaryStats{Series: []SeriesStats{}, DateRange: DateRange{}}
	}

	if intent.QueryType == QueryVolumeTrend {
		return volumeStats(rows)
	}
	if key := pivotKey(intent.QueryType); key != "" {
		return multiSeriesStats(rows, key)
	}
	return singleSeriesStats(rows, intent.QueryType)
}

func volumeStats(rows []Row) SummaryStats {
	points := sortedPoints(rows, "tx_count")

	var total int64
	peak := int64(points[0].value)
	peakMonth := points[0].month
	for _, p := range points {
		count := int64(p.value)
		total += count
		// Ties keep the first occurrence in sorted order.
		if count > peak {
			peak = count
			peakMonth = p.month
		}
	}

	return SummaryStats{
		TotalTransactions: total,
		AvgMonthly:        int64(math.Round(float64(total) / float64(len(points)))),
		PeakMonth:         peakMonth,
		PeakCount:         peak,
		DateRange:         rangeOf(points),
	}
}

func multiSeriesStats(rows []Row, key string) SummaryStats {
	grouped := make(map[string][]statPoint)
	var names []string
	for _, row := range rows {
		name := asString(row[key])
		if _, ok := grouped[name]; !ok {
			names = append(names, name)
		}
		grouped[name] = append(grouped[name], statPoint{
			month: asString(row["month"]),
			value: asFloat(row["median_price"]),
			count: int64(asFloat(row["tx_count"])),
		})
	}

	series := make([]SeriesStats, 0, len(names))
	for _, name := range names {
		points := grouped[name]
		sort.SliceStable(points, func(i, j int) bool { return points[i].month < points[j].month })
		series = append(series, seriesFrom(name, points))
	}

	all := sortedPoints(rows, "median_price")
	return SummaryStats{Series: series, DateRange: rangeOf(all)}
}

func singleSeriesStats(rows []Row, queryType QueryType) SummaryStats {
	valueKey := "median_price"
	if queryType == QueryRateTrend {
		valueKey = "median_rate"
	}

	all := sortedPoints(rows, valueKey)

	// Non-positive values are sentinel gaps, not real observations.
	points := make([]statPoint, 0, len(all))
	var txCount int64
	for _, p := range all {
		txCount += p.count
		if p.value > 0 {
			points = append(points, p)
		}
	}
	if len(points) == 0 {
		return SummaryStats{Series: []SeriesStats{}, DateRange: rangeOf(all)}
	}

	s := seriesFrom("All", points)
	s.TxCount = txCount
	return SummaryStats{Series: []SeriesStats{s}, DateRange: rangeOf(all)}
}

// seriesFrom computes endpoint, change, and peak statistics over points
// already sorted by period.
func seriesFrom(name string, points []statPoint) SeriesStats {
	first := points[0].value
	last := points[len(points)-1].value

	peak := points[0].value
	peakMonth := points[0].month
	var txCount int64
	for _, p := range points {
		txCount += p.count
		if p.value > peak {
			peak = p.value
			peakMonth = p.month
		}
	}

	pctChange := 0.0
	if first != 0 {
		pctChange = math.Round((last-first)/first*1000) / 10
	}

	return SeriesStats{
		Name:      name,
		First:     int64(math.Round(first)),
		Last:      int64(math.Round(last)),
		PctChange: pctChange,
		Peak:      int64(math.Round(peak)),
		PeakMonth: peakMonth,
		TxCount:   txCount,
	}
}

func sortedPoints(rows []Row, valueKey string) []statPoint {
	points := make([]statPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, statPoint{
			month: asString(row["month"]),
			value: asFloat(row[valueKey]),
			count: int64(asFloat(row["tx_count"])),
		})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].month < points[j].month })
	return points
}

func rangeOf(points []statPoint) DateRange {
	if len(points) == 0 {
		return DateRange{}
	}
	from := points[0].month
	to := points[len(points)-1].month
	return DateRange{From: &from, To: &to}
}
