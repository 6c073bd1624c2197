// Package feed holds conversation state for the analysis feed: posts,
// threaded replies, the persistent store behind them, and the orchestrator
// that drives each entity through the interpret, query, explain pipeline.
package feed

import (
	"github.com/LambaLab/abudhabi-sales-explorer/pkg/market"
)

// Status is the pipeline stage of a post or reply.
type Status string

const (
	StatusAnalyzing  Status = "analyzing"
	StatusQuerying   Status = "querying"
	StatusExplaining Status = "explaining"
	StatusDone       Status = "done"
	StatusError      Status = "error"

	// StatusDeepening applies to posts only, while a long-form
	// explanation streams in.
	StatusDeepening Status = "deepening"
)

// Post is a conversation root. It is created the instant a prompt is
// submitted and mutated in place through every pipeline stage, so readers
// always have something to render.
type Post struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
	Prompt    string `json:"prompt"`
	Title     string `json:"title"`
	Status    Status `json:"status"`
	Error     string `json:"error,omitempty"`

	// AnalysisText is the short-form commentary, streamed in during the
	// explaining stage. FullText is filled only by deep analysis.
	AnalysisText string  `json:"analysisText"`
	FullText     *string `json:"fullText"`
	IsExpanded   bool    `json:"isExpanded"`

	Intent       market.Intent       `json:"intent"`
	ChartData    []market.Row        `json:"chartData"`
	ChartKeys    []string            `json:"chartKeys"`
	SummaryStats market.SummaryStats `json:"summaryStats"`

	Replies []Reply `json:"replies"`
}

// Reply is a threaded follow-up owned by exactly one Post. Replies are
// appended in creation order and never reordered or removed.
type Reply struct {
	ID           string        `json:"id"`
	CreatedAt    int64         `json:"createdAt"`
	Prompt       string        `json:"prompt"`
	Status       Status        `json:"status"`
	Error        string        `json:"error,omitempty"`
	AnalysisText string        `json:"analysisText"`
	Intent       market.Intent `json:"intent"`
	ChartData    []market.Row  `json:"chartData"`
	ChartKeys    []string      `json:"chartKeys"`
}

// clone returns a copy whose replies slice is independent of the original.
// Chart rows are shared; callers treat returned posts as read-only.
func (p Post) clone() Post {
	out := p
	out.Replies = append([]Reply(nil), p.Replies...)
	out.ChartData = append([]market.Row(nil), p.ChartData...)
	out.ChartKeys = append([]string(nil), p.ChartKeys...)
	return out
}
