package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/LambaLab/abudhabi-sales-explorer/pkg/market"
)

// Mode selects the explanation register.
type Mode string

const (
	// ModeShort asks for a single-sentence teaser.
	ModeShort Mode = "short"
	// ModeFull asks for the 2-3 paragraph analyst commentary.
	ModeFull Mode = "full"
	// ModeClarify asks for a clarifying question with suggested queries.
	ModeClarify Mode = "clarify"
)

const (
	shortMaxTokens   = 80
	fullMaxTokens    = 600
	clarifyMaxTokens = 200
)

// Clarification is the fallback surface for unanswerable prompts: a short
// question plus tappable suggestions that map to runnable queries.
type Clarification struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

var clarifyFallback = Clarification{
	Question: "What data interests you?",
	Options:  []string{"Price trends", "Transaction volumes", "District comparison"},
}

// ExplainConfig holds the configuration for an Explainer.
type ExplainConfig struct {
	Logger *slog.Logger
	LLM    LLMClient
}

func (cfg *ExplainConfig) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.LLM == nil {
		return fmt.Errorf("LLM client is required")
	}
	return nil
}

// Explainer turns computed statistics into streamed natural-language
// commentary, grounded strictly in the numbers it is given.
type Explainer struct {
	log *slog.Logger
	llm LLMClient
}

// NewExplainer creates an Explainer.
func NewExplainer(cfg ExplainConfig) (*Explainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate explain config: %w", err)
	}
	return &Explainer{log: cfg.Logger, llm: cfg.LLM}, nil
}

// StreamExplanation streams analyst commentary for the given statistics,
// delivering text incrementally through onChunk and returning the full text.
func (e *Explainer) StreamExplanation(ctx context.Context, mode Mode, prompt string, intent market.Intent, stats market.SummaryStats, onChunk func(string)) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: missing prompt", ErrValidation)
	}
	if intent.QueryType == "" {
		return "", fmt.Errorf("%w: missing intent", ErrValidation)
	}

	system := fullSystemPrompt
	maxTokens := int64(fullMaxTokens)
	if mode == ModeShort {
		system = shortSystemPrompt
		maxTokens = shortMaxTokens
	}

	filters, _ := json.Marshal(intent.Filters)
	userMessage := fmt.Sprintf(`Original question: %q

Query type: %s
Filters applied: %s

%s

Write the analyst commentary now.`, prompt, intent.QueryType, filters, FormatStats(stats, intent.QueryType))

	full, err := e.llm.Stream(ctx, system, userMessage, maxTokens, onChunk)
	if err != nil {
		return full, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return full, nil
}

// Clarify asks the model for a clarifying question and suggestion chips.
// Any failure falls back to a fixed clarification so the caller always has
// something to render.
func (e *Explainer) Clarify(ctx context.Context, prompt string) Clarification {
	userMessage := fmt.Sprintf("The user asked: %q", prompt)

	text, err := e.llm.Complete(ctx, clarifySystemPrompt, userMessage, clarifyMaxTokens)
	if err != nil {
		e.log.Warn("clarify: model call failed, using fallback", "error", err)
		return clarifyFallback
	}

	cleaned := stripFence(text)
	var c Clarification
	if err := json.Unmarshal([]byte(cleaned), &c); err != nil || c.Question == "" || len(c.Options) == 0 {
		e.log.Warn("clarify: unparseable model output, using fallback", "textLen", len(text))
		return clarifyFallback
	}
	return c
}

// stripFence removes a surrounding markdown code fence, if present.
func stripFence(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// FormatStats renders statistics as a labelled plain-text block so the
// model can cite the numbers reliably without parsing JSON.
func FormatStats(stats market.SummaryStats, queryType market.QueryType) string {
	lines := []string{"KEY DATA (cite only these numbers, do not use any other figures):"}

	if stats.DateRange.From != nil || stats.DateRange.To != nil {
		from, to := "start", "present"
		if stats.DateRange.From != nil {
			from = *stats.DateRange.From
		}
		if stats.DateRange.To != nil {
			to = *stats.DateRange.To
		}
		lines = append(lines, fmt.Sprintf("• Date range: %s to %s", from, to))
	}

	if stats.TotalTransactions != 0 {
		lines = append(lines, fmt.Sprintf("• Total transactions in period: %s", groupInt(stats.TotalTransactions)))
		if stats.AvgMonthly != 0 {
			lines = append(lines, fmt.Sprintf("• Monthly average: %s", groupInt(stats.AvgMonthly)))
		}
		if stats.PeakMonth != "" {
			lines = append(lines, fmt.Sprintf("• Peak month: %s with %s transactions", stats.PeakMonth, groupInt(stats.PeakCount)))
		}
		return strings.Join(lines, "\n")
	}

	switch {
	case len(stats.Series) > 1:
		for _, s := range stats.Series {
			lines = append(lines,
				fmt.Sprintf("\nSeries: %s", s.Name),
				fmt.Sprintf("  • Starting value: AED %s", groupInt(s.First)),
				fmt.Sprintf("  • Latest value:   AED %s", groupInt(s.Last)),
				fmt.Sprintf("  • Change:         %s%% over the period", signedPct(s.PctChange)),
			)
			if s.Peak != 0 {
				lines = append(lines, fmt.Sprintf("  • Peak:           AED %s (%s)", groupInt(s.Peak), s.PeakMonth))
			}
			if s.TxCount != 0 {
				lines = append(lines, fmt.Sprintf("  • Transactions in period: %s", groupInt(s.TxCount)))
			}
		}
	case len(stats.Series) == 1:
		s := stats.Series[0]
		unit := "AED"
		if queryType == market.QueryRateTrend {
			unit = "AED/sqm"
		}
		lines = append(lines,
			fmt.Sprintf("• Starting value: %s %s", unit, groupInt(s.First)),
			fmt.Sprintf("• Latest value:   %s %s", unit, groupInt(s.Last)),
			fmt.Sprintf("• Change:         %s%% over the period", signedPct(s.PctChange)),
		)
		if s.Peak != 0 {
			lines = append(lines, fmt.Sprintf("• Peak:           %s %s (%s)", unit, groupInt(s.Peak), s.PeakMonth))
		}
		if s.TxCount != 0 {
			lines = append(lines, fmt.Sprintf("• Total transactions in period: %s", groupInt(s.TxCount)))
		}
	default:
		lines = append(lines, "• No series data available.")
	}

	return strings.Join(lines, "\n")
}

func signedPct(pct float64) string {
	s := strconv.FormatFloat(pct, 'f', -1, 64)
	if pct > 0 {
		return "+" + s
	}
	return s
}

// groupInt formats n with comma thousand separators.
func groupInt(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
